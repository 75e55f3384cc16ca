package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InstrumentRepository defines persistence operations for instruments.
// Instruments are never deleted in normal operation.
type InstrumentRepository interface {
	// GetBySymbol retrieves an instrument by its normalized symbol.
	GetBySymbol(ctx context.Context, symbol string) (*Instrument, error)

	// GetByID retrieves an instrument by its ID.
	GetByID(ctx context.Context, id uuid.UUID) (*Instrument, error)

	// List retrieves instruments ordered by symbol. A non-empty search
	// term filters by symbol, name or sector substring.
	List(ctx context.Context, search string) ([]*Instrument, error)

	// Create creates a new instrument.
	Create(ctx context.Context, instrument *Instrument) error

	// Count returns the number of tracked instruments.
	Count(ctx context.Context) (int, error)
}

// PriceRepository is the price store: the instrument's current price and
// its history are two representations of the same fact and Publish keeps
// them consistent.
type PriceRepository interface {
	// GetCurrent returns the instrument's authoritative current price
	// and the time it was last updated.
	GetCurrent(ctx context.Context, instrumentID uuid.UUID) (decimal.Decimal, time.Time, error)

	// GetRecent returns up to n price points, newest first.
	GetRecent(ctx context.Context, instrumentID uuid.UUID, n int) ([]*PricePoint, error)

	// GetHistory returns price points at or after since, oldest first.
	GetHistory(ctx context.Context, instrumentID uuid.UUID, since time.Time) ([]*PricePoint, error)

	// Publish atomically updates the instrument's current price/timestamp
	// and appends a price point: both succeed or both fail. Returns
	// ErrNotFound when the instrument is unknown.
	Publish(ctx context.Context, point *PricePoint) error

	// DeleteOlderThan removes at most limit price points older than
	// cutoff and reports how many rows were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// LedgerRepository applies buy/sell mutations to the position ledger.
// ExecuteBuy and ExecuteSell each run as one atomic unit: the transaction
// record is appended and the position upserted/decremented together, with
// the (account, instrument) row as the unit of mutual exclusion. Distinct
// positions never contend.
type LedgerRepository interface {
	// ExecuteBuy appends the record and folds it into the position,
	// creating the position on first buy.
	ExecuteBuy(ctx context.Context, record *TransactionRecord) error

	// ExecuteSell appends the record and decrements the position,
	// deleting the row when the quantity reaches zero. Returns
	// ErrInsufficientHoldings without writing anything when the
	// position is missing or too small.
	ExecuteSell(ctx context.Context, record *TransactionRecord) error

	// GetPosition retrieves one position, ErrNotFound when not held.
	GetPosition(ctx context.Context, accountID, instrumentID uuid.UUID) (*Position, error)

	// ListPositions retrieves every position held by the account.
	ListPositions(ctx context.Context, accountID uuid.UUID) ([]*Position, error)
}

// TransactionRepository reads the append-only transaction journal.
type TransactionRepository interface {
	// ListByAccount returns records newest first. A non-nil since
	// restricts to records at or after that time.
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int, since *time.Time) ([]*TransactionRecord, error)

	// CountByAccount returns the total matching ListByAccount.
	CountByAccount(ctx context.Context, accountID uuid.UUID, since *time.Time) (int, error)

	// SumBySide totals the Total column for one side of the book at or
	// after since. Returns zero when no records match.
	SumBySide(ctx context.Context, accountID uuid.UUID, side Side, since time.Time) (decimal.Decimal, error)
}

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	// Create creates a new account.
	Create(ctx context.Context, account *Account) error

	// GetByEmail retrieves an account by email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
}
