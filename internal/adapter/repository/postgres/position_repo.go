package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/edoardo-nicoli03/stock-market-project/internal/domain"
)

// positionRepository implements domain.LedgerRepository
type positionRepository struct {
	db *DB
}

// NewPositionRepository creates a new position ledger repository
func NewPositionRepository(db *DB) domain.LedgerRepository {
	return &positionRepository{db: db}
}

// ExecuteBuy appends the transaction record and folds the buy into the
// position inside one database transaction. The SELECT ... FOR UPDATE on
// the (account, instrument) row serializes concurrent orders on the same
// position; orders on distinct positions lock distinct rows and proceed
// independently. A missing row is materialized at quantity 0 before
// locking, because FOR UPDATE takes no lock on zero matched rows and two
// first buys could otherwise both start from an empty position.
func (r *positionRepository) ExecuteBuy(ctx context.Context, record *domain.TransactionRecord) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", translateStoreError(err))
	}
	defer dbTx.Rollback()

	position, err := lockPosition(ctx, dbTx, record.AccountID, record.InstrumentID)
	if errors.Is(err, domain.ErrNotFound) {
		position, err = createAndLockPosition(ctx, dbTx, record.AccountID, record.InstrumentID)
	}
	if err != nil {
		return err
	}

	if err := position.ApplyBuy(record.Quantity, record.Price); err != nil {
		return err
	}

	updateQuery := `
		UPDATE positions SET quantity = $1, average_price = $2
		WHERE account_id = $3 AND instrument_id = $4
	`
	_, err = dbTx.ExecContext(ctx, updateQuery,
		position.Quantity,
		position.AveragePrice.StringFixed(2),
		position.AccountID,
		position.InstrumentID,
	)
	if err != nil {
		return fmt.Errorf("failed to update position: %w", translateStoreError(err))
	}

	if err := insertRecord(ctx, dbTx, record); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit buy: %w", translateStoreError(err))
	}
	return nil
}

// ExecuteSell appends the transaction record and decrements the position
// inside one database transaction. A position that hits exactly zero is
// deleted, not zeroed: the row means "held", and its average price is
// meaningless without shares. Insufficient holdings abort before any
// write.
func (r *positionRepository) ExecuteSell(ctx context.Context, record *domain.TransactionRecord) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", translateStoreError(err))
	}
	defer dbTx.Rollback()

	position, err := lockPosition(ctx, dbTx, record.AccountID, record.InstrumentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: no shares held", domain.ErrInsufficientHoldings)
		}
		return err
	}

	if err := position.ApplySell(record.Quantity); err != nil {
		return err
	}

	if position.Quantity == 0 {
		deleteQuery := `DELETE FROM positions WHERE account_id = $1 AND instrument_id = $2`
		_, err = dbTx.ExecContext(ctx, deleteQuery, position.AccountID, position.InstrumentID)
		if err != nil {
			return fmt.Errorf("failed to delete position: %w", translateStoreError(err))
		}
	} else {
		updateQuery := `
			UPDATE positions SET quantity = $1
			WHERE account_id = $2 AND instrument_id = $3
		`
		_, err = dbTx.ExecContext(ctx, updateQuery,
			position.Quantity, position.AccountID, position.InstrumentID)
		if err != nil {
			return fmt.Errorf("failed to update position: %w", translateStoreError(err))
		}
	}

	if err := insertRecord(ctx, dbTx, record); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sell: %w", translateStoreError(err))
	}
	return nil
}

func lockPosition(ctx context.Context, dbTx *sql.Tx, accountID, instrumentID uuid.UUID) (*domain.Position, error) {
	query := `
		SELECT account_id, instrument_id, quantity, average_price
		FROM positions
		WHERE account_id = $1 AND instrument_id = $2
		FOR UPDATE
	`

	var position domain.Position
	var avgStr string

	err := dbTx.QueryRowContext(ctx, query, accountID, instrumentID).Scan(
		&position.AccountID,
		&position.InstrumentID,
		&position.Quantity,
		&avgStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: position", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock position: %w", translateStoreError(err))
	}

	avg, err := decimal.NewFromString(avgStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse average_price: %w", err)
	}
	position.AveragePrice = avg

	return &position, nil
}

// createAndLockPosition inserts the zero row and locks it. Concurrent
// first buys converge here: ON CONFLICT DO NOTHING lets exactly one
// transaction create the row, the others block on the re-lock until the
// winner commits and then read its committed quantity.
func createAndLockPosition(ctx context.Context, dbTx *sql.Tx, accountID, instrumentID uuid.UUID) (*domain.Position, error) {
	insertQuery := `
		INSERT INTO positions (account_id, instrument_id, quantity, average_price)
		VALUES ($1, $2, 0, 0)
		ON CONFLICT (account_id, instrument_id) DO NOTHING
	`
	if _, err := dbTx.ExecContext(ctx, insertQuery, accountID, instrumentID); err != nil {
		return nil, fmt.Errorf("failed to create position: %w", translateStoreError(err))
	}
	return lockPosition(ctx, dbTx, accountID, instrumentID)
}

func insertRecord(ctx context.Context, dbTx *sql.Tx, record *domain.TransactionRecord) error {
	query := `
		INSERT INTO transactions (id, account_id, instrument_id, side, quantity, price, total_amount, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := dbTx.ExecContext(ctx, query,
		record.ID,
		record.AccountID,
		record.InstrumentID,
		string(record.Side),
		record.Quantity,
		record.Price.StringFixed(2),
		record.Total.StringFixed(2),
		record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction record: %w", translateStoreError(err))
	}
	return nil
}

// GetPosition retrieves one position without locking it
func (r *positionRepository) GetPosition(ctx context.Context, accountID, instrumentID uuid.UUID) (*domain.Position, error) {
	query := `
		SELECT account_id, instrument_id, quantity, average_price
		FROM positions
		WHERE account_id = $1 AND instrument_id = $2
	`

	var position domain.Position
	var avgStr string

	err := r.db.QueryRowContext(ctx, query, accountID, instrumentID).Scan(
		&position.AccountID,
		&position.InstrumentID,
		&position.Quantity,
		&avgStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: position", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get position: %w", err)
	}

	avg, err := decimal.NewFromString(avgStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse average_price: %w", err)
	}
	position.AveragePrice = avg

	return &position, nil
}

// ListPositions retrieves every position held by the account
func (r *positionRepository) ListPositions(ctx context.Context, accountID uuid.UUID) ([]*domain.Position, error) {
	query := `
		SELECT account_id, instrument_id, quantity, average_price
		FROM positions
		WHERE account_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		var position domain.Position
		var avgStr string
		if err := rows.Scan(&position.AccountID, &position.InstrumentID, &position.Quantity, &avgStr); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		avg, err := decimal.NewFromString(avgStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse average_price: %w", err)
		}
		position.AveragePrice = avg
		positions = append(positions, &position)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate positions: %w", err)
	}

	return positions, nil
}

// translateStoreError maps retriable PostgreSQL failures
// (serialization_failure, deadlock_detected, lock_not_available) to
// domain.ErrTransientStore so the service layer can retry them.
func translateStoreError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %s", domain.ErrTransientStore, pqErr.Message)
		}
	}
	return err
}
