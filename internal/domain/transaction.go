package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side represents the direction of an executed order
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TransactionRecord is one executed buy or sell. Records are append-only:
// once written they are never updated or deleted, and portfolio performance
// is derived from them.
type TransactionRecord struct {
	ID           uuid.UUID
	AccountID    uuid.UUID
	InstrumentID uuid.UUID
	Side         Side
	Quantity     int64
	Price        decimal.Decimal
	Total        decimal.Decimal
	Timestamp    time.Time
}

// NewTransactionRecord builds a record with Total derived from
// quantity x price.
func NewTransactionRecord(accountID, instrumentID uuid.UUID, side Side, quantity int64, price decimal.Decimal) (*TransactionRecord, error) {
	if side != SideBuy && side != SideSell {
		return nil, fmt.Errorf("%w: side must be buy or sell", ErrInvalidArgument)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidArgument)
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: price must be positive", ErrInvalidArgument)
	}
	return &TransactionRecord{
		ID:           uuid.New(),
		AccountID:    accountID,
		InstrumentID: instrumentID,
		Side:         side,
		Quantity:     quantity,
		Price:        price,
		Total:        price.Mul(decimal.NewFromInt(quantity)),
		Timestamp:    time.Now().UTC(),
	}, nil
}
