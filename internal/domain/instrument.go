package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Instrument represents a tradable symbol with its authoritative current
// price. Symbol, name and sector are immutable after creation; only the
// price engine mutates CurrentPrice/UpdatedAt, via PriceRepository.Publish.
type Instrument struct {
	ID           uuid.UUID
	Symbol       string
	Name         string
	Sector       string
	CurrentPrice decimal.Decimal
	UpdatedAt    time.Time
}

// PricePoint is one append-only row of an instrument's price history.
// The latest point and Instrument.CurrentPrice describe the same fact and
// are written together in a single publish.
type PricePoint struct {
	ID           uuid.UUID
	InstrumentID uuid.UUID
	Timestamp    time.Time
	Price        decimal.Decimal
	Open         *decimal.Decimal
	High         *decimal.Decimal
	Low          *decimal.Decimal
	Volume       int64
}

const maxSymbolLength = 10

// NormalizeSymbol uppercases and trims a user-supplied symbol, validating
// it against the persisted format.
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return "", fmt.Errorf("%w: symbol is required", ErrInvalidArgument)
	}
	if len(s) > maxSymbolLength {
		return "", fmt.Errorf("%w: symbol %q exceeds %d characters", ErrInvalidArgument, s, maxSymbolLength)
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '.' {
			return "", fmt.Errorf("%w: symbol %q contains invalid character %q", ErrInvalidArgument, s, r)
		}
	}
	return s, nil
}

// MinPrice is the floor every published price is clamped to. A price must
// never be zero or negative.
var MinPrice = decimal.NewFromFloat(0.01)

// ClampPrice enforces the price floor.
func ClampPrice(p decimal.Decimal) decimal.Decimal {
	if p.LessThan(MinPrice) {
		return MinPrice
	}
	return p
}
