package domain

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Position represents one account's holding in one instrument. There is at
// most one row per (account, instrument) pair; the row is deleted when the
// quantity reaches exactly zero, so AveragePrice is only meaningful while
// Quantity > 0.
type Position struct {
	AccountID    uuid.UUID
	InstrumentID uuid.UUID
	Quantity     int64
	AveragePrice decimal.Decimal
}

// ApplyBuy folds a buy of quantity shares at price into the position,
// recomputing the weighted-average cost:
//
//	new_avg = (old_qty*old_avg + qty*price) / (old_qty+qty)
func (p *Position) ApplyBuy(quantity int64, price decimal.Decimal) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: buy quantity must be positive", ErrInvalidArgument)
	}
	oldValue := decimal.NewFromInt(p.Quantity).Mul(p.AveragePrice)
	addedValue := decimal.NewFromInt(quantity).Mul(price)
	newQuantity := p.Quantity + quantity

	p.AveragePrice = oldValue.Add(addedValue).Div(decimal.NewFromInt(newQuantity)).Round(2)
	p.Quantity = newQuantity
	return nil
}

// ApplySell removes quantity shares from the position. The average price is
// intentionally left untouched: realized gains use simplified cash-flow
// accounting, not lot tracking. Callers delete the row when Quantity hits 0.
func (p *Position) ApplySell(quantity int64) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: sell quantity must be positive", ErrInvalidArgument)
	}
	if quantity > p.Quantity {
		return fmt.Errorf("%w: have %d shares, tried to sell %d", ErrInsufficientHoldings, p.Quantity, quantity)
	}
	p.Quantity -= quantity
	return nil
}

// CostBasis returns quantity x average price.
func (p *Position) CostBasis() decimal.Decimal {
	return decimal.NewFromInt(p.Quantity).Mul(p.AveragePrice)
}

// MarketValue returns quantity x the given current price.
func (p *Position) MarketValue(currentPrice decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(p.Quantity).Mul(currentPrice)
}
