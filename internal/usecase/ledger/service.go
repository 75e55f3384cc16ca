package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/edoardo-nicoli03/stock-market-project/internal/domain"
	"github.com/edoardo-nicoli03/stock-market-project/internal/logger"
)

const (
	// maxAttempts bounds the internal retry on transient store errors.
	maxAttempts = 3
	retryDelay  = 50 * time.Millisecond
)

// Holding is one portfolio line: a position priced at the current market.
type Holding struct {
	Symbol                string
	Name                  string
	Quantity              int64
	AveragePrice          decimal.Decimal
	CurrentPrice          decimal.Decimal
	MarketValue           decimal.Decimal
	CostBasis             decimal.Decimal
	UnrealizedGainLoss    decimal.Decimal
	UnrealizedGainLossPct decimal.Decimal
	LastUpdated           time.Time
}

// Portfolio is an account's holdings plus portfolio-level totals.
type Portfolio struct {
	Holdings         []*Holding
	TotalValue       decimal.Decimal
	TotalCost        decimal.Decimal
	TotalGainLoss    decimal.Decimal
	TotalGainLossPct decimal.Decimal
}

// Service executes buy/sell orders against the position ledger and
// values portfolios at current prices.
type Service struct {
	Instruments domain.InstrumentRepository
	Prices      domain.PriceRepository
	Ledger      domain.LedgerRepository

	log *logger.Logger
}

// NewService creates a new ledger service
func NewService(instruments domain.InstrumentRepository, prices domain.PriceRepository, ledgerRepo domain.LedgerRepository, log *logger.Logger) *Service {
	return &Service{
		Instruments: instruments,
		Prices:      prices,
		Ledger:      ledgerRepo,
		log:         log,
	}
}

// Buy executes a buy order. When price is nil the current market price is
// resolved from the price store. The transaction record and the position
// update are applied as one atomic unit by the ledger repository.
func (s *Service) Buy(ctx context.Context, accountID uuid.UUID, symbol string, quantity int64, price *decimal.Decimal) (*domain.TransactionRecord, error) {
	return s.execute(ctx, accountID, symbol, domain.SideBuy, quantity, price)
}

// Sell executes a sell order. Selling more than held fails with
// ErrInsufficientHoldings and writes nothing.
func (s *Service) Sell(ctx context.Context, accountID uuid.UUID, symbol string, quantity int64, price *decimal.Decimal) (*domain.TransactionRecord, error) {
	return s.execute(ctx, accountID, symbol, domain.SideSell, quantity, price)
}

func (s *Service) execute(ctx context.Context, accountID uuid.UUID, symbol string, side domain.Side, quantity int64, price *decimal.Decimal) (*domain.TransactionRecord, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidArgument)
	}

	normalized, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	instrument, err := s.Instruments.GetBySymbol(ctx, normalized)
	if err != nil {
		return nil, err
	}

	var execPrice decimal.Decimal
	if price != nil {
		if price.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("%w: price must be positive", domain.ErrInvalidArgument)
		}
		execPrice = *price
	} else {
		execPrice, _, err = s.Prices.GetCurrent(ctx, instrument.ID)
		if err != nil {
			return nil, err
		}
	}

	record, err := domain.NewTransactionRecord(accountID, instrument.ID, side, quantity, execPrice)
	if err != nil {
		return nil, err
	}

	apply := s.Ledger.ExecuteBuy
	if side == domain.SideSell {
		apply = s.Ledger.ExecuteSell
	}
	if err := s.withRetry(ctx, func() error { return apply(ctx, record) }); err != nil {
		return nil, err
	}

	return record, nil
}

// withRetry retries transient store failures with bounded linear backoff.
// Validation and insufficiency errors pass through on the first attempt;
// the retry is invisible to callers except as added latency.
func (s *Service) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, domain.ErrTransientStore) {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		s.log.Warn("retrying after transient store error",
			logger.NewField("attempt", attempt),
			logger.NewField("error", err.Error()))

		timer := time.NewTimer(time.Duration(attempt) * retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// GetPortfolio values every held position at the current market price.
// Gain/loss percent is zero when the cost basis is zero.
func (s *Service) GetPortfolio(ctx context.Context, accountID uuid.UUID) (*Portfolio, error) {
	positions, err := s.Ledger.ListPositions(ctx, accountID)
	if err != nil {
		return nil, err
	}

	portfolio := &Portfolio{
		Holdings:         make([]*Holding, 0, len(positions)),
		TotalValue:       decimal.Zero,
		TotalCost:        decimal.Zero,
		TotalGainLoss:    decimal.Zero,
		TotalGainLossPct: decimal.Zero,
	}

	for _, position := range positions {
		if position.Quantity <= 0 {
			continue
		}

		instrument, err := s.Instruments.GetByID(ctx, position.InstrumentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}

		currentPrice, updatedAt, err := s.Prices.GetCurrent(ctx, position.InstrumentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}

		marketValue := position.MarketValue(currentPrice)
		costBasis := position.CostBasis()
		gainLoss := marketValue.Sub(costBasis)
		gainLossPct := decimal.Zero
		if costBasis.IsPositive() {
			gainLossPct = gainLoss.Div(costBasis).Mul(decimal.NewFromInt(100)).Round(2)
		}

		portfolio.Holdings = append(portfolio.Holdings, &Holding{
			Symbol:                instrument.Symbol,
			Name:                  instrument.Name,
			Quantity:              position.Quantity,
			AveragePrice:          position.AveragePrice,
			CurrentPrice:          currentPrice,
			MarketValue:           marketValue,
			CostBasis:             costBasis,
			UnrealizedGainLoss:    gainLoss,
			UnrealizedGainLossPct: gainLossPct,
			LastUpdated:           updatedAt,
		})

		portfolio.TotalValue = portfolio.TotalValue.Add(marketValue)
		portfolio.TotalCost = portfolio.TotalCost.Add(costBasis)
	}

	portfolio.TotalGainLoss = portfolio.TotalValue.Sub(portfolio.TotalCost)
	if portfolio.TotalCost.IsPositive() {
		portfolio.TotalGainLossPct = portfolio.TotalGainLoss.
			Div(portfolio.TotalCost).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}

	return portfolio, nil
}
