package market

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/edoardo-nicoli03/stock-market-project/internal/domain"
)

// Quote is a derived read view over the price store: the current price
// plus its change against the immediately preceding price point.
type Quote struct {
	Instrument    *domain.Instrument
	Price         decimal.Decimal
	Change        decimal.Decimal
	ChangePercent decimal.Decimal
	Volume        int64
	Timestamp     time.Time
}

// History is a tier-windowed price series for one instrument.
type History struct {
	Instrument *domain.Instrument
	Points     []*domain.PricePoint
	WindowDays int
}

// Service computes read views from price store state. It never writes.
type Service struct {
	Instruments domain.InstrumentRepository
	Prices      domain.PriceRepository
}

// NewService creates a new market read service
func NewService(instruments domain.InstrumentRepository, prices domain.PriceRepository) *Service {
	return &Service{
		Instruments: instruments,
		Prices:      prices,
	}
}

// GetQuote returns the current quote for a symbol. Change and change
// percent are zero when no prior price point exists; that is not an
// error, just a very young instrument.
func (s *Service) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	normalized, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	instrument, err := s.Instruments.GetBySymbol(ctx, normalized)
	if err != nil {
		return nil, err
	}

	points, err := s.Prices.GetRecent(ctx, instrument.ID, 2)
	if err != nil {
		return nil, err
	}

	quote := &Quote{
		Instrument:    instrument,
		Price:         instrument.CurrentPrice,
		Change:        decimal.Zero,
		ChangePercent: decimal.Zero,
		Timestamp:     instrument.UpdatedAt,
	}
	if len(points) > 0 {
		quote.Volume = points[0].Volume
	}
	if len(points) == 2 && points[1].Price.IsPositive() {
		previous := points[1].Price
		quote.Change = points[0].Price.Sub(previous)
		quote.ChangePercent = quote.Change.
			Div(previous).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}

	return quote, nil
}

// GetHistory returns the price series for a symbol, oldest first. The
// caller's tier is an explicit input: the requested window is clamped to
// the tier's maximum history depth.
func (s *Service) GetHistory(ctx context.Context, symbol string, tier domain.Tier, days int) (*History, error) {
	normalized, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	instrument, err := s.Instruments.GetBySymbol(ctx, normalized)
	if err != nil {
		return nil, err
	}

	policy := domain.PolicyFor(tier)
	if days <= 0 || days > policy.HistoryDays {
		days = policy.HistoryDays
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	points, err := s.Prices.GetHistory(ctx, instrument.ID, since)
	if err != nil {
		return nil, err
	}

	return &History{
		Instrument: instrument,
		Points:     points,
		WindowDays: days,
	}, nil
}

// ListInstruments returns instruments ordered by symbol, filtered by an
// optional search term. Basic-tier callers see only the first few
// symbols; the cap comes from the tier policy table.
func (s *Service) ListInstruments(ctx context.Context, tier domain.Tier, search string) ([]*domain.Instrument, error) {
	instruments, err := s.Instruments.List(ctx, search)
	if err != nil {
		return nil, err
	}

	policy := domain.PolicyFor(tier)
	if policy.VisibleSymbols > 0 && len(instruments) > policy.VisibleSymbols {
		instruments = instruments[:policy.VisibleSymbols]
	}

	return instruments, nil
}
