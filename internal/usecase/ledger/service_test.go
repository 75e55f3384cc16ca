package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/edoardo-nicoli03/stock-market-project/internal/domain"
	"github.com/edoardo-nicoli03/stock-market-project/internal/logger"
)

// MockInstrumentRepository is a mock implementation of InstrumentRepository for testing
type MockInstrumentRepository struct {
	mock.Mock
}

func (m *MockInstrumentRepository) GetBySymbol(ctx context.Context, symbol string) (*domain.Instrument, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Instrument), args.Error(1)
}

func (m *MockInstrumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Instrument, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Instrument), args.Error(1)
}

func (m *MockInstrumentRepository) List(ctx context.Context, search string) ([]*domain.Instrument, error) {
	args := m.Called(ctx, search)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Instrument), args.Error(1)
}

func (m *MockInstrumentRepository) Create(ctx context.Context, instrument *domain.Instrument) error {
	args := m.Called(ctx, instrument)
	return args.Error(0)
}

func (m *MockInstrumentRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockPriceRepository is a mock implementation of PriceRepository for testing
type MockPriceRepository struct {
	mock.Mock
}

func (m *MockPriceRepository) GetCurrent(ctx context.Context, instrumentID uuid.UUID) (decimal.Decimal, time.Time, error) {
	args := m.Called(ctx, instrumentID)
	return args.Get(0).(decimal.Decimal), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockPriceRepository) GetRecent(ctx context.Context, instrumentID uuid.UUID, n int) ([]*domain.PricePoint, error) {
	args := m.Called(ctx, instrumentID, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PricePoint), args.Error(1)
}

func (m *MockPriceRepository) GetHistory(ctx context.Context, instrumentID uuid.UUID, since time.Time) ([]*domain.PricePoint, error) {
	args := m.Called(ctx, instrumentID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PricePoint), args.Error(1)
}

func (m *MockPriceRepository) Publish(ctx context.Context, point *domain.PricePoint) error {
	args := m.Called(ctx, point)
	return args.Error(0)
}

func (m *MockPriceRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	args := m.Called(ctx, cutoff, limit)
	return args.Get(0).(int64), args.Error(1)
}

// MockLedgerRepository is a mock implementation of LedgerRepository for testing
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) ExecuteBuy(ctx context.Context, record *domain.TransactionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockLedgerRepository) ExecuteSell(ctx context.Context, record *domain.TransactionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockLedgerRepository) GetPosition(ctx context.Context, accountID, instrumentID uuid.UUID) (*domain.Position, error) {
	args := m.Called(ctx, accountID, instrumentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Position), args.Error(1)
}

func (m *MockLedgerRepository) ListPositions(ctx context.Context, accountID uuid.UUID) ([]*domain.Position, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Position), args.Error(1)
}

func testInstrument() *domain.Instrument {
	return &domain.Instrument{
		ID:           uuid.New(),
		Symbol:       "AAPL",
		Name:         "Apple Inc.",
		CurrentPrice: decimal.RequireFromString("180.00"),
		UpdatedAt:    time.Now().UTC(),
	}
}

func TestBuy_ResolvesMarketPrice(t *testing.T) {
	ctx := context.Background()
	instruments := new(MockInstrumentRepository)
	prices := new(MockPriceRepository)
	ledgerRepo := new(MockLedgerRepository)
	service := NewService(instruments, prices, ledgerRepo, logger.NewNop())

	accountID := uuid.New()
	inst := testInstrument()
	instruments.On("GetBySymbol", ctx, "AAPL").Return(inst, nil)
	prices.On("GetCurrent", ctx, inst.ID).
		Return(decimal.RequireFromString("180.00"), time.Now().UTC(), nil)
	ledgerRepo.On("ExecuteBuy", ctx, mock.MatchedBy(func(rec *domain.TransactionRecord) bool {
		return rec.AccountID == accountID &&
			rec.Side == domain.SideBuy &&
			rec.Quantity == 10 &&
			rec.Total.Equal(decimal.RequireFromString("1800.00"))
	})).Return(nil)

	record, err := service.Buy(ctx, accountID, "aapl", 10, nil)

	assert.NoError(t, err)
	assert.True(t, record.Price.Equal(decimal.RequireFromString("180.00")))
	ledgerRepo.AssertExpectations(t)
}

func TestBuy_ExplicitPriceSkipsStoreLookup(t *testing.T) {
	ctx := context.Background()
	instruments := new(MockInstrumentRepository)
	prices := new(MockPriceRepository)
	ledgerRepo := new(MockLedgerRepository)
	service := NewService(instruments, prices, ledgerRepo, logger.NewNop())

	inst := testInstrument()
	instruments.On("GetBySymbol", ctx, "AAPL").Return(inst, nil)
	ledgerRepo.On("ExecuteBuy", ctx, mock.Anything).Return(nil)

	limit := decimal.RequireFromString("175.50")
	record, err := service.Buy(ctx, uuid.New(), "AAPL", 5, &limit)

	assert.NoError(t, err)
	assert.True(t, record.Price.Equal(limit))
	prices.AssertNotCalled(t, "GetCurrent")
}

func TestBuy_NonPositiveQuantity(t *testing.T) {
	ctx := context.Background()
	instruments := new(MockInstrumentRepository)
	service := NewService(instruments, new(MockPriceRepository), new(MockLedgerRepository), logger.NewNop())

	_, err := service.Buy(ctx, uuid.New(), "AAPL", 0, nil)

	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	instruments.AssertNotCalled(t, "GetBySymbol")
}

func TestBuy_UnknownSymbol(t *testing.T) {
	ctx := context.Background()
	instruments := new(MockInstrumentRepository)
	ledgerRepo := new(MockLedgerRepository)
	service := NewService(instruments, new(MockPriceRepository), ledgerRepo, logger.NewNop())

	instruments.On("GetBySymbol", ctx, "ZZZZ").Return(nil, domain.ErrNotFound)

	_, err := service.Buy(ctx, uuid.New(), "ZZZZ", 10, nil)

	assert.ErrorIs(t, err, domain.ErrNotFound)
	ledgerRepo.AssertNotCalled(t, "ExecuteBuy")
}

func TestSell_InsufficientHoldingsPropagates(t *testing.T) {
	ctx := context.Background()
	instruments := new(MockInstrumentRepository)
	prices := new(MockPriceRepository)
	ledgerRepo := new(MockLedgerRepository)
	service := NewService(instruments, prices, ledgerRepo, logger.NewNop())

	inst := testInstrument()
	instruments.On("GetBySymbol", ctx, "AAPL").Return(inst, nil)
	prices.On("GetCurrent", ctx, inst.ID).
		Return(decimal.RequireFromString("180.00"), time.Now().UTC(), nil)
	ledgerRepo.On("ExecuteSell", ctx, mock.Anything).Return(domain.ErrInsufficientHoldings)

	_, err := service.Sell(ctx, uuid.New(), "AAPL", 100, nil)

	assert.ErrorIs(t, err, domain.ErrInsufficientHoldings)
	// Insufficiency is not transient: exactly one attempt.
	ledgerRepo.AssertNumberOfCalls(t, "ExecuteSell", 1)
}

func TestBuy_RetriesTransientErrors(t *testing.T) {
	ctx := context.Background()
	instruments := new(MockInstrumentRepository)
	prices := new(MockPriceRepository)
	ledgerRepo := new(MockLedgerRepository)
	service := NewService(instruments, prices, ledgerRepo, logger.NewNop())

	inst := testInstrument()
	instruments.On("GetBySymbol", ctx, "AAPL").Return(inst, nil)
	prices.On("GetCurrent", ctx, inst.ID).
		Return(decimal.RequireFromString("180.00"), time.Now().UTC(), nil)
	ledgerRepo.On("ExecuteBuy", ctx, mock.Anything).Return(domain.ErrTransientStore).Twice()
	ledgerRepo.On("ExecuteBuy", ctx, mock.Anything).Return(nil).Once()

	_, err := service.Buy(ctx, uuid.New(), "AAPL", 1, nil)

	assert.NoError(t, err)
	ledgerRepo.AssertNumberOfCalls(t, "ExecuteBuy", 3)
}

func TestBuy_SurfacesTransientAfterRetriesExhausted(t *testing.T) {
	ctx := context.Background()
	instruments := new(MockInstrumentRepository)
	prices := new(MockPriceRepository)
	ledgerRepo := new(MockLedgerRepository)
	service := NewService(instruments, prices, ledgerRepo, logger.NewNop())

	inst := testInstrument()
	instruments.On("GetBySymbol", ctx, "AAPL").Return(inst, nil)
	prices.On("GetCurrent", ctx, inst.ID).
		Return(decimal.RequireFromString("180.00"), time.Now().UTC(), nil)
	ledgerRepo.On("ExecuteBuy", ctx, mock.Anything).Return(domain.ErrTransientStore)

	_, err := service.Buy(ctx, uuid.New(), "AAPL", 1, nil)

	assert.ErrorIs(t, err, domain.ErrTransientStore)
	ledgerRepo.AssertNumberOfCalls(t, "ExecuteBuy", maxAttempts)
}

func TestGetPortfolio_ValuesAndTotals(t *testing.T) {
	ctx := context.Background()
	instruments := new(MockInstrumentRepository)
	prices := new(MockPriceRepository)
	ledgerRepo := new(MockLedgerRepository)
	service := NewService(instruments, prices, ledgerRepo, logger.NewNop())

	accountID := uuid.New()
	aapl := testInstrument()
	msft := &domain.Instrument{ID: uuid.New(), Symbol: "MSFT", Name: "Microsoft Corporation"}

	ledgerRepo.On("ListPositions", ctx, accountID).Return([]*domain.Position{
		{AccountID: accountID, InstrumentID: aapl.ID, Quantity: 10, AveragePrice: decimal.RequireFromString("150.00")},
		{AccountID: accountID, InstrumentID: msft.ID, Quantity: 2, AveragePrice: decimal.RequireFromString("400.00")},
	}, nil)
	instruments.On("GetByID", ctx, aapl.ID).Return(aapl, nil)
	instruments.On("GetByID", ctx, msft.ID).Return(msft, nil)
	prices.On("GetCurrent", ctx, aapl.ID).
		Return(decimal.RequireFromString("180.00"), time.Now().UTC(), nil)
	prices.On("GetCurrent", ctx, msft.ID).
		Return(decimal.RequireFromString("380.00"), time.Now().UTC(), nil)

	portfolio, err := service.GetPortfolio(ctx, accountID)

	assert.NoError(t, err)
	assert.Len(t, portfolio.Holdings, 2)

	// AAPL: value 1800, cost 1500, gain 300 (20%)
	aaplHolding := portfolio.Holdings[0]
	assert.True(t, aaplHolding.MarketValue.Equal(decimal.RequireFromString("1800.00")))
	assert.True(t, aaplHolding.CostBasis.Equal(decimal.RequireFromString("1500.00")))
	assert.True(t, aaplHolding.UnrealizedGainLoss.Equal(decimal.RequireFromString("300.00")))
	assert.True(t, aaplHolding.UnrealizedGainLossPct.Equal(decimal.RequireFromString("20.00")))

	// Totals: value 2560, cost 2300, gain 260
	assert.True(t, portfolio.TotalValue.Equal(decimal.RequireFromString("2560.00")))
	assert.True(t, portfolio.TotalCost.Equal(decimal.RequireFromString("2300.00")))
	assert.True(t, portfolio.TotalGainLoss.Equal(decimal.RequireFromString("260.00")))
}

func TestGetPortfolio_ZeroCostBasisAvoidsDivisionByZero(t *testing.T) {
	ctx := context.Background()
	instruments := new(MockInstrumentRepository)
	prices := new(MockPriceRepository)
	ledgerRepo := new(MockLedgerRepository)
	service := NewService(instruments, prices, ledgerRepo, logger.NewNop())

	accountID := uuid.New()
	inst := testInstrument()
	ledgerRepo.On("ListPositions", ctx, accountID).Return([]*domain.Position{
		{AccountID: accountID, InstrumentID: inst.ID, Quantity: 5, AveragePrice: decimal.Zero},
	}, nil)
	instruments.On("GetByID", ctx, inst.ID).Return(inst, nil)
	prices.On("GetCurrent", ctx, inst.ID).
		Return(decimal.RequireFromString("10.00"), time.Now().UTC(), nil)

	portfolio, err := service.GetPortfolio(ctx, accountID)

	assert.NoError(t, err)
	assert.True(t, portfolio.Holdings[0].UnrealizedGainLossPct.IsZero())
	assert.True(t, portfolio.TotalGainLossPct.IsZero())
}

func TestGetPortfolio_Empty(t *testing.T) {
	ctx := context.Background()
	ledgerRepo := new(MockLedgerRepository)
	service := NewService(new(MockInstrumentRepository), new(MockPriceRepository), ledgerRepo, logger.NewNop())

	accountID := uuid.New()
	ledgerRepo.On("ListPositions", ctx, accountID).Return([]*domain.Position{}, nil)

	portfolio, err := service.GetPortfolio(ctx, accountID)

	assert.NoError(t, err)
	assert.Empty(t, portfolio.Holdings)
	assert.True(t, portfolio.TotalValue.IsZero())
	assert.True(t, portfolio.TotalGainLossPct.IsZero())
}

// fakeLedger applies trades under a mutex the way the SQL implementation
// serializes on the locked position row, so concurrent orders exercise
// the same read-modify-write contract.
type fakeLedger struct {
	mu        sync.Mutex
	positions map[uuid.UUID]*domain.Position
	records   []*domain.TransactionRecord
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{positions: make(map[uuid.UUID]*domain.Position)}
}

func (f *fakeLedger) ExecuteBuy(ctx context.Context, record *domain.TransactionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	position, ok := f.positions[record.InstrumentID]
	if !ok {
		position = &domain.Position{
			AccountID:    record.AccountID,
			InstrumentID: record.InstrumentID,
			AveragePrice: decimal.Zero,
		}
		f.positions[record.InstrumentID] = position
	}
	if err := position.ApplyBuy(record.Quantity, record.Price); err != nil {
		return err
	}
	f.records = append(f.records, record)
	return nil
}

func (f *fakeLedger) ExecuteSell(ctx context.Context, record *domain.TransactionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	position, ok := f.positions[record.InstrumentID]
	if !ok {
		return domain.ErrInsufficientHoldings
	}
	if err := position.ApplySell(record.Quantity); err != nil {
		return err
	}
	if position.Quantity == 0 {
		delete(f.positions, record.InstrumentID)
	}
	f.records = append(f.records, record)
	return nil
}

func (f *fakeLedger) GetPosition(ctx context.Context, accountID, instrumentID uuid.UUID) (*domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.positions[instrumentID]; ok {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeLedger) ListPositions(ctx context.Context, accountID uuid.UUID) ([]*domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Position
	for _, p := range f.positions {
		out = append(out, p)
	}
	return out, nil
}

func TestBuy_ConcurrentOrdersLoseNoUpdates(t *testing.T) {
	ctx := context.Background()
	instruments := new(MockInstrumentRepository)
	prices := new(MockPriceRepository)
	fake := newFakeLedger()
	service := NewService(instruments, prices, fake, logger.NewNop())

	accountID := uuid.New()
	inst := testInstrument()
	instruments.On("GetBySymbol", mock.Anything, "AAPL").Return(inst, nil)

	const buyers = 50
	price := decimal.RequireFromString("180.00")

	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Buy(ctx, accountID, "AAPL", 1, &price)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	position, err := fake.GetPosition(ctx, accountID, inst.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(buyers), position.Quantity, "no buy may be lost")
	assert.Len(t, fake.records, buyers)
}

func TestSell_FullQuantityRemovesPosition(t *testing.T) {
	ctx := context.Background()
	instruments := new(MockInstrumentRepository)
	prices := new(MockPriceRepository)
	fake := newFakeLedger()
	service := NewService(instruments, prices, fake, logger.NewNop())

	accountID := uuid.New()
	inst := testInstrument()
	instruments.On("GetBySymbol", mock.Anything, "AAPL").Return(inst, nil)

	price := decimal.RequireFromString("180.00")
	_, err := service.Buy(ctx, accountID, "AAPL", 10, &price)
	assert.NoError(t, err)

	_, err = service.Sell(ctx, accountID, "AAPL", 10, &price)
	assert.NoError(t, err)

	// The row is gone, not zeroed: the portfolio omits it entirely.
	_, err = fake.GetPosition(ctx, accountID, inst.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	portfolio, err := service.GetPortfolio(ctx, accountID)
	assert.NoError(t, err)
	assert.Empty(t, portfolio.Holdings)
}
