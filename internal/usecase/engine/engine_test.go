package engine

import (
	"context"
	"errors"
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

// stubNoise always draws the same relative change.
type stubNoise float64

func (s stubNoise) Draw() float64 { return float64(s) }

func testConfig() Config {
	return Config{Interval: time.Hour, Jitter: 0, Backoff: time.Hour}
}

func newInstrument(symbol, price string) *domain.Instrument {
	return &domain.Instrument{
		ID:           uuid.New(),
		Symbol:       symbol,
		Name:         symbol + " Inc.",
		CurrentPrice: decimal.RequireFromString(price),
		UpdatedAt:    time.Now().UTC(),
	}
}

func TestTick_PublishesUpdatedPrice(t *testing.T) {
	ctx := context.Background()
	instruments := new(MockInstrumentRepository)
	prices := new(MockPriceRepository)

	aapl := newInstrument("AAPL", "180.00")
	instruments.On("List", ctx, "").Return([]*domain.Instrument{aapl}, nil)

	var published *domain.PricePoint
	prices.On("Publish", ctx, mock.AnythingOfType("*domain.PricePoint")).
		Run(func(args mock.Arguments) {
			published = args.Get(1).(*domain.PricePoint)
		}).Return(nil)

	// +2% step: 180.00 -> 183.60
	e := New(instruments, prices, stubNoise(0.02), logger.NewNop(), testConfig())
	err := e.tick(ctx)

	assert.NoError(t, err)
	assert.NotNil(t, published)
	assert.Equal(t, aapl.ID, published.InstrumentID)
	assert.True(t, published.Price.Equal(decimal.RequireFromString("183.60")),
		"expected 183.60, got %s", published.Price)
	assert.True(t, published.Volume >= 1000 && published.Volume <= 10000)
	instruments.AssertExpectations(t)
	prices.AssertExpectations(t)
}

func TestTick_ClampsNegativeComputedPrice(t *testing.T) {
	ctx := context.Background()
	instruments := new(MockInstrumentRepository)
	prices := new(MockPriceRepository)

	// A draw this extreme would push 180.00 to -90.00; the floor clamp
	// must publish 0.01 instead.
	aapl := newInstrument("AAPL", "180.00")
	instruments.On("List", ctx, "").Return([]*domain.Instrument{aapl}, nil)

	var published *domain.PricePoint
	prices.On("Publish", ctx, mock.AnythingOfType("*domain.PricePoint")).
		Run(func(args mock.Arguments) {
			published = args.Get(1).(*domain.PricePoint)
		}).Return(nil)

	e := New(instruments, prices, stubNoise(-1.5), logger.NewNop(), testConfig())
	err := e.tick(ctx)

	assert.NoError(t, err)
	assert.True(t, published.Price.Equal(domain.MinPrice),
		"expected clamp to 0.01, got %s", published.Price)
	assert.True(t, published.Price.IsPositive())
}

func TestTick_ContinuesAfterSingleInstrumentFailure(t *testing.T) {
	ctx := context.Background()
	instruments := new(MockInstrumentRepository)
	prices := new(MockPriceRepository)

	broken := newInstrument("GONE", "10.00")
	healthy := newInstrument("MSFT", "380.00")
	instruments.On("List", ctx, "").Return([]*domain.Instrument{broken, healthy}, nil)

	var publishedSymbols []uuid.UUID
	prices.On("Publish", ctx, mock.MatchedBy(func(p *domain.PricePoint) bool {
		return p.InstrumentID == broken.ID
	})).Return(domain.ErrNotFound)
	prices.On("Publish", ctx, mock.MatchedBy(func(p *domain.PricePoint) bool {
		return p.InstrumentID == healthy.ID
	})).Run(func(args mock.Arguments) {
		publishedSymbols = append(publishedSymbols, args.Get(1).(*domain.PricePoint).InstrumentID)
	}).Return(nil)

	e := New(instruments, prices, stubNoise(0.01), logger.NewNop(), testConfig())
	err := e.tick(ctx)

	assert.NoError(t, err, "a single instrument's failure must not fail the tick")
	assert.Equal(t, []uuid.UUID{healthy.ID}, publishedSymbols)
	prices.AssertExpectations(t)
}

func TestTick_TracksSessionHighLow(t *testing.T) {
	ctx := context.Background()
	instruments := new(MockInstrumentRepository)
	prices := new(MockPriceRepository)

	inst := newInstrument("NVDA", "100.00")
	instruments.On("List", ctx, "").Return([]*domain.Instrument{inst}, nil)

	var published []*domain.PricePoint
	prices.On("Publish", ctx, mock.AnythingOfType("*domain.PricePoint")).
		Run(func(args mock.Arguments) {
			p := args.Get(1).(*domain.PricePoint)
			published = append(published, p)
			// The engine reads the price store each tick; mirror the
			// publish back onto the instrument like the store would.
			inst.CurrentPrice = p.Price
		}).Return(nil)

	e := New(instruments, prices, stubNoise(0.05), logger.NewNop(), testConfig())
	assert.NoError(t, e.tick(ctx)) // 100.00 -> 105.00
	e.noise = stubNoise(-0.10)
	assert.NoError(t, e.tick(ctx)) // 105.00 -> 94.50

	assert.Len(t, published, 2)
	last := published[1]
	assert.True(t, last.Open.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, last.High.Equal(decimal.RequireFromString("105.00")))
	assert.True(t, last.Low.Equal(decimal.RequireFromString("94.50")))
}

func TestTick_ListFailureReturnsError(t *testing.T) {
	ctx := context.Background()
	instruments := new(MockInstrumentRepository)
	prices := new(MockPriceRepository)

	instruments.On("List", ctx, "").Return(nil, errors.New("connection refused"))

	e := New(instruments, prices, stubNoise(0.01), logger.NewNop(), testConfig())
	err := e.tick(ctx)

	assert.Error(t, err)
	prices.AssertNotCalled(t, "Publish")
}

func TestStartStop_StateMachine(t *testing.T) {
	instruments := new(MockInstrumentRepository)
	prices := new(MockPriceRepository)
	instruments.On("List", mock.Anything, "").Return([]*domain.Instrument{}, nil).Maybe()

	e := New(instruments, prices, stubNoise(0.01), logger.NewNop(), testConfig())
	assert.Equal(t, StateIdle, e.State())

	assert.NoError(t, e.Start())
	assert.Equal(t, StateRunning, e.State())

	// Second start while running is a no-op.
	assert.NoError(t, e.Start())
	assert.Equal(t, StateRunning, e.State())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, e.Stop(ctx))
	assert.Equal(t, StateStopped, e.State())

	// Stopping an already stopped engine is a no-op.
	assert.NoError(t, e.Stop(ctx))
}

func TestStop_InterruptsSleep(t *testing.T) {
	instruments := new(MockInstrumentRepository)
	prices := new(MockPriceRepository)
	instruments.On("List", mock.Anything, "").Return([]*domain.Instrument{}, nil).Maybe()

	// One-hour interval: shutdown latency must be bounded by the tick,
	// not the sleep.
	e := New(instruments, prices, stubNoise(0.01), logger.NewNop(), testConfig())
	assert.NoError(t, e.Start())

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, e.Stop(ctx))
	assert.Less(t, time.Since(start), time.Second)
}

func TestStop_TimedOutEngineRecoversOnceLoopExits(t *testing.T) {
	instruments := new(MockInstrumentRepository)
	prices := new(MockPriceRepository)

	// The first tick blocks inside List until released, holding the loop
	// past the Stop deadline.
	release := make(chan struct{})
	instruments.On("List", mock.Anything, "").
		Run(func(mock.Arguments) { <-release }).
		Return([]*domain.Instrument{}, nil)

	e := New(instruments, prices, stubNoise(0.01), logger.NewNop(), testConfig())
	assert.NoError(t, e.Start())

	// Let the loop enter the blocked tick before asking it to stop.
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, e.Stop(ctx))
	assert.Equal(t, StateStopping, e.State())

	// Once the slow tick finishes, the loop notices the stop signal and
	// the engine must settle in Stopped, not stay Stopping forever.
	close(release)
	assert.Eventually(t, func() bool { return e.State() == StateStopped },
		2*time.Second, 10*time.Millisecond)

	// A restart after the late exit must succeed.
	assert.NoError(t, e.Start())
	assert.Equal(t, StateRunning, e.State())

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	assert.NoError(t, e.Stop(stopCtx))
}

func TestStopWhenIdle(t *testing.T) {
	e := New(new(MockInstrumentRepository), new(MockPriceRepository), stubNoise(0), logger.NewNop(), testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, e.Stop(ctx))
	assert.Equal(t, StateIdle, e.State())
}
