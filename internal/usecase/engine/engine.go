package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/edoardo-nicoli03/stock-market-project/internal/domain"
	"github.com/edoardo-nicoli03/stock-market-project/internal/logger"
)

// State represents the engine lifecycle
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config tunes the update loop.
type Config struct {
	// Interval is the base sleep between ticks.
	Interval time.Duration
	// Jitter widens each sleep by a random amount in [0, Jitter).
	Jitter time.Duration
	// Backoff replaces the interval after a failed tick.
	Backoff time.Duration
}

// session tracks an instrument's open/high/low since the engine started.
type session struct {
	open decimal.Decimal
	high decimal.Decimal
	low  decimal.Decimal
}

// Engine is the background price updater. It is the only writer of
// current prices: each tick it walks every instrument through a bounded
// random step and publishes the result into the price store.
type Engine struct {
	instruments domain.InstrumentRepository
	prices      domain.PriceRepository
	noise       NoiseSource
	log         *logger.Logger
	cfg         Config

	mu     sync.Mutex
	state  State
	stopCh chan struct{}
	doneCh chan struct{}

	// sessions is touched only by the loop goroutine (and by tests
	// driving ticks directly), so it needs no lock.
	sessions map[uuid.UUID]*session
}

// New creates an engine in the Idle state.
func New(instruments domain.InstrumentRepository, prices domain.PriceRepository, noise NoiseSource, log *logger.Logger, cfg Config) *Engine {
	return &Engine{
		instruments: instruments,
		prices:      prices,
		noise:       noise,
		log:         log,
		cfg:         cfg,
		state:       StateIdle,
		sessions:    make(map[uuid.UUID]*session),
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start transitions Idle (or Stopped) to Running and launches the tick
// loop. Calling Start while already Running is a no-op.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateRunning:
		return nil
	case StateStopping:
		return fmt.Errorf("engine is stopping, cannot start")
	}

	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	e.state = StateRunning

	go e.run(e.stopCh, e.doneCh)

	e.log.Info("price update engine started",
		logger.NewField("interval", e.cfg.Interval.String()))
	return nil
}

// Stop signals the loop to exit after its current tick and waits for it,
// bounded by ctx. A deadline hit means the engine did not stop in time;
// the loop still moves the state to Stopped when it eventually exits, so
// a later Start succeeds.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return nil
	}
	e.state = StateStopping
	close(e.stopCh)
	doneCh := e.doneCh
	e.mu.Unlock()

	select {
	case <-doneCh:
		e.log.Info("price update engine stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("engine did not stop within grace period: %w", ctx.Err())
	}
}

// run owns the Stopping -> Stopped transition: the state flips when the
// loop actually exits, not when a Stop caller gives up waiting.
func (e *Engine) run(stopCh, doneCh chan struct{}) {
	defer func() {
		e.mu.Lock()
		e.state = StateStopped
		e.mu.Unlock()
		close(doneCh)
	}()

	for {
		sleep := e.cfg.Interval
		if err := e.tick(context.Background()); err != nil {
			// The loop never dies on a bad tick; it backs off
			// and tries again. Only Stop terminates it.
			e.log.Error(err, logger.NewField("component", "engine"))
			sleep = e.cfg.Backoff
		}
		if e.cfg.Jitter > 0 {
			sleep += time.Duration(rand.Int63n(int64(e.cfg.Jitter)))
		}

		timer := time.NewTimer(sleep)
		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// tick walks every instrument once. A single instrument's failure is
// logged and skipped; the tick carries on with the rest.
func (e *Engine) tick(ctx context.Context) error {
	instruments, err := e.instruments.List(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to enumerate instruments: %w", err)
	}

	now := time.Now().UTC()
	for _, inst := range instruments {
		if err := e.updateInstrument(ctx, inst, now); err != nil {
			e.log.Warn("skipping instrument update",
				logger.NewField("symbol", inst.Symbol),
				logger.NewField("error", err.Error()))
		}
	}
	return nil
}

func (e *Engine) updateInstrument(ctx context.Context, inst *domain.Instrument, now time.Time) error {
	step := decimal.NewFromFloat(1 + e.noise.Draw())
	newPrice := domain.ClampPrice(inst.CurrentPrice.Mul(step).Round(2))

	sess, ok := e.sessions[inst.ID]
	if !ok {
		sess = &session{open: inst.CurrentPrice, high: inst.CurrentPrice, low: inst.CurrentPrice}
		e.sessions[inst.ID] = sess
	}
	if newPrice.GreaterThan(sess.high) {
		sess.high = newPrice
	}
	if newPrice.LessThan(sess.low) {
		sess.low = newPrice
	}

	open, high, low := sess.open, sess.high, sess.low
	point := &domain.PricePoint{
		ID:           uuid.New(),
		InstrumentID: inst.ID,
		Timestamp:    now,
		Price:        newPrice,
		Open:         &open,
		High:         &high,
		Low:          &low,
		Volume:       1000 + rand.Int63n(9001),
	}

	return e.prices.Publish(ctx, point)
}
