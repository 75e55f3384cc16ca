package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edoardo-nicoli03/stock-market-project/internal/domain"
	"github.com/edoardo-nicoli03/stock-market-project/internal/logger"
)

// Config tunes the retention sweep.
type Config struct {
	// Interval is the sleep between sweep cycles.
	Interval time.Duration
	// Retention is how far back price points are kept.
	Retention time.Duration
	// BatchSize caps how many rows one delete statement removes.
	BatchSize int
	// BatchPause is the sleep between delete batches within a cycle.
	BatchPause time.Duration
}

// Sweeper deletes price points older than the retention window. It runs
// on its own timer, independent of the update engine, and deletes in
// bounded batches so a large backlog never holds long row locks.
type Sweeper struct {
	prices domain.PriceRepository
	log    *logger.Logger
	cfg    Config

	mu       sync.Mutex
	running  bool
	stopping bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a sweeper that is not yet running.
func New(prices domain.PriceRepository, log *logger.Logger, cfg Config) *Sweeper {
	return &Sweeper{
		prices: prices,
		log:    log,
		cfg:    cfg,
	}
}

// Start launches the sweep loop. Calling Start while running is a no-op.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running = true
	s.stopping = false

	go s.run(s.stopCh, s.doneCh)

	s.log.Info("retention sweeper started",
		logger.NewField("interval", s.cfg.Interval.String()),
		logger.NewField("retention", s.cfg.Retention.String()))
}

// Stop signals the loop to exit and waits for it, bounded by ctx. Even
// when the wait times out, the loop clears the running flag on its own
// exit, so a later Start succeeds.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running || s.stopping {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	close(s.stopCh)
	doneCh := s.doneCh
	s.mu.Unlock()

	select {
	case <-doneCh:
		s.log.Info("retention sweeper stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sweeper did not stop within grace period: %w", ctx.Err())
	}
}

func (s *Sweeper) run(stopCh, doneCh chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.stopping = false
		s.mu.Unlock()
		close(doneCh)
	}()

	for {
		timer := time.NewTimer(s.cfg.Interval)
		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}

		if deleted, err := s.Sweep(context.Background()); err != nil {
			// An aborted cycle is safe to retry wholesale; the next
			// cycle picks up whatever this one left behind.
			s.log.Error(err, logger.NewField("component", "sweeper"))
		} else if deleted > 0 {
			s.log.Info("retention sweep completed",
				logger.NewField("deleted", deleted))
		}
	}
}

// Sweep runs one full cycle: it fixes the cutoff once, then deletes in
// batches until no rows older than the cutoff remain. Returns the total
// number of rows deleted. Sweeping twice over the same window is a no-op
// the second time.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.Retention)

	var total int64
	for {
		deleted, err := s.prices.DeleteOlderThan(ctx, cutoff, s.cfg.BatchSize)
		if err != nil {
			return total, fmt.Errorf("retention sweep aborted: %w", err)
		}
		total += deleted
		if deleted < int64(s.cfg.BatchSize) {
			return total, nil
		}

		if s.cfg.BatchPause > 0 {
			timer := time.NewTimer(s.cfg.BatchPause)
			select {
			case <-ctx.Done():
				timer.Stop()
				return total, ctx.Err()
			case <-timer.C:
			}
		}
	}
}
