package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Sweeper periodically runs the engine's time-driven transitions. Deadlines
// are absolute timestamps on the auctions themselves, so a missed or
// duplicated tick is harmless: the sweep callbacks are idempotent.
type Sweeper struct {
	clock    clockwork.Clock
	logger   *zap.Logger
	interval time.Duration
	sweep    func(ctx context.Context)

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper creates a sweeper that calls sweep every interval.
func NewSweeper(clock clockwork.Clock, logger *zap.Logger, interval time.Duration, sweep func(ctx context.Context)) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{
		clock:    clock,
		logger:   logger,
		interval: interval,
		sweep:    sweep,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. Returns immediately.
func (s *Sweeper) Start(ctx context.Context) {
	go s.run(ctx)
}

// Stop terminates the loop and waits for the in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ticker.Chan():
			start := s.clock.Now()
			s.sweep(ctx)
			s.logger.Debug("sweep completed",
				zap.Duration("elapsed", s.clock.Now().Sub(start)))
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}
