// Package scheduler is the clock for the time-driven parts of the system.
// It holds no business logic: each tick calls into the generator, lifecycle
// manager, reward workflow, and ledger audit, all of which are idempotent.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tillgrange/choreboard/internal/chore"
	"github.com/tillgrange/choreboard/internal/points"
	"github.com/tillgrange/choreboard/internal/reward"
)

const defaultInterval = time.Minute

// Scheduler periodically runs the background sweeps. Missed-marking and
// auto-approval run every tick; instance generation, claim expiration, and
// the ledger audit run once per calendar day.
type Scheduler struct {
	mu        sync.RWMutex
	generator *chore.Generator
	lifecycle *chore.Lifecycle
	rewards   *reward.Workflow
	ledger    *points.Ledger
	logger    *slog.Logger
	interval  time.Duration
	lastDaily string
	cancel    context.CancelFunc
	done      chan struct{}
}

func New(generator *chore.Generator, lifecycle *chore.Lifecycle, rewards *reward.Workflow, ledger *points.Ledger, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		generator: generator,
		lifecycle: lifecycle,
		rewards:   rewards,
		ledger:    ledger,
		logger:    logger,
		interval:  defaultInterval,
	}
}

// SetInterval overrides the tick interval.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d > 0 {
		s.interval = d
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(time.Now())
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Tick runs one sweep pass. A sweep error is logged and the remaining sweeps
// still run; every sweep is safe to re-run on the next tick.
func (s *Scheduler) Tick(now time.Time) {
	if n, err := s.lifecycle.MarkMissedSweep(); err != nil {
		s.logger.Error("missed-marking sweep", "error", err)
	} else if n > 0 {
		s.logger.Info("marked instances missed", "count", n)
	}

	if n, err := s.lifecycle.AutoApproveSweep(); err != nil {
		s.logger.Error("auto-approval sweep", "error", err)
	} else if n > 0 {
		s.logger.Info("auto-approved instances", "count", n)
	}

	day := now.UTC().Format("2006-01-02")
	if day == s.lastDaily {
		return
	}
	s.lastDaily = day

	if n, err := s.generator.GenerateAll(); err != nil {
		s.logger.Error("instance generation pass", "error", err)
	} else if n > 0 {
		s.logger.Info("generated instances", "count", n)
	}

	if n, err := s.rewards.ExpireSweep(); err != nil {
		s.logger.Error("reward expiration sweep", "error", err)
	} else if n > 0 {
		s.logger.Info("expired reward claims", "count", n)
	}

	if mismatched, err := s.ledger.Audit(); err != nil {
		s.logger.Error("ledger audit", "error", err)
	} else if len(mismatched) > 0 {
		// Verify already logged each user; this is the operator summary.
		s.logger.Error("ledger audit found mismatched balances", "user_ids", mismatched)
	}
}
