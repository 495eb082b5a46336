package worker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

const retentionWindow = 7 * 24 * time.Hour

// CycleRunner runs one delivery cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) error
}

// RetentionStore deletes aged-out terminal queue entries.
type RetentionStore interface {
	DeleteOldTerminal(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Scheduler drives the two periodic tasks of the worker process: the
// delivery cycle and the daily retention sweep. Delivery cycles never
// overlap: the run guard makes an invocation that lands while a cycle
// is still running a logged no-op, not a queued one.
type Scheduler struct {
	processor CycleRunner
	retention RetentionStore
	logger    *slog.Logger

	interval      time.Duration
	sweepInterval time.Duration

	running atomic.Bool
}

func NewScheduler(processor CycleRunner, retention RetentionStore, logger *slog.Logger, interval, sweepInterval time.Duration) *Scheduler {
	return &Scheduler{
		processor:     processor,
		retention:     retention,
		logger:        logger,
		interval:      interval,
		sweepInterval: sweepInterval,
	}
}

// Run blocks until ctx is cancelled. The first delivery cycle runs
// immediately; sweeps only run on their ticker.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started",
		"delivery_interval", s.interval,
		"sweep_interval", s.sweepInterval,
	)

	s.runDeliveryCycle(ctx)

	deliveryTicker := time.NewTicker(s.interval)
	defer deliveryTicker.Stop()

	sweepTicker := time.NewTicker(s.sweepInterval)
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			return
		case <-deliveryTicker.C:
			s.runDeliveryCycle(ctx)
		case <-sweepTicker.C:
			s.runSweep(ctx)
		}
	}
}

// runDeliveryCycle runs one cycle under the non-reentrancy guard.
// Returns whether the cycle actually ran. The guard is released on
// every exit path.
func (s *Scheduler) runDeliveryCycle(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Info("queue processing already in progress, skipping")
		return false
	}
	defer s.running.Store(false)

	if err := s.processor.RunCycle(ctx); err != nil {
		s.logger.Error("delivery cycle failed", "error", err)
	}
	return true
}

// runSweep deletes terminal queue entries past the retention window.
func (s *Scheduler) runSweep(ctx context.Context) {
	deleted, err := s.retention.DeleteOldTerminal(ctx, retentionWindow)
	if err != nil {
		s.logger.Error("retention sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("cleaned up old queue entries", "deleted", deleted)
	}
}
