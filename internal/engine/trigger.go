package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/Tymofiyyy/pocket/internal/domain"
)

// ChainCatalog reads active chains for a trigger event.
type ChainCatalog interface {
	ActiveChainsForEvent(ctx context.Context, eventType domain.EventType) ([]domain.ChainWithSteps, error)
}

// StepEnqueuer creates pending queue entries.
type StepEnqueuer interface {
	EnqueueStep(ctx context.Context, userID, chainID, stepID string, scheduledAt time.Time) error
}

// TriggerEngine materializes queue entries for every active chain
// matching a newly recorded event. It runs best-effort after the event
// is durably stored: failures are logged, never surfaced to the event
// source, and never roll back the event.
type TriggerEngine struct {
	catalog ChainCatalog
	queue   StepEnqueuer
	logger  *slog.Logger
	now     func() time.Time
}

func NewTriggerEngine(catalog ChainCatalog, queue StepEnqueuer, logger *slog.Logger) *TriggerEngine {
	return &TriggerEngine{
		catalog: catalog,
		queue:   queue,
		logger:  logger,
		now:     time.Now,
	}
}

// Trigger enqueues one entry per (chain, step) for every active chain
// listening for eventType, each scheduled at now + the step's delay.
// Repeat events of the same type deliberately create independent
// batches. Returns the number of entries queued.
func (e *TriggerEngine) Trigger(ctx context.Context, userID string, eventType domain.EventType) int {
	chains, err := e.catalog.ActiveChainsForEvent(ctx, eventType)
	if err != nil {
		e.logger.Error("failed to read chain catalog",
			"error", err,
			"user_id", userID,
			"event_type", eventType,
		)
		return 0
	}

	if len(chains) == 0 {
		e.logger.Info("no active chains for event", "event_type", eventType, "user_id", userID)
		return 0
	}

	now := e.now()
	queued := 0
	for _, chain := range chains {
		for _, step := range chain.Steps {
			scheduledAt := now.Add(time.Duration(step.DelayHours) * time.Hour)
			if err := e.queue.EnqueueStep(ctx, userID, chain.ID, step.ID, scheduledAt); err != nil {
				e.logger.Error("failed to enqueue chain step",
					"error", err,
					"chain_id", chain.ID,
					"step_id", step.ID,
					"user_id", userID,
				)
				continue
			}
			queued++
		}

		e.logger.Info("chain triggered",
			"chain_id", chain.ID,
			"chain_name", chain.Name,
			"steps", len(chain.Steps),
			"user_id", userID,
			"event_type", eventType,
		)
	}

	return queued
}
