package engine

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Tymofiyyy/pocket/internal/domain"
	"github.com/shopspring/decimal"
)

// EventLedger is the read side of the event history needed for gating.
type EventLedger interface {
	SumDeposits(ctx context.Context, userID string) (decimal.Decimal, error)
	HasEvent(ctx context.Context, userID string, eventType domain.EventType) (bool, error)
}

// stepConditions is the restricted predicate authored on a chain step.
// "event_type" is the wire name for the required-prior-event check.
type stepConditions struct {
	MinDeposit *decimal.Decimal `json:"min_deposit,omitempty"`
	EventType  string           `json:"event_type,omitempty"`
}

// ConditionEvaluator gates deliveries on a user's event history.
// Malformed payloads and ledger errors fail open: delivery is preferred
// over a silent drop caused by bad authoring data.
type ConditionEvaluator struct {
	ledger EventLedger
	logger *slog.Logger
}

func NewConditionEvaluator(ledger EventLedger, logger *slog.Logger) *ConditionEvaluator {
	return &ConditionEvaluator{ledger: ledger, logger: logger}
}

// Evaluate reports whether the step's conditions hold for the user.
// An empty payload always holds.
func (ev *ConditionEvaluator) Evaluate(ctx context.Context, userID string, raw json.RawMessage) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return true
	}

	var cond stepConditions
	if err := json.Unmarshal(raw, &cond); err != nil {
		ev.logger.Warn("malformed step conditions, failing open",
			"error", err,
			"user_id", userID,
		)
		return true
	}

	if cond.MinDeposit != nil {
		total, err := ev.ledger.SumDeposits(ctx, userID)
		if err != nil {
			ev.logger.Error("failed to sum deposits, failing open", "error", err, "user_id", userID)
			return true
		}
		if total.LessThan(*cond.MinDeposit) {
			return false
		}
	}

	if cond.EventType != "" {
		has, err := ev.ledger.HasEvent(ctx, userID, domain.EventType(cond.EventType))
		if err != nil {
			ev.logger.Error("failed to check prior event, failing open", "error", err, "user_id", userID)
			return true
		}
		if !has {
			return false
		}
	}

	return true
}
