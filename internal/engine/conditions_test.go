package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/Tymofiyyy/pocket/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type fakeLedger struct {
	deposits  decimal.Decimal
	hasEvent  bool
	ledgerErr error
}

func (f *fakeLedger) SumDeposits(ctx context.Context, userID string) (decimal.Decimal, error) {
	return f.deposits, f.ledgerErr
}

func (f *fakeLedger) HasEvent(ctx context.Context, userID string, eventType domain.EventType) (bool, error) {
	return f.hasEvent, f.ledgerErr
}

func newTestEvaluator(ledger EventLedger) *ConditionEvaluator {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewConditionEvaluator(ledger, logger)
}

func TestEvaluate_EmptyConditionsHold(t *testing.T) {
	ev := newTestEvaluator(&fakeLedger{})
	ctx := context.Background()

	assert.True(t, ev.Evaluate(ctx, "u1", nil))
	assert.True(t, ev.Evaluate(ctx, "u1", json.RawMessage("")))
	assert.True(t, ev.Evaluate(ctx, "u1", json.RawMessage("null")))
	assert.True(t, ev.Evaluate(ctx, "u1", json.RawMessage("{}")))
}

func TestEvaluate_MinDeposit(t *testing.T) {
	ctx := context.Background()
	cond := json.RawMessage(`{"min_deposit": 100}`)

	ev := newTestEvaluator(&fakeLedger{deposits: decimal.NewFromInt(150)})
	assert.True(t, ev.Evaluate(ctx, "u1", cond), "total above threshold should hold")

	ev = newTestEvaluator(&fakeLedger{deposits: decimal.NewFromInt(100)})
	assert.True(t, ev.Evaluate(ctx, "u1", cond), "total equal to threshold should hold")

	ev = newTestEvaluator(&fakeLedger{deposits: decimal.NewFromInt(99)})
	assert.False(t, ev.Evaluate(ctx, "u1", cond), "total below threshold should not hold")
}

func TestEvaluate_RequiredEvent(t *testing.T) {
	ctx := context.Background()
	cond := json.RawMessage(`{"event_type": "ftd"}`)

	ev := newTestEvaluator(&fakeLedger{hasEvent: true})
	assert.True(t, ev.Evaluate(ctx, "u1", cond))

	ev = newTestEvaluator(&fakeLedger{hasEvent: false})
	assert.False(t, ev.Evaluate(ctx, "u1", cond))
}

func TestEvaluate_BothConditionsMustHold(t *testing.T) {
	ctx := context.Background()
	cond := json.RawMessage(`{"min_deposit": 50, "event_type": "ftd"}`)

	ev := newTestEvaluator(&fakeLedger{deposits: decimal.NewFromInt(60), hasEvent: true})
	assert.True(t, ev.Evaluate(ctx, "u1", cond))

	ev = newTestEvaluator(&fakeLedger{deposits: decimal.NewFromInt(60), hasEvent: false})
	assert.False(t, ev.Evaluate(ctx, "u1", cond))

	ev = newTestEvaluator(&fakeLedger{deposits: decimal.NewFromInt(40), hasEvent: true})
	assert.False(t, ev.Evaluate(ctx, "u1", cond))
}

func TestEvaluate_MalformedPayloadFailsOpen(t *testing.T) {
	ev := newTestEvaluator(&fakeLedger{})
	ctx := context.Background()

	assert.True(t, ev.Evaluate(ctx, "u1", json.RawMessage(`{not json`)))
	assert.True(t, ev.Evaluate(ctx, "u1", json.RawMessage(`{"min_deposit": "abc"}`)))
}

func TestEvaluate_LedgerErrorFailsOpen(t *testing.T) {
	ev := newTestEvaluator(&fakeLedger{ledgerErr: errors.New("connection refused")})
	ctx := context.Background()

	assert.True(t, ev.Evaluate(ctx, "u1", json.RawMessage(`{"min_deposit": 100}`)))
	assert.True(t, ev.Evaluate(ctx, "u1", json.RawMessage(`{"event_type": "ftd"}`)))
}
