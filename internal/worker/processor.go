package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Tymofiyyy/pocket/internal/domain"
	"github.com/Tymofiyyy/pocket/internal/sender"
	"github.com/Tymofiyyy/pocket/internal/store"
	ws "github.com/Tymofiyyy/pocket/internal/websocket"
	"github.com/google/uuid"
)

const (
	defaultBatchSize = 50
	maxAttempts      = 3
	retryStep        = 5 * time.Minute
)

// QueueStore is the queue access the processor needs.
type QueueStore interface {
	ClaimDue(ctx context.Context, limit int) ([]domain.ClaimedEntry, error)
	MarkQueueStatus(ctx context.Context, id string, status domain.QueueStatus, errMsg *string) error
	RescheduleEntry(ctx context.Context, id string, nextAt time.Time, errMsg *string) error
}

// DispatchLog appends audit rows for dispatch outcomes.
type DispatchLog interface {
	RecordDispatch(ctx context.Context, rec store.DispatchRecord) error
}

// Gate evaluates a step's conditions against the user's event history.
type Gate interface {
	Evaluate(ctx context.Context, userID string, conditions json.RawMessage) bool
}

// Dispatcher sends one message and reports the identity used.
type Dispatcher interface {
	Dispatch(ctx context.Context, req sender.DispatchRequest) (string, error)
}

// Processor drains due queue entries: claim a batch, then resolve each
// entry strictly sequentially (gate, dispatch, log, transition) with a
// fixed pacing delay between entries to avoid outbound flood.
type Processor struct {
	queue  QueueStore
	logs   DispatchLog
	gate   Gate
	pool   Dispatcher
	hub    *ws.Hub
	logger *slog.Logger

	batchSize int
	pacing    time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func NewProcessor(queue QueueStore, logs DispatchLog, gate Gate, pool Dispatcher, hub *ws.Hub, logger *slog.Logger, batchSize int, pacing time.Duration) *Processor {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Processor{
		queue:     queue,
		logs:      logs,
		gate:      gate,
		pool:      pool,
		hub:       hub,
		logger:    logger,
		batchSize: batchSize,
		pacing:    pacing,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// RunCycle claims and resolves one batch of due entries. Entries claimed
// here are already in processing with attempts incremented, so a crash
// mid-cycle still consumes retry budget instead of retrying forever.
func (p *Processor) RunCycle(ctx context.Context) error {
	cycleID := uuid.New().String()

	entries, err := p.queue.ClaimDue(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("claiming due entries: %w", err)
	}

	if len(entries) == 0 {
		p.logger.Debug("no messages in queue", "cycle_id", cycleID)
		return nil
	}

	p.logger.Info("queue cycle started", "cycle_id", cycleID, "claimed", len(entries))

	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.processEntry(ctx, entry)
		p.sleep(ctx, p.pacing)
	}

	p.logger.Info("queue cycle completed", "cycle_id", cycleID, "processed", len(entries))
	return nil
}

// processEntry resolves one claimed entry. Every path out of here
// records exactly one delivery log row and one queue transition.
func (p *Processor) processEntry(ctx context.Context, entry domain.ClaimedEntry) {
	if entry.TelegramID == nil {
		p.fail(ctx, entry, "", fmt.Errorf("user has no telegram id"))
		return
	}

	if len(entry.Conditions) > 0 && !p.gate.Evaluate(ctx, entry.UserID, entry.Conditions) {
		p.skip(ctx, entry)
		return
	}

	req := sender.DispatchRequest{
		Destination: *entry.TelegramID,
		MessageType: entry.MessageType,
	}
	if entry.MessageText != nil {
		req.Text = *entry.MessageText
	}
	if entry.ImageURL != nil {
		req.ImageRef = *entry.ImageURL
	}

	accountID, err := p.pool.Dispatch(ctx, req)
	if err != nil {
		p.fail(ctx, entry, accountID, err)
		return
	}

	p.complete(ctx, entry, accountID)
}

func (p *Processor) complete(ctx context.Context, entry domain.ClaimedEntry, accountID string) {
	p.recordLog(ctx, entry, &accountID, domain.DeliverySent, "")

	if err := p.queue.MarkQueueStatus(ctx, entry.ID, domain.QueueCompleted, nil); err != nil {
		p.logger.Error("failed to mark entry completed", "error", err, "queue_id", entry.ID)
	}

	p.logger.Info("message sent",
		"queue_id", entry.ID,
		"user_id", entry.UserID,
		"account_id", accountID,
		"attempt", entry.Attempts,
	)

	p.broadcast("dispatch_sent", entry, accountID, "")
}

func (p *Processor) skip(ctx context.Context, entry domain.ClaimedEntry) {
	p.recordLog(ctx, entry, nil, domain.DeliverySkipped, "conditions not met")

	msg := "conditions not met"
	if err := p.queue.MarkQueueStatus(ctx, entry.ID, domain.QueueSkipped, &msg); err != nil {
		p.logger.Error("failed to mark entry skipped", "error", err, "queue_id", entry.ID)
	}

	p.logger.Info("message skipped, conditions not met",
		"queue_id", entry.ID,
		"user_id", entry.UserID,
	)

	p.broadcast("dispatch_skipped", entry, "", "")
}

// fail records the failed attempt and either reschedules the entry with
// linear backoff or, at the retry cap, marks it terminally failed.
func (p *Processor) fail(ctx context.Context, entry domain.ClaimedEntry, accountID string, dispatchErr error) {
	errText := dispatchErr.Error()

	var acc *string
	if accountID != "" {
		acc = &accountID
	}
	p.recordLog(ctx, entry, acc, domain.DeliveryFailed, errText)

	if entry.Attempts >= maxAttempts {
		if err := p.queue.MarkQueueStatus(ctx, entry.ID, domain.QueueFailed, &errText); err != nil {
			p.logger.Error("failed to mark entry failed", "error", err, "queue_id", entry.ID)
		}

		p.logger.Warn("message permanently failed",
			"queue_id", entry.ID,
			"user_id", entry.UserID,
			"attempts", entry.Attempts,
			"error", errText,
		)

		p.broadcast("dispatch_failed", entry, accountID, errText)
		return
	}

	// 5, 10, 15 minute backoff by attempt count.
	nextAt := p.now().Add(time.Duration(entry.Attempts) * retryStep)
	if err := p.queue.RescheduleEntry(ctx, entry.ID, nextAt, &errText); err != nil {
		p.logger.Error("failed to reschedule entry", "error", err, "queue_id", entry.ID)
	}

	p.logger.Warn("message rescheduled",
		"queue_id", entry.ID,
		"user_id", entry.UserID,
		"attempt", entry.Attempts,
		"next_at", nextAt,
		"error", errText,
	)

	p.broadcast("dispatch_rescheduled", entry, accountID, errText)
}

func (p *Processor) recordLog(ctx context.Context, entry domain.ClaimedEntry, accountID *string, status domain.DeliveryStatus, errMsg string) {
	err := p.logs.RecordDispatch(ctx, store.DispatchRecord{
		UserID:       entry.UserID,
		ChainID:      entry.ChainID,
		StepID:       entry.StepID,
		AccountID:    accountID,
		Status:       status,
		ErrorMessage: errMsg,
	})
	if err != nil {
		p.logger.Error("failed to record delivery log",
			"error", err,
			"queue_id", entry.ID,
			"status", status,
		)
	}
}

func (p *Processor) broadcast(eventType string, entry domain.ClaimedEntry, accountID, errText string) {
	if p.hub == nil {
		return
	}
	p.hub.Broadcast(ws.DispatchEvent{
		Type:      eventType,
		QueueID:   entry.ID,
		UserID:    entry.UserID,
		ChainID:   entry.ChainID,
		StepID:    entry.StepID,
		AccountID: accountID,
		Attempt:   entry.Attempts,
		Error:     errText,
		Timestamp: p.now(),
	})
}
