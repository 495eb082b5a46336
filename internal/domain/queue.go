package domain

import (
	"encoding/json"
	"time"
)

// QueueStatus is the delivery job state machine:
// pending → processing → {completed | failed | skipped}, with failed
// looping back to pending until the retry cap.
type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueCompleted  QueueStatus = "completed"
	QueueFailed     QueueStatus = "failed"
	QueueSkipped    QueueStatus = "skipped"
)

// IsTerminal reports whether no further transitions occur from s.
func (s QueueStatus) IsTerminal() bool {
	return s == QueueCompleted || s == QueueFailed || s == QueueSkipped
}

// QueueEntry is one scheduled delivery: send this step to this user at
// scheduled_at. Created by the trigger engine, mutated only by the worker.
type QueueEntry struct {
	ID           string      `json:"id"`
	UserID       string      `json:"user_id"`
	ChainID      string      `json:"chain_id"`
	StepID       string      `json:"step_id"`
	ScheduledAt  time.Time   `json:"scheduled_at"`
	Status       QueueStatus `json:"status"`
	Attempts     int         `json:"attempts"`
	ErrorMessage *string     `json:"error_message,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// ClaimedEntry is a queue entry claimed for processing, joined with the
// user's destination and the step content it must deliver. Attempts
// already includes the claim that produced it.
type ClaimedEntry struct {
	ID          string
	UserID      string
	ChainID     string
	StepID      string
	Attempts    int
	ScheduledAt time.Time
	TelegramID  *int64
	MessageType MessageType
	MessageText *string
	ImageURL    *string
	Conditions  json.RawMessage
}
