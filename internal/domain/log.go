package domain

import "time"

// DeliveryStatus is the outcome recorded for one pass through processing.
type DeliveryStatus string

const (
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
	DeliverySkipped DeliveryStatus = "skipped"
)

// DeliveryLog is an immutable audit record of one dispatch outcome.
// AccountID is nil when the attempt failed before a sender was chosen.
type DeliveryLog struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	ChainID      string         `json:"chain_id"`
	StepID       string         `json:"step_id"`
	AccountID    *string        `json:"account_id,omitempty"`
	Status       DeliveryStatus `json:"status"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	SentAt       time.Time      `json:"sent_at"`
}
