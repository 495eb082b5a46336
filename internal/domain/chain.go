package domain

import (
	"encoding/json"
	"time"
)

// MessageType determines the payload shape of a chain step.
type MessageType string

const (
	MessageText          MessageType = "text"
	MessageImage         MessageType = "image"
	MessageTextWithImage MessageType = "text_with_image"
)

// Chain is a drip campaign triggered by one event type. Chains and their
// steps are authored by the admin API; the pipeline only reads them.
type Chain struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	TriggerEvent EventType `json:"trigger_event"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChainStep is one message within a chain. StepOrder is authoring order
// only; actual delivery order follows the computed fire time. Conditions
// is an optional JSON predicate evaluated at dispatch time.
type ChainStep struct {
	ID          string          `json:"id"`
	ChainID     string          `json:"chain_id"`
	StepOrder   int             `json:"step_order"`
	DelayHours  int             `json:"delay_hours"`
	MessageType MessageType     `json:"message_type"`
	MessageText *string         `json:"message_text,omitempty"`
	ImageURL    *string         `json:"image_url,omitempty"`
	Conditions  json.RawMessage `json:"conditions,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ChainWithSteps is a chain plus its steps ordered by step_order.
type ChainWithSteps struct {
	Chain
	Steps []ChainStep `json:"steps"`
}
