package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// EventType enumerates the conversion events reported by the affiliate
// platform. Wire values follow the postback parameters, so the first
// deposit is "ftd".
type EventType string

const (
	EventRegistration   EventType = "registration"
	EventEmailConfirmed EventType = "email_confirmed"
	EventFirstDeposit   EventType = "ftd"
	EventRepeatDeposit  EventType = "repeat_deposit"
	EventCommission     EventType = "commission"
	EventWithdrawal     EventType = "withdrawal"
	EventUnknown        EventType = "unknown"
)

// Event is an append-only conversion fact for a user. Amount is present
// only for money-carrying events (deposits, commission, withdrawals).
type Event struct {
	ID        string              `json:"id"`
	UserID    string              `json:"user_id"`
	EventType EventType           `json:"event_type"`
	Amount    decimal.NullDecimal `json:"amount,omitempty"`
	Status    *string             `json:"status,omitempty"`
	EventData json.RawMessage     `json:"event_data,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}
