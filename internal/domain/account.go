package domain

import "time"

// SenderAccount is an outbound messaging identity. SessionString is the
// persisted session credential; connection liveness lives only in the
// worker's sender pool.
type SenderAccount struct {
	ID            string    `json:"id"`
	PhoneNumber   string    `json:"phone_number"`
	APIID         int       `json:"api_id"`
	APIHash       string    `json:"-"`
	SessionString *string   `json:"-"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}
