// Package sender provides the outbound messaging capability: a pool of
// independent sender identities behind one interface, with per-identity
// liveness and random selection. The pool is policy-free: retry and
// backoff belong to the delivery worker.
package sender

import (
	"context"
	"errors"

	"github.com/Tymofiyyy/pocket/internal/domain"
)

var (
	// ErrNoConnectedAccounts is returned when a dispatch needs a random
	// sender and none are connected. Dispatch fails immediately; the
	// pool never waits for an account to come back.
	ErrNoConnectedAccounts = errors.New("no connected sender accounts")

	// ErrAccountNotConnected is returned when a dispatch pins a specific
	// account that is not currently connected.
	ErrAccountNotConnected = errors.New("requested sender account is not connected")
)

// Message is the resolved payload handed to a Sender: text, image bytes,
// or both.
type Message struct {
	Text  string
	Image []byte
}

// Sender is one outbound messaging identity. The concrete implementation
// wraps an external messaging-protocol client; this package never
// inspects the wire format.
type Sender interface {
	Connect(ctx context.Context) error
	Send(ctx context.Context, destination int64, msg Message) error
	Close() error
}

// SessionExporter is implemented by senders whose session credential may
// be refreshed during connect; the pool persists the new value.
type SessionExporter interface {
	ExportSession() string
}

// Factory builds a Sender for one account. The worker binary supplies
// the real implementation; tests supply fakes.
type Factory func(acc domain.SenderAccount) Sender
