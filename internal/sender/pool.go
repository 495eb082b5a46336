package sender

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/Tymofiyyy/pocket/internal/domain"
)

// SessionSaver persists session credentials refreshed during connect.
type SessionSaver interface {
	SaveAccountSession(ctx context.Context, id, session string) error
}

// DispatchRequest is one outbound delivery. AccountID pins a specific
// identity; when empty the pool picks a random connected one.
type DispatchRequest struct {
	Destination int64
	AccountID   string
	MessageType domain.MessageType
	Text        string
	ImageRef    string
}

// Pool holds the connected sender identities and routes dispatches
// through them. It reports which identity handled each dispatch so the
// outcome can be attributed in the delivery log, but it never retries
// across identities; a failure goes straight back to the caller.
type Pool struct {
	mu        sync.RWMutex
	connected map[string]Sender

	factory Factory
	saver   SessionSaver
	images  *ImageResolver
	logger  *slog.Logger
}

func NewPool(factory Factory, saver SessionSaver, images *ImageResolver, logger *slog.Logger) *Pool {
	return &Pool{
		connected: make(map[string]Sender),
		factory:   factory,
		saver:     saver,
		images:    images,
		logger:    logger,
	}
}

// ConnectAll connects every given account. Individual connect failures
// are logged and skipped; the pool runs with whatever connected.
func (p *Pool) ConnectAll(ctx context.Context, accounts []domain.SenderAccount) {
	for _, acc := range accounts {
		snd := p.factory(acc)

		if err := snd.Connect(ctx); err != nil {
			p.logger.Warn("failed to connect sender account",
				"error", err,
				"account_id", acc.ID,
				"phone", acc.PhoneNumber,
			)
			continue
		}

		// Connecting may refresh the session credential.
		if exp, ok := snd.(SessionExporter); ok && p.saver != nil {
			session := exp.ExportSession()
			prev := ""
			if acc.SessionString != nil {
				prev = *acc.SessionString
			}
			if session != "" && session != prev {
				if err := p.saver.SaveAccountSession(ctx, acc.ID, session); err != nil {
					p.logger.Error("failed to persist refreshed session", "error", err, "account_id", acc.ID)
				}
			}
		}

		p.mu.Lock()
		p.connected[acc.ID] = snd
		p.mu.Unlock()

		p.logger.Info("sender account connected", "account_id", acc.ID, "phone", acc.PhoneNumber)
	}

	p.logger.Info("sender pool ready", "connected", p.ConnectedCount())
}

// ConnectedCount returns the number of live sender identities.
func (p *Pool) ConnectedCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.connected)
}

// Dispatch sends one message through the pool. The chosen account ID is
// returned on success and on failure so the caller can attribute the
// outcome; it is empty only when the dispatch failed before an account
// was chosen.
func (p *Pool) Dispatch(ctx context.Context, req DispatchRequest) (string, error) {
	switch req.MessageType {
	case domain.MessageText, domain.MessageImage, domain.MessageTextWithImage:
	default:
		return "", fmt.Errorf("unknown message type: %q", req.MessageType)
	}

	accountID, snd, err := p.pick(req.AccountID)
	if err != nil {
		return "", err
	}

	msg := Message{}
	if req.MessageType == domain.MessageText || req.MessageType == domain.MessageTextWithImage {
		msg.Text = req.Text
	}
	if req.MessageType == domain.MessageImage || req.MessageType == domain.MessageTextWithImage {
		img, err := p.images.Resolve(ctx, req.ImageRef)
		if err != nil {
			return accountID, fmt.Errorf("resolving image %q: %w", req.ImageRef, err)
		}
		msg.Image = img
	}

	if err := snd.Send(ctx, req.Destination, msg); err != nil {
		return accountID, fmt.Errorf("sending via account %s: %w", accountID, err)
	}

	return accountID, nil
}

// pick selects the pinned account or a uniformly random connected one.
func (p *Pool) pick(pinned string) (string, Sender, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if pinned != "" {
		snd, ok := p.connected[pinned]
		if !ok {
			return "", nil, ErrAccountNotConnected
		}
		return pinned, snd, nil
	}

	if len(p.connected) == 0 {
		return "", nil, ErrNoConnectedAccounts
	}

	ids := make([]string, 0, len(p.connected))
	for id := range p.connected {
		ids = append(ids, id)
	}
	id := ids[rand.Intn(len(ids))]
	return id, p.connected[id], nil
}

// DisconnectAll closes every connected sender. Called on shutdown.
func (p *Pool) DisconnectAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, snd := range p.connected {
		if err := snd.Close(); err != nil {
			p.logger.Warn("failed to close sender", "error", err, "account_id", id)
		}
		delete(p.connected, id)
	}

	p.logger.Info("all senders disconnected")
}
