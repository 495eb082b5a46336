package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Tymofiyyy/pocket/internal/domain"
	"github.com/shopspring/decimal"
)

// CreateUserEvent appends one conversion event to the ledger. Events are
// never updated or deleted.
func (s *PostgresStore) CreateUserEvent(ctx context.Context, userID string, eventType domain.EventType, amount decimal.NullDecimal, status *string, eventData json.RawMessage) (*domain.Event, error) {
	var e domain.Event
	err := s.pool.QueryRow(ctx, `
		INSERT INTO user_events (user_id, event_type, amount, status, event_data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, event_type, amount, status, event_data, created_at
	`, userID, eventType, amount, status, eventData).Scan(
		&e.ID, &e.UserID, &e.EventType, &e.Amount, &e.Status, &e.EventData, &e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting user event: %w", err)
	}
	return &e, nil
}

// SumDeposits returns the user's cumulative deposit total across first
// and repeat deposits.
func (s *PostgresStore) SumDeposits(ctx context.Context, userID string) (decimal.Decimal, error) {
	var total string
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::text
		FROM user_events
		WHERE user_id = $1
		  AND event_type IN ($2, $3)
		  AND amount IS NOT NULL
	`, userID, domain.EventFirstDeposit, domain.EventRepeatDeposit).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("summing deposits: %w", err)
	}

	d, err := decimal.NewFromString(total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing deposit total %q: %w", total, err)
	}
	return d, nil
}

// HasEvent reports whether at least one event of the given type exists
// for the user.
func (s *PostgresStore) HasEvent(ctx context.Context, userID string, eventType domain.EventType) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM user_events WHERE user_id = $1 AND event_type = $2
		)
	`, userID, eventType).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking event existence: %w", err)
	}
	return exists, nil
}

// ListUserEvents returns a user's events, newest first. Read-only view
// for the dashboard.
func (s *PostgresStore) ListUserEvents(ctx context.Context, userID string, limit int) ([]domain.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, event_type, amount, status, event_data, created_at
		FROM user_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying user events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		err := rows.Scan(&e.ID, &e.UserID, &e.EventType, &e.Amount, &e.Status, &e.EventData, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning user event: %w", err)
		}
		events = append(events, e)
	}

	if events == nil {
		events = []domain.Event{}
	}

	return events, nil
}
