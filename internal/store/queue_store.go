package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Tymofiyyy/pocket/internal/domain"
)

// EnqueueStep creates one pending queue entry for a (user, chain, step)
// tuple. Repeat trigger events legitimately create independent entries
// for the same tuple.
func (s *PostgresStore) EnqueueStep(ctx context.Context, userID, chainID, stepID string, scheduledAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO message_queue (user_id, chain_id, step_id, scheduled_at)
		VALUES ($1, $2, $3, $4)
	`, userID, chainID, stepID, scheduledAt)
	if err != nil {
		return fmt.Errorf("enqueueing step: %w", err)
	}
	return nil
}

// ClaimDue atomically moves up to limit due pending entries into
// processing, incrementing attempts, and returns them joined with the
// user's destination and the step content. FOR UPDATE SKIP LOCKED makes
// the claim safe against a concurrent claimer; entries are returned in
// scheduled_at order.
func (s *PostgresStore) ClaimDue(ctx context.Context, limit int) ([]domain.ClaimedEntry, error) {
	rows, err := s.pool.Query(ctx, `
		WITH due AS (
			SELECT id
			FROM message_queue
			WHERE status = 'pending' AND scheduled_at <= NOW()
			ORDER BY scheduled_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE message_queue mq
		SET status = 'processing',
		    attempts = mq.attempts + 1,
		    updated_at = NOW()
		FROM due, users u, chain_steps cs
		WHERE mq.id = due.id
		  AND u.id = mq.user_id
		  AND cs.id = mq.step_id
		RETURNING mq.id, mq.user_id, mq.chain_id, mq.step_id, mq.attempts,
		          mq.scheduled_at, u.telegram_id, cs.message_type,
		          cs.message_text, cs.image_url, cs.conditions
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("claiming due entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.ClaimedEntry
	for rows.Next() {
		var e domain.ClaimedEntry
		err := rows.Scan(
			&e.ID, &e.UserID, &e.ChainID, &e.StepID, &e.Attempts,
			&e.ScheduledAt, &e.TelegramID, &e.MessageType,
			&e.MessageText, &e.ImageURL, &e.Conditions,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning claimed entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading claimed entries: %w", err)
	}

	// RETURNING carries no ordering guarantee.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ScheduledAt.Before(entries[j].ScheduledAt)
	})

	return entries, nil
}

// MarkQueueStatus transitions a processing entry to a terminal status.
func (s *PostgresStore) MarkQueueStatus(ctx context.Context, id string, status domain.QueueStatus, errMsg *string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE message_queue
		SET status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1
	`, id, status, errMsg)
	if err != nil {
		return fmt.Errorf("updating queue status: %w", err)
	}
	return nil
}

// RescheduleEntry returns a failed processing entry to pending with a
// pushed-forward fire time. Attempts were already counted at claim.
func (s *PostgresStore) RescheduleEntry(ctx context.Context, id string, nextAt time.Time, errMsg *string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE message_queue
		SET status = 'pending', scheduled_at = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1
	`, id, nextAt, errMsg)
	if err != nil {
		return fmt.Errorf("rescheduling queue entry: %w", err)
	}
	return nil
}

// DeleteOldTerminal removes terminal entries older than the retention
// window. Pending and processing rows are never touched.
func (s *PostgresStore) DeleteOldTerminal(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM message_queue
		WHERE status IN ('completed', 'failed', 'skipped')
		  AND created_at < NOW() - $1::interval
	`, olderThan.String())
	if err != nil {
		return 0, fmt.Errorf("deleting old queue entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListQueueEntries returns queue entries with optional filtering, newest
// first. Read-only view for the dashboard.
func (s *PostgresStore) ListQueueEntries(ctx context.Context, status, userID string, limit int) ([]domain.QueueEntry, error) {
	query := `SELECT id, user_id, chain_id, step_id, scheduled_at, status, attempts, error_message, created_at, updated_at FROM message_queue`
	args := []interface{}{}
	argIdx := 1
	conditions := []string{}

	if status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, status)
		argIdx++
	}
	if userID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, userID)
		argIdx++
	}

	if len(conditions) > 0 {
		query += " WHERE "
		for i, c := range conditions {
			if i > 0 {
				query += " AND "
			}
			query += c
		}
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying queue entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.QueueEntry
	for rows.Next() {
		var e domain.QueueEntry
		err := rows.Scan(
			&e.ID, &e.UserID, &e.ChainID, &e.StepID, &e.ScheduledAt,
			&e.Status, &e.Attempts, &e.ErrorMessage, &e.CreatedAt, &e.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning queue entry: %w", err)
		}
		entries = append(entries, e)
	}

	if entries == nil {
		entries = []domain.QueueEntry{}
	}

	return entries, nil
}
