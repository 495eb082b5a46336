package store

import (
	"context"
	"fmt"

	"github.com/Tymofiyyy/pocket/internal/domain"
)

// DispatchRecord holds data for one delivery log row. AccountID is nil
// when the attempt failed before a sender was chosen.
type DispatchRecord struct {
	UserID       string
	ChainID      string
	StepID       string
	AccountID    *string
	Status       domain.DeliveryStatus
	ErrorMessage string
}

// RecordDispatch appends one immutable audit row per dispatch outcome.
func (s *PostgresStore) RecordDispatch(ctx context.Context, rec DispatchRecord) error {
	var errMsg *string
	if rec.ErrorMessage != "" {
		errMsg = &rec.ErrorMessage
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO message_logs (user_id, chain_id, step_id, telegram_account_id, status, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.UserID, rec.ChainID, rec.StepID, rec.AccountID, rec.Status, errMsg)
	if err != nil {
		return fmt.Errorf("inserting delivery log: %w", err)
	}
	return nil
}

// ListDeliveryLogs returns delivery log rows with optional filtering,
// newest first. Read-only view for the dashboard.
func (s *PostgresStore) ListDeliveryLogs(ctx context.Context, userID, status string, limit int) ([]domain.DeliveryLog, error) {
	query := `SELECT id, user_id, chain_id, step_id, telegram_account_id, status, error_message, sent_at FROM message_logs`
	args := []interface{}{}
	argIdx := 1
	conditions := []string{}

	if userID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, userID)
		argIdx++
	}
	if status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, status)
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

	query += " ORDER BY sent_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying delivery logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.DeliveryLog
	for rows.Next() {
		var l domain.DeliveryLog
		err := rows.Scan(
			&l.ID, &l.UserID, &l.ChainID, &l.StepID, &l.AccountID,
			&l.Status, &l.ErrorMessage, &l.SentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning delivery log: %w", err)
		}
		logs = append(logs, l)
	}

	if logs == nil {
		logs = []domain.DeliveryLog{}
	}

	return logs, nil
}
