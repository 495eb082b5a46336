package store

import (
	"context"
	"fmt"
)

// PipelineStats holds aggregated pipeline counters for the dashboard.
type PipelineStats struct {
	TotalUsers     int `json:"total_users"`
	TotalEvents    int `json:"total_events"`
	ActiveChains   int `json:"active_chains"`
	QueuePending   int `json:"queue_pending"`
	QueueCompleted int `json:"queue_completed"`
	QueueFailed    int `json:"queue_failed"`
	QueueSkipped   int `json:"queue_skipped"`
	MessagesSent   int `json:"messages_sent"`
	MessagesFailed int `json:"messages_failed"`
}

// GetPipelineStats returns aggregate counters across the pipeline tables.
func (s *PostgresStore) GetPipelineStats(ctx context.Context) (*PipelineStats, error) {
	var st PipelineStats

	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&st.TotalUsers)
	if err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}

	err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_events`).Scan(&st.TotalEvents)
	if err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}

	err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM message_chains WHERE is_active = true`).Scan(&st.ActiveChains)
	if err != nil {
		return nil, fmt.Errorf("counting active chains: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'skipped')
		FROM message_queue
	`).Scan(&st.QueuePending, &st.QueueCompleted, &st.QueueFailed, &st.QueueSkipped)
	if err != nil {
		return nil, fmt.Errorf("counting queue entries: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'sent'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM message_logs
	`).Scan(&st.MessagesSent, &st.MessagesFailed)
	if err != nil {
		return nil, fmt.Errorf("counting delivery logs: %w", err)
	}

	return &st, nil
}
