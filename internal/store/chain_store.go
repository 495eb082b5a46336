package store

import (
	"context"
	"fmt"

	"github.com/Tymofiyyy/pocket/internal/domain"
)

// ActiveChainsForEvent returns every active chain listening for the
// given event type, with steps ordered by step_order. The chain catalog
// is owned by the admin API; the pipeline only reads it.
func (s *PostgresStore) ActiveChainsForEvent(ctx context.Context, eventType domain.EventType) ([]domain.ChainWithSteps, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, trigger_event, is_active, created_at, updated_at
		FROM message_chains
		WHERE trigger_event = $1 AND is_active = true
	`, eventType)
	if err != nil {
		return nil, fmt.Errorf("querying active chains: %w", err)
	}
	defer rows.Close()

	var chains []domain.ChainWithSteps
	chainIDs := []string{}
	byID := map[string]int{}
	for rows.Next() {
		var c domain.Chain
		err := rows.Scan(&c.ID, &c.Name, &c.TriggerEvent, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning chain: %w", err)
		}
		byID[c.ID] = len(chains)
		chainIDs = append(chainIDs, c.ID)
		chains = append(chains, domain.ChainWithSteps{Chain: c, Steps: []domain.ChainStep{}})
	}
	rows.Close()

	if len(chains) == 0 {
		return []domain.ChainWithSteps{}, nil
	}

	stepRows, err := s.pool.Query(ctx, `
		SELECT id, chain_id, step_order, delay_hours, message_type,
		       message_text, image_url, conditions, created_at
		FROM chain_steps
		WHERE chain_id = ANY($1)
		ORDER BY chain_id, step_order ASC
	`, chainIDs)
	if err != nil {
		return nil, fmt.Errorf("querying chain steps: %w", err)
	}
	defer stepRows.Close()

	for stepRows.Next() {
		var st domain.ChainStep
		err := stepRows.Scan(
			&st.ID, &st.ChainID, &st.StepOrder, &st.DelayHours, &st.MessageType,
			&st.MessageText, &st.ImageURL, &st.Conditions, &st.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning chain step: %w", err)
		}
		if idx, ok := byID[st.ChainID]; ok {
			chains[idx].Steps = append(chains[idx].Steps, st)
		}
	}

	return chains, nil
}
