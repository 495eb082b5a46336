package store

import (
	"context"
	"fmt"

	"github.com/Tymofiyyy/pocket/internal/domain"
)

// ActiveSenderAccounts returns every account the worker should connect
// at startup. Account CRUD is owned by the admin API.
func (s *PostgresStore) ActiveSenderAccounts(ctx context.Context) ([]domain.SenderAccount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, phone_number, api_id, api_hash, session_string, is_active, created_at
		FROM telegram_accounts
		WHERE is_active = true
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sender accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.SenderAccount
	for rows.Next() {
		var a domain.SenderAccount
		err := rows.Scan(&a.ID, &a.PhoneNumber, &a.APIID, &a.APIHash, &a.SessionString, &a.IsActive, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning sender account: %w", err)
		}
		accounts = append(accounts, a)
	}

	if accounts == nil {
		accounts = []domain.SenderAccount{}
	}

	return accounts, nil
}

// SaveAccountSession persists a session credential refreshed during
// connect.
func (s *PostgresStore) SaveAccountSession(ctx context.Context, id, session string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE telegram_accounts SET session_string = $2 WHERE id = $1
	`, id, session)
	if err != nil {
		return fmt.Errorf("saving account session: %w", err)
	}
	return nil
}
