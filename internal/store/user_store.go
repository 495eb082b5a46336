package store

import (
	"context"
	"fmt"

	"github.com/Tymofiyyy/pocket/internal/domain"
)

// UpsertUserParams carries the identity and enrichment attributes parsed
// from a postback. Nil fields never clobber previously stored values.
type UpsertUserParams struct {
	ClickID    string
	TelegramID *int64
	SiteID     *string
	TraderID   *string
	Country    *string
	DeviceType *string
	OSVersion  *string
	Browser    *string
	Promo      *string
	LinkType   *string
}

// UpsertUser inserts a user on a previously unseen click_id, otherwise
// coalesces non-null new attributes over the existing row.
func (s *PostgresStore) UpsertUser(ctx context.Context, p UpsertUserParams) (*domain.User, error) {
	var u domain.User
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (
			click_id, telegram_id, site_id, trader_id, country,
			device_type, os_version, browser, promo, link_type
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (click_id) DO UPDATE SET
			telegram_id = COALESCE(EXCLUDED.telegram_id, users.telegram_id),
			site_id     = COALESCE(EXCLUDED.site_id, users.site_id),
			trader_id   = COALESCE(EXCLUDED.trader_id, users.trader_id),
			country     = COALESCE(EXCLUDED.country, users.country),
			device_type = COALESCE(EXCLUDED.device_type, users.device_type),
			os_version  = COALESCE(EXCLUDED.os_version, users.os_version),
			browser     = COALESCE(EXCLUDED.browser, users.browser),
			promo       = COALESCE(EXCLUDED.promo, users.promo),
			link_type   = COALESCE(EXCLUDED.link_type, users.link_type),
			updated_at  = NOW()
		RETURNING id, telegram_id, click_id, site_id, trader_id, country,
		          device_type, os_version, browser, promo, link_type,
		          created_at, updated_at
	`, p.ClickID, p.TelegramID, p.SiteID, p.TraderID, p.Country,
		p.DeviceType, p.OSVersion, p.Browser, p.Promo, p.LinkType,
	).Scan(
		&u.ID, &u.TelegramID, &u.ClickID, &u.SiteID, &u.TraderID, &u.Country,
		&u.DeviceType, &u.OSVersion, &u.Browser, &u.Promo, &u.LinkType,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting user: %w", err)
	}
	return &u, nil
}
