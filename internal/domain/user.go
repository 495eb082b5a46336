package domain

import (
	"time"
)

// User is an acquired user, anchored by the immutable click_id from the
// affiliate platform. telegram_id may arrive on a later postback than the
// one that created the row.
type User struct {
	ID         string    `json:"id"`
	TelegramID *int64    `json:"telegram_id,omitempty"`
	ClickID    string    `json:"click_id"`
	SiteID     *string   `json:"site_id,omitempty"`
	TraderID   *string   `json:"trader_id,omitempty"`
	Country    *string   `json:"country,omitempty"`
	DeviceType *string   `json:"device_type,omitempty"`
	OSVersion  *string   `json:"os_version,omitempty"`
	Browser    *string   `json:"browser,omitempty"`
	Promo      *string   `json:"promo,omitempty"`
	LinkType   *string   `json:"link_type,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
