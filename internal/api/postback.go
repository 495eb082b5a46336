package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Tymofiyyy/pocket/internal/domain"
	"github.com/Tymofiyyy/pocket/internal/store"
	"github.com/shopspring/decimal"
)

// UserUpserter writes the user registry.
type UserUpserter interface {
	UpsertUser(ctx context.Context, p store.UpsertUserParams) (*domain.User, error)
}

// EventRecorder appends to the event ledger.
type EventRecorder interface {
	CreateUserEvent(ctx context.Context, userID string, eventType domain.EventType, amount decimal.NullDecimal, status *string, eventData json.RawMessage) (*domain.Event, error)
}

// Triggerer materializes queue entries for a recorded event.
type Triggerer interface {
	Trigger(ctx context.Context, userID string, eventType domain.EventType) int
}

// SourceLimiter rate-limits postbacks per source key.
type SourceLimiter interface {
	Allow(ctx context.Context, source string, limit int) bool
}

// PostbackHandler ingests conversion postbacks from the affiliate
// platform. The response depends only on the user upsert and the event
// append; trigger materialization is best-effort after that.
type PostbackHandler struct {
	users   UserUpserter
	events  EventRecorder
	trigger Triggerer
	limiter SourceLimiter
	limit   int
	logger  *slog.Logger
}

func NewPostbackHandler(users UserUpserter, events EventRecorder, trigger Triggerer, limiter SourceLimiter, limit int, logger *slog.Logger) *PostbackHandler {
	return &PostbackHandler{
		users:   users,
		events:  events,
		trigger: trigger,
		limiter: limiter,
		limit:   limit,
		logger:  logger,
	}
}

type postbackResponse struct {
	Success   bool             `json:"success"`
	Message   string           `json:"message"`
	UserID    string           `json:"user_id"`
	EventType domain.EventType `json:"event_type"`
	Queued    int              `json:"queued"`
}

// Handle accepts both GET and POST postbacks; the affiliate platform
// sends all parameters in the query string either way.
func (h *PostbackHandler) Handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	clickID := q.Get("click_id")
	if clickID == "" {
		respondError(w, http.StatusBadRequest, "missing required parameter: click_id")
		return
	}

	// Limit by source address: one platform IP reports conversions for
	// many click IDs.
	if h.limiter != nil && !h.limiter.Allow(r.Context(), clientIP(r), h.limit) {
		respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	eventType := DetectEventType(q)

	user, err := h.users.UpsertUser(r.Context(), upsertParamsFromQuery(clickID, q))
	if err != nil {
		h.logger.Error("failed to upsert user", "error", err, "click_id", clickID)
		respondError(w, http.StatusInternalServerError, "failed to process postback")
		return
	}

	event, err := h.events.CreateUserEvent(
		r.Context(), user.ID, eventType,
		parseAmount(q), optional(q.Get("status")), auditPayload(q),
	)
	if err != nil {
		h.logger.Error("failed to record event", "error", err, "user_id", user.ID, "event_type", eventType)
		respondError(w, http.StatusInternalServerError, "failed to process postback")
		return
	}

	// The event is durable; trigger failures are logged inside the
	// engine and must not affect the response. The detached context keeps
	// a client disconnect from cancelling the queue writes mid-batch.
	queued := h.trigger.Trigger(context.WithoutCancel(r.Context()), user.ID, eventType)

	h.logger.Info("postback processed",
		"user_id", user.ID,
		"event_id", event.ID,
		"event_type", eventType,
		"queued", queued,
	)

	respondJSON(w, http.StatusOK, postbackResponse{
		Success:   true,
		Message:   "Postback processed",
		UserID:    user.ID,
		EventType: eventType,
		Queued:    queued,
	})
}

// DetectEventType derives the conversion type from the "event" marker or
// an explicit "event_type" parameter.
func DetectEventType(q url.Values) domain.EventType {
	marker := q.Get("event")
	explicit := q.Get("event_type")

	switch {
	case strings.Contains(marker, "reg") || explicit == "registration":
		return domain.EventRegistration
	case strings.Contains(marker, "email") || explicit == "email_confirmed":
		return domain.EventEmailConfirmed
	case strings.Contains(marker, "ftd") || explicit == "ftd":
		return domain.EventFirstDeposit
	case strings.Contains(marker, "deposit") || explicit == "repeat_deposit":
		return domain.EventRepeatDeposit
	case strings.Contains(marker, "commission") || explicit == "commission":
		return domain.EventCommission
	case strings.Contains(marker, "withdrawal") || explicit == "withdrawal":
		return domain.EventWithdrawal
	default:
		return domain.EventUnknown
	}
}

func upsertParamsFromQuery(clickID string, q url.Values) store.UpsertUserParams {
	p := store.UpsertUserParams{
		ClickID:    clickID,
		SiteID:     optional(q.Get("site_id")),
		TraderID:   optional(q.Get("trader_id")),
		Country:    optional(q.Get("country")),
		DeviceType: optional(q.Get("device_type")),
		OSVersion:  optional(q.Get("os_version")),
		Browser:    optional(q.Get("browser")),
		Promo:      optional(q.Get("promo")),
		LinkType:   optional(q.Get("link_type")),
	}

	// sub_id1 carries the user's Telegram ID when the acquisition flow
	// captured one.
	if raw := q.Get("sub_id1"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			p.TelegramID = &id
		}
	}

	return p
}

// parseAmount picks the first money parameter present: deposit sum,
// withdrawal sum, then commission.
func parseAmount(q url.Values) decimal.NullDecimal {
	for _, key := range []string{"sumdep", "wdr_sum", "commission"} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			continue
		}
		return decimal.NullDecimal{Decimal: d, Valid: true}
	}
	return decimal.NullDecimal{}
}

// auditPayload preserves the full query string on the event for audit.
func auditPayload(q url.Values) json.RawMessage {
	flat := make(map[string]string, len(q))
	for key := range q {
		flat[key] = q.Get(key)
	}
	data, err := json.Marshal(map[string]interface{}{"raw_query": flat})
	if err != nil {
		return nil
	}
	return data
}

// clientIP extracts the peer address; RealIP middleware has already
// rewritten RemoteAddr from forwarding headers where present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
