package api

import (
	"net/http"
	"strconv"

	"github.com/Tymofiyyy/pocket/internal/store"
)

// QueueHandler serves the read-only queue view for the admin dashboard.
// No pipeline invariant depends on these reads.
type QueueHandler struct {
	store *store.PostgresStore
}

func NewQueueHandler(s *store.PostgresStore) *QueueHandler {
	return &QueueHandler{store: s}
}

func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	userID := r.URL.Query().Get("user_id")

	entries, err := h.store.ListQueueEntries(r.Context(), status, userID, limitParam(r, 50))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list queue entries")
		return
	}

	respondJSON(w, http.StatusOK, entries)
}

func limitParam(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
