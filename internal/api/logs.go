package api

import (
	"net/http"

	"github.com/Tymofiyyy/pocket/internal/store"
)

// LogHandler serves the read-only delivery log view.
type LogHandler struct {
	store *store.PostgresStore
}

func NewLogHandler(s *store.PostgresStore) *LogHandler {
	return &LogHandler{store: s}
}

func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	status := r.URL.Query().Get("status")

	logs, err := h.store.ListDeliveryLogs(r.Context(), userID, status, limitParam(r, 50))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list delivery logs")
		return
	}

	respondJSON(w, http.StatusOK, logs)
}
