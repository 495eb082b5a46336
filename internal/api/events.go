package api

import (
	"net/http"

	"github.com/Tymofiyyy/pocket/internal/store"
	"github.com/go-chi/chi/v5"
)

// EventHandler serves the read-only event ledger view.
type EventHandler struct {
	store *store.PostgresStore
}

func NewEventHandler(s *store.PostgresStore) *EventHandler {
	return &EventHandler{store: s}
}

func (h *EventHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	events, err := h.store.ListUserEvents(r.Context(), userID, limitParam(r, 50))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list user events")
		return
	}

	respondJSON(w, http.StatusOK, events)
}
