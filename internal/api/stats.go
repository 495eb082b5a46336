package api

import (
	"net/http"

	"github.com/Tymofiyyy/pocket/internal/store"
)

// StatsHandler serves aggregate pipeline counters for the dashboard.
type StatsHandler struct {
	store *store.PostgresStore
}

func NewStatsHandler(s *store.PostgresStore) *StatsHandler {
	return &StatsHandler{store: s}
}

func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetPipelineStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}
