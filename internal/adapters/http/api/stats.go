package api

import (
	"net/http"

	"github.com/okian/caretrack/internal/domain/types"
)

// StatsProvider reports the service state.
type StatsProvider interface {
	GetStats() types.Stats
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats writes the current stats as JSON.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.provider.GetStats())
}
