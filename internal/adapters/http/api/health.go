package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/caretrack/pkg/metrics"
)

// HealthHandler serves GET /healthz as the Prometheus scrape endpoint of
// the caretrack registry.
type HealthHandler struct {
	metrics http.Handler
}

// NewHealthHandler creates a health handler bound to the metrics registry.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{
			ErrorHandling: promhttp.ContinueOnError,
		}),
	}
}

// HandleHealth writes the metrics exposition.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}
