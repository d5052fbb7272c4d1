package http

import (
	"net/http"

	"github.com/go-chi/render"
)

// MetricsHandler exposes the Prometheus scrape endpoint.
type MetricsHandler struct {
	prometheus http.Handler
}

// NewMetricsHandler wraps the registry handler built at telemetry start.
// A nil handler means metrics are disabled.
func NewMetricsHandler(prometheus http.Handler) *MetricsHandler {
	return &MetricsHandler{prometheus: prometheus}
}

// ServeHTTP handles GET /metrics
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.prometheus == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]interface{}{
			"status":  "disabled",
			"message": "metrics are disabled",
		})
		return
	}
	h.prometheus.ServeHTTP(w, r)
}
