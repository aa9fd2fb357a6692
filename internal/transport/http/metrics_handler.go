package http

import (
	"net/http"

	"verdiff/internal/infrastructure"
)

// MetricsHandler serves the Prometheus exposition of the process metrics.
type MetricsHandler struct {
	metrics *infrastructure.Metrics
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(metrics *infrastructure.Metrics) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// ServeHTTP handles GET /metrics
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.metrics.Handler().ServeHTTP(w, r)
}
