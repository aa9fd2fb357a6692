package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"verdiff/internal/config"
)

// HealthResponse reports liveness and build information.
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Timestamp string `json:"timestamp"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	started time.Time
	now     func() time.Time
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		started: time.Now(),
		now:     time.Now,
		logger:  logger.With(slog.String("handler", "health")),
	}
}

// HealthCheck handles GET /healthz
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	render.JSON(w, r, HealthResponse{
		Status:    "ok",
		Service:   config.AppName,
		Version:   config.AppVersion,
		Uptime:    now.Sub(h.started).Truncate(time.Second).String(),
		Timestamp: now.UTC().Format(time.RFC3339),
	})
}
