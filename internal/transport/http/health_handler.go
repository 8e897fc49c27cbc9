package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// HealthHandler reports liveness and readiness of the dashboard server.
type HealthHandler struct {
	service DashboardServiceInterface
	logger  *slog.Logger
	version string
	started time.Time
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(service DashboardServiceInterface, logger *slog.Logger, version string) *HealthHandler {
	return &HealthHandler{
		service: service,
		logger:  logger.With(slog.String("component", "health_handler")),
		version: version,
		started: time.Now(),
	}
}

// Routes returns the health check routes.
func (h *HealthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.GetHealth)
	r.Get("/live", h.GetLiveness)
	r.Get("/ready", h.GetReadiness)

	return r
}

// GetHealth handles GET /api/health with full status including dataset shape
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	info := h.service.Info(r.Context())

	render.JSON(w, r, map[string]interface{}{
		"status":  "healthy",
		"version": h.version,
		"uptime":  time.Since(h.started).String(),
		"dataset": info,
	})
}

// GetLiveness handles GET /api/health/live
func (h *HealthHandler) GetLiveness(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"status": "alive",
	})
}

// GetReadiness handles GET /api/health/ready. The server is ready once a
// dataset with at least one tag is loaded.
func (h *HealthHandler) GetReadiness(w http.ResponseWriter, r *http.Request) {
	info := h.service.Info(r.Context())

	if info.Tags == 0 {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]interface{}{
			"status": "not_ready",
			"reason": "dataset has no numeric tag columns",
		})
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status":  "ready",
		"dataset": info,
	})
}

// VersionHandler handles GET /api/version
func VersionHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]interface{}{
			"version": version,
		})
	}
}
