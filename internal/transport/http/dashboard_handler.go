package http

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "tagboard/internal/errors"
	"tagboard/internal/middleware"
	"tagboard/internal/services"
)

// tagCtxKey carries the validated tag name through the request context.
type tagCtxKey struct{}

// DashboardHandler handles tag data HTTP requests with RFC 7807 compliance
type DashboardHandler struct {
	service      DashboardServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validator    *middleware.QueryParamValidator
}

// NewDashboardHandler creates a new dashboard handler with RFC 7807 error handling
func NewDashboardHandler(service DashboardServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
		validator:    middleware.NewQueryParamValidator(),
	}
}

// Routes returns the dashboard routes with proper Chi patterns
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	// Use render for consistent JSON responses
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// Mounted at /api/tags by the application router
	r.Get("/", h.GetTags)

	// Sub-resource routes
	r.Route("/{tag}", func(r chi.Router) {
		r.Use(h.TagCtx) // Load tag into context
		r.Get("/series", h.GetSeries)
		r.Get("/histogram", h.GetHistogram)
		r.Get("/describe", h.GetDescribe)
	})

	return r
}

// TagCtx middleware validates the tag URL parameter
func (h *DashboardHandler) TagCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag := chi.URLParam(r, "tag")
		if tag == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("tag", "Tag name is required"))
			return
		}

		if unescaped, err := url.PathUnescape(tag); err == nil {
			tag = unescaped
		}

		if len(tag) > 128 {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("tag", "Tag name is too long"))
			return
		}

		ctx := context.WithValue(r.Context(), tagCtxKey{}, tag)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// tagFromContext returns the tag placed in the context by TagCtx.
func tagFromContext(ctx context.Context) string {
	tag, _ := ctx.Value(tagCtxKey{}).(string)
	return tag
}

// GetTags handles GET /api/tags?sort=tag|alias
func (h *DashboardHandler) GetTags(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	sortBy, err := h.validator.ValidateEnum(r, "sort", "tag", "tag", "alias")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "fetching tags",
		slog.String("sort", sortBy),
		slog.String("request_id", reqID),
	)

	tags, err := h.service.Tags(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get tags",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.errorHandler.HandleError(w, r, err)
		return
	}

	// The service returns tags in tag order.
	if sortBy == "alias" {
		sort.SliceStable(tags, func(i, j int) bool { return tags[i].Alias < tags[j].Alias })
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   tags,
		"count":  len(tags),
	})
}

// GetSeries handles GET /api/tags/{tag}/series?log=bool
func (h *DashboardHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	tag := tagFromContext(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	logScale, err := h.validator.ValidateBool(r, "log", false)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "fetching series",
		slog.String("tag", tag),
		slog.Bool("log_scale", logScale),
		slog.String("request_id", reqID),
	)

	series, err := h.service.Series(r.Context(), tag, logScale)
	if err != nil {
		h.handleServiceError(w, r, tag, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   series,
		"count":  len(series.Values),
	})
}

// GetHistogram handles GET /api/tags/{tag}/histogram?bins=n&log=bool&lo=f&hi=f
func (h *DashboardHandler) GetHistogram(w http.ResponseWriter, r *http.Request) {
	tag := tagFromContext(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	bins, err := h.validator.ValidateInt(r, "bins", 0, 1, 1000)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	logScale, err := h.validator.ValidateBool(r, "log", false)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	lo, err := h.validator.ValidateFloat(r, "lo", math.NaN(), -math.MaxFloat64, math.MaxFloat64)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	hi, err := h.validator.ValidateFloat(r, "hi", math.NaN(), -math.MaxFloat64, math.MaxFloat64)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if math.IsNaN(lo) != math.IsNaN(hi) {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("lo", "lo and hi must be given together"))
		return
	}
	if !math.IsNaN(lo) && hi <= lo {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("hi", "hi must be greater than lo"))
		return
	}

	h.logger.InfoContext(r.Context(), "fetching histogram",
		slog.String("tag", tag),
		slog.Int("bins", bins),
		slog.Bool("log_scale", logScale),
		slog.String("request_id", reqID),
	)

	hist, err := h.service.Histogram(r.Context(), tag, bins, logScale, lo, hi)
	if err != nil {
		h.handleServiceError(w, r, tag, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   hist,
		"count":  len(hist.Counts),
	})
}

// GetDescribe handles GET /api/tags/{tag}/describe
func (h *DashboardHandler) GetDescribe(w http.ResponseWriter, r *http.Request) {
	tag := tagFromContext(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	h.logger.InfoContext(r.Context(), "fetching summary statistics",
		slog.String("tag", tag),
		slog.String("request_id", reqID),
	)

	summary, err := h.service.Describe(r.Context(), tag)
	if err != nil {
		h.handleServiceError(w, r, tag, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   summary,
	})
}

// handleServiceError maps service sentinel errors to API errors.
func (h *DashboardHandler) handleServiceError(w http.ResponseWriter, r *http.Request, tag string, err error) {
	h.logger.ErrorContext(r.Context(), "service request failed",
		slog.String("tag", tag),
		slog.String("error", err.Error()),
	)

	switch {
	case errors.Is(err, services.ErrTagNotFound):
		h.errorHandler.HandleError(w, r, apierrors.TagNotFoundError(tag))
	case errors.Is(err, services.ErrNoData):
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusNotFound,
			"NO_DATA",
			"Tag has no valid data points",
		))
	default:
		h.errorHandler.HandleError(w, r, err)
	}
}
