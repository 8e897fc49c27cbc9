package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagboard/internal/services"
)

func newHealthHandler(svc DashboardServiceInterface) *HealthHandler {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewHealthHandler(svc, logger, "test-version")
}

func TestGetHealth(t *testing.T) {
	h := newHealthHandler(&mockService{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test-version", body["version"])

	ds := body["dataset"].(map[string]interface{})
	assert.Equal(t, float64(3), ds["rows"])
}

func TestGetLiveness(t *testing.T) {
	h := newHealthHandler(&mockService{})

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alive")
}

func TestGetReadiness(t *testing.T) {
	h := newHealthHandler(&mockService{})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ready")
}

type emptyDatasetService struct{ mockService }

func (emptyDatasetService) Info(ctx context.Context) services.DatasetInfo {
	return services.DatasetInfo{LoadedAt: time.Now()}
}

func TestGetReadiness_NoTags(t *testing.T) {
	h := newHealthHandler(&emptyDatasetService{})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVersionHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	VersionHandler("1.2.3")(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	assert.Contains(t, rec.Body.String(), "1.2.3")
}
