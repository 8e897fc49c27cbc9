package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestErrorHandler() *ErrorHandler {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewErrorHandler(logger, false)
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	return problem
}

func TestHandleError_APIError(t *testing.T) {
	h := newTestErrorHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/tags/TSLA/series", nil)
	rec := httptest.NewRecorder()

	h.HandleError(rec, req, TagNotFoundError("TSLA"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")

	problem := decodeProblem(t, rec)
	assert.Equal(t, TypeTagNotFound, problem["type"])
	assert.Equal(t, float64(http.StatusNotFound), problem["status"])
	assert.Equal(t, "TAG_NOT_FOUND", problem["error_code"])
	assert.Contains(t, problem["detail"], "TSLA")
	assert.Equal(t, "/api/tags/TSLA/series", problem["instance"])
}

func TestHandleError_ValidationError(t *testing.T) {
	h := newTestErrorHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/tags/X/histogram", nil)
	rec := httptest.NewRecorder()

	h.HandleError(rec, req, ErrValidation("bins", "must be between 1 and 1000"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	problem := decodeProblem(t, rec)
	assert.Equal(t, TypeValidation, problem["type"])

	details := problem["details"].(map[string]interface{})
	assert.Equal(t, "bins", details["field"])
}

func TestHandleError_ContextDeadline(t *testing.T) {
	h := newTestErrorHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/tags", nil)
	rec := httptest.NewRecorder()

	h.HandleError(rec, req, fmt.Errorf("query: %w", context.DeadlineExceeded))

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	problem := decodeProblem(t, rec)
	assert.Equal(t, TypeTimeout, problem["type"])
}

func TestHandleError_DatasetUnreadable(t *testing.T) {
	h := newTestErrorHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/tags", nil)
	rec := httptest.NewRecorder()

	h.HandleError(rec, req, fmt.Errorf("unable to read dataset file: /tmp/x.csv"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	problem := decodeProblem(t, rec)
	assert.Equal(t, TypeDatasetUnreadable, problem["type"])
}

func TestHandleError_UnknownError(t *testing.T) {
	h := newTestErrorHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/tags", nil)
	rec := httptest.NewRecorder()

	h.HandleError(rec, req, fmt.Errorf("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	problem := decodeProblem(t, rec)
	assert.Equal(t, TypeInternal, problem["type"])
	// Internal details never leak to the client.
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	h := newTestErrorHandler()

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/api/tags", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestProblemDetails_MarshalExtensions(t *testing.T) {
	problem := NewProblemDetails(400, TypeValidation, "Bad Request", "bad bins", "/api/x").
		WithExtension("error_code", "VALIDATION_FAILED")

	data, err := json.Marshal(problem)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "VALIDATION_FAILED", decoded["error_code"])
	assert.Equal(t, TypeValidation, decoded["type"])
}

func TestAPIError_Error(t *testing.T) {
	err := New(http.StatusBadRequest, "INVALID_REQUEST", "bad input")
	assert.Equal(t, "bad input", err.Error())
}
