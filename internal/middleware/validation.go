package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	apierrors "tagboard/internal/errors"
)

// QueryParamValidator validates query string parameters on API endpoints.
type QueryParamValidator struct {
	validate *validator.Validate
}

// NewQueryParamValidator creates a validator for query parameters.
func NewQueryParamValidator() *QueryParamValidator {
	return &QueryParamValidator{
		validate: validator.New(),
	}
}

// ValidateInt parses an optional integer query parameter and enforces an
// inclusive range. A missing or empty parameter yields the default value.
func (v *QueryParamValidator) ValidateInt(r *http.Request, name string, def, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierrors.ErrValidation(name, fmt.Sprintf("must be an integer, got %q", raw))
	}

	if err := v.validate.Var(value, fmt.Sprintf("gte=%d,lte=%d", min, max)); err != nil {
		return 0, apierrors.ErrValidation(name, fmt.Sprintf("must be between %d and %d", min, max))
	}

	return value, nil
}

// ValidateFloat parses an optional float query parameter within [min, max].
func (v *QueryParamValidator) ValidateFloat(r *http.Request, name string, def, min, max float64) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apierrors.ErrValidation(name, fmt.Sprintf("must be a number, got %q", raw))
	}

	if err := v.validate.Var(value, fmt.Sprintf("gte=%g,lte=%g", min, max)); err != nil {
		return 0, apierrors.ErrValidation(name, fmt.Sprintf("must be between %g and %g", min, max))
	}

	return value, nil
}

// ValidateEnum checks an optional string parameter against a fixed set of
// allowed values. Values are matched case-insensitively and returned
// lowercased.
func (v *QueryParamValidator) ValidateEnum(r *http.Request, name, def string, allowed ...string) (string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}

	value := strings.ToLower(raw)
	for _, a := range allowed {
		if value == a {
			return value, nil
		}
	}

	return "", apierrors.ErrValidation(name, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
}

// ValidateBool parses an optional boolean query parameter.
func (v *QueryParamValidator) ValidateBool(r *http.Request, name string, def bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}

	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apierrors.ErrValidation(name, fmt.Sprintf("must be true or false, got %q", raw))
	}

	return value, nil
}
