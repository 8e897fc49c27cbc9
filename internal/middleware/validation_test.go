package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reqWithQuery(t *testing.T, query string) *http.Request {
	t.Helper()
	return httptest.NewRequest(http.MethodGet, "/x?"+query, nil)
}

func TestValidateInt(t *testing.T) {
	v := NewQueryParamValidator()

	tests := []struct {
		name    string
		query   string
		def     int
		min     int
		max     int
		want    int
		wantErr bool
	}{
		{name: "missing uses default", query: "", def: 100, min: 1, max: 1000, want: 100},
		{name: "valid value", query: "bins=50", def: 100, min: 1, max: 1000, want: 50},
		{name: "lower bound", query: "bins=1", def: 100, min: 1, max: 1000, want: 1},
		{name: "upper bound", query: "bins=1000", def: 100, min: 1, max: 1000, want: 1000},
		{name: "below range", query: "bins=0", def: 100, min: 1, max: 1000, wantErr: true},
		{name: "above range", query: "bins=1001", def: 100, min: 1, max: 1000, wantErr: true},
		{name: "not a number", query: "bins=many", def: 100, min: 1, max: 1000, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.ValidateInt(reqWithQuery(t, tt.query), "bins", tt.def, tt.min, tt.max)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateFloat(t *testing.T) {
	v := NewQueryParamValidator()

	got, err := v.ValidateFloat(reqWithQuery(t, "rate=0.25"), "rate", 1.0, 0.0, 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, got, 1e-12)

	got, err = v.ValidateFloat(reqWithQuery(t, ""), "rate", 1.0, 0.0, 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, 1e-12)

	_, err = v.ValidateFloat(reqWithQuery(t, "rate=2.5"), "rate", 1.0, 0.0, 1.0)
	assert.Error(t, err)
}

func TestValidateEnum(t *testing.T) {
	v := NewQueryParamValidator()

	got, err := v.ValidateEnum(reqWithQuery(t, "format=CSV"), "format", "csv", "csv", "tsv", "json")
	require.NoError(t, err)
	assert.Equal(t, "csv", got)

	got, err = v.ValidateEnum(reqWithQuery(t, ""), "format", "csv", "csv", "tsv")
	require.NoError(t, err)
	assert.Equal(t, "csv", got)

	_, err = v.ValidateEnum(reqWithQuery(t, "format=parquet"), "format", "csv", "csv", "tsv")
	assert.Error(t, err)
}

func TestValidateBool(t *testing.T) {
	v := NewQueryParamValidator()

	got, err := v.ValidateBool(reqWithQuery(t, "log=true"), "log", false)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = v.ValidateBool(reqWithQuery(t, ""), "log", false)
	require.NoError(t, err)
	assert.False(t, got)

	_, err = v.ValidateBool(reqWithQuery(t, "log=banana"), "log", false)
	assert.Error(t, err)
}
