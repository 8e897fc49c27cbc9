package dataset

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(day int) time.Time {
	return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
}

func TestNew_SortsRowsAndTags(t *testing.T) {
	d, err := New(
		[]time.Time{ts(3), ts(1), ts(2)},
		map[string][]float64{
			"BBB": {30, 10, 20},
			"AAA": {3, 1, 2},
		},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA", "BBB"}, d.Tags())
	assert.Equal(t, []time.Time{ts(1), ts(2), ts(3)}, d.Timestamps())

	col, ok := d.Column("BBB")
	require.True(t, ok)
	assert.Equal(t, []float64{10, 20, 30}, col)
}

func TestNew_ColumnLengthMismatch(t *testing.T) {
	_, err := New(
		[]time.Time{ts(1), ts(2)},
		map[string][]float64{"AAA": {1}},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AAA")
}

func TestBounds(t *testing.T) {
	nan := math.NaN()

	tests := []struct {
		name    string
		values  []float64
		wantMin float64
		wantMax float64
	}{
		{
			name:    "normal range",
			values:  []float64{3, 1, 2},
			wantMin: 1,
			wantMax: 3,
		},
		{
			name:    "nans ignored",
			values:  []float64{nan, 5, nan, 7},
			wantMin: 5,
			wantMax: 7,
		},
		{
			name:    "all nan falls back to unit range",
			values:  []float64{nan, nan, nan},
			wantMin: -1,
			wantMax: 1,
		},
		{
			name:    "degenerate range widened",
			values:  []float64{4, 4, 4},
			wantMin: 3.5,
			wantMax: 4.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stamps := make([]time.Time, len(tt.values))
			for i := range stamps {
				stamps[i] = ts(i + 1)
			}
			d, err := New(stamps, map[string][]float64{"X": tt.values})
			require.NoError(t, err)

			b, ok := d.Bounds("X")
			require.True(t, ok)
			assert.InDelta(t, tt.wantMin, b.Min, 1e-12)
			assert.InDelta(t, tt.wantMax, b.Max, 1e-12)
		})
	}
}

func TestSample(t *testing.T) {
	n := 100
	stamps := make([]time.Time, n)
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		stamps[i] = ts(1).Add(time.Duration(i) * time.Hour)
		values[i] = float64(i)
	}
	d, err := New(stamps, map[string][]float64{"X": values})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	sampled, err := d.Sample(0.25, rng)
	require.NoError(t, err)

	assert.Equal(t, 25, sampled.Len())

	// Sampled rows stay sorted and keep timestamp/value pairing.
	col, ok := sampled.Column("X")
	require.True(t, ok)
	prev := time.Time{}
	for i, stamp := range sampled.Timestamps() {
		assert.True(t, stamp.After(prev))
		assert.Equal(t, float64(stamp.Sub(ts(1))/time.Hour), col[i])
		prev = stamp
	}
}

func TestSample_FullRateReturnsSameData(t *testing.T) {
	d, err := New(
		[]time.Time{ts(1), ts(2)},
		map[string][]float64{"X": {1, 2}},
	)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	sampled, err := d.Sample(1.0, rng)
	require.NoError(t, err)
	assert.Equal(t, 2, sampled.Len())
}

func TestSample_InvalidRate(t *testing.T) {
	d, err := New([]time.Time{ts(1)}, map[string][]float64{"X": {1}})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	_, err = d.Sample(0, rng)
	assert.Error(t, err)
	_, err = d.Sample(1.5, rng)
	assert.Error(t, err)
}
