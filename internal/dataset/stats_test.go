package dataset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	s := Describe([]float64{1, 2, 3, 4, 5})

	assert.Equal(t, 5, s.Count)
	assert.InDelta(t, 3.0, s.Mean, 1e-12)
	assert.InDelta(t, 1.0, s.Min, 1e-12)
	assert.InDelta(t, 5.0, s.Max, 1e-12)
	assert.InDelta(t, 3.0, s.P50, 1e-12)
	assert.InDelta(t, math.Sqrt(2.5), s.Std, 1e-12)
}

func TestDescribe_IgnoresNaN(t *testing.T) {
	s := Describe([]float64{math.NaN(), 10, math.NaN(), 20})

	assert.Equal(t, 2, s.Count)
	assert.InDelta(t, 15.0, s.Mean, 1e-12)
	assert.InDelta(t, 10.0, s.Min, 1e-12)
	assert.InDelta(t, 20.0, s.Max, 1e-12)
}

func TestDescribe_AllNaN(t *testing.T) {
	s := Describe([]float64{math.NaN(), math.NaN()})

	assert.Equal(t, 0, s.Count)
	assert.True(t, math.IsNaN(s.Mean))
	assert.True(t, math.IsNaN(s.Min))
	assert.True(t, math.IsNaN(s.Max))
}

func TestMakeHistogram(t *testing.T) {
	h := MakeHistogram([]float64{0, 1, 2, 3, 4}, 4, 0, 4)

	require.Len(t, h.Edges, 5)
	require.Len(t, h.Counts, 4)
	assert.InDelta(t, 0.0, h.Edges[0], 1e-12)
	assert.InDelta(t, 4.0, h.Edges[4], 1e-12)

	// 0 in bin 0; 1 in bin 1; 2 in bin 2; 3 and 4 in bin 3 since the last
	// bin includes its upper edge.
	assert.Equal(t, []int{1, 1, 1, 2}, h.Counts)
}

func TestMakeHistogram_DropsOutOfRangeAndNaN(t *testing.T) {
	h := MakeHistogram([]float64{-1, 0.5, math.NaN(), 10}, 2, 0, 1)

	total := 0
	for _, c := range h.Counts {
		total += c
	}
	assert.Equal(t, 1, total)
}

func TestMakeHistogram_DegenerateRange(t *testing.T) {
	h := MakeHistogram([]float64{5, 5}, 4, 5, 5)

	// A collapsed range is widened so binning still works.
	assert.Greater(t, h.Edges[len(h.Edges)-1], h.Edges[0])
	assert.Equal(t, 2, h.Counts[0])
}

func TestMovingAverage(t *testing.T) {
	out := MovingAverage([]float64{1, 2, 3, 4}, 2)

	require.Len(t, out, 4)
	assert.True(t, math.IsNaN(out[0]))
	assert.InDelta(t, 1.5, out[1], 1e-12)
	assert.InDelta(t, 2.5, out[2], 1e-12)
	assert.InDelta(t, 3.5, out[3], 1e-12)
}

func TestMovingAverage_NaNPropagates(t *testing.T) {
	out := MovingAverage([]float64{1, math.NaN(), 3, 4}, 2)

	assert.True(t, math.IsNaN(out[1]))
	assert.True(t, math.IsNaN(out[2]))
	assert.InDelta(t, 3.5, out[3], 1e-12)
}

func TestLogScale(t *testing.T) {
	out := LogScale([]float64{math.E, 1, 0, -5, math.NaN()})

	assert.InDelta(t, 1.0, out[0], 1e-12)
	assert.InDelta(t, 0.0, out[1], 1e-12)
	assert.True(t, math.IsNaN(out[2]))
	assert.True(t, math.IsNaN(out[3]))
	assert.True(t, math.IsNaN(out[4]))
}

func TestRobustScale(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	out := RobustScale(values)

	require.Len(t, out, 5)
	// The median maps to zero and the transform preserves order.
	assert.InDelta(t, 0.0, out[2], 1e-9)
	for i := 1; i < len(out); i++ {
		assert.Greater(t, out[i], out[i-1])
	}
}

func TestRobustScale_FlatSeries(t *testing.T) {
	out := RobustScale([]float64{7, 7, 7})

	for _, v := range out {
		assert.InDelta(t, 0.0, v, 1e-12)
	}
}

func TestRobustScale_AllNaN(t *testing.T) {
	out := RobustScale([]float64{math.NaN(), math.NaN()})

	for _, v := range out {
		assert.True(t, math.IsNaN(v))
	}
}

func TestFirstValidIndex(t *testing.T) {
	assert.Equal(t, 0, FirstValidIndex([]float64{1, 2}))
	assert.Equal(t, 2, FirstValidIndex([]float64{math.NaN(), math.NaN(), 3}))
	assert.Equal(t, -1, FirstValidIndex([]float64{math.NaN()}))
	assert.Equal(t, -1, FirstValidIndex(nil))
}
