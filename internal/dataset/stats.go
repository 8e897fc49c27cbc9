package dataset

import (
	"math"

	"github.com/aclements/go-moremath/stats"
)

// Summary is the descriptive-statistics pane for one tag, shaped like a
// dataframe describe() result.
type Summary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	P25   float64 `json:"p25"`
	P50   float64 `json:"p50"`
	P75   float64 `json:"p75"`
	Max   float64 `json:"max"`
}

// Histogram is a fixed-width binning of one tag's values.
type Histogram struct {
	Edges  []float64 `json:"edges"`
	Counts []int     `json:"counts"`
}

// Describe computes descriptive statistics for a series, ignoring NaNs.
// An all-NaN series yields a zero-count summary with NaN moments.
func Describe(values []float64) Summary {
	xs := dropNaN(values)
	if len(xs) == 0 {
		return Summary{
			Mean: math.NaN(), Std: math.NaN(),
			Min: math.NaN(), P25: math.NaN(), P50: math.NaN(), P75: math.NaN(),
			Max: math.NaN(),
		}
	}

	sample := stats.Sample{Xs: xs}
	lo, hi := sample.Bounds()

	return Summary{
		Count: len(xs),
		Mean:  stats.Mean(xs),
		Std:   stats.StdDev(xs),
		Min:   lo,
		P25:   sample.Quantile(0.25),
		P50:   sample.Quantile(0.5),
		P75:   sample.Quantile(0.75),
		Max:   hi,
	}
}

// MakeHistogram bins values into bins fixed-width buckets over [lo, hi].
// NaNs and values outside the range are dropped. A value exactly equal to hi
// lands in the last bin.
func MakeHistogram(values []float64, bins int, lo, hi float64) Histogram {
	if bins < 1 {
		bins = 1
	}
	if hi <= lo {
		hi = lo + 1
	}

	width := (hi - lo) / float64(bins)
	edges := make([]float64, bins+1)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	edges[bins] = hi

	counts := make([]int, bins)
	for _, v := range values {
		if math.IsNaN(v) || v < lo || v > hi {
			continue
		}
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}

	return Histogram{Edges: edges, Counts: counts}
}

// MovingAverage computes a trailing mean with the given window. Entries
// before the window fills are NaN, and any NaN inside the window propagates,
// matching a dataframe's rolling(window).mean().
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window < 1 {
		window = 1
	}

	for i := range values {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		sum := 0.0
		ok := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				ok = false
				break
			}
			sum += values[j]
		}
		if !ok {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(window)
	}
	return out
}

// LogScale returns the natural log of each value. Non-positive values and
// NaNs map to NaN.
func LogScale(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) || v <= 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Log(v)
	}
	return out
}

// RobustScale applies an inverse-hyperbolic-sine transform scaled by the
// interquartile range: values are centered on the median, compressed through
// arcsinh relative to 3*IQR, then rescaled. A zero IQR is treated as 1 so
// flat series pass through the transform unchanged in shape.
func RobustScale(values []float64) []float64 {
	xs := dropNaN(values)
	out := make([]float64, len(values))
	if len(xs) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	sample := stats.Sample{Xs: xs}
	median := sample.Quantile(0.5)
	iqr := sample.Quantile(0.75) - sample.Quantile(0.25)
	if math.Abs(iqr) < 1e-12 {
		iqr = 1
	}
	scale := 3 * iqr

	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Asinh((v-median)/scale) * scale
	}
	return out
}

// FirstValidIndex returns the index of the first non-NaN value, or -1 when
// the series is entirely NaN.
func FirstValidIndex(values []float64) int {
	for i, v := range values {
		if !math.IsNaN(v) {
			return i
		}
	}
	return -1
}

func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
