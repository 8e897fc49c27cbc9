// Package dataset holds the in-memory tabular time-series model behind the
// dashboard: a sorted timestamp index plus named float64 columns ("tags").
// Non-numeric columns are dropped at load time and missing cells are NaN.
package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"
)

// Bounds is the cached (min, max) value range of a tag.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Dataset is an immutable tabular time-series: one sorted timestamp index and
// one float64 column per tag. All columns have the same length as Timestamps.
type Dataset struct {
	timestamps []time.Time
	columns    map[string][]float64
	tags       []string
	bounds     map[string]Bounds
}

// New builds a Dataset from raw columns. Rows are sorted by timestamp, tags
// are sorted by name and per-tag bounds are computed once.
func New(timestamps []time.Time, columns map[string][]float64) (*Dataset, error) {
	for tag, col := range columns {
		if len(col) != len(timestamps) {
			return nil, fmt.Errorf("column %q has %d values for %d timestamps", tag, len(col), len(timestamps))
		}
	}

	d := &Dataset{
		timestamps: append([]time.Time(nil), timestamps...),
		columns:    make(map[string][]float64, len(columns)),
		tags:       make([]string, 0, len(columns)),
	}
	for tag, col := range columns {
		d.columns[tag] = append([]float64(nil), col...)
		d.tags = append(d.tags, tag)
	}
	sort.Strings(d.tags)

	d.sortByTimestamp()
	d.bounds = computeBounds(d.columns)

	return d, nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.timestamps) }

// Tags returns the sorted tag names.
func (d *Dataset) Tags() []string {
	return append([]string(nil), d.tags...)
}

// Timestamps returns the sorted timestamp index.
func (d *Dataset) Timestamps() []time.Time {
	return append([]time.Time(nil), d.timestamps...)
}

// Column returns the values of a tag, aligned with Timestamps.
func (d *Dataset) Column(tag string) ([]float64, bool) {
	col, ok := d.columns[tag]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), col...), true
}

// HasTag reports whether the dataset contains the tag.
func (d *Dataset) HasTag(tag string) bool {
	_, ok := d.columns[tag]
	return ok
}

// Bounds returns the cached value range of a tag.
func (d *Dataset) Bounds(tag string) (Bounds, bool) {
	b, ok := d.bounds[tag]
	return b, ok
}

// Sample returns a uniform random row subsample of the given fraction,
// re-sorted by timestamp. A rate of 1.0 returns the dataset unchanged.
func (d *Dataset) Sample(rate float64, rng *rand.Rand) (*Dataset, error) {
	if rate <= 0 || rate > 1 {
		return nil, fmt.Errorf("sample rate must be in (0, 1], got %g", rate)
	}
	if rate == 1 {
		return d, nil
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	n := int(math.Round(rate * float64(d.Len())))
	if n < 1 {
		n = 1
	}

	perm := rng.Perm(d.Len())[:n]
	sort.Ints(perm)

	timestamps := make([]time.Time, n)
	columns := make(map[string][]float64, len(d.columns))
	for tag := range d.columns {
		columns[tag] = make([]float64, n)
	}
	for i, row := range perm {
		timestamps[i] = d.timestamps[row]
		for tag, col := range d.columns {
			columns[tag][i] = col[row]
		}
	}

	return New(timestamps, columns)
}

// sortByTimestamp orders all rows ascending by timestamp, keeping columns
// aligned with the index.
func (d *Dataset) sortByTimestamp() {
	n := len(d.timestamps)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return d.timestamps[order[i]].Before(d.timestamps[order[j]])
	})

	sorted := true
	for i, row := range order {
		if i != row {
			sorted = false
			break
		}
	}
	if sorted {
		return
	}

	timestamps := make([]time.Time, n)
	for i, row := range order {
		timestamps[i] = d.timestamps[row]
	}
	d.timestamps = timestamps

	for tag, col := range d.columns {
		next := make([]float64, n)
		for i, row := range order {
			next[i] = col[row]
		}
		d.columns[tag] = next
	}
}

// computeBounds caches the value range for each tag. An all-NaN column gets
// the placeholder (-1, 1); a flat column is widened by 0.5 on each side so a
// range control built on it is never degenerate.
func computeBounds(columns map[string][]float64) map[string]Bounds {
	const relTol = 1e-9

	bounds := make(map[string]Bounds, len(columns))
	for tag, col := range columns {
		lo, hi := math.NaN(), math.NaN()
		for _, v := range col {
			if math.IsNaN(v) {
				continue
			}
			if math.IsNaN(lo) || v < lo {
				lo = v
			}
			if math.IsNaN(hi) || v > hi {
				hi = v
			}
		}

		switch {
		case math.IsNaN(lo) && math.IsNaN(hi):
			bounds[tag] = Bounds{Min: -1, Max: 1}
		case closeEnough(lo, hi, relTol):
			bounds[tag] = Bounds{Min: lo - 0.5, Max: hi + 0.5}
		default:
			bounds[tag] = Bounds{Min: lo, Max: hi}
		}
	}
	return bounds
}

func closeEnough(a, b, relTol float64) bool {
	diff := math.Abs(a - b)
	return diff <= relTol*math.Max(math.Abs(a), math.Abs(b))
}
