package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"tagboard/internal/config"
	"tagboard/internal/dataset"
	"tagboard/internal/infrastructure"
)

// Sentinel errors mapped to problem responses by the HTTP handlers.
var (
	ErrTagNotFound = errors.New("tag not found in dataset")
	ErrNoData      = errors.New("no valid data points for tag")
)

// Float marshals NaN and Inf as JSON null, the way a dataframe serializes
// missing values. Moving-average heads and log of non-positive values produce
// NaN that must survive the trip to the frontend.
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// TagInfo is one selectable tag with its display alias and value range.
type TagInfo struct {
	Tag    string         `json:"tag"`
	Alias  string         `json:"alias"`
	Bounds dataset.Bounds `json:"bounds"`
}

// SeriesResult is the plot payload for one tag: the raw series from its first
// valid point plus two trailing moving averages.
type SeriesResult struct {
	Tag        string      `json:"tag"`
	Alias      string      `json:"alias"`
	Label      string      `json:"label"`
	LogScale   bool        `json:"log_scale"`
	Timestamps []time.Time `json:"timestamps"`
	Values     []Float     `json:"values"`
	MA15       []Float     `json:"ma15"`
	MA30       []Float     `json:"ma30"`
}

// HistogramResult is the distribution payload for one tag.
type HistogramResult struct {
	Tag      string    `json:"tag"`
	Alias    string    `json:"alias"`
	LogScale bool      `json:"log_scale"`
	Bins     int       `json:"bins"`
	Edges    []float64 `json:"edges"`
	Counts   []int     `json:"counts"`
}

// DescribeResult is the stats pane payload for one tag.
type DescribeResult struct {
	Tag   string `json:"tag"`
	Alias string `json:"alias"`
	Count int    `json:"count"`
	Mean  Float  `json:"mean"`
	Std   Float  `json:"std"`
	Min   Float  `json:"min"`
	P25   Float  `json:"p25"`
	P50   Float  `json:"p50"`
	P75   Float  `json:"p75"`
	Max   Float  `json:"max"`
}

// ReloadResult reports the shape of a freshly loaded dataset.
type ReloadResult struct {
	Rows int `json:"rows"`
	Tags int `json:"tags"`
}

// DatasetInfo describes the currently loaded dataset for health reporting.
type DatasetInfo struct {
	Path     string    `json:"path"`
	Format   string    `json:"format"`
	Rows     int       `json:"rows"`
	Tags     int       `json:"tags"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Moving-average windows shown on the plot, in samples.
const (
	shortWindow = 15
	longWindow  = 30
)

// DashboardService serves tag series, histograms and descriptive statistics
// from an in-memory dataset. Reload swaps the dataset atomically so readers
// never observe a partial load.
type DashboardService struct {
	logger  *slog.Logger
	metrics *infrastructure.Metrics
	cfg     config.DatasetConfig

	mu       sync.RWMutex
	ds       *dataset.Dataset
	aliases  *dataset.Aliases
	loadedAt time.Time
}

// NewDashboardService loads the dataset file and alias map and returns a
// ready service.
func NewDashboardService(cfg config.DatasetConfig, logger *slog.Logger, metrics *infrastructure.Metrics) (*DashboardService, error) {
	s := &DashboardService{
		logger:  logger,
		metrics: metrics,
		cfg:     cfg,
	}

	ds, aliases, err := s.load()
	if err != nil {
		return nil, err
	}
	s.install(ds, aliases)

	logger.Info("dataset loaded",
		"path", cfg.Path,
		"format", cfg.Format,
		"rows", ds.Len(),
		"tags", len(ds.Tags()),
	)

	return s, nil
}

// load reads the dataset file, applies down-sampling and loads aliases.
func (s *DashboardService) load() (*dataset.Dataset, *dataset.Aliases, error) {
	ds, err := dataset.Load(s.cfg.Path, dataset.LoadOptions{
		Format:          s.cfg.Format,
		TimestampColumn: s.cfg.TimestampColumn,
		TimestampFormat: s.cfg.TimestampFormat,
		Sheet:           s.cfg.Sheet,
		Delimiter:       s.cfg.Delimiter,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load dataset: %w", err)
	}

	if s.cfg.SampleRate < 1 {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		ds, err = ds.Sample(s.cfg.SampleRate, rng)
		if err != nil {
			return nil, nil, fmt.Errorf("sample dataset: %w", err)
		}
	}

	aliases, err := dataset.LoadAliases(s.cfg.AliasesFile, ds.Tags())
	if err != nil {
		return nil, nil, fmt.Errorf("load aliases: %w", err)
	}

	return ds, aliases, nil
}

// install swaps in a new dataset and updates the gauges.
func (s *DashboardService) install(ds *dataset.Dataset, aliases *dataset.Aliases) {
	s.mu.Lock()
	s.ds = ds
	s.aliases = aliases
	s.loadedAt = time.Now()
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.DatasetRows.Set(float64(ds.Len()))
		s.metrics.DatasetTags.Set(float64(len(ds.Tags())))
	}
}

// snapshot returns the current dataset and aliases under the read lock.
func (s *DashboardService) snapshot() (*dataset.Dataset, *dataset.Aliases) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ds, s.aliases
}

// Tags returns the sorted tag list with aliases and cached bounds.
func (s *DashboardService) Tags(ctx context.Context) ([]TagInfo, error) {
	ds, aliases := s.snapshot()

	infos := make([]TagInfo, 0, len(ds.Tags()))
	for _, tag := range ds.Tags() {
		alias, _ := aliases.Alias(tag)
		bounds, _ := ds.Bounds(tag)
		infos = append(infos, TagInfo{Tag: tag, Alias: alias, Bounds: bounds})
	}

	return infos, nil
}

// Series returns the plot payload for a tag. The series is trimmed to start
// at its first valid point and carries 15- and 30-sample moving averages.
// With logScale the values are natural logs and non-positive inputs drop out
// as nulls.
func (s *DashboardService) Series(ctx context.Context, tag string, logScale bool) (*SeriesResult, error) {
	ds, aliases := s.snapshot()

	col, ok := ds.Column(tag)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTagNotFound, tag)
	}

	values := col
	label := "closing price"
	if logScale {
		values = dataset.LogScale(values)
		label = "log of closing price"
	}

	first := dataset.FirstValidIndex(values)
	if first < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, tag)
	}

	timestamps := ds.Timestamps()[first:]
	values = values[first:]

	alias, _ := aliases.Alias(tag)

	return &SeriesResult{
		Tag:        tag,
		Alias:      alias,
		Label:      label,
		LogScale:   logScale,
		Timestamps: timestamps,
		Values:     floats(values),
		MA15:       floats(dataset.MovingAverage(values, shortWindow)),
		MA30:       floats(dataset.MovingAverage(values, longWindow)),
	}, nil
}

// Histogram bins a tag's values. rangeLo and rangeHi override the bin range
// when both are set; NaN means unset, and the range falls back to the cached
// bounds of the raw series, or the observed range of the transformed values
// when log scale is on. bins <= 0 selects the configured default.
func (s *DashboardService) Histogram(ctx context.Context, tag string, bins int, logScale bool, rangeLo, rangeHi float64) (*HistogramResult, error) {
	ds, aliases := s.snapshot()

	col, ok := ds.Column(tag)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTagNotFound, tag)
	}

	if bins <= 0 {
		bins = s.cfg.HistogramBins
	}

	values := col
	if logScale {
		values = dataset.LogScale(values)
	}

	var lo, hi float64
	switch {
	case !math.IsNaN(rangeLo) && !math.IsNaN(rangeHi):
		lo, hi = rangeLo, rangeHi
	case logScale:
		var ok bool
		lo, hi, ok = observedRange(values)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoData, tag)
		}
	default:
		bounds, _ := ds.Bounds(tag)
		lo, hi = bounds.Min, bounds.Max
	}

	h := dataset.MakeHistogram(values, bins, lo, hi)
	alias, _ := aliases.Alias(tag)

	return &HistogramResult{
		Tag:      tag,
		Alias:    alias,
		LogScale: logScale,
		Bins:     bins,
		Edges:    h.Edges,
		Counts:   h.Counts,
	}, nil
}

// Describe returns the descriptive-statistics pane for a tag.
func (s *DashboardService) Describe(ctx context.Context, tag string) (*DescribeResult, error) {
	ds, aliases := s.snapshot()

	col, ok := ds.Column(tag)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTagNotFound, tag)
	}

	summary := dataset.Describe(col)
	alias, _ := aliases.Alias(tag)

	return &DescribeResult{
		Tag:   tag,
		Alias: alias,
		Count: summary.Count,
		Mean:  Float(summary.Mean),
		Std:   Float(summary.Std),
		Min:   Float(summary.Min),
		P25:   Float(summary.P25),
		P50:   Float(summary.P50),
		P75:   Float(summary.P75),
		Max:   Float(summary.Max),
	}, nil
}

// Reload re-reads the dataset file and swaps it in. On failure the previous
// dataset stays in place and the error is returned.
func (s *DashboardService) Reload(ctx context.Context) (*ReloadResult, error) {
	ds, aliases, err := s.load()
	if err != nil {
		if s.metrics != nil {
			s.metrics.DatasetReloads.WithLabelValues("failure").Inc()
		}
		s.logger.ErrorContext(ctx, "dataset reload failed, keeping previous dataset",
			"path", s.cfg.Path,
			"error", err,
		)
		return nil, err
	}

	s.install(ds, aliases)
	if s.metrics != nil {
		s.metrics.DatasetReloads.WithLabelValues("success").Inc()
	}

	s.logger.InfoContext(ctx, "dataset reloaded",
		"path", s.cfg.Path,
		"rows", ds.Len(),
		"tags", len(ds.Tags()),
	)

	return &ReloadResult{Rows: ds.Len(), Tags: len(ds.Tags())}, nil
}

// Info reports the shape of the currently loaded dataset.
func (s *DashboardService) Info(ctx context.Context) DatasetInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return DatasetInfo{
		Path:     s.cfg.Path,
		Format:   s.cfg.Format,
		Rows:     s.ds.Len(),
		Tags:     len(s.ds.Tags()),
		LoadedAt: s.loadedAt,
	}
}

// Path returns the dataset file path, used by the file watcher.
func (s *DashboardService) Path() string {
	return s.cfg.Path
}

func floats(values []float64) []Float {
	out := make([]Float, len(values))
	for i, v := range values {
		out[i] = Float(v)
	}
	return out
}

// observedRange is the min and max over the valid values of a series.
func observedRange(values []float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		ok = true
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, ok
}
