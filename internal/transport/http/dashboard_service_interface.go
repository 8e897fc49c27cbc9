package http

import (
	"context"

	"tagboard/internal/services"
)

// DashboardServiceInterface defines the service operations the dashboard
// handlers need. Implemented by services.DashboardService.
type DashboardServiceInterface interface {
	Tags(ctx context.Context) ([]services.TagInfo, error)
	Series(ctx context.Context, tag string, logScale bool) (*services.SeriesResult, error)
	Histogram(ctx context.Context, tag string, bins int, logScale bool, rangeLo, rangeHi float64) (*services.HistogramResult, error)
	Describe(ctx context.Context, tag string) (*services.DescribeResult, error)
	Info(ctx context.Context) services.DatasetInfo
}
