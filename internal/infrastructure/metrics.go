package infrastructure

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for the dashboard server.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	DatasetRows    prometheus.Gauge
	DatasetTags    prometheus.Gauge
	DatasetReloads *prometheus.CounterVec

	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec
}

// NewMetrics creates a metrics set backed by its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tagboard",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tagboard",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		DatasetRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tagboard",
			Subsystem: "dataset",
			Name:      "rows",
			Help:      "Number of rows in the loaded dataset.",
		}),
		DatasetTags: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tagboard",
			Subsystem: "dataset",
			Name:      "tags",
			Help:      "Number of numeric tag columns in the loaded dataset.",
		}),
		DatasetReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tagboard",
			Subsystem: "dataset",
			Name:      "reloads_total",
			Help:      "Dataset reload attempts by result.",
		}, []string{"result"}),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tagboard",
			Subsystem: "websocket",
			Name:      "connections",
			Help:      "Currently connected websocket clients.",
		}),
		WSMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tagboard",
			Subsystem: "websocket",
			Name:      "messages_total",
			Help:      "Websocket messages by direction.",
		}, []string{"direction"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.DatasetRows,
		m.DatasetTags,
		m.DatasetReloads,
		m.WSConnections,
		m.WSMessages,
	)

	return m
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
