// Package metrics provides Prometheus metrics collection for the benchmark site.
// It covers chart rendering, view updates, the deprecation notice, dataset
// refreshes and live websocket clients, all exposed on the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the site.
type Metrics struct {
	// Chart metrics
	ChartRenders   prometheus.Counter     // SVG renders served
	ViewUpdates    *prometheus.CounterVec // view model rebuilds, by mode
	RenderLatency  prometheus.Histogram   // SVG render latency in seconds
	DegenerateFits prometheus.Counter     // fits with zero x-variance

	// Notice metrics
	NoticesShown     prometheus.Counter
	NoticesDismissed prometheus.Counter
	FlagsPurged      prometheus.Counter

	// Dataset metrics
	DatasetLoads    prometheus.Counter
	DatasetFailures prometheus.Counter
	DatasetSize     prometheus.Gauge

	// Live update metrics
	WSClients prometheus.Gauge

	ErrorsTotal prometheus.Counter
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		ChartRenders: factory.NewCounter(prometheus.CounterOpts{
			Name: "chart_renders_total",
			Help: "Total number of chart SVG renders",
		}),
		ViewUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chart_view_updates_total",
			Help: "Total number of chart view updates by mode",
		}, []string{"mode"}),
		RenderLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "chart_render_duration_seconds",
			Help:    "Chart SVG render latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		DegenerateFits: factory.NewCounter(prometheus.CounterOpts{
			Name: "trend_degenerate_fits_total",
			Help: "Total number of trend fits with a non-finite slope or intercept",
		}),
		NoticesShown: factory.NewCounter(prometheus.CounterOpts{
			Name: "notice_shown_total",
			Help: "Total number of times the deprecation notice was shown",
		}),
		NoticesDismissed: factory.NewCounter(prometheus.CounterOpts{
			Name: "notice_dismissed_total",
			Help: "Total number of deprecation notice dismissals",
		}),
		FlagsPurged: factory.NewCounter(prometheus.CounterOpts{
			Name: "notice_flags_purged_total",
			Help: "Total number of expired dismissal flags removed",
		}),
		DatasetLoads: factory.NewCounter(prometheus.CounterOpts{
			Name: "dataset_loads_total",
			Help: "Total number of successful dataset loads",
		}),
		DatasetFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "dataset_failures_total",
			Help: "Total number of failed dataset loads",
		}),
		DatasetSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dataset_frameworks",
			Help: "Number of frameworks in the current dataset",
		}),
		WSClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ws_clients",
			Help: "Number of connected websocket clients",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}

// GetErrorRate returns failed dataset loads over all load attempts, or 0 if
// nothing has been loaded yet.
func (m *Metrics) GetErrorRate(gatherer prometheus.Gatherer) float64 {
	var loads, failures float64

	metricFamilies, err := gatherer.Gather()
	if err != nil {
		return 0
	}

	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case "dataset_loads_total":
			for _, m := range mf.Metric {
				loads = m.GetCounter().GetValue()
			}
		case "dataset_failures_total":
			for _, m := range mf.Metric {
				failures = m.GetCounter().GetValue()
			}
		}
	}

	if loads+failures == 0 {
		return 0
	}
	return failures / (loads + failures)
}
