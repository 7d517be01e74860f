package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsGauge is the view of a gauge handed to the websocket hub.
type MetricsGauge interface {
	Set(float64)
	Add(float64)
}

// MetricsWrapper gives the server and notice packages a narrow view of Metrics.
// A nil *MetricsWrapper is valid and records nothing.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) WSClients() MetricsGauge {
	if w == nil {
		return nopMetric{}
	}
	return &GaugeWrapper{w.m.WSClients}
}

// ErrorRate is the share of failed dataset loads, read back from gatherer.
func (w *MetricsWrapper) ErrorRate(gatherer prometheus.Gatherer) float64 {
	if w == nil || gatherer == nil {
		return 0
	}
	return w.m.GetErrorRate(gatherer)
}

// ObserveRender records one render that started at start.
func (w *MetricsWrapper) ObserveRender(start time.Time) {
	if w == nil {
		return
	}
	w.m.ChartRenders.Inc()
	w.m.RenderLatency.Observe(time.Since(start).Seconds())
}

func (w *MetricsWrapper) ViewUpdated(mode string, degenerate bool) {
	if w == nil {
		return
	}
	w.m.ViewUpdates.WithLabelValues(mode).Inc()
	if degenerate {
		w.m.DegenerateFits.Inc()
	}
}

// NoticeShown and NoticeDismissed satisfy notice.Tracker.
func (w *MetricsWrapper) NoticeShown() {
	if w == nil {
		return
	}
	w.m.NoticesShown.Inc()
}

func (w *MetricsWrapper) NoticeDismissed() {
	if w == nil {
		return
	}
	w.m.NoticesDismissed.Inc()
}

func (w *MetricsWrapper) FlagsPurged(n int) {
	if w == nil {
		return
	}
	w.m.FlagsPurged.Add(float64(n))
}

func (w *MetricsWrapper) DatasetLoaded(frameworks int) {
	if w == nil {
		return
	}
	w.m.DatasetLoads.Inc()
	w.m.DatasetSize.Set(float64(frameworks))
}

func (w *MetricsWrapper) DatasetFailed() {
	if w == nil {
		return
	}
	w.m.DatasetFailures.Inc()
	w.m.ErrorsTotal.Inc()
}

func (w *MetricsWrapper) Error() {
	if w == nil {
		return
	}
	w.m.ErrorsTotal.Inc()
}

type GaugeWrapper struct {
	g prometheus.Gauge
}

func (gw *GaugeWrapper) Set(v float64) {
	gw.g.Set(v)
}

func (gw *GaugeWrapper) Add(v float64) {
	gw.g.Add(v)
}

type nopMetric struct{}

func (nopMetric) Set(float64) {}
func (nopMetric) Add(float64) {}
