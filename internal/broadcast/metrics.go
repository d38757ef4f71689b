package broadcast

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts dispatch outcomes per action.
type Metrics struct {
	results  *prometheus.CounterVec
	inflight prometheus.Gauge
	latency  *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "broadcast",
			Name:      "results_total",
			Help:      "Dispatch results by action and status.",
		}, []string{"action", "status", "kind"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "broadcast",
			Name:      "inflight_tasks",
			Help:      "Per-account tasks currently running.",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "broadcast",
			Name:      "task_seconds",
			Help:      "Time from task start to result.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"action"}),
	}
	if reg != nil {
		reg.MustRegister(m.results, m.inflight, m.latency)
	}
	return m
}

func (m *Metrics) observe(action string, r Result, seconds float64) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(action, string(r.Status), string(r.Kind)).Inc()
	m.latency.WithLabelValues(action).Observe(seconds)
}

func (m *Metrics) taskStarted() {
	if m != nil {
		m.inflight.Inc()
	}
}

func (m *Metrics) taskDone() {
	if m != nil {
		m.inflight.Dec()
	}
}
