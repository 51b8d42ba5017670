// Package metrics exposes Prometheus counters and histograms for run and
// scoring activity, grounded on the teacher's prometheus/client_golang use
// across its services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the process-wide collectors. Construct once and register
// against a prometheus.Registerer at startup.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec
	ScoresTotal   *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
	ScoreDuration *prometheus.HistogramVec
	TaskQueueSize prometheus.Gauge
}

// New constructs the collector set without registering it.
func New() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autoscorer",
			Name:      "runs_total",
			Help:      "Total container runs by outcome.",
		}, []string{"outcome"}),
		ScoresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autoscorer",
			Name:      "scores_total",
			Help:      "Total scoring invocations by scorer and outcome.",
		}, []string{"scorer", "outcome"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "autoscorer",
			Name:      "run_duration_seconds",
			Help:      "Container run duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"outcome"}),
		ScoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "autoscorer",
			Name:      "score_duration_seconds",
			Help:      "Scoring duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scorer"}),
		TaskQueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "autoscorer",
			Name:      "task_queue_size",
			Help:      "Number of async tasks awaiting a worker.",
		}),
	}
}

// MustRegister registers every collector against reg, panicking on
// duplicate registration as prometheus.MustRegister does.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.RunsTotal, m.ScoresTotal, m.RunDuration, m.ScoreDuration, m.TaskQueueSize)
}
