package ingest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by the engine. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Records        *prometheus.CounterVec // labels: outcome={inserted,skipped,errored}, reason
	CommitDuration prometheus.Histogram
	BatchSize      prometheus.Histogram
	BatchFailures  prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		Records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qsolog",
			Subsystem: "ingest",
			Name:      "records_total",
			Help:      "Input records by outcome and skip reason.",
		}, []string{"outcome", "reason"}),
		CommitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "qsolog",
			Subsystem: "ingest",
			Name:      "commit_duration_seconds",
			Help:      "Duration of one batch commit to the sink.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "qsolog",
			Subsystem: "ingest",
			Name:      "batch_size",
			Help:      "Accepted records per committed batch.",
			Buckets:   []float64{1, 10, 50, 100, 250, 500, 1000},
		}),
		BatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qsolog",
			Subsystem: "ingest",
			Name:      "batch_failures_total",
			Help:      "Batches whose commit failed and were counted as errored.",
		}),
	}
}

// NewMetrics creates the engine metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(m.Records, m.CommitDuration, m.BatchSize, m.BatchFailures)
	return m
}

// NewMetricsForTesting creates unregistered metrics so tests can build as many
// engines as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func (m *Metrics) observeOutcome(o Outcome) {
	if m == nil {
		return
	}
	reason := string(o.Reason)
	if reason == "" {
		reason = "none"
	}
	m.Records.WithLabelValues(o.Kind.String(), reason).Inc()
}

func (m *Metrics) observeCommit(size int, elapsed time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.BatchSize.Observe(float64(size))
	m.CommitDuration.Observe(elapsed.Seconds())
	if failed {
		m.BatchFailures.Inc()
	}
}
