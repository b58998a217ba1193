package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for report computation and the absence sweep.
type Metrics struct {
	ReportsComputed prometheus.Counter

	// Cache lookups by result (hit, miss, stale).
	Cache *prometheus.CounterVec

	ComputeLatency prometheus.Histogram

	OccasionsClosed     prometheus.Counter
	AbsencesSynthesized prometheus.Counter
}

// New creates a Metrics instance with all aggregation metrics registered.
func New() *Metrics {
	return &Metrics{
		ReportsComputed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presence_aggregate_reports_computed_total",
			Help: "Reports recomputed from record history",
		}),

		Cache: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_aggregate_cache_lookups_total",
			Help: "Report cache lookups by result",
		}, []string{"result"}),

		ComputeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "presence_aggregate_compute_duration_seconds",
			Help:    "Duration of one report computation",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),

		OccasionsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presence_sweep_occasions_closed_total",
			Help: "Occasions closed by the absence sweep",
		}),

		AbsencesSynthesized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presence_sweep_absences_synthesized_total",
			Help: "Absent records synthesized by the sweep",
		}),
	}
}

// IncrementReportsComputed counts one full report computation.
func (m *Metrics) IncrementReportsComputed() {
	if m != nil {
		m.ReportsComputed.Inc()
	}
}

// IncrementCache records one cache lookup result.
func (m *Metrics) IncrementCache(result string) {
	if m != nil {
		m.Cache.WithLabelValues(result).Inc()
	}
}

// ObserveComputeLatency records the duration of one report computation.
func (m *Metrics) ObserveComputeLatency(d time.Duration) {
	if m != nil {
		m.ComputeLatency.Observe(d.Seconds())
	}
}

// IncrementOccasionsClosed counts one occasion closed by the sweep.
func (m *Metrics) IncrementOccasionsClosed() {
	if m != nil {
		m.OccasionsClosed.Inc()
	}
}

// IncrementAbsencesSynthesized counts one synthesized Absent record.
func (m *Metrics) IncrementAbsencesSynthesized() {
	if m != nil {
		m.AbsencesSynthesized.Inc()
	}
}
