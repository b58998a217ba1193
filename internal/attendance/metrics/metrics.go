package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the attendance state machine.
type Metrics struct {
	// Transition attempts by operation (mark_session, check_in, check_out,
	// correct) and result (accepted, already_marked, ...).
	Transitions *prometheus.CounterVec

	// Write races lost at the store and retried internally.
	ConflictRetries prometheus.Counter

	// End-to-end latency of one marking operation.
	MarkLatency prometheus.Histogram
}

// New creates a Metrics instance with all state machine metrics registered.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_attendance_transitions_total",
			Help: "Total state machine transition attempts by operation and result",
		}, []string{"operation", "result"}),

		ConflictRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presence_attendance_conflict_retries_total",
			Help: "Store write conflicts retried internally before surfacing",
		}),

		MarkLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "presence_attendance_mark_duration_seconds",
			Help:    "Duration of marking operations including store writes",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementTransition records one transition attempt.
func (m *Metrics) IncrementTransition(operation, result string) {
	if m != nil {
		m.Transitions.WithLabelValues(operation, result).Inc()
	}
}

// IncrementConflictRetry counts one internal retry after a lost write race.
func (m *Metrics) IncrementConflictRetry() {
	if m != nil {
		m.ConflictRetries.Inc()
	}
}

// ObserveMarkLatency records the duration of one marking operation.
func (m *Metrics) ObserveMarkLatency(d time.Duration) {
	if m != nil {
		m.MarkLatency.Observe(d.Seconds())
	}
}
