package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification gateway.
type Metrics struct {
	// Decision outcomes by mode and result (accepted, low_confidence,
	// ambiguous, matcher_timeout).
	Decisions *prometheus.CounterVec

	// Latency of calls to the external matcher.
	MatchLatency prometheus.Histogram
}

// New creates a Metrics instance with all gateway metrics registered.
func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_verify_decisions_total",
			Help: "Total verification decisions by mode and result",
		}, []string{"mode", "result"}),

		MatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "presence_verify_match_duration_seconds",
			Help:    "Duration of external matcher calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		}),
	}
}

// IncrementDecision records a verification decision.
func (m *Metrics) IncrementDecision(mode, result string) {
	if m != nil {
		m.Decisions.WithLabelValues(mode, result).Inc()
	}
}

// ObserveMatchLatency records the duration of one matcher call.
func (m *Metrics) ObserveMatchLatency(d time.Duration) {
	if m != nil {
		m.MatchLatency.Observe(d.Seconds())
	}
}
