package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the decision module.
type Metrics struct {
	// Decision outcomes by submission type code
	Outcome *prometheus.CounterVec

	// Decisions skipped because the submission was already decided
	Replays prometheus.Counter

	// Persist latency for a full decision application
	ApplyLatency prometheus.Histogram
}

// New creates a new Metrics instance with all decision module metrics registered.
func New() *Metrics {
	return &Metrics{
		Outcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nrfc_decision_outcomes_total",
			Help: "Total decisions applied, by submission type code",
		}, []string{"type"}),

		Replays: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nrfc_decision_replays_total",
			Help: "Total decision applications skipped because the submission was already decided",
		}),

		ApplyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "nrfc_decision_apply_duration_seconds",
			Help:    "Duration of persisting a decision including the match detail upsert",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementOutcome records an applied decision.
func (m *Metrics) IncrementOutcome(typeCode string) {
	if m != nil {
		m.Outcome.WithLabelValues(typeCode).Inc()
	}
}

// IncrementReplay records an idempotent no-op application.
func (m *Metrics) IncrementReplay() {
	if m != nil {
		m.Replays.Inc()
	}
}

// ObserveApplyLatency records the duration of one application.
func (m *Metrics) ObserveApplyLatency(d time.Duration) {
	if m != nil {
		m.ApplyLatency.Observe(d.Seconds())
	}
}
