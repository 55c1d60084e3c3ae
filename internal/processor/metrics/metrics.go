package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the polling loops and the per-item
// pipeline around them.
type Metrics struct {
	// Poll tick duration by loop name
	TickLatency *prometheus.HistogramVec

	// Items picked up in the last tick, by loop name
	BatchSize *prometheus.GaugeVec

	// Items whose processing failed, by loop name
	ItemFailures *prometheus.CounterVec

	// Items skipped because another run holds the soft lock
	LockSkips prometheus.Counter

	// Items forced to review after exhausting matching attempts
	ForcedReviews prometheus.Counter

	// Recovered panics, by loop name
	Panics *prometheus.CounterVec
}

// New creates a new Metrics instance with all processor metrics registered.
func New() *Metrics {
	return &Metrics{
		TickLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nrfc_processor_tick_duration_seconds",
			Help:    "Duration of one full poll tick by loop",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"loop"}),

		BatchSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nrfc_processor_batch_size",
			Help: "Number of submissions picked up in the most recent tick by loop",
		}, []string{"loop"}),

		ItemFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nrfc_processor_item_failures_total",
			Help: "Total submissions whose processing failed, by loop",
		}, []string{"loop"}),

		LockSkips: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nrfc_processor_lock_skips_total",
			Help: "Total submissions skipped because their soft lock was held",
		}),

		ForcedReviews: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nrfc_processor_forced_reviews_total",
			Help: "Total submissions routed to review after exhausting matching attempts",
		}),

		Panics: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nrfc_processor_panics_total",
			Help: "Total panics recovered while processing a submission, by loop",
		}, []string{"loop"}),
	}
}

// ObserveTick records one poll tick.
func (m *Metrics) ObserveTick(loop string, d time.Duration) {
	if m != nil {
		m.TickLatency.WithLabelValues(loop).Observe(d.Seconds())
	}
}

// SetBatchSize records the size of the current batch.
func (m *Metrics) SetBatchSize(loop string, n int) {
	if m != nil {
		m.BatchSize.WithLabelValues(loop).Set(float64(n))
	}
}

// IncrementItemFailure records a failed item.
func (m *Metrics) IncrementItemFailure(loop string) {
	if m != nil {
		m.ItemFailures.WithLabelValues(loop).Inc()
	}
}

// IncrementLockSkip records a submission skipped as already in flight.
func (m *Metrics) IncrementLockSkip() {
	if m != nil {
		m.LockSkips.Inc()
	}
}

// IncrementForcedReview records an attempts-cap review.
func (m *Metrics) IncrementForcedReview() {
	if m != nil {
		m.ForcedReviews.Inc()
	}
}

// IncrementPanic records a recovered panic.
func (m *Metrics) IncrementPanic(loop string) {
	if m != nil {
		m.Panics.WithLabelValues(loop).Inc()
	}
}
