package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the matching module.
type Metrics struct {
	// Matcher run latencies by field name
	MatcherLatency *prometheus.HistogramVec

	// Matchers that found duplicate evidence, by field name
	MatcherHits *prometheus.CounterVec

	// Matcher runs that failed and fell open to review, by field name
	MatcherFailures *prometheus.CounterVec

	// Overall aggregation latency per submission
	AggregateLatency prometheus.Histogram
}

// New creates a new Metrics instance with all matching module metrics registered.
func New() *Metrics {
	return &Metrics{
		MatcherLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nrfc_matching_matcher_duration_seconds",
			Help:    "Duration of individual matcher runs by field name",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"matcher"}),

		MatcherHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nrfc_matching_matcher_hits_total",
			Help: "Total matcher runs that produced duplicate evidence, by field name",
		}, []string{"matcher"}),

		MatcherFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nrfc_matching_matcher_failures_total",
			Help: "Total matcher runs that failed and were recorded as unavailable, by field name",
		}, []string{"matcher"}),

		AggregateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "nrfc_matching_aggregate_duration_seconds",
			Help:    "Duration of full matching aggregation across all enabled matchers",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// ObserveMatcherLatency records the duration of one matcher run.
func (m *Metrics) ObserveMatcherLatency(matcher string, d time.Duration) {
	if m != nil {
		m.MatcherLatency.WithLabelValues(matcher).Observe(d.Seconds())
	}
}

// IncrementHit records a matcher that found duplicate evidence.
func (m *Metrics) IncrementHit(matcher string) {
	if m != nil {
		m.MatcherHits.WithLabelValues(matcher).Inc()
	}
}

// IncrementFailure records a matcher run that failed.
func (m *Metrics) IncrementFailure(matcher string) {
	if m != nil {
		m.MatcherFailures.WithLabelValues(matcher).Inc()
	}
}

// ObserveAggregateLatency records the total aggregation duration.
func (m *Metrics) ObserveAggregateLatency(d time.Duration) {
	if m != nil {
		m.AggregateLatency.Observe(d.Seconds())
	}
}
