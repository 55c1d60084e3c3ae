package matching

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bcgov/nr-forest-client-sub003/internal/matching/metrics"
	"github.com/bcgov/nr-forest-client-sub003/internal/submission"
)

const defaultTimeout = 5 * time.Second

// Aggregator runs every enabled matcher for a submission concurrently and
// collects their positive evidence. A matcher failure never aborts the run:
// the failing matcher is recorded as unavailable so the decision engine
// routes the submission to review instead of approving on partial evidence.
type Aggregator struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithTimeout bounds one full aggregation run.
func WithTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets the aggregation logger.
func WithLogger(logger *slog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics attaches matching metrics.
func WithMetrics(m *metrics.Metrics) AggregatorOption {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

// NewAggregator constructs an aggregator over the given matcher registry.
func NewAggregator(registry *Registry, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		registry: registry,
		timeout:  defaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes all enabled matchers and returns their results in registry
// order. It never returns an error: failures degrade to synthetic
// unavailable results, which is the safe direction for a duplicate check.
func (a *Aggregator) Run(ctx context.Context, detail *submission.Detail) []Result {
	start := time.Now()
	defer func() {
		a.metrics.ObserveAggregateLatency(time.Since(start))
	}()

	enabled := a.registry.Enabled(detail)
	if len(enabled) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	// Indexed slots keep registry order stable regardless of completion order.
	slots := make([]*Result, len(enabled))
	g, ctx := errgroup.WithContext(ctx)
	for i, m := range enabled {
		i, m := i, m
		g.Go(func() error {
			matcherStart := time.Now()
			res, err := m.Match(ctx, detail)
			a.metrics.ObserveMatcherLatency(m.FieldName(), time.Since(matcherStart))
			if err != nil {
				a.metrics.IncrementFailure(m.FieldName())
				a.logger.Error("matcher failed, recording as unavailable",
					"matcher", m.FieldName(),
					"submission_id", detail.SubmissionID,
					"error", err)
				slots[i] = &Result{FieldName: m.FieldName(), Value: ValueMatcherUnavailable}
				return nil
			}
			if res != nil {
				a.metrics.IncrementHit(m.FieldName())
				slots[i] = res
			}
			return nil
		})
	}
	// Matcher errors are absorbed above; Wait only synchronizes.
	_ = g.Wait()

	var results []Result
	for _, res := range slots {
		if res != nil {
			results = append(results, *res)
		}
	}
	return results
}
