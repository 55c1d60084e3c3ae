package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bcgov/nr-forest-client-sub003/internal/decision"
	"github.com/bcgov/nr-forest-client-sub003/internal/matching"
	"github.com/bcgov/nr-forest-client-sub003/internal/notify"
	"github.com/bcgov/nr-forest-client-sub003/internal/processor/metrics"
	"github.com/bcgov/nr-forest-client-sub003/internal/submission/store"
	"github.com/bcgov/nr-forest-client-sub003/pkg/runcontext"
)

const (
	defaultLockTTL     = 5 * time.Minute
	defaultMaxAttempts = 5
)

// Pipeline runs one submission through matching and decision. The soft lock
// on the match detail is the only concurrency guard: ticks overlapping in
// the same process or across instances skip anything already in flight.
type Pipeline struct {
	loader      *Loader
	details     store.MatchDetailStore
	aggregator  *matching.Aggregator
	engine      *decision.Engine
	decisions   *decision.Service
	notifier    notify.Notifier
	lockTTL     time.Duration
	maxAttempts int
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLockTTL sets how long a soft lock shields a submission before a later
// tick may steal it.
func WithLockTTL(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if d > 0 {
			p.lockTTL = d
		}
	}
}

// WithMaxAttempts caps automatic matching retries before a submission is
// forced to review.
func WithMaxAttempts(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithPipelineLogger sets the pipeline logger.
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPipelineMetrics attaches processor metrics.
func WithPipelineMetrics(m *metrics.Metrics) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// NewPipeline wires the matching pipeline stages together.
func NewPipeline(
	loader *Loader,
	details store.MatchDetailStore,
	aggregator *matching.Aggregator,
	engine *decision.Engine,
	decisions *decision.Service,
	notifier notify.Notifier,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		loader:      loader,
		details:     details,
		aggregator:  aggregator,
		engine:      engine,
		decisions:   decisions,
		notifier:    notifier,
		lockTTL:     defaultLockTTL,
		maxAttempts: defaultMaxAttempts,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process drives one submission from lock acquisition to notification. It
// returns nil both on success and on a lock skip; errors mean the item
// should be retried on a later tick (the lock is released so it can be).
func (p *Pipeline) Process(ctx context.Context, id int64) error {
	actor := runcontext.Actor(ctx)
	now := runcontext.Now(ctx)

	acquired, attempts, err := p.details.TryAcquireLock(ctx, id, now, p.lockTTL, actor)
	if err != nil {
		return fmt.Errorf("acquire lock for submission %d: %w", id, err)
	}
	if !acquired {
		p.metrics.IncrementLockSkip()
		p.logger.Debug("submission already in flight, skipping", "submission_id", id)
		return nil
	}

	sub, detail, err := p.loader.Load(ctx, id)
	if err != nil {
		p.releaseLock(ctx, id)
		return err
	}

	var verdict decision.Verdict
	if attempts > p.maxAttempts {
		p.metrics.IncrementForcedReview()
		p.logger.Warn("matching attempts exhausted, forcing review",
			"submission_id", id, "attempts", attempts)
		verdict = p.engine.AttemptsExceeded()
	} else {
		results := p.aggregator.Run(ctx, detail)
		verdict = p.engine.Evaluate(results)
	}

	if err := p.decisions.Apply(ctx, id, verdict); err != nil {
		p.releaseLock(ctx, id)
		return err
	}

	// The decision is durable; from here everything is best-effort.
	sub.Status = verdict.Status
	sub.Type = verdict.Type
	if err := p.notifier.Send(ctx, notify.DecisionRequest(sub, detail)); err != nil {
		p.logger.Warn("decision notification failed",
			"submission_id", id, "error", err)
	}
	return nil
}

func (p *Pipeline) releaseLock(ctx context.Context, id int64) {
	if err := p.details.ReleaseLock(ctx, id); err != nil {
		p.logger.Warn("releasing soft lock failed, will expire by ttl",
			"submission_id", id, "error", err)
	}
}
