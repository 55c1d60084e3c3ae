package processor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bcgov/nr-forest-client-sub003/internal/processor/metrics"
	"github.com/bcgov/nr-forest-client-sub003/pkg/runcontext"
)

// Loop names used in logs and metric labels.
const (
	LoopMatching   = "matching"
	LoopCompletion = "completion"
)

// Poller runs one fixed-delay polling loop: list a batch of submission ids,
// process each independently, sleep, repeat. The delay starts after the
// batch finishes, so a slow batch never stacks ticks in the same process.
type Poller struct {
	name     string
	interval time.Duration
	offset   time.Duration
	limit    int
	actor    string
	list     func(ctx context.Context, limit int) ([]int64, error)
	handle   func(ctx context.Context, id int64) error
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewPoller constructs a polling loop. offset delays the first tick, which
// keeps the completion loop running behind the matching loop.
func NewPoller(
	name string,
	interval, offset time.Duration,
	limit int,
	actor string,
	list func(ctx context.Context, limit int) ([]int64, error),
	handle func(ctx context.Context, id int64) error,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		name:     name,
		interval: interval,
		offset:   offset,
		limit:    limit,
		actor:    actor,
		list:     list,
		handle:   handle,
		logger:   logger.With("loop", name),
		metrics:  m,
	}
}

// Run polls until ctx is cancelled and returns ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	if p.offset > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.offset):
		}
	}

	for {
		p.tick(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.interval):
		}
	}
}

// tick runs one batch. Every item gets the same batch identity and tick
// timestamp through the context, and fails independently.
func (p *Poller) tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		p.metrics.ObserveTick(p.name, time.Since(start))
	}()

	ctx = runcontext.WithBatchID(ctx, uuid.NewString())
	ctx = runcontext.WithActor(ctx, p.actor)
	ctx = runcontext.WithTime(ctx, start)

	ids, err := p.list(ctx, p.limit)
	if err != nil {
		p.logger.Error("listing batch failed", "error", err)
		return
	}
	p.metrics.SetBatchSize(p.name, len(ids))
	if len(ids) == 0 {
		return
	}
	p.logger.Info("tick", "batch_id", runcontext.BatchID(ctx), "size", len(ids))

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		p.handleOne(ctx, id)
	}
}

func (p *Poller) handleOne(ctx context.Context, id int64) {
	defer func() {
		if r := recover(); r != nil {
			p.metrics.IncrementPanic(p.name)
			p.logger.Error("panic while processing submission",
				"submission_id", id, "panic", r)
		}
	}()

	if err := p.handle(ctx, id); err != nil {
		p.metrics.IncrementItemFailure(p.name)
		p.logger.Error("processing submission failed",
			"submission_id", id, "error", err)
	}
}
