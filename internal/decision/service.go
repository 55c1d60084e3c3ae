package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bcgov/nr-forest-client-sub003/internal/decision/metrics"
	"github.com/bcgov/nr-forest-client-sub003/internal/submission/store"
	"github.com/bcgov/nr-forest-client-sub003/pkg/runcontext"
	"github.com/bcgov/nr-forest-client-sub003/pkg/sentinel"
)

// Service persists verdicts. Applying the same verdict twice is a no-op:
// the store's monotonic type check rejects the replay with ErrConflict.
type Service struct {
	submissions store.SubmissionStore
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches decision metrics.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService constructs the decision persister.
func NewService(submissions store.SubmissionStore, opts ...ServiceOption) *Service {
	s := &Service{
		submissions: submissions,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply records the verdict for a submission as one atomic store write:
// the status/type transition and the match-detail verdict payload land
// together or not at all, so a persistence failure leaves the submission
// submitted and the next poll cycle retries it.
func (s *Service) Apply(ctx context.Context, submissionID int64, verdict Verdict) error {
	start := time.Now()
	defer func() {
		s.metrics.ObserveApplyLatency(time.Since(start))
	}()

	actor := runcontext.Actor(ctx)
	now := runcontext.Now(ctx)

	rec := store.DecisionRecord{
		Status:         verdict.Status,
		Type:           verdict.Type,
		MatchingFields: verdict.MatchingFields,
		Message:        verdict.Message,
		Confirmed:      verdict.Confirmed,
	}
	err := s.submissions.ApplyDecision(ctx, submissionID, rec, actor, now)
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		s.metrics.IncrementReplay()
		s.logger.Info("submission already decided, skipping",
			"submission_id", submissionID, "type", string(verdict.Type))
		return nil
	case err != nil:
		return fmt.Errorf("apply decision for submission %d: %w", submissionID, err)
	}

	s.metrics.IncrementOutcome(string(verdict.Type))
	s.logger.Info("decision applied",
		"submission_id", submissionID,
		"type", string(verdict.Type),
		"status", string(verdict.Status),
		"confirmed", verdict.Confirmed)
	return nil
}
