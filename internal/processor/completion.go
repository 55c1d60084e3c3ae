package processor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bcgov/nr-forest-client-sub003/internal/legacy"
	"github.com/bcgov/nr-forest-client-sub003/internal/notify"
	"github.com/bcgov/nr-forest-client-sub003/internal/submission"
	"github.com/bcgov/nr-forest-client-sub003/internal/submission/store"
	"github.com/bcgov/nr-forest-client-sub003/pkg/runcontext"
)

// Completer finishes decided submissions: approved ones are written to the
// legacy registry and told their client number, everything decided gets the
// terminal processed flag so it is never re-matched.
type Completer struct {
	submissions store.SubmissionStore
	details     store.MatchDetailStore
	persister   legacy.Persister
	notifier    notify.Notifier
	logger      *slog.Logger
}

// NewCompleter wires the completion stage.
func NewCompleter(
	submissions store.SubmissionStore,
	details store.MatchDetailStore,
	persister legacy.Persister,
	notifier notify.Notifier,
	logger *slog.Logger,
) *Completer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Completer{
		submissions: submissions,
		details:     details,
		persister:   persister,
		notifier:    notifier,
		logger:      logger,
	}
}

// Complete processes one decided submission. The legacy write is owned by
// the registry side: if it fails the submission is still marked processed
// and the failure is surfaced through logs, never by re-running matching.
func (c *Completer) Complete(ctx context.Context, id int64) error {
	actor := runcontext.Actor(ctx)
	now := runcontext.Now(ctx)

	sub, err := c.submissions.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("complete submission %d: %w", id, err)
	}
	detail, err := c.submissions.GetDetail(ctx, id)
	if err != nil {
		return fmt.Errorf("complete submission %d detail: %w", id, err)
	}

	var clientNumber string
	if sub.Type == submission.TypeAutoApproved {
		clientNumber, err = c.persister.CreateClient(ctx, sub, detail)
		if err != nil {
			c.logger.Error("legacy client creation failed",
				"submission_id", id, "error", err)
		}
	}

	if err := c.details.MarkProcessed(ctx, id, actor, now); err != nil {
		return fmt.Errorf("mark submission %d processed: %w", id, err)
	}

	if clientNumber != "" {
		if err := c.notifier.Send(ctx, notify.ApprovalRequest(sub, detail, clientNumber)); err != nil {
			c.logger.Warn("approval notification failed",
				"submission_id", id, "client_number", clientNumber, "error", err)
		}
	} else {
		// Review items got their decision notice during matching; without a
		// client number there is nothing left to announce.
		c.logger.Info("final notification skipped",
			"submission_id", id, "type", string(sub.Type))
	}

	c.logger.Info("submission completed",
		"submission_id", id,
		"type", string(sub.Type),
		"client_number", clientNumber)
	return nil
}
