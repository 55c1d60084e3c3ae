// Package store persists submissions and their match details.
package store

import (
	"context"
	"time"

	"github.com/bcgov/nr-forest-client-sub003/internal/submission"
)

// DecisionRecord is the durable projection of a verdict: the submission's
// new status and type plus the verdict payload for the canonical match
// detail row.
type DecisionRecord struct {
	Status         submission.Status
	Type           submission.TypeCode
	MatchingFields submission.MatchingFields
	Message        string
	Confirmed      bool
}

// SubmissionStore reads submissions and records decision transitions.
// Implementations are pure I/O; transition rules live in the decision
// service.
type SubmissionStore interface {
	// Get returns one submission or sentinel.ErrNotFound.
	Get(ctx context.Context, id int64) (*submission.Submission, error)

	// GetDetail returns the business-identity projection for one
	// submission or sentinel.ErrNotFound.
	GetDetail(ctx context.Context, id int64) (*submission.Detail, error)

	// ListSubmitted returns ids of submissions eligible for matching,
	// capped at limit. Order is not significant.
	ListSubmitted(ctx context.Context, limit int) ([]int64, error)

	// ListDecidedUnprocessed returns ids of submissions whose decision has
	// been persisted but whose match detail is not yet marked processed.
	ListDecidedUnprocessed(ctx context.Context, limit int) ([]int64, error)

	// ApplyDecision atomically records a decision for a not-yet-decided
	// submission: status and type on the submission row plus the verdict
	// payload on the canonical match detail row, created if none exists.
	// Either everything lands or nothing does, so a failure leaves the
	// submission eligible for the next matching cycle. Returns
	// sentinel.ErrConflict when the submission was already decided,
	// keeping the type transition monotonic.
	ApplyDecision(ctx context.Context, id int64, rec DecisionRecord, actor string, now time.Time) error
}

// MatchDetailStore persists match-detail rows including the soft lock.
type MatchDetailStore interface {
	// FindBySubmission returns the canonical (lowest id) match detail for a
	// submission or sentinel.ErrNotFound.
	FindBySubmission(ctx context.Context, submissionID int64) (*submission.MatchDetail, error)

	// Save upserts the canonical match detail row. A zero ID inserts; a
	// non-zero ID updates that row.
	Save(ctx context.Context, detail *submission.MatchDetail) error

	// TryAcquireLock performs the soft-lock compare-and-set: it stamps
	// processing_started_at with now if the canonical row is unlocked or
	// its lock is older than ttl, creating the row when none exists.
	// Returns whether the lock was acquired and the attempt count after
	// acquisition. The same race window the timestamp scheme always had
	// applies: two pollers in the same instant can both pass.
	TryAcquireLock(ctx context.Context, submissionID int64, now time.Time, ttl time.Duration, actor string) (acquired bool, attempts int, err error)

	// ReleaseLock clears the soft lock so the next poll cycle may retry.
	ReleaseLock(ctx context.Context, submissionID int64) error

	// MarkProcessed sets the terminal processed flag and the completing
	// identity, and clears the soft lock.
	MarkProcessed(ctx context.Context, submissionID int64, actor string, now time.Time) error
}
