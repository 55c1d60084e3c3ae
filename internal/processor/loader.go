// Package processor drives submissions through the staged pipeline: load,
// match, decide, persist, notify. Two polling loops feed it; per-item
// failures are isolated so one bad submission never stalls a batch.
package processor

import (
	"context"
	"fmt"

	"github.com/bcgov/nr-forest-client-sub003/internal/submission"
	"github.com/bcgov/nr-forest-client-sub003/internal/submission/store"
)

// Loader fetches and validates the pair of records the pipeline needs.
type Loader struct {
	submissions store.SubmissionStore
}

// NewLoader constructs a loader over the submission store.
func NewLoader(submissions store.SubmissionStore) *Loader {
	return &Loader{submissions: submissions}
}

// Load returns the submission and its detail, rejecting records the
// matchers cannot work with.
func (l *Loader) Load(ctx context.Context, id int64) (*submission.Submission, *submission.Detail, error) {
	sub, err := l.submissions.Get(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load submission %d: %w", id, err)
	}
	detail, err := l.submissions.GetDetail(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load submission %d detail: %w", id, err)
	}
	if err := validate(detail); err != nil {
		return nil, nil, fmt.Errorf("submission %d invalid: %w", id, err)
	}
	return sub, detail, nil
}

func validate(detail *submission.Detail) error {
	if detail.ClientType == "" {
		return fmt.Errorf("missing client type")
	}
	if detail.DisplayName() == "" {
		return fmt.Errorf("missing applicant name")
	}
	return nil
}
