// Package decision turns aggregated matching evidence into an
// approve-or-review verdict and persists it idempotently.
package decision

import (
	"fmt"
	"strings"

	"github.com/bcgov/nr-forest-client-sub003/internal/matching"
	"github.com/bcgov/nr-forest-client-sub003/internal/submission"
)

// Verdict is the outcome of evaluating one submission's matching evidence.
type Verdict struct {
	Type           submission.TypeCode
	Status         submission.Status
	MatchingFields submission.MatchingFields
	Message        string
	// Confirmed is true only for auto-approvals, where there is nothing
	// for a human to confirm.
	Confirmed bool
}

// Engine evaluates matching evidence. It is stateless and safe for
// concurrent use.
type Engine struct{}

// NewEngine constructs the decision engine.
func NewEngine() *Engine { return &Engine{} }

// Evaluate maps the evidence list to a verdict: no evidence auto-approves,
// any evidence routes to review. When two results carry the same field name
// their values are joined in arrival order, so no evidence is ever dropped
// from the audit trail.
func (e *Engine) Evaluate(results []matching.Result) Verdict {
	if len(results) == 0 {
		return Verdict{
			Type:           submission.TypeAutoApproved,
			Status:         submission.StatusApproved,
			MatchingFields: submission.MatchingFields{},
			Confirmed:      true,
		}
	}

	fields := submission.MatchingFields{}
	var order []string
	for _, res := range results {
		if existing, ok := fields[res.FieldName]; ok {
			fields[res.FieldName] = existing + "," + res.Value
			continue
		}
		fields[res.FieldName] = res.Value
		order = append(order, res.FieldName)
	}

	return Verdict{
		Type:           submission.TypeReviewNewClient,
		Status:         submission.StatusReview,
		MatchingFields: fields,
		Message:        fmt.Sprintf("Possible duplicate detected on: %s", strings.Join(order, ", ")),
	}
}

// AttemptsExceeded is the verdict forced onto a submission that keeps
// failing automatic matching, so it stops cycling and a human looks at it.
func (e *Engine) AttemptsExceeded() Verdict {
	return Verdict{
		Type:           submission.TypeReviewNewClient,
		Status:         submission.StatusReview,
		MatchingFields: submission.MatchingFields{},
		Message:        "Exceeded automatic matching attempts",
	}
}
