// Package matching implements the pluggable duplicate-evidence strategies
// run against every submission before a decision is made.
package matching

import (
	"context"

	"github.com/bcgov/nr-forest-client-sub003/internal/submission"
)

// Field names tagging which category of evidence produced a result. These
// are the keys of the persisted matching-fields map.
const (
	FieldIncorporationNumber = "incorporationNumber"
	FieldCorporationName     = "corporationName"
	FieldIndividual          = "individual"
	FieldIndividualName      = "individualName"
	FieldDoingBusinessAs     = "doingBusinessAs"
	FieldGoodStanding        = "goodStanding"
)

// Good-standing evidence values, and the synthetic value recorded when a
// matcher query fails and the submission is routed to review instead of
// silently auto-approved.
const (
	ValueNotFound           = "Value not found"
	ValueNotInGoodStanding  = "Client not in good standing"
	ValueMatcherUnavailable = "matcher unavailable"
)

// Result is the positive-evidence output of one matcher run. Value holds
// the matched legacy client numbers, comma-joined when there are several.
type Result struct {
	FieldName string
	Value     string
}

// Matcher checks one category of evidence that a submission duplicates an
// existing legacy client. A nil result means no evidence found; matchers
// never report negatives.
type Matcher interface {
	// FieldName identifies this matcher's evidence category.
	FieldName() string

	// Enabled reports whether this matcher applies to the submission.
	Enabled(detail *submission.Detail) bool

	// Match queries for duplicate evidence. Implementations are read-only.
	Match(ctx context.Context, detail *submission.Detail) (*Result, error)
}
