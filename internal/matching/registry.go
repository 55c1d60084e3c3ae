package matching

import (
	"github.com/bcgov/nr-forest-client-sub003/internal/legacy"
	"github.com/bcgov/nr-forest-client-sub003/internal/submission"
)

// Registry holds the ordered set of matchers. Order is significant: results
// are reported in registration order, which fixes the field order of review
// messages.
type Registry struct {
	matchers []Matcher
}

// NewRegistry builds a registry from the given matchers, in order.
func NewRegistry(matchers ...Matcher) *Registry {
	return &Registry{matchers: matchers}
}

// DefaultRegistry wires the standard matcher set against a legacy registry.
func DefaultRegistry(registry legacy.Registry) *Registry {
	return NewRegistry(
		NewIncorporationNumberMatcher(registry),
		NewCorporationNameMatcher(registry),
		NewIndividualMatcher(registry),
		NewIndividualNameMatcher(registry),
		NewDoingBusinessAsMatcher(registry),
		NewGoodStandingMatcher(),
	)
}

// Enabled returns the matchers that apply to the submission, preserving
// registration order.
func (r *Registry) Enabled(detail *submission.Detail) []Matcher {
	var enabled []Matcher
	for _, m := range r.matchers {
		if m.Enabled(detail) {
			enabled = append(enabled, m)
		}
	}
	return enabled
}
