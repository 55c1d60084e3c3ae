package matching

import (
	"context"
	"fmt"
	"strings"

	"github.com/bcgov/nr-forest-client-sub003/internal/legacy"
	"github.com/bcgov/nr-forest-client-sub003/internal/submission"
	"github.com/bcgov/nr-forest-client-sub003/pkg/names"
)

// result folds a registry answer into a Result, or nil when no client
// matched. Client numbers are comma-joined in registry order.
func result(field string, numbers []string) *Result {
	if len(numbers) == 0 {
		return nil
	}
	return &Result{FieldName: field, Value: strings.Join(numbers, ",")}
}

// IncorporationNumberMatcher matches the exact incorporation number for any
// submission that declared one.
type IncorporationNumberMatcher struct {
	registry legacy.Registry
}

func NewIncorporationNumberMatcher(registry legacy.Registry) *IncorporationNumberMatcher {
	return &IncorporationNumberMatcher{registry: registry}
}

func (m *IncorporationNumberMatcher) FieldName() string { return FieldIncorporationNumber }

func (m *IncorporationNumberMatcher) Enabled(detail *submission.Detail) bool {
	return detail.IncorporationNumber != ""
}

func (m *IncorporationNumberMatcher) Match(ctx context.Context, detail *submission.Detail) (*Result, error) {
	numbers, err := m.registry.FindByIncorporationNumber(ctx, detail.IncorporationNumber)
	if err != nil {
		return nil, fmt.Errorf("incorporation number lookup: %w", err)
	}
	return result(m.FieldName(), numbers), nil
}

// CorporationNameMatcher matches the registered legal name of organizational
// applicants (corporations, associations, societies).
type CorporationNameMatcher struct {
	registry legacy.Registry
}

func NewCorporationNameMatcher(registry legacy.Registry) *CorporationNameMatcher {
	return &CorporationNameMatcher{registry: registry}
}

func (m *CorporationNameMatcher) FieldName() string { return FieldCorporationName }

func (m *CorporationNameMatcher) Enabled(detail *submission.Detail) bool {
	return detail.ClientType.Organizational() && detail.OrganizationName != ""
}

func (m *CorporationNameMatcher) Match(ctx context.Context, detail *submission.Detail) (*Result, error) {
	numbers, err := m.registry.FindByOrganizationName(ctx, detail.OrganizationName)
	if err != nil {
		return nil, fmt.Errorf("corporation name lookup: %w", err)
	}
	return result(m.FieldName(), numbers), nil
}

// IndividualMatcher matches individual applicants on the full
// (first name, last name, birthdate) triple.
type IndividualMatcher struct {
	registry legacy.Registry
}

func NewIndividualMatcher(registry legacy.Registry) *IndividualMatcher {
	return &IndividualMatcher{registry: registry}
}

func (m *IndividualMatcher) FieldName() string { return FieldIndividual }

func (m *IndividualMatcher) Enabled(detail *submission.Detail) bool {
	return detail.ClientType == submission.ClientTypeIndividual
}

func (m *IndividualMatcher) Match(ctx context.Context, detail *submission.Detail) (*Result, error) {
	numbers, err := m.registry.FindByIndividual(ctx, detail.FirstName, detail.LastName, detail.Birthdate)
	if err != nil {
		return nil, fmt.Errorf("individual lookup: %w", err)
	}
	return result(m.FieldName(), numbers), nil
}

// IndividualNameMatcher matches sole proprietorships by splitting the
// proprietor's display name and checking the individual name columns, with
// no birthdate to narrow on.
type IndividualNameMatcher struct {
	registry legacy.Registry
}

func NewIndividualNameMatcher(registry legacy.Registry) *IndividualNameMatcher {
	return &IndividualNameMatcher{registry: registry}
}

func (m *IndividualNameMatcher) FieldName() string { return FieldIndividualName }

func (m *IndividualNameMatcher) Enabled(detail *submission.Detail) bool {
	return detail.ClientType.SoleProprietorship()
}

func (m *IndividualNameMatcher) Match(ctx context.Context, detail *submission.Detail) (*Result, error) {
	first, last := names.SplitProprietor(detail.DisplayName())
	numbers, err := m.registry.FindByIndividualNames(ctx, first, last)
	if err != nil {
		return nil, fmt.Errorf("individual name lookup: %w", err)
	}
	return result(m.FieldName(), numbers), nil
}

// DoingBusinessAsMatcher matches registered sole proprietorships against the
// alias table, since their trade name lives there rather than on the client
// record.
type DoingBusinessAsMatcher struct {
	registry legacy.Registry
}

func NewDoingBusinessAsMatcher(registry legacy.Registry) *DoingBusinessAsMatcher {
	return &DoingBusinessAsMatcher{registry: registry}
}

func (m *DoingBusinessAsMatcher) FieldName() string { return FieldDoingBusinessAs }

func (m *DoingBusinessAsMatcher) Enabled(detail *submission.Detail) bool {
	return detail.ClientType == submission.ClientTypeRegisteredSoleProprietorship &&
		detail.OrganizationName != ""
}

func (m *DoingBusinessAsMatcher) Match(ctx context.Context, detail *submission.Detail) (*Result, error) {
	numbers, err := m.registry.FindByDoingBusinessAs(ctx, detail.OrganizationName)
	if err != nil {
		return nil, fmt.Errorf("doing business as lookup: %w", err)
	}
	return result(m.FieldName(), numbers), nil
}

// GoodStandingMatcher inspects the declared good-standing flag instead of
// querying the registry. A blank flag is itself evidence: the applicant never
// answered, so the submission needs review.
type GoodStandingMatcher struct{}

func NewGoodStandingMatcher() *GoodStandingMatcher { return &GoodStandingMatcher{} }

func (m *GoodStandingMatcher) FieldName() string { return FieldGoodStanding }

func (m *GoodStandingMatcher) Enabled(*submission.Detail) bool { return true }

func (m *GoodStandingMatcher) Match(_ context.Context, detail *submission.Detail) (*Result, error) {
	switch detail.GoodStanding {
	case "":
		return &Result{FieldName: m.FieldName(), Value: ValueNotFound}, nil
	case submission.GoodStandingNo:
		return &Result{FieldName: m.FieldName(), Value: ValueNotInGoodStanding}, nil
	}
	return nil, nil
}
