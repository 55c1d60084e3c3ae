// Package legacy defines the ports to the authoritative client registry
// being checked for duplicates, and to the persistence collaborator that
// writes approved clients into it.
package legacy

import (
	"context"

	"github.com/bcgov/nr-forest-client-sub003/internal/submission"
)

// Registry looks up existing clients by one category of evidence. Every
// method returns the matching legacy client numbers, empty when nothing
// matched. Implementations are read-only.
type Registry interface {
	// FindByIncorporationNumber matches the exact incorporation number.
	FindByIncorporationNumber(ctx context.Context, incorporationNumber string) ([]string, error)

	// FindByOrganizationName matches a legal/corporate name, insensitive
	// to case and interior whitespace.
	FindByOrganizationName(ctx context.Context, name string) ([]string, error)

	// FindByIndividual matches the (first name, last name, birthdate)
	// triple against individual clients.
	FindByIndividual(ctx context.Context, firstName, lastName, birthdate string) ([]string, error)

	// FindByIndividualNames matches individual name columns without a
	// birthdate, used for sole-proprietor display names.
	FindByIndividualNames(ctx context.Context, firstName, lastName string) ([]string, error)

	// FindByDoingBusinessAs matches the registered alias table.
	FindByDoingBusinessAs(ctx context.Context, name string) ([]string, error)
}

// Persister writes an approved submission into the legacy store. Its
// consistency guarantees are its own; callers only need the assigned client
// number on success.
type Persister interface {
	CreateClient(ctx context.Context, sub *submission.Submission, detail *submission.Detail) (clientNumber string, err error)
}
