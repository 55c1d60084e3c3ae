// Package store implements legacy registry lookups against the legacy
// relational schema.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bcgov/nr-forest-client-sub003/internal/submission"
	"github.com/bcgov/nr-forest-client-sub003/pkg/names"
)

// Postgres queries the legacy client registry. Read-only; the schema is
// externally owned.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed registry.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) FindByIncorporationNumber(ctx context.Context, incorporationNumber string) ([]string, error) {
	query := `
		SELECT client_number
		FROM forest_client
		WHERE corp_regn_nmbr = $1
		ORDER BY client_number
	`
	return s.clientNumbers(ctx, "find by incorporation number", query, incorporationNumber)
}

func (s *Postgres) FindByOrganizationName(ctx context.Context, name string) ([]string, error) {
	// client_name is stored upper-cased but with inconsistent interior
	// whitespace, hence the regexp collapse on both sides.
	query := `
		SELECT client_number
		FROM forest_client
		WHERE UPPER(REGEXP_REPLACE(client_name, '\s+', ' ', 'g')) = $1
		ORDER BY client_number
	`
	return s.clientNumbers(ctx, "find by organization name", query, names.Normalize(name))
}

func (s *Postgres) FindByIndividual(ctx context.Context, firstName, lastName, birthdate string) ([]string, error) {
	// Individual clients keep the surname in client_name.
	query := `
		SELECT client_number
		FROM forest_client
		WHERE client_type_code = 'I'
		  AND UPPER(legal_first_name) = $1
		  AND UPPER(client_name) = $2
		  AND birthdate = $3
		ORDER BY client_number
	`
	return s.clientNumbers(ctx, "find by individual", query,
		names.Normalize(firstName), names.Normalize(lastName), birthdate)
}

func (s *Postgres) FindByIndividualNames(ctx context.Context, firstName, lastName string) ([]string, error) {
	query := `
		SELECT client_number
		FROM forest_client
		WHERE client_type_code = 'I'
		  AND UPPER(legal_first_name) = $1
		  AND UPPER(client_name) = $2
		ORDER BY client_number
	`
	return s.clientNumbers(ctx, "find by individual names", query,
		names.Normalize(firstName), names.Normalize(lastName))
}

func (s *Postgres) FindByDoingBusinessAs(ctx context.Context, name string) ([]string, error) {
	query := `
		SELECT client_number
		FROM client_doing_business_as
		WHERE UPPER(REGEXP_REPLACE(doing_business_as_name, '\s+', ' ', 'g')) = $1
		ORDER BY client_number
	`
	return s.clientNumbers(ctx, "find by doing business as", query, names.Normalize(name))
}

// CreateClient inserts an approved submission as a new legacy client and
// returns the assigned client number. Number assignment belongs to the
// legacy schema's sequence so concurrent processors never collide.
func (s *Postgres) CreateClient(ctx context.Context, sub *submission.Submission, detail *submission.Detail) (string, error) {
	query := `
		INSERT INTO forest_client
			(client_number, client_name, legal_first_name, corp_regn_nmbr,
			 client_type_code, birthdate, add_userid)
		VALUES
			(TO_CHAR(NEXTVAL('forest_client_seq'), 'FM00000000'),
			 $1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING client_number
	`
	name, firstName := names.Normalize(detail.OrganizationName), ""
	if detail.ClientType == submission.ClientTypeIndividual {
		name = names.Normalize(detail.LastName)
		firstName = names.Normalize(detail.FirstName)
	}

	var clientNumber string
	err := s.db.QueryRowContext(ctx, query,
		name, firstName, detail.IncorporationNumber,
		string(detail.ClientType), detail.Birthdate, sub.UpdatedBy,
	).Scan(&clientNumber)
	if err != nil {
		return "", fmt.Errorf("create legacy client for submission %d: %w", sub.ID, err)
	}
	return clientNumber, nil
}

func (s *Postgres) clientNumbers(ctx context.Context, op, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		numbers = append(numbers, number)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", op, err)
	}
	return numbers, nil
}
