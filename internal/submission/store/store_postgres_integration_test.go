//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/bcgov/nr-forest-client-sub003/internal/submission"
	"github.com/bcgov/nr-forest-client-sub003/pkg/sentinel"
	"github.com/bcgov/nr-forest-client-sub003/pkg/testutil/containers"
)

const schema = `
CREATE TABLE IF NOT EXISTS submission (
	submission_id          BIGSERIAL PRIMARY KEY,
	submission_status_code VARCHAR(5) NOT NULL,
	submission_type_code   VARCHAR(5),
	created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_by             VARCHAR(60)
);
CREATE TABLE IF NOT EXISTS submission_detail (
	submission_id        BIGINT PRIMARY KEY REFERENCES submission (submission_id),
	organization_name    VARCHAR(100),
	first_name           VARCHAR(100),
	last_name            VARCHAR(100),
	incorporation_number VARCHAR(50),
	client_type_code     VARCHAR(5) NOT NULL,
	good_standing_ind    VARCHAR(1),
	birthdate            VARCHAR(10),
	email_address        VARCHAR(100)
);
CREATE TABLE IF NOT EXISTS submission_matching_detail (
	matching_detail_id    BIGSERIAL PRIMARY KEY,
	submission_id         BIGINT NOT NULL REFERENCES submission (submission_id),
	matching_fields       JSONB NOT NULL DEFAULT '{}',
	confirmed             BOOLEAN NOT NULL DEFAULT FALSE,
	processed             BOOLEAN NOT NULL DEFAULT FALSE,
	matching_message      VARCHAR(255),
	processing_started_at TIMESTAMPTZ,
	attempts              INT NOT NULL DEFAULT 0,
	created_by            VARCHAR(60),
	updated_by            VARCHAR(60)
);
`

type PostgresIntegrationSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Postgres
	ctx   context.Context
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.pg.Exec(s.T(), schema)
	s.store = NewPostgres(s.pg.DB)
	s.ctx = context.Background()
}

func (s *PostgresIntegrationSuite) SetupTest() {
	s.pg.Exec(s.T(),
		`TRUNCATE submission_matching_detail, submission_detail, submission RESTART IDENTITY CASCADE`)
}

func (s *PostgresIntegrationSuite) seed(status submission.Status, clientType submission.ClientType) int64 {
	var id int64
	err := s.pg.DB.QueryRow(
		`INSERT INTO submission (submission_status_code) VALUES ($1) RETURNING submission_id`,
		string(status),
	).Scan(&id)
	s.Require().NoError(err)
	_, err = s.pg.DB.Exec(
		`INSERT INTO submission_detail (submission_id, organization_name, client_type_code, good_standing_ind)
		 VALUES ($1, 'EVERGREEN TIMBER LTD', $2, 'Y')`,
		id, string(clientType),
	)
	s.Require().NoError(err)
	return id
}

func (s *PostgresIntegrationSuite) TestRoundTrip() {
	id := s.seed(submission.StatusSubmitted, submission.ClientTypeCorporation)

	sub, err := s.store.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(submission.StatusSubmitted, sub.Status)
	s.False(sub.Type.Decided())

	detail, err := s.store.GetDetail(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("EVERGREEN TIMBER LTD", detail.OrganizationName)

	ids, err := s.store.ListSubmitted(s.ctx, 10)
	s.Require().NoError(err)
	s.Equal([]int64{id}, ids)
}

func (s *PostgresIntegrationSuite) TestLockLifecycle() {
	id := s.seed(submission.StatusSubmitted, submission.ClientTypeIndividual)
	now := time.Now().UTC()
	ttl := time.Minute

	acquired, attempts, err := s.store.TryAcquireLock(s.ctx, id, now, ttl, "worker-a")
	s.Require().NoError(err)
	s.True(acquired)
	s.Equal(1, attempts)

	// Fresh lock blocks a second acquirer.
	acquired, _, err = s.store.TryAcquireLock(s.ctx, id, now.Add(time.Second), ttl, "worker-b")
	s.Require().NoError(err)
	s.False(acquired)

	// An expired lock is stolen and the attempt counted.
	acquired, attempts, err = s.store.TryAcquireLock(s.ctx, id, now.Add(2*ttl), ttl, "worker-b")
	s.Require().NoError(err)
	s.True(acquired)
	s.Equal(2, attempts)

	s.Require().NoError(s.store.ReleaseLock(s.ctx, id))
	detail, err := s.store.FindBySubmission(s.ctx, id)
	s.Require().NoError(err)
	s.Nil(detail.ProcessingStartedAt)

	// Processed rows are never lockable again.
	s.Require().NoError(s.store.MarkProcessed(s.ctx, id, "worker-b", now))
	acquired, _, err = s.store.TryAcquireLock(s.ctx, id, now.Add(4*ttl), ttl, "worker-a")
	s.Require().NoError(err)
	s.False(acquired)
}

func (s *PostgresIntegrationSuite) TestDecisionFlow() {
	id := s.seed(submission.StatusSubmitted, submission.ClientTypeCorporation)
	now := time.Now().UTC()

	err := s.store.ApplyDecision(s.ctx, id, DecisionRecord{
		Status:         submission.StatusReview,
		Type:           submission.TypeReviewNewClient,
		MatchingFields: submission.MatchingFields{"corporationName": "00000001"},
		Message:        "Possible duplicate detected on: corporationName",
	}, "processor", now)
	s.Require().NoError(err)

	// Second decision conflicts, type is monotonic.
	err = s.store.ApplyDecision(s.ctx, id, DecisionRecord{
		Status: submission.StatusApproved, Type: submission.TypeAutoApproved, Confirmed: true,
	}, "processor", now)
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	ids, err := s.store.ListDecidedUnprocessed(s.ctx, 10)
	s.Require().NoError(err)
	s.Equal([]int64{id}, ids)

	s.Require().NoError(s.store.MarkProcessed(s.ctx, id, "processor", now))
	ids, err = s.store.ListDecidedUnprocessed(s.ctx, 10)
	s.Require().NoError(err)
	s.Empty(ids)

	got, err := s.store.FindBySubmission(s.ctx, id)
	s.Require().NoError(err)
	s.True(got.Processed)
	s.Equal("00000001", got.MatchingFields["corporationName"])
}

func (s *PostgresIntegrationSuite) TestCanonicalRowWinsAcrossDuplicates() {
	id := s.seed(submission.StatusSubmitted, submission.ClientTypeCorporation)
	s.pg.Exec(s.T(),
		`INSERT INTO submission_matching_detail (submission_id, matching_fields) VALUES (1, '{"a":"1"}')`,
		`INSERT INTO submission_matching_detail (submission_id, matching_fields) VALUES (1, '{"b":"2"}')`)

	detail, err := s.store.FindBySubmission(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(submission.MatchingFields{"a": "1"}, detail.MatchingFields)
}
