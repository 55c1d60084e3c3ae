package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/nr-forest-client-sub003/internal/submission"
	"github.com/bcgov/nr-forest-client-sub003/pkg/sentinel"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *Postgres) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgres(db)
}

func TestPostgresListSubmitted(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"submission_id"}).AddRow(int64(4)).AddRow(int64(9))
	mock.ExpectQuery(`SELECT submission_id`).
		WithArgs("S", 50).
		WillReturnRows(rows)

	ids, err := store.ListSubmitted(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 9}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetDetail(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"submission_id", "organization_name", "first_name", "last_name",
		"incorporation_number", "client_type_code", "good_standing_ind", "birthdate", "email_address",
	}).AddRow(int64(4), "Acme Timber Ltd", "", "", "BC1234567", "C", "Y", "", "acme@example.com")

	mock.ExpectQuery(`FROM submission_detail`).
		WithArgs(int64(4)).
		WillReturnRows(rows)

	detail, err := store.GetDetail(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, "Acme Timber Ltd", detail.OrganizationName)
	assert.Equal(t, submission.ClientTypeCorporation, detail.ClientType)
	assert.Equal(t, submission.GoodStandingYes, detail.GoodStanding)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetDetailNotFound(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`FROM submission_detail`).
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetDetail(context.Background(), 404)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresApplyDecision(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	t.Run("verdict lands on the existing canonical row in one tx", func(t *testing.T) {
		db, mock, store := setupMockDB(t)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE submission`).
			WithArgs(int64(4), "R", "RNC", now, "processor", "AAC", "RNC").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT MIN\(matching_detail_id\)`).
			WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"min"}).AddRow(int64(11)))
		mock.ExpectExec(`UPDATE submission_matching_detail`).
			WithArgs(int64(11), []byte(`{"corporationName":"00000002"}`), false,
				"Possible duplicate detected on: corporationName", "processor").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.ApplyDecision(context.Background(), 4, DecisionRecord{
			Status:         submission.StatusReview,
			Type:           submission.TypeReviewNewClient,
			MatchingFields: submission.MatchingFields{"corporationName": "00000002"},
			Message:        "Possible duplicate detected on: corporationName",
		}, "processor", now)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing canonical row is inserted in the same tx", func(t *testing.T) {
		db, mock, store := setupMockDB(t)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE submission`).
			WithArgs(int64(4), "A", "AAC", now, "processor", "AAC", "RNC").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT MIN\(matching_detail_id\)`).
			WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"min"}).AddRow(nil))
		mock.ExpectExec(`INSERT INTO submission_matching_detail`).
			WithArgs(int64(4), []byte(`{}`), true, "", "processor").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := store.ApplyDecision(context.Background(), 4, DecisionRecord{
			Status:    submission.StatusApproved,
			Type:      submission.TypeAutoApproved,
			Confirmed: true,
		}, "processor", now)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already decided rolls back with conflict", func(t *testing.T) {
		db, mock, store := setupMockDB(t)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE submission`).
			WithArgs(int64(4), "R", "RNC", now, "processor", "AAC", "RNC").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := store.ApplyDecision(context.Background(), 4, DecisionRecord{
			Status: submission.StatusReview,
			Type:   submission.TypeReviewNewClient,
		}, "processor", now)
		assert.ErrorIs(t, err, sentinel.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("detail write failure rolls back the status transition", func(t *testing.T) {
		db, mock, store := setupMockDB(t)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE submission`).
			WithArgs(int64(4), "R", "RNC", now, "processor", "AAC", "RNC").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT MIN\(matching_detail_id\)`).
			WithArgs(int64(4)).
			WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		err := store.ApplyDecision(context.Background(), 4, DecisionRecord{
			Status: submission.StatusReview,
			Type:   submission.TypeReviewNewClient,
		}, "processor", now)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresTryAcquireLock(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	ttl := 5 * time.Minute
	cutoff := now.Add(-ttl)

	t.Run("existing unlocked row is stamped", func(t *testing.T) {
		db, mock, store := setupMockDB(t)
		defer db.Close()

		mock.ExpectQuery(`UPDATE submission_matching_detail`).
			WithArgs(int64(4), now, "processor", cutoff).
			WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(2))

		acquired, attempts, err := store.TryAcquireLock(context.Background(), 4, now, ttl, "processor")
		require.NoError(t, err)
		assert.True(t, acquired)
		assert.Equal(t, 2, attempts)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("locked row is skipped", func(t *testing.T) {
		db, mock, store := setupMockDB(t)
		defer db.Close()

		mock.ExpectQuery(`UPDATE submission_matching_detail`).
			WithArgs(int64(4), now, "processor", cutoff).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		acquired, _, err := store.TryAcquireLock(context.Background(), 4, now, ttl, "processor")
		require.NoError(t, err)
		assert.False(t, acquired)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row is created already locked", func(t *testing.T) {
		db, mock, store := setupMockDB(t)
		defer db.Close()

		mock.ExpectQuery(`UPDATE submission_matching_detail`).
			WithArgs(int64(4), now, "processor", cutoff).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery(`INSERT INTO submission_matching_detail`).
			WithArgs(int64(4), now, "processor").
			WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(1))

		acquired, attempts, err := store.TryAcquireLock(context.Background(), 4, now, ttl, "processor")
		require.NoError(t, err)
		assert.True(t, acquired)
		assert.Equal(t, 1, attempts)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresSave(t *testing.T) {
	t.Run("zero id inserts and backfills the id", func(t *testing.T) {
		db, mock, store := setupMockDB(t)
		defer db.Close()

		detail := &submission.MatchDetail{
			SubmissionID:    4,
			MatchingFields:  submission.MatchingFields{"incorporationNumber": "00000006"},
			MatchingMessage: "matched on: incorporationNumber",
			CreatedBy:       "processor",
		}

		mock.ExpectQuery(`INSERT INTO submission_matching_detail`).
			WithArgs(int64(4), []byte(`{"incorporationNumber":"00000006"}`), false, false,
				"matched on: incorporationNumber", nil, 0, "processor").
			WillReturnRows(sqlmock.NewRows([]string{"matching_detail_id"}).AddRow(int64(11)))

		err := store.Save(context.Background(), detail)
		require.NoError(t, err)
		assert.Equal(t, int64(11), detail.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-zero id updates in place", func(t *testing.T) {
		db, mock, store := setupMockDB(t)
		defer db.Close()

		detail := &submission.MatchDetail{
			ID:             11,
			SubmissionID:   4,
			MatchingFields: submission.MatchingFields{},
			Confirmed:      true,
			UpdatedBy:      "processor",
		}

		mock.ExpectExec(`UPDATE submission_matching_detail`).
			WithArgs(int64(11), []byte(`{}`), true, false, "", nil, 0, "processor").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.Save(context.Background(), detail)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresFindBySubmission(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	started := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"matching_detail_id", "submission_id", "matching_fields", "confirmed", "processed",
		"matching_message", "processing_started_at", "attempts", "created_by", "updated_by",
	}).AddRow(int64(3), int64(42), []byte(`{"corporationName":"00000002"}`), false, false,
		"matched on: corporationName", started, 1, "processor", "processor")

	mock.ExpectQuery(`FROM submission_matching_detail`).
		WithArgs(int64(42)).
		WillReturnRows(rows)

	detail, err := store.FindBySubmission(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(3), detail.ID)
	assert.Equal(t, submission.MatchingFields{"corporationName": "00000002"}, detail.MatchingFields)
	require.NotNil(t, detail.ProcessingStartedAt)
	assert.Equal(t, started, *detail.ProcessingStartedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
