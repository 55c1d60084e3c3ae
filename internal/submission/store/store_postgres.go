package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bcgov/nr-forest-client-sub003/internal/submission"
	"github.com/bcgov/nr-forest-client-sub003/pkg/sentinel"
)

// Postgres persists submissions and match details in PostgreSQL. The store
// is pure I/O; transition rules and retry policy live in the services.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Get(ctx context.Context, id int64) (*submission.Submission, error) {
	query := `
		SELECT submission_id, submission_status_code, COALESCE(submission_type_code, ''),
		       created_at, updated_at, COALESCE(updated_by, '')
		FROM submission
		WHERE submission_id = $1
	`
	var sub submission.Submission
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&sub.ID, &sub.Status, &sub.Type, &sub.CreatedAt, &sub.UpdatedAt, &sub.UpdatedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return &sub, nil
}

func (s *Postgres) GetDetail(ctx context.Context, id int64) (*submission.Detail, error) {
	query := `
		SELECT submission_id, COALESCE(organization_name, ''), COALESCE(first_name, ''),
		       COALESCE(last_name, ''), COALESCE(incorporation_number, ''), client_type_code,
		       COALESCE(good_standing_ind, ''), COALESCE(birthdate, ''), COALESCE(email_address, '')
		FROM submission_detail
		WHERE submission_id = $1
	`
	var detail submission.Detail
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&detail.SubmissionID, &detail.OrganizationName, &detail.FirstName,
		&detail.LastName, &detail.IncorporationNumber, &detail.ClientType,
		&detail.GoodStanding, &detail.Birthdate, &detail.EmailAddress,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get submission detail: %w", err)
	}
	return &detail, nil
}

func (s *Postgres) ListSubmitted(ctx context.Context, limit int) ([]int64, error) {
	query := `
		SELECT submission_id
		FROM submission
		WHERE submission_status_code = $1
		ORDER BY submission_id
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, string(submission.StatusSubmitted), limit)
	if err != nil {
		return nil, fmt.Errorf("list submitted: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (s *Postgres) ListDecidedUnprocessed(ctx context.Context, limit int) ([]int64, error) {
	query := `
		SELECT s.submission_id
		FROM submission s
		JOIN submission_matching_detail d ON d.matching_detail_id = (
			SELECT MIN(matching_detail_id)
			FROM submission_matching_detail
			WHERE submission_id = s.submission_id
		)
		WHERE s.submission_type_code IN ($1, $2)
		  AND NOT d.processed
		ORDER BY s.submission_id
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query,
		string(submission.TypeAutoApproved), string(submission.TypeReviewNewClient), limit)
	if err != nil {
		return nil, fmt.Errorf("list decided unprocessed: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (s *Postgres) ApplyDecision(ctx context.Context, id int64, rec DecisionRecord, actor string, now time.Time) error {
	mf := rec.MatchingFields
	if mf == nil {
		mf = submission.MatchingFields{}
	}
	fields, err := mf.Encode()
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin decision tx: %w", err)
	}
	defer tx.Rollback()

	// The WHERE clause keeps the type transition monotonic: a decided
	// submission is never re-decided.
	update := `
		UPDATE submission
		SET submission_status_code = $2,
		    submission_type_code = $3,
		    updated_at = $4,
		    updated_by = $5
		WHERE submission_id = $1
		  AND (submission_type_code IS NULL OR submission_type_code NOT IN ($6, $7))
	`
	result, err := tx.ExecContext(ctx, update, id, string(rec.Status), string(rec.Type), now, actor,
		string(submission.TypeAutoApproved), string(submission.TypeReviewNewClient))
	if err != nil {
		return fmt.Errorf("apply decision: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply decision rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}

	// The verdict payload lands on the canonical (lowest id) match detail
	// row in the same transaction, so a failure leaves the submission
	// undecided and eligible for the next matching cycle.
	var canonical sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MIN(matching_detail_id) FROM submission_matching_detail WHERE submission_id = $1`,
		id,
	).Scan(&canonical); err != nil {
		return fmt.Errorf("find canonical match detail: %w", err)
	}
	if canonical.Valid {
		detail := `
			UPDATE submission_matching_detail
			SET matching_fields = $2,
			    confirmed = $3,
			    matching_message = $4,
			    updated_by = $5
			WHERE matching_detail_id = $1
		`
		if _, err := tx.ExecContext(ctx, detail,
			canonical.Int64, fields, rec.Confirmed, rec.Message, actor,
		); err != nil {
			return fmt.Errorf("record verdict on match detail: %w", err)
		}
	} else {
		detail := `
			INSERT INTO submission_matching_detail
				(submission_id, matching_fields, confirmed, processed, matching_message,
				 processing_started_at, attempts, created_by, updated_by)
			VALUES ($1, $2, $3, FALSE, $4, NULL, 0, $5, $5)
		`
		if _, err := tx.ExecContext(ctx, detail,
			id, fields, rec.Confirmed, rec.Message, actor,
		); err != nil {
			return fmt.Errorf("record verdict on match detail: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit decision tx: %w", err)
	}
	return nil
}

func (s *Postgres) FindBySubmission(ctx context.Context, submissionID int64) (*submission.MatchDetail, error) {
	// Storage tolerates duplicate rows per submission; the lowest id wins.
	query := `
		SELECT matching_detail_id, submission_id, matching_fields, confirmed, processed,
		       COALESCE(matching_message, ''), processing_started_at, attempts,
		       COALESCE(created_by, ''), COALESCE(updated_by, '')
		FROM submission_matching_detail
		WHERE submission_id = $1
		ORDER BY matching_detail_id
		LIMIT 1
	`
	detail, err := scanMatchDetail(s.db.QueryRowContext(ctx, query, submissionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find match detail: %w", err)
	}
	return detail, nil
}

func (s *Postgres) Save(ctx context.Context, detail *submission.MatchDetail) error {
	fields, err := detail.MatchingFields.Encode()
	if err != nil {
		return err
	}
	if detail.ID == 0 {
		query := `
			INSERT INTO submission_matching_detail
				(submission_id, matching_fields, confirmed, processed, matching_message,
				 processing_started_at, attempts, created_by, updated_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
			RETURNING matching_detail_id
		`
		err := s.db.QueryRowContext(ctx, query,
			detail.SubmissionID, fields, detail.Confirmed, detail.Processed,
			detail.MatchingMessage, detail.ProcessingStartedAt, detail.Attempts,
			detail.CreatedBy,
		).Scan(&detail.ID)
		if err != nil {
			return fmt.Errorf("insert match detail: %w", err)
		}
		return nil
	}

	query := `
		UPDATE submission_matching_detail
		SET matching_fields = $2,
		    confirmed = $3,
		    processed = $4,
		    matching_message = $5,
		    processing_started_at = $6,
		    attempts = $7,
		    updated_by = $8
		WHERE matching_detail_id = $1
	`
	if _, err := s.db.ExecContext(ctx, query,
		detail.ID, fields, detail.Confirmed, detail.Processed,
		detail.MatchingMessage, detail.ProcessingStartedAt, detail.Attempts,
		detail.UpdatedBy,
	); err != nil {
		return fmt.Errorf("update match detail: %w", err)
	}
	return nil
}

func (s *Postgres) TryAcquireLock(ctx context.Context, submissionID int64, now time.Time, ttl time.Duration, actor string) (bool, int, error) {
	// Conditional UPDATE as the compare-and-set, atomic within one
	// database. The timestamp scheme accepts a small cross-replica race
	// window; the processed flag downstream keeps it harmless.
	cutoff := now.Add(-ttl)
	update := `
		UPDATE submission_matching_detail
		SET processing_started_at = $2,
		    attempts = attempts + 1,
		    updated_by = $3
		WHERE matching_detail_id = (
			SELECT MIN(matching_detail_id)
			FROM submission_matching_detail
			WHERE submission_id = $1
		)
		  AND NOT processed
		  AND (processing_started_at IS NULL OR processing_started_at < $4)
		RETURNING attempts
	`
	var attempts int
	err := s.db.QueryRowContext(ctx, update, submissionID, now, actor, cutoff).Scan(&attempts)
	if err == nil {
		return true, attempts, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, 0, fmt.Errorf("acquire soft lock: %w", err)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM submission_matching_detail WHERE submission_id = $1)`,
		submissionID,
	).Scan(&exists); err != nil {
		return false, 0, fmt.Errorf("check match detail exists: %w", err)
	}
	if exists {
		// Row present but locked or already processed.
		return false, 0, nil
	}

	insert := `
		INSERT INTO submission_matching_detail
			(submission_id, matching_fields, confirmed, processed, matching_message,
			 processing_started_at, attempts, created_by, updated_by)
		VALUES ($1, '{}', FALSE, FALSE, '', $2, 1, $3, $3)
		RETURNING attempts
	`
	if err := s.db.QueryRowContext(ctx, insert, submissionID, now, actor).Scan(&attempts); err != nil {
		return false, 0, fmt.Errorf("create match detail with lock: %w", err)
	}
	return true, attempts, nil
}

func (s *Postgres) ReleaseLock(ctx context.Context, submissionID int64) error {
	query := `
		UPDATE submission_matching_detail
		SET processing_started_at = NULL
		WHERE submission_id = $1
	`
	result, err := s.db.ExecContext(ctx, query, submissionID)
	if err != nil {
		return fmt.Errorf("release soft lock: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("release soft lock rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) MarkProcessed(ctx context.Context, submissionID int64, actor string, now time.Time) error {
	query := `
		UPDATE submission_matching_detail
		SET processed = TRUE,
		    processing_started_at = NULL,
		    updated_by = $2
		WHERE submission_id = $1
	`
	result, err := s.db.ExecContext(ctx, query, submissionID, actor)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark processed rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan submission id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submission ids: %w", err)
	}
	return ids, nil
}

type row interface {
	Scan(dest ...any) error
}

func scanMatchDetail(r row) (*submission.MatchDetail, error) {
	var detail submission.MatchDetail
	var fields []byte
	var startedAt sql.NullTime
	if err := r.Scan(
		&detail.ID, &detail.SubmissionID, &fields, &detail.Confirmed, &detail.Processed,
		&detail.MatchingMessage, &startedAt, &detail.Attempts,
		&detail.CreatedBy, &detail.UpdatedBy,
	); err != nil {
		return nil, err
	}
	if startedAt.Valid {
		detail.ProcessingStartedAt = &startedAt.Time
	}
	decoded, err := submission.DecodeMatchingFields(fields)
	if err != nil {
		return nil, err
	}
	detail.MatchingFields = decoded
	return &detail, nil
}
