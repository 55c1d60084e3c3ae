package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bcgov/nr-forest-client-sub003/internal/submission"
	"github.com/bcgov/nr-forest-client-sub003/pkg/sentinel"
)

// Memory is an in-memory implementation of both stores. It backs unit tests
// and local runs; semantics mirror the PostgreSQL store including the
// canonical-row rule for duplicated match details.
type Memory struct {
	mu          sync.Mutex
	submissions map[int64]*submission.Submission
	details     map[int64]*submission.Detail
	matchRows   map[int64]*submission.MatchDetail // keyed by match detail id
	nextRowID   int64
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		submissions: make(map[int64]*submission.Submission),
		details:     make(map[int64]*submission.Detail),
		matchRows:   make(map[int64]*submission.MatchDetail),
		nextRowID:   1,
	}
}

// SeedSubmission loads a submission and its detail, for tests and fixtures.
func (m *Memory) SeedSubmission(sub submission.Submission, detail submission.Detail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := sub
	d := detail
	d.SubmissionID = sub.ID
	m.submissions[sub.ID] = &s
	m.details[sub.ID] = &d
}

// SeedMatchDetail inserts a raw match-detail row, allowing tests to model
// the legacy one-to-many storage shape.
func (m *Memory) SeedMatchDetail(detail submission.MatchDetail) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := detail
	if d.ID == 0 {
		d.ID = m.nextRowID
		m.nextRowID++
	} else if d.ID >= m.nextRowID {
		m.nextRowID = d.ID + 1
	}
	m.matchRows[d.ID] = &d
	return d.ID
}

func (m *Memory) Get(_ context.Context, id int64) (*submission.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.submissions[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (m *Memory) GetDetail(_ context.Context, id int64) (*submission.Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	detail, ok := m.details[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *detail
	return &cp, nil
}

func (m *Memory) ListSubmitted(_ context.Context, limit int) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, sub := range m.submissions {
		if sub.Status == submission.StatusSubmitted {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *Memory) ListDecidedUnprocessed(_ context.Context, limit int) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, sub := range m.submissions {
		if !sub.Type.Decided() {
			continue
		}
		row := m.canonicalLocked(id)
		if row != nil && !row.Processed {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *Memory) ApplyDecision(_ context.Context, id int64, rec DecisionRecord, actor string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.submissions[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if sub.Type.Decided() {
		return sentinel.ErrConflict
	}
	sub.Status = rec.Status
	sub.Type = rec.Type
	sub.UpdatedAt = now
	sub.UpdatedBy = actor

	row := m.canonicalLocked(id)
	if row == nil {
		row = &submission.MatchDetail{
			ID:           m.nextRowID,
			SubmissionID: id,
			CreatedBy:    actor,
		}
		m.nextRowID++
		m.matchRows[row.ID] = row
	}
	fields := rec.MatchingFields
	if fields == nil {
		fields = submission.MatchingFields{}
	}
	row.MatchingFields = cloneFields(fields)
	row.Confirmed = rec.Confirmed
	row.MatchingMessage = rec.Message
	row.UpdatedBy = actor
	return nil
}

func (m *Memory) FindBySubmission(_ context.Context, submissionID int64) (*submission.MatchDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.canonicalLocked(submissionID)
	if row == nil {
		return nil, sentinel.ErrNotFound
	}
	cp := *row
	cp.MatchingFields = cloneFields(row.MatchingFields)
	return &cp, nil
}

func (m *Memory) Save(_ context.Context, detail *submission.MatchDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if detail.ID == 0 {
		detail.ID = m.nextRowID
		m.nextRowID++
	}
	cp := *detail
	cp.MatchingFields = cloneFields(detail.MatchingFields)
	m.matchRows[cp.ID] = &cp
	return nil
}

func (m *Memory) TryAcquireLock(_ context.Context, submissionID int64, now time.Time, ttl time.Duration, actor string) (bool, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.canonicalLocked(submissionID)
	if row == nil {
		started := now
		d := &submission.MatchDetail{
			ID:                  m.nextRowID,
			SubmissionID:        submissionID,
			MatchingFields:      submission.MatchingFields{},
			ProcessingStartedAt: &started,
			Attempts:            1,
			CreatedBy:           actor,
			UpdatedBy:           actor,
		}
		m.nextRowID++
		m.matchRows[d.ID] = d
		return true, 1, nil
	}
	if row.Processed || row.Locked(now, ttl) {
		return false, row.Attempts, nil
	}
	started := now
	row.ProcessingStartedAt = &started
	row.Attempts++
	row.UpdatedBy = actor
	return true, row.Attempts, nil
}

func (m *Memory) ReleaseLock(_ context.Context, submissionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.canonicalLocked(submissionID)
	if row == nil {
		return sentinel.ErrNotFound
	}
	row.ProcessingStartedAt = nil
	return nil
}

func (m *Memory) MarkProcessed(_ context.Context, submissionID int64, actor string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.canonicalLocked(submissionID)
	if row == nil {
		return sentinel.ErrNotFound
	}
	row.Processed = true
	row.ProcessingStartedAt = nil
	row.UpdatedBy = actor
	return nil
}

// MatchRowCount reports how many match-detail rows exist for a submission,
// used by idempotence tests.
func (m *Memory) MatchRowCount(submissionID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, row := range m.matchRows {
		if row.SubmissionID == submissionID {
			n++
		}
	}
	return n
}

// canonicalLocked returns the lowest-id match row for a submission. Caller
// holds m.mu.
func (m *Memory) canonicalLocked(submissionID int64) *submission.MatchDetail {
	var canonical *submission.MatchDetail
	for _, row := range m.matchRows {
		if row.SubmissionID != submissionID {
			continue
		}
		if canonical == nil || row.ID < canonical.ID {
			canonical = row
		}
	}
	return canonical
}

func cloneFields(f submission.MatchingFields) submission.MatchingFields {
	if f == nil {
		return nil
	}
	cp := make(submission.MatchingFields, len(f))
	for k, v := range f {
		cp[k] = v
	}
	return cp
}
