// Package submission defines the data model for client-registration
// submissions moving through the matching and decision pipeline.
package submission

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the workflow state of a submission.
type Status string

const (
	StatusNew       Status = "N" // created by intake, not yet eligible for matching
	StatusSubmitted Status = "S" // eligible for the matching loop
	StatusApproved  Status = "A" // auto-approved, no duplicate evidence
	StatusReview    Status = "R" // routed to manual review
	StatusDeleted   Status = "D"
)

// TypeCode classifies a submission once a decision is made. It is set at
// most once per processing cycle and never reverted.
type TypeCode string

const (
	TypePendingProcessing TypeCode = "SPP"
	TypeReviewNewClient   TypeCode = "RNC"
	TypeAutoApproved      TypeCode = "AAC"
)

// Decided reports whether the type reflects a matching decision.
func (t TypeCode) Decided() bool {
	return t == TypeReviewNewClient || t == TypeAutoApproved
}

// ClientType is the declared kind of applicant.
type ClientType string

const (
	ClientTypeIndividual                     ClientType = "I"
	ClientTypeCorporation                    ClientType = "C"
	ClientTypeAssociation                    ClientType = "A"
	ClientTypeSociety                        ClientType = "S"
	ClientTypeUnregisteredSoleProprietorship ClientType = "USP"
	ClientTypeRegisteredSoleProprietorship   ClientType = "RSP"
)

// Organizational reports whether the client type registers under an
// organization name rather than an individual's legal name.
func (c ClientType) Organizational() bool {
	switch c {
	case ClientTypeCorporation, ClientTypeAssociation, ClientTypeSociety:
		return true
	}
	return false
}

// SoleProprietorship covers both registered and unregistered proprietors.
func (c ClientType) SoleProprietorship() bool {
	return c == ClientTypeUnregisteredSoleProprietorship ||
		c == ClientTypeRegisteredSoleProprietorship
}

// Good-standing flag values as declared on the submission. Blank means the
// applicant never answered.
const (
	GoodStandingYes = "Y"
	GoodStandingNo  = "N"
)

// Submission is one client-registration attempt. Owned by the submission
// workflow; this core mutates status and type only, and never deletes.
type Submission struct {
	ID        int64
	Status    Status
	Type      TypeCode
	CreatedAt time.Time
	UpdatedAt time.Time
	UpdatedBy string
}

// Detail carries the business-identity facts of one submission. One-to-one
// with Submission and read-only input to matching.
type Detail struct {
	SubmissionID        int64
	OrganizationName    string
	FirstName           string
	LastName            string
	IncorporationNumber string
	ClientType          ClientType
	GoodStanding        string // GoodStandingYes, GoodStandingNo, or blank
	Birthdate           string // YYYY-MM-DD, opaque to this core
	EmailAddress        string
}

// DisplayName is the name the applicant registered under.
func (d *Detail) DisplayName() string {
	if d.OrganizationName != "" {
		return d.OrganizationName
	}
	if d.FirstName == "" {
		return d.LastName
	}
	return d.FirstName + " " + d.LastName
}

// MatchingFields maps a matcher field name to the matched legacy value. At
// rest it is serialized as a JSON object; the empty map must survive the
// round trip distinct from "absent".
type MatchingFields map[string]string

// Encode serializes the map for storage. A nil map encodes as {} so the
// auto-approval invariant (empty map, not NULL) holds in the blob.
func (f MatchingFields) Encode() ([]byte, error) {
	if f == nil {
		f = MatchingFields{}
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode matching fields: %w", err)
	}
	return data, nil
}

// DecodeMatchingFields deserializes a stored blob. Empty input decodes to an
// empty, non-nil map.
func DecodeMatchingFields(data []byte) (MatchingFields, error) {
	if len(data) == 0 {
		return MatchingFields{}, nil
	}
	var f MatchingFields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode matching fields: %w", err)
	}
	if f == nil {
		f = MatchingFields{}
	}
	return f, nil
}

// MatchDetail is the durable record of the matching outcome for one
// submission. Storage models it one-to-many; the row with the lowest id is
// canonical and the engine tolerates (and ignores) extras.
type MatchDetail struct {
	ID             int64
	SubmissionID   int64
	MatchingFields MatchingFields
	// Confirmed is true when no human confirmation is required, i.e. the
	// engine auto-approved with nothing to confirm.
	Confirmed bool
	// Processed is the terminal idempotency guard set by the completion
	// loop. A processed submission is never re-matched.
	Processed       bool
	MatchingMessage string
	// ProcessingStartedAt is the soft-lock timestamp. Non-nil and fresh
	// means a pipeline run is in flight.
	ProcessingStartedAt *time.Time
	// Attempts counts lock acquisitions, bounding automatic retries.
	Attempts  int
	CreatedBy string
	UpdatedBy string
}

// Locked reports whether the soft lock is held as of now, honouring ttl.
func (m *MatchDetail) Locked(now time.Time, ttl time.Duration) bool {
	return m.ProcessingStartedAt != nil && m.ProcessingStartedAt.After(now.Add(-ttl))
}
