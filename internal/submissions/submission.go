// Package submissions implements the cleanup submission domain: the
// submission record, its closed status set, guarded terminal writes, and
// the operator reprocess transition.
package submissions

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/terra/pkg/geo"
)

// Status is the verification state of a submission.
// The only transitions are pending to a terminal state, and error back to
// pending through an operator reprocess.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusError    Status = "error"
)

// ParseStatus converts s into a Status, rejecting unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusError:
		return true
	}
	return false
}

// Terminal reports whether s ends a verification run.
func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusError:
		return true
	case StatusPending:
		return false
	}
	return false
}

// Submission is a user's cleanup report with its verification outcome columns.
type Submission struct {
	ID             uuid.UUID  `json:"id"`
	UserID         string     `json:"user_id"`
	HotspotID      *string    `json:"hotspot_id,omitempty"`
	UserLocation   *geo.Point `json:"user_location,omitempty"`
	BeforePhotoURL string     `json:"before_photo_url"`
	AfterPhotoURL  string     `json:"after_photo_url"`
	ReportedPounds float64    `json:"reported_pounds"`
	CleanupType    *string    `json:"cleanup_type,omitempty"`
	Comments       *string    `json:"comments,omitempty"`
	Status         Status     `json:"status"`

	VerificationMessage *string         `json:"verification_message,omitempty"`
	VerificationDetails json.RawMessage `json:"verification_details,omitempty"`
	VerifiedAt          *time.Time      `json:"verified_at,omitempty"`
	ProcessingTimeMs    *int64          `json:"processing_time_ms,omitempty"`
	ReprocessedAt       *time.Time      `json:"reprocessed_at,omitempty"`
	ReprocessedBy       *string         `json:"reprocessed_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Result is the terminal write applied to a pending submission.
// Details is marshaled into the verification_details column.
type Result struct {
	Status       Status
	Message      string
	Details      any
	VerifiedAt   time.Time
	ProcessingMs int64
}

// Counts aggregates submissions by status and recency.
type Counts struct {
	Total        int     `json:"total"`
	Pending      int     `json:"pending"`
	Approved     int     `json:"approved"`
	Rejected     int     `json:"rejected"`
	Error        int     `json:"error"`
	LastDay      int     `json:"last_24h"`
	LastWeek     int     `json:"last_week"`
	ApprovalRate float64 `json:"approval_rate"`
}
