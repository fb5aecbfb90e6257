package submissions

import (
	"database/sql"
	"encoding/json"
	"net/url"

	"github.com/JaimeStill/terra/pkg/geo"
	"github.com/JaimeStill/terra/pkg/query"
	"github.com/JaimeStill/terra/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "submissions", "s").
	Project("id", "ID").
	Project("user_id", "UserID").
	Project("hotspot_id", "HotspotID").
	Project("latitude", "Latitude").
	Project("longitude", "Longitude").
	Project("before_photo_url", "BeforePhotoURL").
	Project("after_photo_url", "AfterPhotoURL").
	Project("reported_pounds", "ReportedPounds").
	Project("cleanup_type", "CleanupType").
	Project("comments", "Comments").
	Project("status", "Status").
	Project("verification_message", "VerificationMessage").
	Project("verification_details", "VerificationDetails").
	Project("verified_at", "VerifiedAt").
	Project("processing_time_ms", "ProcessingTimeMs").
	Project("reprocessed_at", "ReprocessedAt").
	Project("reprocessed_by", "ReprocessedBy").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

const returning = `id, user_id, hotspot_id, latitude, longitude, before_photo_url, after_photo_url,
	reported_pounds, cleanup_type, comments, status, verification_message, verification_details,
	verified_at, processing_time_ms, reprocessed_at, reprocessed_by, created_at, updated_at`

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for submission queries.
type Filters struct {
	Status      *string `json:"status,omitempty"`
	UserID      *string `json:"user_id,omitempty"`
	HotspotID   *string `json:"hotspot_id,omitempty"`
	CleanupType *string `json:"cleanup_type,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereEquals("UserID", f.UserID).
		WhereEquals("HotspotID", f.HotspotID).
		WhereEquals("CleanupType", f.CleanupType)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}
	if u := values.Get("user_id"); u != "" {
		f.UserID = &u
	}
	if h := values.Get("hotspot_id"); h != "" {
		f.HotspotID = &h
	}
	if c := values.Get("cleanup_type"); c != "" {
		f.CleanupType = &c
	}

	return f
}

func scanSubmission(s repository.Scanner) (Submission, error) {
	var (
		sub      Submission
		lat, lng sql.NullFloat64
		status   string
		details  []byte
	)

	err := s.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.HotspotID,
		&lat,
		&lng,
		&sub.BeforePhotoURL,
		&sub.AfterPhotoURL,
		&sub.ReportedPounds,
		&sub.CleanupType,
		&sub.Comments,
		&status,
		&sub.VerificationMessage,
		&details,
		&sub.VerifiedAt,
		&sub.ProcessingTimeMs,
		&sub.ReprocessedAt,
		&sub.ReprocessedBy,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return sub, err
	}

	if sub.Status, err = ParseStatus(status); err != nil {
		return sub, err
	}
	if lat.Valid && lng.Valid {
		sub.UserLocation = &geo.Point{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	if len(details) > 0 {
		sub.VerificationDetails = json.RawMessage(details)
	}

	return sub, nil
}
