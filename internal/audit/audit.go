// Package audit records one verification log entry per processed
// submission and supports retention and effectiveness queries over them.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/terra/pkg/repository"
)

var ErrInvalidEntry = errors.New("invalid audit entry")

// Summary is the effectiveness judgment recorded with an entry.
type Summary struct {
	ReductionPercentage float64 `json:"reductionPercentage"`
	OverallConfidence   float64 `json:"overallConfidence"`
	IsEffective         bool    `json:"isEffective"`
	BeforeCount         int     `json:"beforeCount"`
	AfterCount          int     `json:"afterCount"`
}

// Entry is a single verification log record. Effectiveness is nil when
// the run ended before scoring.
type Entry struct {
	ID               uuid.UUID `json:"id"`
	SubmissionID     uuid.UUID `json:"submission_id"`
	UserID           string    `json:"user_id"`
	HotspotID        *string   `json:"hotspot_id,omitempty"`
	Status           string    `json:"status"`
	LocationVerified bool      `json:"location_verified"`
	Effectiveness    *Summary  `json:"effectiveness,omitempty"`
	ReportedPounds   float64   `json:"reported_pounds"`
	CleanupType      string    `json:"cleanup_type"`
	ProcessingMs     int64     `json:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// Logger appends and maintains verification log entries.
type Logger interface {
	Append(ctx context.Context, e Entry) error

	// PurgeBefore deletes up to limit entries created before cutoff and
	// returns how many were removed.
	PurgeBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)

	// AverageReduction averages the reduction percentage of scored entries
	// created at or after since. Returns 0 when none were scored.
	AverageReduction(ctx context.Context, since time.Time) (float64, error)
}

type repo struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Postgres-backed audit Logger over verification_logs.
func New(db *sql.DB, logger *slog.Logger) Logger {
	return &repo{
		db:     db,
		logger: logger.With("system", "audit"),
		now:    time.Now,
	}
}

func (r *repo) Append(ctx context.Context, e Entry) error {
	if e.SubmissionID == uuid.Nil || e.Status == "" {
		return fmt.Errorf("%w: submission id and status required", ErrInvalidEntry)
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}

	if e.CleanupType == "" {
		e.CleanupType = "unknown"
	}

	var (
		summary   any
		reduction *float64
	)
	if e.Effectiveness != nil {
		b, err := json.Marshal(e.Effectiveness)
		if err != nil {
			return fmt.Errorf("marshal effectiveness: %w", err)
		}
		summary = b
		reduction = &e.Effectiveness.ReductionPercentage
	}

	q := `
		INSERT INTO verification_logs
			(id, submission_id, user_id, hotspot_id, status, location_verified,
			 effectiveness, reduction_percentage, reported_pounds, cleanup_type,
			 processing_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	err := repository.ExecExpectOne(
		ctx, r.db, q,
		e.ID,
		e.SubmissionID,
		e.UserID,
		e.HotspotID,
		e.Status,
		e.LocationVerified,
		summary,
		reduction,
		e.ReportedPounds,
		e.CleanupType,
		e.ProcessingMs,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit entry for %s: %w", e.SubmissionID, err)
	}
	return nil
}

func (r *repo) PurgeBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	if limit < 1 {
		limit = 500
	}

	q := `
		DELETE FROM verification_logs
		WHERE id IN (
			SELECT id FROM verification_logs
			WHERE created_at < $1
			ORDER BY created_at
			LIMIT $2
		)`

	res, err := r.db.ExecContext(ctx, q, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("purge audit entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge audit entries: %w", err)
	}
	return n, nil
}

func (r *repo) AverageReduction(ctx context.Context, since time.Time) (float64, error) {
	q := `
		SELECT COALESCE(AVG(reduction_percentage), 0)
		FROM verification_logs
		WHERE created_at >= $1 AND reduction_percentage IS NOT NULL`

	var avg float64
	if err := r.db.QueryRowContext(ctx, q, since).Scan(&avg); err != nil {
		return 0, fmt.Errorf("average reduction: %w", err)
	}
	return avg, nil
}
