package submissions_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/terra/internal/submissions"
	"github.com/JaimeStill/terra/pkg/pagination"
)

var columns = []string{
	"id", "user_id", "hotspot_id", "latitude", "longitude", "before_photo_url", "after_photo_url",
	"reported_pounds", "cleanup_type", "comments", "status", "verification_message",
	"verification_details", "verified_at", "processing_time_ms", "reprocessed_at",
	"reprocessed_by", "created_at", "updated_at",
}

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func row(id uuid.UUID, status string) []driver.Value {
	return []driver.Value{
		id.String(), "user-1", "hs-1", 40.7128, -74.0060,
		"https://example.com/before.jpg", "https://example.com/after.jpg",
		10.0, "beach", nil, status, nil, nil, nil, nil, nil, nil,
		fixedTime, fixedTime,
	}
}

func newRepo(t *testing.T) (submissions.System, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return submissions.New(db, logger, pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}), mock
}

func TestFindScansRow(t *testing.T) {
	sys, mock := newRepo(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM public.submissions s WHERE s.id = \\$1").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(row(id, "pending")...))

	s, err := sys.Find(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, s.ID)
	assert.Equal(t, submissions.StatusPending, s.Status)
	require.NotNil(t, s.UserLocation)
	assert.InDelta(t, 40.7128, s.UserLocation.Latitude, 1e-9)
	assert.Nil(t, s.VerificationDetails)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindNotFound(t *testing.T) {
	sys, mock := newRepo(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM public.submissions s").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := sys.Find(context.Background(), id)
	assert.ErrorIs(t, err, submissions.ErrNotFound)
}

func TestFindRejectsUnknownStatus(t *testing.T) {
	sys, mock := newRepo(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM public.submissions s").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(row(id, "processing")...))

	_, err := sys.Find(context.Background(), id)
	assert.ErrorIs(t, err, submissions.ErrInvalidStatus)
}

func TestCompleteGuardsPending(t *testing.T) {
	id := uuid.New()
	result := submissions.Result{
		Status:       submissions.StatusApproved,
		Message:      "Cleanup verified successfully! 80.0% trash reduction detected.",
		Details:      map[string]any{"locationVerified": true},
		VerifiedAt:   fixedTime,
		ProcessingMs: 1200,
	}

	t.Run("writes once", func(t *testing.T) {
		sys, mock := newRepo(t)
		mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = 'pending'")).
			WithArgs(id, "approved", result.Message, []byte(`{"locationVerified":true}`), fixedTime, int64(1200)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, sys.Complete(context.Background(), id, result))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already terminal", func(t *testing.T) {
		sys, mock := newRepo(t)
		mock.ExpectExec("UPDATE submissions").WillReturnResult(sqlmock.NewResult(0, 0))

		err := sys.Complete(context.Background(), id, result)
		assert.ErrorIs(t, err, submissions.ErrNotPending)
	})

	t.Run("rejects pending result", func(t *testing.T) {
		sys, mock := newRepo(t)
		err := sys.Complete(context.Background(), id, submissions.Result{Status: submissions.StatusPending})
		assert.ErrorIs(t, err, submissions.ErrInvalidStatus)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReprocess(t *testing.T) {
	id := uuid.New()

	t.Run("from error", func(t *testing.T) {
		sys, mock := newRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND status = 'error'")).
			WithArgs(id, "ops@example.com").
			WillReturnRows(sqlmock.NewRows(columns).AddRow(row(id, "pending")...))
		mock.ExpectCommit()

		s, err := sys.Reprocess(context.Background(), id, "ops@example.com")
		require.NoError(t, err)
		assert.Equal(t, submissions.StatusPending, s.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("from approved", func(t *testing.T) {
		sys, mock := newRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE submissions").WillReturnRows(sqlmock.NewRows(columns))
		mock.ExpectRollback()
		mock.ExpectQuery("SELECT .+ FROM public.submissions s").
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(columns).AddRow(row(id, "approved")...))

		_, err := sys.Reprocess(context.Background(), id, "ops@example.com")
		assert.ErrorIs(t, err, submissions.ErrNotReprocessable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		sys, mock := newRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE submissions").WillReturnRows(sqlmock.NewRows(columns))
		mock.ExpectRollback()
		mock.ExpectQuery("SELECT .+ FROM public.submissions s").
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(columns))

		_, err := sys.Reprocess(context.Background(), id, "")
		assert.ErrorIs(t, err, submissions.ErrNotFound)
	})
}

func TestCounts(t *testing.T) {
	now := fixedTime

	t.Run("approval rate", func(t *testing.T) {
		sys, mock := newRepo(t)
		mock.ExpectQuery("SELECT\\s+COUNT").
			WithArgs(now.Add(-24*time.Hour), now.Add(-7*24*time.Hour)).
			WillReturnRows(sqlmock.NewRows([]string{"total", "pending", "approved", "rejected", "error", "day", "week"}).
				AddRow(8, 1, 6, 1, 0, 2, 5))

		c, err := sys.Counts(context.Background(), now)
		require.NoError(t, err)
		assert.Equal(t, 8, c.Total)
		assert.Equal(t, 6, c.Approved)
		assert.Equal(t, 2, c.LastDay)
		assert.InDelta(t, 75.0, c.ApprovalRate, 1e-9)
	})

	t.Run("empty", func(t *testing.T) {
		sys, mock := newRepo(t)
		mock.ExpectQuery("SELECT\\s+COUNT").
			WillReturnRows(sqlmock.NewRows([]string{"total", "pending", "approved", "rejected", "error", "day", "week"}).
				AddRow(0, 0, 0, 0, 0, 0, 0))

		c, err := sys.Counts(context.Background(), now)
		require.NoError(t, err)
		assert.Zero(t, c.ApprovalRate)
	})

	t.Run("query error", func(t *testing.T) {
		sys, mock := newRepo(t)
		mock.ExpectQuery("SELECT\\s+COUNT").WillReturnError(errors.New("connection reset"))

		_, err := sys.Counts(context.Background(), now)
		assert.Error(t, err)
	})
}

func TestRecentLimitsToUser(t *testing.T) {
	sys, mock := newRepo(t)
	id := uuid.New()

	mock.ExpectQuery("WHERE s.user_id = \\$1 ORDER BY s.created_at DESC LIMIT 10 OFFSET 0").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(row(id, "approved")...))

	subs, err := sys.Recent(context.Background(), "user-1", 0)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}
