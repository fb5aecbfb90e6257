package submissions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/terra/pkg/pagination"
	"github.com/JaimeStill/terra/pkg/query"
	"github.com/JaimeStill/terra/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a submission repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "submissions"),
		pagination: pagination,
	}
}

func (r *repo) Handler(notifier Notifier) *Handler {
	return NewHandler(r, notifier, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Submission], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "UserID", "HotspotID", "Comments")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count submissions: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	subs, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanSubmission)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}

	result := pagination.NewPageResult(subs, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Submission, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	s, err := repository.QueryOne(ctx, r.db, q, args, scanSubmission)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &s, nil
}

func (r *repo) Recent(ctx context.Context, userID string, limit int) ([]Submission, error) {
	if limit < 1 {
		limit = 10
	}

	q, args := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("UserID", userID).
		BuildPage(1, limit)

	subs, err := repository.QueryMany(ctx, r.db, q, args, scanSubmission)
	if err != nil {
		return nil, fmt.Errorf("query recent submissions: %w", err)
	}
	return subs, nil
}

func (r *repo) Complete(ctx context.Context, id uuid.UUID, result Result) error {
	if !result.Status.Terminal() {
		return fmt.Errorf("%w: %q is not terminal", ErrInvalidStatus, result.Status)
	}

	details, err := json.Marshal(result.Details)
	if err != nil {
		return fmt.Errorf("marshal verification details: %w", err)
	}

	q := `
		UPDATE submissions
		SET status = $2,
			verification_message = $3,
			verification_details = $4,
			verified_at = $5,
			processing_time_ms = $6,
			updated_at = now()
		WHERE id = $1 AND status = 'pending'`

	err = repository.ExecExpectOne(
		ctx, r.db, q,
		id,
		string(result.Status),
		result.Message,
		details,
		result.VerifiedAt,
		result.ProcessingMs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotPending
	}
	if err != nil {
		return fmt.Errorf("complete submission %s: %w", id, err)
	}

	r.logger.InfoContext(ctx, "submission completed", "id", id, "status", result.Status)
	return nil
}

func (r *repo) Reprocess(ctx context.Context, id uuid.UUID, by string) (*Submission, error) {
	q := `
		UPDATE submissions
		SET status = 'pending',
			reprocessed_at = now(),
			reprocessed_by = $2,
			updated_at = now()
		WHERE id = $1 AND status = 'error'
		RETURNING ` + returning

	s, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Submission, error) {
		return repository.QueryOne(ctx, tx, q, []any{id, nullable(by)}, scanSubmission)
	})
	if errors.Is(err, sql.ErrNoRows) {
		current, findErr := r.Find(ctx, id)
		if findErr != nil {
			return nil, findErr
		}
		return nil, fmt.Errorf("%w: current status is %s", ErrNotReprocessable, current.Status)
	}
	if err != nil {
		return nil, fmt.Errorf("reprocess submission %s: %w", id, err)
	}

	r.logger.InfoContext(ctx, "submission queued for reprocessing", "id", id, "by", by)
	return &s, nil
}

func (r *repo) Counts(ctx context.Context, now time.Time) (*Counts, error) {
	q := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'approved'),
			COUNT(*) FILTER (WHERE status = 'rejected'),
			COUNT(*) FILTER (WHERE status = 'error'),
			COUNT(*) FILTER (WHERE created_at >= $1),
			COUNT(*) FILTER (WHERE created_at >= $2)
		FROM submissions`

	var c Counts
	err := r.db.QueryRowContext(
		ctx, q,
		now.Add(-24*time.Hour),
		now.Add(-7*24*time.Hour),
	).Scan(
		&c.Total,
		&c.Pending,
		&c.Approved,
		&c.Rejected,
		&c.Error,
		&c.LastDay,
		&c.LastWeek,
	)
	if err != nil {
		return nil, fmt.Errorf("count submissions: %w", err)
	}

	if c.Total > 0 {
		c.ApprovalRate = float64(c.Approved) / float64(c.Total) * 100
	}
	return &c, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
