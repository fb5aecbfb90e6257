package submissions

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/terra/pkg/pagination"
)

// System defines the public contract for submission domain operations.
type System interface {
	Handler(notifier Notifier) *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Submission], error)

	Find(ctx context.Context, id uuid.UUID) (*Submission, error)

	// Recent returns the user's most recent submissions, newest first.
	Recent(ctx context.Context, userID string, limit int) ([]Submission, error)

	// Complete applies the terminal result to a pending submission.
	// Returns ErrNotPending when the submission has already left pending,
	// so concurrent runs cannot both write an outcome.
	Complete(ctx context.Context, id uuid.UUID, result Result) error

	// Reprocess moves an errored submission back to pending, recording who
	// asked. Returns ErrNotReprocessable for any other current status.
	Reprocess(ctx context.Context, id uuid.UUID, by string) (*Submission, error)

	// Counts aggregates submissions by status and by creation within the
	// last day and week relative to now.
	Counts(ctx context.Context, now time.Time) (*Counts, error)
}

// Notifier is told about submissions that re-entered pending so the
// verification pipeline runs again.
type Notifier interface {
	NotifyReprocess(ctx context.Context, id uuid.UUID) error
}
