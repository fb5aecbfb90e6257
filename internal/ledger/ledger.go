// Package ledger applies gamification awards to user profiles: points,
// cumulative totals and newly crossed badges, in one atomic update per
// approved submission.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/terra/internal/badges"
)

// Credit is one approved submission to be credited to its user.
type Credit struct {
	SubmissionID uuid.UUID
	UserID       string
	Pounds       float64
	CleanupType  string
}

// Award is the result of a successful ledger update.
type Award struct {
	PointsAwarded int64    `json:"pointsAwarded"`
	BadgesEarned  []string `json:"badgesEarned"`

	// Replayed is set when the submission had already been credited. The
	// recorded award is returned and the profile is left unchanged.
	Replayed bool `json:"-"`
}

// Ledger awards points and badges for an approved cleanup.
type Ledger interface {
	// Award credits c at most once per submission id. Later calls for the
	// same submission return the recorded award.
	Award(ctx context.Context, c Credit) (*Award, error)
}

// Store performs transactional read-modify-write on profiles.
type Store interface {
	// Credit loads the profile for userID, passes it to fn, and persists the
	// mutated profile together with a record of the award for submissionID
	// in one serializable transaction. If submissionID is already recorded,
	// fn is not called and the recorded award is returned with Replayed set.
	// Returns ErrProfileNotFound, ErrMalformedProfile, or ErrConflict when
	// a concurrent writer won. An error from fn aborts without writes.
	Credit(ctx context.Context, submissionID uuid.UUID, userID string, fn func(p *Profile) (Award, error)) (*Award, error)

	// Profile reads the current profile.
	Profile(ctx context.Context, userID string) (*Profile, error)
}

type ledger struct {
	store   Store
	catalog *badges.Catalog
	bonus   float64
	now     func() time.Time
	logger  *slog.Logger
}

// New creates a Ledger that performs a single update attempt per award.
// Wrap it with Retrying to absorb conflicts.
func New(store Store, catalog *badges.Catalog, bonus float64, logger *slog.Logger) Ledger {
	return &ledger{
		store:   store,
		catalog: catalog,
		bonus:   bonus,
		now:     time.Now,
		logger:  logger.With("system", "ledger"),
	}
}

func (l *ledger) Award(ctx context.Context, c Credit) (*Award, error) {
	if c.SubmissionID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing submission id", ErrInvalidAward)
	}
	if c.UserID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidAward)
	}
	if math.IsNaN(c.Pounds) || math.IsInf(c.Pounds, 0) || c.Pounds <= 0 {
		return nil, fmt.Errorf("%w: pounds %v", ErrInvalidAward, c.Pounds)
	}

	points := CalculatePoints(c.Pounds, c.CleanupType, l.bonus)

	award, err := l.store.Credit(ctx, c.SubmissionID, c.UserID, func(p *Profile) (Award, error) {
		if err := p.Check(); err != nil {
			return Award{}, err
		}

		now := l.now().UTC()
		p.Points += points
		p.PoundsCollected += c.Pounds
		p.TotalCleanups++
		p.LastCleanupAt = &now

		earned := EvaluateBadges(l.catalog, p.Badges, p.Totals())
		p.Badges = append(p.Badges, earned...)
		return Award{PointsAwarded: points, BadgesEarned: earned}, nil
	})
	if err != nil {
		return nil, err
	}

	if award.Replayed {
		l.logger.InfoContext(ctx, "submission already credited",
			"submission_id", c.SubmissionID,
			"user_id", c.UserID,
			"points", award.PointsAwarded,
		)
		return award, nil
	}

	l.logger.InfoContext(ctx, "award applied",
		"submission_id", c.SubmissionID,
		"user_id", c.UserID,
		"points", award.PointsAwarded,
		"badges", award.BadgesEarned,
	)
	return award, nil
}
