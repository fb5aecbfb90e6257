package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/terra/pkg/repository"
)

const profileColumns = `user_id, points, pounds_collected, total_cleanups, current_streak,
	badges, last_cleanup_at, updated_at`

type pgStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a Store over the user_profiles table.
// Updates run in SERIALIZABLE transactions holding a row lock on the profile.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) Store {
	return &pgStore{
		db:     db,
		logger: logger.With("system", "ledger-store"),
	}
}

func (s *pgStore) Profile(ctx context.Context, userID string) (*Profile, error) {
	q := `SELECT ` + profileColumns + ` FROM user_profiles WHERE user_id = $1`

	p, err := repository.QueryOne(ctx, s.db, q, []any{userID}, scanProfile)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *pgStore) Credit(
	ctx context.Context,
	submissionID uuid.UUID,
	userID string,
	fn func(p *Profile) (Award, error),
) (*Award, error) {
	prior := `SELECT points_awarded, badges_earned FROM ledger_awards WHERE submission_id = $1`
	sel := `SELECT ` + profileColumns + ` FROM user_profiles WHERE user_id = $1 FOR UPDATE`
	upd := `
		UPDATE user_profiles
		SET points = $2,
			pounds_collected = $3,
			total_cleanups = $4,
			current_streak = $5,
			badges = $6,
			last_cleanup_at = $7,
			updated_at = now()
		WHERE user_id = $1`
	ins := `
		INSERT INTO ledger_awards (submission_id, user_id, points_awarded, badges_earned)
		VALUES ($1, $2, $3, $4)`

	award, err := repository.WithSerializableTx(ctx, s.db, func(tx *sql.Tx) (Award, error) {
		recorded, err := repository.QueryOne(ctx, tx, prior, []any{submissionID}, scanAward)
		if err == nil {
			recorded.Replayed = true
			return recorded, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return Award{}, fmt.Errorf("read recorded award: %w", err)
		}

		p, err := repository.QueryOne(ctx, tx, sel, []any{userID}, scanProfile)
		if errors.Is(err, sql.ErrNoRows) {
			return Award{}, ErrProfileNotFound
		}
		if err != nil {
			return Award{}, err
		}

		award, err := fn(&p)
		if err != nil {
			return Award{}, err
		}

		held, err := json.Marshal(p.Badges)
		if err != nil {
			return Award{}, fmt.Errorf("marshal badges: %w", err)
		}

		err = repository.ExecExpectOne(
			ctx, tx, upd,
			p.UserID,
			p.Points,
			p.PoundsCollected,
			p.TotalCleanups,
			p.CurrentStreak,
			held,
			p.LastCleanupAt,
		)
		if err != nil {
			return Award{}, err
		}

		earned, err := json.Marshal(nonNil(award.BadgesEarned))
		if err != nil {
			return Award{}, fmt.Errorf("marshal earned badges: %w", err)
		}

		// A duplicate key means another run recorded this submission first.
		_, err = tx.ExecContext(ctx, ins, submissionID, userID, award.PointsAwarded, earned)
		if err != nil {
			return Award{}, repository.MapError(err, err, ErrConflict)
		}
		return award, nil
	})
	if repository.IsSerializationFailure(err) {
		s.logger.DebugContext(ctx, "serialization failure", "user_id", userID, "submission_id", submissionID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrConflict, err)
	}
	if err != nil {
		return nil, err
	}
	return &award, nil
}

func scanAward(s repository.Scanner) (Award, error) {
	var (
		a      Award
		earned []byte
	)
	if err := s.Scan(&a.PointsAwarded, &earned); err != nil {
		return a, err
	}

	a.BadgesEarned = []string{}
	if len(earned) > 0 && string(earned) != "null" {
		if err := json.Unmarshal(earned, &a.BadgesEarned); err != nil {
			return a, fmt.Errorf("decode recorded badges: %w", err)
		}
	}
	return a, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func scanProfile(s repository.Scanner) (Profile, error) {
	var (
		p    Profile
		held []byte
	)
	err := s.Scan(
		&p.UserID,
		&p.Points,
		&p.PoundsCollected,
		&p.TotalCleanups,
		&p.CurrentStreak,
		&held,
		&p.LastCleanupAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return p, err
	}

	p.Badges = []string{}
	if len(held) > 0 && string(held) != "null" {
		if err := json.Unmarshal(held, &p.Badges); err != nil {
			return p, fmt.Errorf("%w: badges: %v", ErrMalformedProfile, err)
		}
	}
	return p, nil
}
