// Package stats serves read-only views over profiles, submissions,
// the audit log, and analytics snapshots.
package stats

import (
	"context"
	"time"

	"github.com/JaimeStill/terra/internal/badges"
	"github.com/JaimeStill/terra/internal/ledger"
	"github.com/JaimeStill/terra/internal/maintenance"
	"github.com/JaimeStill/terra/internal/submissions"
)

// RecentLimit is the number of submissions returned with a user's stats.
const RecentLimit = 10

// EffectivenessWindow is how far back the audit log is averaged.
const EffectivenessWindow = 7 * 24 * time.Hour

// Profiles reads user profiles.
type Profiles interface {
	Profile(ctx context.Context, userID string) (*ledger.Profile, error)
}

// Submissions reads recent submissions and aggregate counts.
type Submissions interface {
	Recent(ctx context.Context, userID string, limit int) ([]submissions.Submission, error)
	Counts(ctx context.Context, now time.Time) (*submissions.Counts, error)
}

// Reductions averages recorded trash reduction.
type Reductions interface {
	AverageReduction(ctx context.Context, since time.Time) (float64, error)
}

// Snapshots returns the most recent analytics rollup.
type Snapshots interface {
	Latest(ctx context.Context) (*maintenance.Snapshot, error)
}

// UserStats is a profile, the catalog entries for its badges, and the
// user's most recent submissions.
type UserStats struct {
	Profile           *ledger.Profile          `json:"profile"`
	Badges            []badges.Descriptor      `json:"badges"`
	RecentSubmissions []submissions.Submission `json:"recent_submissions"`
}

// VerificationStats summarizes pipeline throughput and outcomes.
type VerificationStats struct {
	submissions.Counts
	AverageEffectiveness float64   `json:"average_effectiveness"`
	GeneratedAt          time.Time `json:"generated_at"`
}
