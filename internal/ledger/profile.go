package ledger

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/JaimeStill/terra/internal/badges"
)

// Profile holds a user's cumulative gamification totals.
type Profile struct {
	UserID          string     `json:"user_id"`
	Points          int64      `json:"points"`
	PoundsCollected float64    `json:"pounds_collected"`
	TotalCleanups   int64      `json:"total_cleanups"`
	CurrentStreak   int64      `json:"current_streak"`
	Badges          []string   `json:"badges"`
	LastCleanupAt   *time.Time `json:"last_cleanup_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Totals projects the profile onto the badge metrics.
func (p *Profile) Totals() badges.Totals {
	return badges.Totals{
		Pounds:   p.PoundsCollected,
		Cleanups: p.TotalCleanups,
		Points:   p.Points,
		Streak:   p.CurrentStreak,
	}
}

// HasBadge reports whether id is already in the badge set.
func (p *Profile) HasBadge(id string) bool {
	return slices.Contains(p.Badges, id)
}

// Check verifies the stored shape before an update is applied.
func (p *Profile) Check() error {
	switch {
	case p.Points < 0:
		return fmt.Errorf("%w: negative points %d", ErrMalformedProfile, p.Points)
	case math.IsNaN(p.PoundsCollected) || math.IsInf(p.PoundsCollected, 0) || p.PoundsCollected < 0:
		return fmt.Errorf("%w: pounds collected %v", ErrMalformedProfile, p.PoundsCollected)
	case p.TotalCleanups < 0:
		return fmt.Errorf("%w: negative cleanups %d", ErrMalformedProfile, p.TotalCleanups)
	case p.CurrentStreak < 0:
		return fmt.Errorf("%w: negative streak %d", ErrMalformedProfile, p.CurrentStreak)
	}
	for _, b := range p.Badges {
		if b == "" {
			return fmt.Errorf("%w: empty badge id", ErrMalformedProfile)
		}
	}
	return nil
}
