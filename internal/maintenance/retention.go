package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/terra/internal/metrics"
)

// Purger deletes audit entries older than a cutoff in bounded batches.
type Purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// Retention removes audit entries that fell out of the retention window.
type Retention struct {
	purger     Purger
	window     time.Duration
	batch      int
	maxBatches int
	logger     *slog.Logger
}

// NewRetention creates the retention job from cfg.
func NewRetention(purger Purger, cfg *Config, logger *slog.Logger) *Retention {
	return &Retention{
		purger:     purger,
		window:     cfg.RetentionWindow(),
		batch:      cfg.BatchSize,
		maxBatches: cfg.MaxBatches,
		logger:     logger.With("system", "retention"),
	}
}

// Run purges batches until one comes back short or maxBatches is reached,
// and returns the number of entries removed.
func (r *Retention) Run(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-r.window)

	var total int64
	for range r.maxBatches {
		n, err := r.purger.PurgeBefore(ctx, cutoff, r.batch)
		total += n
		metrics.AuditPurgedTotal.Add(float64(n))
		if err != nil {
			return total, fmt.Errorf("purge audit entries before %s: %w", cutoff.Format(time.RFC3339), err)
		}
		if n < int64(r.batch) {
			break
		}
	}

	if total == 0 {
		r.logger.InfoContext(ctx, "no audit entries to purge", "cutoff", cutoff)
	} else {
		r.logger.InfoContext(ctx, "purged audit entries", "count", total, "cutoff", cutoff)
	}
	return total, nil
}
