package ledger

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/JaimeStill/terra/internal/metrics"
)

// RetryConfig bounds conflict retries.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig returns five attempts starting at 20ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   20 * time.Millisecond,
		MaxDelay:    500 * time.Millisecond,
	}
}

type retrying struct {
	next   Ledger
	cfg    RetryConfig
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// Retrying wraps next so ErrConflict is retried with jittered exponential
// backoff. Every other error, including ErrProfileNotFound and
// ErrMalformedProfile, is returned on first occurrence.
func Retrying(next Ledger, cfg RetryConfig, logger *slog.Logger) Ledger {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &retrying{
		next:   next,
		cfg:    cfg,
		logger: logger.With("system", "ledger"),
		sleep:  sleepContext,
	}
}

func (r *retrying) Award(ctx context.Context, c Credit) (*Award, error) {
	var err error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		var award *Award
		award, err = r.next.Award(ctx, c)
		if err == nil {
			return award, nil
		}
		if !errors.Is(err, ErrConflict) || attempt == r.cfg.MaxAttempts {
			break
		}

		metrics.LedgerConflictsTotal.Inc()
		delay := r.backoff(attempt)
		r.logger.WarnContext(ctx, "profile update conflict, retrying",
			"submission_id", c.SubmissionID,
			"user_id", c.UserID,
			"attempt", attempt,
			"delay", delay,
		)
		if serr := r.sleep(ctx, delay); serr != nil {
			return nil, serr
		}
	}
	return nil, err
}

func (r *retrying) backoff(attempt int) time.Duration {
	d := r.cfg.BaseDelay << (attempt - 1)
	if r.cfg.MaxDelay > 0 && d > r.cfg.MaxDelay {
		d = r.cfg.MaxDelay
	}
	if d <= 0 {
		return 0
	}
	// jitter over [d/2, d)
	half := d / 2
	return half + rand.N(d-half)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
