// Package maintenance runs the scheduled jobs that read verification
// data without feeding back into it: audit retention and the daily
// analytics rollup.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/terra/internal/metrics"
	"github.com/JaimeStill/terra/pkg/lifecycle"
)

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" in 24-hour form.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Next returns the first occurrence of c strictly after now, in now's location.
func (c Clock) Next(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), c.Hour, c.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, c.Hour, c.Minute, 0, 0, now.Location())
	}
	return next
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Job is a task run once a day at At.
type Job struct {
	Name string
	At   Clock
	Run  func(ctx context.Context, now time.Time) error
}

// Scheduler runs daily jobs in a fixed timezone.
type Scheduler struct {
	jobs   []Job
	loc    *time.Location
	logger *slog.Logger
	now    func() time.Time
	after  func(time.Duration) <-chan time.Time
}

// NewScheduler creates a Scheduler evaluating job times in loc.
func NewScheduler(loc *time.Location, logger *slog.Logger, jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs:   jobs,
		loc:    loc,
		logger: logger.With("system", "scheduler"),
		now:    time.Now,
		after:  time.After,
	}
}

// Jobs builds the retention and rollup jobs from cfg.
func Jobs(cfg *Config, retention *Retention, rollup *Rollup) ([]Job, error) {
	retentionAt, err := ParseClock(cfg.RetentionAt)
	if err != nil {
		return nil, err
	}
	rollupAt, err := ParseClock(cfg.RollupAt)
	if err != nil {
		return nil, err
	}

	return []Job{
		{
			Name: "retention",
			At:   retentionAt,
			Run: func(ctx context.Context, now time.Time) error {
				_, err := retention.Run(ctx, now)
				return err
			},
		},
		{
			Name: "rollup",
			At:   rollupAt,
			Run: func(ctx context.Context, now time.Time) error {
				_, err := rollup.Run(ctx, now)
				return err
			},
		},
	}, nil
}

// Start runs each job on its own loop under the coordinator.
func (s *Scheduler) Start(lc *lifecycle.Coordinator) error {
	for _, job := range s.jobs {
		s.logger.Info("scheduling job", "job", job.Name, "at", job.At, "timezone", s.loc)
		lc.Run(func(ctx context.Context) {
			s.loop(ctx, job)
		})
	}
	return nil
}

// RunNow runs the named job immediately.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	for _, job := range s.jobs {
		if job.Name == name {
			return s.run(ctx, job)
		}
	}
	return fmt.Errorf("unknown job %q", name)
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	for {
		now := s.now().In(s.loc)
		wait := job.At.Next(now).Sub(now)

		select {
		case <-ctx.Done():
			return
		case <-s.after(wait):
		}

		_ = s.run(ctx, job)
	}
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	start := s.now().In(s.loc)
	err := job.Run(ctx, start)

	result := "success"
	if err != nil {
		result = "error"
		s.logger.ErrorContext(ctx, "job failed", "job", job.Name, "error", err)
	} else {
		s.logger.InfoContext(ctx, "job finished", "job", job.Name, "duration", time.Since(start))
	}
	metrics.MaintenanceRunsTotal.WithLabelValues(job.Name, result).Inc()
	return err
}
