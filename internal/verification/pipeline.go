// Package verification decides whether a cleanup submission is approved.
// A run validates the submission, geofences it against its hotspot,
// compares before and after photos, awards the user on approval, then
// writes the terminal status exactly once and appends an audit entry.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/JaimeStill/terra/internal/audit"
	"github.com/JaimeStill/terra/internal/ledger"
	"github.com/JaimeStill/terra/internal/metrics"
	"github.com/JaimeStill/terra/internal/submissions"
	"github.com/JaimeStill/terra/internal/vision"
)

// DefaultStageTimeout bounds every external call made by a stage.
const DefaultStageTimeout = 30 * time.Second

// ErrAlreadyProcessed is returned when the submission has left pending,
// either before the run started or while it was in progress.
var ErrAlreadyProcessed = errors.New("submission already processed")

// SubmissionStore reads submissions and applies the terminal write.
type SubmissionStore interface {
	Find(ctx context.Context, id uuid.UUID) (*submissions.Submission, error)
	Complete(ctx context.Context, id uuid.UUID, result submissions.Result) error
}

// ImageAnalyzer reports the trash content of one photo.
type ImageAnalyzer interface {
	Analyze(ctx context.Context, locator string) (vision.Report, error)
}

// AuditLog appends verification log entries.
type AuditLog interface {
	Append(ctx context.Context, e audit.Entry) error
}

// Config tunes a Pipeline.
type Config struct {
	Radius       float64
	StageTimeout time.Duration
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Submissions SubmissionStore
	Hotspots    HotspotFinder
	Analyzer    ImageAnalyzer
	Ledger      ledger.Ledger
	Audit       AuditLog
	Logger      *slog.Logger
}

// Pipeline runs the verification state machine for one submission at a time
// per id. Runs for different submissions are independent.
type Pipeline struct {
	subs     SubmissionStore
	location *LocationVerifier
	analyzer ImageAnalyzer
	ledger   ledger.Ledger
	audit    AuditLog
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
	group    singleflight.Group
}

// New creates a Pipeline.
func New(deps Deps, cfg Config) *Pipeline {
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = DefaultStageTimeout
	}
	logger := deps.Logger.With("system", "verification")
	return &Pipeline{
		subs:     deps.Submissions,
		location: NewLocationVerifier(deps.Hotspots, cfg.Radius, deps.Logger),
		analyzer: deps.Analyzer,
		ledger:   deps.Ledger,
		audit:    deps.Audit,
		timeout:  cfg.StageTimeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Process verifies the submission identified by id. Concurrent calls for
// the same id in this process share one run. A submission that is no longer
// pending yields ErrAlreadyProcessed and no writes.
func (p *Pipeline) Process(ctx context.Context, id uuid.UUID) (*Outcome, error) {
	v, err, _ := p.group.Do(id.String(), func() (any, error) {
		return p.run(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Outcome), nil
}

func (p *Pipeline) run(ctx context.Context, id uuid.UUID) (*Outcome, error) {
	start := p.now()

	s, err := stage(ctx, p.timeout, func(ctx context.Context) (*submissions.Submission, error) {
		return p.subs.Find(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("load submission %s: %w", id, err)
	}

	switch s.Status {
	case submissions.StatusPending:
	case submissions.StatusApproved, submissions.StatusRejected, submissions.StatusError:
		p.logger.InfoContext(ctx, "skipping processed submission", "id", id, "status", s.Status)
		metrics.VerificationsTotal.WithLabelValues("skipped").Inc()
		return nil, fmt.Errorf("%w: %s is %s", ErrAlreadyProcessed, id, s.Status)
	default:
		return nil, fmt.Errorf("%w: %q", submissions.ErrInvalidStatus, s.Status)
	}

	p.logger.InfoContext(ctx, "verification started", "id", id, "user_id", s.UserID)

	out := newOutcome(id)
	p.evaluate(ctx, s, out)

	out.VerifiedAt = p.now()
	out.ProcessingMs = out.VerifiedAt.Sub(start).Milliseconds()

	_, err = stage(ctx, p.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.subs.Complete(ctx, id, out.Result())
	})
	if errors.Is(err, submissions.ErrNotPending) {
		p.logger.WarnContext(ctx, "submission completed by a concurrent run", "id", id)
		metrics.VerificationsTotal.WithLabelValues("skipped").Inc()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyProcessed, id)
	}
	if err != nil {
		return nil, fmt.Errorf("complete submission %s: %w", id, err)
	}

	p.record(ctx, s, out)

	metrics.VerificationsTotal.WithLabelValues(string(out.Status)).Inc()
	metrics.RunDurationSeconds.Observe(float64(out.ProcessingMs) / 1000)

	p.logger.InfoContext(ctx, "verification finished",
		"id", id,
		"status", out.Status,
		"stage", out.Stage,
		"processing_ms", out.ProcessingMs,
	)
	return out, nil
}

// evaluate advances out through the stages until one is terminal.
func (p *Pipeline) evaluate(ctx context.Context, s *submissions.Submission, out *Outcome) {
	out.Stage = StageValidating
	t := time.Now()
	v := Validate(*s)
	metrics.ObserveStage(string(StageValidating), t)
	if !v.Valid {
		out.Details.ValidationErrors = v.Violations
		out.reject(v.Message())
		return
	}

	out.Stage = StageLocationCheck
	t = time.Now()
	ok, err := stage(ctx, p.timeout, func(ctx context.Context) (bool, error) {
		return p.location.Verify(ctx, s.UserLocation, s.HotspotID)
	})
	metrics.ObserveStage(string(StageLocationCheck), t)
	out.Details.LocationVerified = ok
	if !ok {
		p.logger.InfoContext(ctx, "location rejected", "id", s.ID, "reason", err)
		out.reject(msgLocationFailed)
		return
	}

	out.Stage = StageImageAnalysis
	t = time.Now()
	before, after, err := p.analyze(ctx, s)
	metrics.ObserveStage(string(StageImageAnalysis), t)
	if err != nil {
		p.logger.ErrorContext(ctx, "image analysis failed", "id", s.ID, "error", err)
		out.fail(fmt.Sprintf("Image analysis failed: %v", err))
		return
	}
	out.Details.ImageAnalysis.Before = &before
	out.Details.ImageAnalysis.After = &after

	out.Stage = StageScoring
	eff := Score(before, after)
	out.Details.ImageAnalysis.Effectiveness = &eff
	if !eff.Approved() {
		out.reject(fmt.Sprintf(msgInsufficient, eff.ReductionPercentage, EffectivenessThreshold))
		return
	}

	out.Stage = StageLedger
	t = time.Now()
	cleanupType := ""
	if s.CleanupType != nil {
		cleanupType = *s.CleanupType
	}
	award, err := stage(ctx, p.timeout, func(ctx context.Context) (*ledger.Award, error) {
		return p.ledger.Award(ctx, ledger.Credit{
			SubmissionID: s.ID,
			UserID:       s.UserID,
			Pounds:       s.ReportedPounds,
			CleanupType:  cleanupType,
		})
	})
	metrics.ObserveStage(string(StageLedger), t)
	if err != nil {
		p.logger.ErrorContext(ctx, "ledger award failed", "id", s.ID, "user_id", s.UserID, "error", err)
		out.fail(fmt.Sprintf("Ledger update failed: %v", err))
		return
	}

	out.approve(eff, award.PointsAwarded, award.BadgesEarned)
}

// analyze runs the before and after analyses concurrently. The first
// failure cancels the other.
func (p *Pipeline) analyze(ctx context.Context, s *submissions.Submission) (before, after vision.Report, err error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := p.analyzer.Analyze(gctx, s.BeforePhotoURL)
		if err != nil {
			return fmt.Errorf("before photo: %w", err)
		}
		before = r
		return nil
	})
	g.Go(func() error {
		r, err := p.analyzer.Analyze(gctx, s.AfterPhotoURL)
		if err != nil {
			return fmt.Errorf("after photo: %w", err)
		}
		after = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return vision.Report{}, vision.Report{}, err
	}
	return before, after, nil
}

// record appends the audit entry. Failures are logged and counted only.
func (p *Pipeline) record(ctx context.Context, s *submissions.Submission, out *Outcome) {
	if p.audit == nil {
		return
	}
	_, err := stage(ctx, p.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.audit.Append(ctx, out.Entry(s))
	})
	if err != nil {
		metrics.AuditFailuresTotal.Inc()
		p.logger.WarnContext(ctx, "audit append failed", "id", s.ID, "error", err)
	}
}

func stage[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
