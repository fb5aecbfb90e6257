package maintenance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoSnapshot is returned when no rollup has been generated yet.
var ErrNoSnapshot = errors.New("no analytics snapshot")

var (
	carbonPerPound = decimal.NewFromFloat(0.5)
	itemsPerPound  = decimal.NewFromInt(8)
)

// Window counts something over the last day, week and month.
type Window struct {
	Daily   int `json:"daily"`
	Weekly  int `json:"weekly"`
	Monthly int `json:"monthly"`
}

// Rates are approval percentages over the same windows.
type Rates struct {
	Daily   float64 `json:"daily"`
	Weekly  float64 `json:"weekly"`
	Monthly float64 `json:"monthly"`
}

// Impact estimates the environmental effect of approved cleanups in the
// last month.
type Impact struct {
	PoundsLastMonth  float64 `json:"totalPoundsCollectedLastMonth"`
	CarbonSaved      float64 `json:"estimatedCarbonSaved"`
	ApproximateItems int64   `json:"approximateItems"`
}

// Snapshot is one day's analytics rollup.
type Snapshot struct {
	Day           time.Time `json:"date"`
	Submissions   Window    `json:"submissions"`
	Approved      Window    `json:"approved"`
	ApprovalRates Rates     `json:"approvalRates"`
	NewUsers      Window    `json:"users"`
	Impact        Impact    `json:"environmentalImpact"`
	GeneratedAt   time.Time `json:"generatedAt"`
}

// Rollup aggregates submissions and profiles into analytics_daily.
type Rollup struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRollup creates the rollup job.
func NewRollup(db *sql.DB, logger *slog.Logger) *Rollup {
	return &Rollup{
		db:     db,
		logger: logger.With("system", "rollup"),
	}
}

// Run computes the snapshot for the day before now and upserts it.
func (r *Rollup) Run(ctx context.Context, now time.Time) (*Snapshot, error) {
	day := now.Add(-24 * time.Hour)
	week := now.Add(-7 * 24 * time.Hour)
	month := now.Add(-30 * 24 * time.Hour)

	s := &Snapshot{
		Day:         time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location()),
		GeneratedAt: now,
	}

	var pounds float64
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE created_at >= $1),
			COUNT(*) FILTER (WHERE created_at >= $2),
			COUNT(*),
			COUNT(*) FILTER (WHERE created_at >= $1 AND status = 'approved'),
			COUNT(*) FILTER (WHERE created_at >= $2 AND status = 'approved'),
			COUNT(*) FILTER (WHERE status = 'approved'),
			COALESCE(SUM(reported_pounds) FILTER (WHERE status = 'approved'), 0)
		FROM submissions
		WHERE created_at >= $3`,
		day, week, month,
	).Scan(
		&s.Submissions.Daily,
		&s.Submissions.Weekly,
		&s.Submissions.Monthly,
		&s.Approved.Daily,
		&s.Approved.Weekly,
		&s.Approved.Monthly,
		&pounds,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate submissions: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE created_at >= $1),
			COUNT(*) FILTER (WHERE created_at >= $2),
			COUNT(*)
		FROM user_profiles
		WHERE created_at >= $3`,
		day, week, month,
	).Scan(&s.NewUsers.Daily, &s.NewUsers.Weekly, &s.NewUsers.Monthly)
	if err != nil {
		return nil, fmt.Errorf("aggregate users: %w", err)
	}

	s.ApprovalRates = Rates{
		Daily:   rate(s.Approved.Daily, s.Submissions.Daily),
		Weekly:  rate(s.Approved.Weekly, s.Submissions.Weekly),
		Monthly: rate(s.Approved.Monthly, s.Submissions.Monthly),
	}
	s.Impact = estimateImpact(pounds)

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO analytics_daily (day, data, generated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (day) DO UPDATE
		SET data = EXCLUDED.data, generated_at = EXCLUDED.generated_at`,
		s.Day, data, s.GeneratedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("store snapshot: %w", err)
	}

	r.logger.InfoContext(ctx, "analytics rollup stored",
		"day", s.Day.Format(time.DateOnly),
		"daily_submissions", s.Submissions.Daily,
		"weekly_submissions", s.Submissions.Weekly,
		"pounds_last_month", pounds,
	)
	return s, nil
}

// Latest returns the most recent snapshot.
func (r *Rollup) Latest(ctx context.Context) (*Snapshot, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM analytics_daily ORDER BY day DESC LIMIT 1`,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

func rate(approved, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(approved) / float64(total) * 100
}

func estimateImpact(pounds float64) Impact {
	p := decimal.NewFromFloat(pounds)
	return Impact{
		PoundsLastMonth:  pounds,
		CarbonSaved:      p.Mul(carbonPerPound).InexactFloat64(),
		ApproximateItems: p.Mul(itemsPerPound).Round(0).IntPart(),
	}
}
