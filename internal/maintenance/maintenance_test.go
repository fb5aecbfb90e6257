package maintenance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/JaimeStill/terra/pkg/lifecycle"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("02:30")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 2, Minute: 30}, c)
	assert.Equal(t, "02:30", c.String())

	for _, bad := range []string{"", "2am", "25:00", "12:61"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestClockNext(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	at := Clock{Hour: 2}

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"later today", time.Date(2026, 3, 1, 1, 0, 0, 0, time.UTC), time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)},
		{"exactly now rolls over", time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC)},
		{"already passed", time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC)},
		{"month end", time.Date(2026, 1, 31, 5, 0, 0, 0, time.UTC), time.Date(2026, 2, 1, 2, 0, 0, 0, time.UTC)},
		{"in location", time.Date(2026, 6, 1, 12, 0, 0, 0, la), time.Date(2026, 6, 2, 2, 0, 0, 0, la)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(at.Next(tt.now)), "got %s", at.Next(tt.now))
		})
	}
}

func TestConfigFinalize(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		var c Config
		require.NoError(t, c.Finalize(nil))
		assert.False(t, c.Enabled)
		assert.Equal(t, 30*24*time.Hour, c.RetentionWindow())
		assert.Equal(t, 500, c.BatchSize)
		assert.Equal(t, "America/Los_Angeles", c.Location().String())
	})

	t.Run("env", func(t *testing.T) {
		t.Setenv("TEST_MAINT_ENABLED", "true")
		t.Setenv("TEST_MAINT_DAYS", "7")
		var c Config
		require.NoError(t, c.Finalize(&Env{Enabled: "TEST_MAINT_ENABLED", RetentionDays: "TEST_MAINT_DAYS"}))
		assert.True(t, c.Enabled)
		assert.Equal(t, 7, c.RetentionDays)
	})

	t.Run("invalid", func(t *testing.T) {
		for name, c := range map[string]Config{
			"clock":    {RollupAt: "3pm"},
			"timezone": {Timezone: "Mars/Olympus"},
			"days":     {RetentionDays: -1},
		} {
			assert.Error(t, c.Finalize(nil), name)
		}
	})
}

type fakePurger struct {
	remaining int64
	cutoffs   []time.Time
	err       error
}

func (f *fakePurger) PurgeBefore(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	if f.err != nil {
		return 0, f.err
	}
	n := min(f.remaining, int64(limit))
	f.remaining -= n
	return n, nil
}

func retentionConfig(t *testing.T, batch, maxBatches int) *Config {
	t.Helper()
	c := &Config{BatchSize: batch, MaxBatches: maxBatches}
	require.NoError(t, c.Finalize(nil))
	return c
}

func TestRetentionDrainsInBatches(t *testing.T) {
	p := &fakePurger{remaining: 1100}
	now := time.Date(2026, 5, 31, 2, 0, 0, 0, time.UTC)

	n, err := NewRetention(p, retentionConfig(t, 500, 10), discard()).Run(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, int64(1100), n)
	assert.Len(t, p.cutoffs, 3)
	assert.Equal(t, time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC), p.cutoffs[0])
}

func TestRetentionStopsAtMaxBatches(t *testing.T) {
	p := &fakePurger{remaining: 5000}

	n, err := NewRetention(p, retentionConfig(t, 500, 2), discard()).Run(context.Background(), time.Now())

	require.NoError(t, err)
	assert.Equal(t, int64(1000), n)
	assert.Equal(t, int64(4000), p.remaining)
}

func TestRetentionNothingToPurge(t *testing.T) {
	p := &fakePurger{}

	n, err := NewRetention(p, retentionConfig(t, 500, 10), discard()).Run(context.Background(), time.Now())

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, p.cutoffs, 1)
}

func TestRetentionError(t *testing.T) {
	p := &fakePurger{err: errors.New("lock timeout")}

	_, err := NewRetention(p, retentionConfig(t, 500, 10), discard()).Run(context.Background(), time.Now())

	assert.ErrorContains(t, err, "lock timeout")
}

func TestRollupRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 5, 31, 3, 0, 0, 0, time.UTC)
	day := now.Add(-24 * time.Hour)
	week := now.Add(-7 * 24 * time.Hour)
	month := now.Add(-30 * 24 * time.Hour)

	mock.ExpectQuery("FROM submissions").
		WithArgs(day, week, month).
		WillReturnRows(sqlmock.NewRows([]string{"d", "w", "m", "ad", "aw", "am", "pounds"}).
			AddRow(10, 40, 100, 8, 30, 75, 250.5))
	mock.ExpectQuery("FROM user_profiles").
		WithArgs(day, week, month).
		WillReturnRows(sqlmock.NewRows([]string{"d", "w", "m"}).AddRow(2, 5, 12))
	mock.ExpectExec("INSERT INTO analytics_daily").
		WithArgs(time.Date(2026, 5, 30, 0, 0, 0, 0, time.UTC), sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s, err := NewRollup(db, discard()).Run(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, Window{10, 40, 100}, s.Submissions)
	assert.Equal(t, Window{8, 30, 75}, s.Approved)
	assert.Equal(t, Window{2, 5, 12}, s.NewUsers)
	assert.InDelta(t, 80, s.ApprovalRates.Daily, 1e-9)
	assert.InDelta(t, 75, s.ApprovalRates.Weekly, 1e-9)
	assert.InDelta(t, 75, s.ApprovalRates.Monthly, 1e-9)
	assert.Equal(t, Impact{PoundsLastMonth: 250.5, CarbonSaved: 125.25, ApproximateItems: 2004}, s.Impact)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRollupEmptyPeriod(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM submissions").
		WillReturnRows(sqlmock.NewRows([]string{"d", "w", "m", "ad", "aw", "am", "pounds"}).
			AddRow(0, 0, 0, 0, 0, 0, 0.0))
	mock.ExpectQuery("FROM user_profiles").
		WillReturnRows(sqlmock.NewRows([]string{"d", "w", "m"}).AddRow(0, 0, 0))
	mock.ExpectExec("INSERT INTO analytics_daily").WillReturnResult(sqlmock.NewResult(0, 1))

	s, err := NewRollup(db, discard()).Run(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, Rates{}, s.ApprovalRates)
	assert.Equal(t, Impact{}, s.Impact)
}

func TestRollupQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM submissions").WillReturnError(sql.ErrConnDone)

	_, err = NewRollup(db, discard()).Run(context.Background(), time.Now())

	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestRollupLatest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	stored := Snapshot{Submissions: Window{Daily: 3}, Impact: Impact{PoundsLastMonth: 12}}
	data, err := json.Marshal(stored)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT data FROM analytics_daily").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(data))
	mock.ExpectQuery("SELECT data FROM analytics_daily").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	r := NewRollup(db, discard())

	got, err := r.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, got.Submissions.Daily)
	assert.Equal(t, 12.0, got.Impact.PoundsLastMonth)

	_, err = r.Latest(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestSchedulerRunsJobAtTime(t *testing.T) {
	var (
		mu    sync.Mutex
		waits []time.Duration
		runs  int
	)

	lc := lifecycle.New()
	job := Job{
		Name: "rollup",
		At:   Clock{Hour: 3},
		Run: func(ctx context.Context, now time.Time) error {
			mu.Lock()
			runs++
			mu.Unlock()
			return nil
		},
	}

	s := NewScheduler(time.UTC, discard(), job)
	s.now = func() time.Time { return time.Date(2026, 5, 31, 1, 30, 0, 0, time.UTC) }
	fired := make(chan time.Time)
	s.after = func(d time.Duration) <-chan time.Time {
		mu.Lock()
		waits = append(waits, d)
		mu.Unlock()
		return fired
	}

	require.NoError(t, s.Start(lc))
	fired <- time.Time{}
	fired <- time.Time{}
	require.NoError(t, lc.Shutdown(time.Second))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, runs)
	require.NotEmpty(t, waits)
	assert.Equal(t, 90*time.Minute, waits[0])
}

func TestSchedulerRunNow(t *testing.T) {
	called := false
	s := NewScheduler(time.UTC, discard(), Job{
		Name: "retention",
		Run: func(context.Context, time.Time) error {
			called = true
			return errors.New("purge failed")
		},
	})

	err := s.RunNow(context.Background(), "retention")
	assert.ErrorContains(t, err, "purge failed")
	assert.True(t, called)

	assert.ErrorContains(t, s.RunNow(context.Background(), "leaderboards"), "unknown job")
}

func TestJobs(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Finalize(nil))

	jobs, err := Jobs(cfg, NewRetention(&fakePurger{}, cfg, discard()), NewRollup(nil, discard()))
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "retention", jobs[0].Name)
	assert.Equal(t, Clock{Hour: 2}, jobs[0].At)
	assert.Equal(t, "rollup", jobs[1].Name)
	assert.Equal(t, Clock{Hour: 3}, jobs[1].At)

	require.NoError(t, jobs[0].Run(context.Background(), time.Now()))
}
