package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LilVoxy/northwind_etl/ETL/config"
	"github.com/LilVoxy/northwind_etl/ETL/models"
	"github.com/LilVoxy/northwind_etl/ETL/utils"
)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

type fakeHistory struct {
	records []models.JobRecord
	filter  models.HistoryFilter
	err     error
}

func (h *fakeHistory) History(_ context.Context, filter models.HistoryFilter) ([]models.JobRecord, error) {
	h.filter = filter
	return h.records, h.err
}

func testConfig() *config.ETLConfig {
	cfg := config.Default()
	cfg.ETL.MaxRetries = 3
	cfg.ETL.RetryDelay = 5 * time.Minute
	cfg.Schedule.DailyAt = "00:00"
	cfg.Schedule.PollInterval = time.Minute
	cfg.Schedule.StatusLimit = 5
	return cfg
}

func newTestScheduler(t *testing.T, job Job, clock *fakeClock, history HistorySource) *Scheduler {
	t.Helper()
	if history == nil {
		history = &fakeHistory{}
	}
	s, err := New(job, testConfig(), history, utils.NewNopLogger(), WithClock(clock.Now), WithSleep(clock.Sleep))
	require.NoError(t, err)
	return s
}

func TestRetryPolicy_SucceedsOnThirdAttempt(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	policy := RetryPolicy{MaxAttempts: 3, Delay: 5 * time.Minute, Sleep: clock.Sleep}

	calls := 0
	job := JobFunc(func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("source unavailable")
		}
		return nil
	})

	attempts, err := policy.Run(context.Background(), utils.NewNopLogger(), job)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{5 * time.Minute, 5 * time.Minute}, clock.sleeps)
}

func TestRetryPolicy_Exhausted(t *testing.T) {
	clock := &fakeClock{}
	policy := RetryPolicy{MaxAttempts: 3, Delay: time.Second, Sleep: clock.Sleep}

	lastErr := errors.New("still down")
	attempts, err := policy.Run(context.Background(), utils.NewNopLogger(), JobFunc(func(ctx context.Context) error {
		return lastErr
	}))

	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorIs(t, err, lastErr)
	assert.Len(t, clock.sleeps, 2)
}

func TestRetryPolicy_FatalIsNotRetried(t *testing.T) {
	clock := &fakeClock{}
	policy := RetryPolicy{MaxAttempts: 3, Delay: time.Second, Sleep: clock.Sleep}

	missing := errors.New("world cities dataset not found")
	calls := 0
	attempts, err := policy.Run(context.Background(), utils.NewNopLogger(), JobFunc(func(ctx context.Context) error {
		calls++
		return AsFatal(missing)
	}))

	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, missing)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
	assert.Empty(t, clock.sleeps)
}

func TestRetryPolicy_CancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxAttempts: 3, Delay: time.Hour, Sleep: func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}}

	attempts, err := policy.Run(ctx, utils.NewNopLogger(), JobFunc(func(ctx context.Context) error {
		return errors.New("boom")
	}))

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, Success, Classify(nil).Outcome)
	assert.Equal(t, Retryable, Classify(errors.New("x")).Outcome)
	assert.Equal(t, Fatal, Classify(AsFatal(errors.New("x"))).Outcome)
	assert.Equal(t, Fatal, Classify(context.Canceled).Outcome)
	assert.Nil(t, AsFatal(nil))
	assert.Equal(t, "retryable", Retryable.String())
}

func TestScheduler_NextRun(t *testing.T) {
	s := newTestScheduler(t, JobFunc(func(context.Context) error { return nil }), &fakeClock{}, nil)

	tests := []struct {
		from time.Time
		want time.Time
	}{
		{time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.NextRun(tt.from))
	}
}

func TestScheduler_RunOnce(t *testing.T) {
	clock := &fakeClock{}
	calls := 0
	s := newTestScheduler(t, JobFunc(func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}), clock, nil)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{5 * time.Minute, 5 * time.Minute}, clock.sleeps)
}

func TestScheduler_RunPeriodic(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 23, 58, 30, 0, time.UTC)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs []time.Time
	s := newTestScheduler(t, JobFunc(func(context.Context) error {
		runs = append(runs, clock.Now())
		if len(runs) == 3 {
			cancel()
		}
		return nil
	}), clock, nil)

	require.NoError(t, s.RunPeriodic(ctx))

	assert.Equal(t, []time.Time{
		time.Date(2024, 3, 1, 23, 58, 30, 0, time.UTC),
		time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
	}, runs)

	// Polling never sleeps longer than the poll interval
	for _, d := range clock.sleeps {
		assert.LessOrEqual(t, d, time.Minute)
	}
}

func TestScheduler_RunPeriodicInitialFailureIsFatal(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	calls := 0
	s := newTestScheduler(t, JobFunc(func(context.Context) error {
		calls++
		return errors.New("source unavailable")
	}), clock, nil)

	err := s.RunPeriodic(context.Background())
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 3, calls)
}

func TestScheduler_RunPeriodicSurvivesTickFailures(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	s := newTestScheduler(t, func(context.Context) Result {
		calls++
		switch calls {
		case 1:
			return Result{Outcome: Success}
		case 2:
			panic("corrupt state")
		case 3:
			return Result{Outcome: Fatal, Err: errors.New("bad reference data")}
		default:
			cancel()
			return Result{Outcome: Success}
		}
	}, clock, nil)

	require.NoError(t, s.RunPeriodic(ctx))
	assert.Equal(t, 4, calls)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), clock.Now())
}

func TestScheduler_Status(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	history := &fakeHistory{records: []models.JobRecord{
		{ID: 2, Name: "load_data", Status: models.JobSuccess},
		{ID: 1, Name: "extract_data", Status: models.JobFailed},
	}}
	s := newTestScheduler(t, JobFunc(func(context.Context) error { return nil }), clock, history)

	report, err := s.Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), report.NextRun)
	assert.Len(t, report.Jobs, 2)
	assert.Equal(t, 5, history.filter.Limit)

	history.err = errors.New("no such table")
	_, err = s.Status(context.Background())
	assert.Error(t, err)
}

func TestScheduler_StatusOnly(t *testing.T) {
	s := newTestScheduler(t, nil, &fakeClock{}, nil)

	assert.ErrorIs(t, s.RunOnce(context.Background()), ErrNoJob)
	_, err := s.Status(context.Background())
	assert.NoError(t, err)
}
