package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/LilVoxy/northwind_etl/ETL/config"
	"github.com/LilVoxy/northwind_etl/ETL/models"
	"github.com/LilVoxy/northwind_etl/ETL/utils"
)

// HistorySource provides the job history shown by Status
type HistorySource interface {
	History(ctx context.Context, filter models.HistoryFilter) ([]models.JobRecord, error)
}

// StatusReport is the answer of Status
type StatusReport struct {
	NextRun time.Time          `json:"next_run"`
	Jobs    []models.JobRecord `json:"jobs"`
}

// Scheduler runs the pipeline once or on a daily schedule. Runs never
// overlap: the loop only polls again after a run and its retries finish.
type Scheduler struct {
	job          Job
	policy       RetryPolicy
	schedule     cron.Schedule
	pollInterval time.Duration
	statusLimit  int
	history      HistorySource
	logger       *utils.ETLLogger
	now          func() time.Time
	sleep        SleepFunc
}

// Option customises a Scheduler
type Option func(*Scheduler)

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithSleep replaces the function used for retry delays and polling
func WithSleep(sleep SleepFunc) Option {
	return func(s *Scheduler) {
		s.sleep = sleep
		s.policy.Sleep = sleep
	}
}

// ErrNoJob is returned when a status-only scheduler is asked to run
var ErrNoJob = errors.New("scheduler has no job")

// New creates a scheduler for job from the run and schedule settings. job may
// be nil for a scheduler that only answers Status and NextRun.
func New(job Job, cfg *config.ETLConfig, history HistorySource, logger *utils.ETLLogger, opts ...Option) (*Scheduler, error) {
	spec, err := cfg.Schedule.CronSpec()
	if err != nil {
		return nil, err
	}

	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	s := &Scheduler{
		job: job,
		policy: RetryPolicy{
			MaxAttempts: cfg.ETL.MaxRetries,
			Delay:       cfg.ETL.RetryDelay,
			Sleep:       Sleep,
		},
		schedule:     schedule,
		pollInterval: cfg.Schedule.PollInterval,
		statusLimit:  cfg.Schedule.StatusLimit,
		history:      history,
		logger:       logger,
		now:          time.Now,
		sleep:        Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// NextRun returns the first scheduled run strictly after t
func (s *Scheduler) NextRun(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// RunOnce runs the pipeline with retries and returns the final error
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.job == nil {
		return ErrNoJob
	}
	_, err := s.policy.Run(ctx, s.logger, s.job)
	return err
}

// RunPeriodic runs the pipeline at once, then on every scheduled tick until
// ctx is cancelled. A failure of the first run is returned; failures of
// later ticks are logged and the loop keeps going.
func (s *Scheduler) RunPeriodic(ctx context.Context) error {
	s.logger.Info("Running initial ETL job...")
	if err := s.RunOnce(ctx); err != nil {
		return fmt.Errorf("initial ETL run failed: %w", err)
	}

	s.logStatus(ctx)
	s.logger.Info("Scheduler is running. Press Ctrl+C to stop.")

	next := s.NextRun(s.now())
	for {
		if ctx.Err() != nil {
			s.logger.Info("Scheduler stopped")
			return nil
		}

		now := s.now()
		if now.Before(next) {
			wait := next.Sub(now)
			if wait > s.pollInterval {
				wait = s.pollInterval
			}
			// A cancelled sleep is noticed at the top of the loop
			_ = s.sleep(ctx, wait)
			continue
		}

		if err := s.tick(ctx); err != nil {
			s.logger.Error("Error in scheduler: %v", err)
			next = s.NextRun(s.now())
			s.logger.Info("Next scheduled run: %s", next.Format(time.RFC3339))
			_ = s.sleep(ctx, s.pollInterval)
			continue
		}

		next = s.NextRun(s.now())
		s.logger.Info("Next scheduled run: %s", next.Format(time.RFC3339))
	}
}

// tick runs one scheduled pipeline run. Panics are turned into errors so
// the loop survives them.
func (s *Scheduler) tick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduled run panicked: %v", r)
		}
	}()

	s.logger.Info("Running scheduled ETL job...")
	return s.RunOnce(ctx)
}

// Status returns the next scheduled run and the most recent job records
func (s *Scheduler) Status(ctx context.Context) (*StatusReport, error) {
	jobs, err := s.history.History(ctx, models.HistoryFilter{Limit: s.statusLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to read job history: %w", err)
	}

	return &StatusReport{
		NextRun: s.NextRun(s.now()),
		Jobs:    jobs,
	}, nil
}

func (s *Scheduler) logStatus(ctx context.Context) {
	report, err := s.Status(ctx)
	if err != nil {
		s.logger.Warn("%v", err)
		return
	}

	s.logger.Info("Next scheduled run: %s", report.NextRun.Format(time.RFC3339))
	for _, job := range report.Jobs {
		mark := "✓"
		if job.Status != models.JobSuccess {
			mark = "✗"
		}
		s.logger.Info("%s %s - %s (%.1fs)", mark, job.Name, job.StartTime.Local().Format(time.DateTime), job.Duration())
	}
}
