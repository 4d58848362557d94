package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/LilVoxy/northwind_etl/ETL/models"
	"github.com/LilVoxy/northwind_etl/ETL/utils"
)

var (
	// ErrJobNotFound is returned by End for an id that Start never returned
	ErrJobNotFound = errors.New("job was never started")
	// ErrJobAlreadyEnded is returned by End for a record that already has an outcome
	ErrJobAlreadyEnded = errors.New("job already ended")
)

// JobTracker records the start, end, duration and outcome of pipeline phases
// in the job_metadata audit log.
type JobTracker struct {
	repo   models.JobRepository
	logger *utils.ETLLogger
	now    func() time.Time
	runID  string
}

// NewJobTracker creates a new JobTracker
func NewJobTracker(repo models.JobRepository, logger *utils.ETLLogger) *JobTracker {
	return &JobTracker{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the wall clock
func (t *JobTracker) SetClock(now func() time.Time) {
	t.now = now
}

// SetRunID sets the run id stored with every record started afterwards
func (t *JobTracker) SetRunID(runID string) {
	t.runID = runID
}

// Init creates the job_metadata table if it does not exist
func (t *JobTracker) Init(ctx context.Context) error {
	return t.repo.CreateJobTable(ctx)
}

// Start records a running job and returns its id
func (t *JobTracker) Start(ctx context.Context, name string) (int64, error) {
	id, err := t.repo.InsertJob(ctx, t.runID, name, t.now())
	if err != nil {
		return 0, err
	}

	t.logger.Info("Job %s started (id=%d)", name, id)
	return id, nil
}

// End stores the outcome of a job and returns its duration in seconds.
// jobErr may be nil.
func (t *JobTracker) End(ctx context.Context, id int64, status models.JobStatus, jobErr error) (float64, error) {
	record, err := t.repo.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("end job %d: %w", id, ErrJobNotFound)
		}
		return 0, err
	}
	if record.EndTime != nil || record.Status != models.JobRunning {
		return 0, fmt.Errorf("end job %d (%s): %w", id, record.Name, ErrJobAlreadyEnded)
	}

	end := t.now()
	if end.Before(record.StartTime) {
		end = record.StartTime
	}
	duration := end.Sub(record.StartTime).Seconds()

	var message sql.NullString
	if jobErr != nil {
		message = sql.NullString{String: jobErr.Error(), Valid: true}
	}

	if err := t.repo.FinishJob(ctx, id, end, status, message, duration); err != nil {
		return 0, err
	}

	if status == models.JobSuccess {
		t.logger.Info("Job %s finished with status %s in %.2fs", record.Name, status, duration)
	} else {
		t.logger.Error("Job %s finished with status %s in %.2fs: %v", record.Name, status, duration, jobErr)
	}

	return duration, nil
}

// History returns records most recent first. A zero Limit returns every match.
func (t *JobTracker) History(ctx context.Context, filter models.HistoryFilter) ([]models.JobRecord, error) {
	return t.repo.ListJobs(ctx, filter)
}

// Track runs fn between Start and End. The error of fn is recorded and returned unchanged.
func (t *JobTracker) Track(ctx context.Context, name string, fn func() error) error {
	id, err := t.Start(ctx, name)
	if err != nil {
		return err
	}

	fnErr := fn()

	status := models.JobSuccess
	if fnErr != nil {
		status = models.JobFailed
	}

	// The outcome is recorded even when ctx was cancelled by fn
	if _, err := t.End(context.WithoutCancel(ctx), id, status, fnErr); err != nil {
		if fnErr != nil {
			return errors.Join(fnErr, err)
		}
		return err
	}

	return fnErr
}
