package models

import (
	"context"
	"database/sql"
	"time"
)

// JobStatus is the state of a job_metadata record
type JobStatus string

const (
	JobRunning JobStatus = "running"
	JobSuccess JobStatus = "success"
	JobFailed  JobStatus = "failed"
)

// JobRecord is one row of job_metadata: a single execution of a pipeline phase
type JobRecord struct {
	ID              int64           `json:"job_id"`
	RunID           string          `json:"run_id,omitempty"`
	Name            string          `json:"job_name"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         *time.Time      `json:"end_time,omitempty"`
	Status          JobStatus       `json:"status"`
	ErrorMessage    sql.NullString  `json:"-"`
	DurationSeconds sql.NullFloat64 `json:"-"`
}

// Duration returns the recorded duration, or zero while the job is running
func (r JobRecord) Duration() float64 {
	if !r.DurationSeconds.Valid {
		return 0
	}
	return r.DurationSeconds.Float64
}

// HistoryFilter narrows a job history query. Zero values mean "no bound".
type HistoryFilter struct {
	JobName string
	Since   time.Time
	Until   time.Time
	Limit   int
}

// JobRepository persists job_metadata records
type JobRepository interface {
	// CreateJobTable creates job_metadata if it does not exist
	CreateJobTable(ctx context.Context) error

	// InsertJob stores a new running record and returns its id
	InsertJob(ctx context.Context, runID, name string, startTime time.Time) (int64, error)

	// GetJob returns a record by id, or sql.ErrNoRows
	GetJob(ctx context.Context, id int64) (*JobRecord, error)

	// FinishJob stores the outcome of a record
	FinishJob(ctx context.Context, id int64, endTime time.Time, status JobStatus, errorMessage sql.NullString, duration float64) error

	// ListJobs returns records most recent first
	ListJobs(ctx context.Context, filter HistoryFilter) ([]JobRecord, error)
}
