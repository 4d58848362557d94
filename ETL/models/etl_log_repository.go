package models

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/LilVoxy/northwind_etl/ETL/config"
)

// timeLayout is fixed-width so that stored timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// SQLJobRepository implements JobRepository on the warehouse store
type SQLJobRepository struct {
	db      *sql.DB
	dialect config.Dialect
}

// NewSQLJobRepository creates a new SQLJobRepository
func NewSQLJobRepository(db *sql.DB, dialect config.Dialect) *SQLJobRepository {
	return &SQLJobRepository{
		db:      db,
		dialect: dialect,
	}
}

// CreateJobTable creates the job_metadata table if it does not exist
func (r *SQLJobRepository) CreateJobTable(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS job_metadata (
		job_id %s,
		run_id VARCHAR(64),
		job_name VARCHAR(255) NOT NULL,
		start_time VARCHAR(40) NOT NULL,
		end_time VARCHAR(40),
		status VARCHAR(16) NOT NULL,
		error_message TEXT,
		duration_seconds DOUBLE PRECISION,
		created_at VARCHAR(40) NOT NULL
	)`, r.dialect.AutoIncrementKey)

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create job_metadata table: %w", err)
	}

	return nil
}

// InsertJob stores a new running record
func (r *SQLJobRepository) InsertJob(ctx context.Context, runID, name string, startTime time.Time) (int64, error) {
	stamp := formatTime(startTime)
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO job_metadata (run_id, job_name, start_time, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, name, stamp, string(JobRunning), stamp,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert job %q: %w", name, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read id of job %q: %w", name, err)
	}

	return id, nil
}

// GetJob returns a record by id
func (r *SQLJobRepository) GetJob(ctx context.Context, id int64) (*JobRecord, error) {
	row := r.db.QueryRowContext(ctx, selectJobs+` WHERE job_id = ?`, id)

	record, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read job %d: %w", id, err)
	}

	return record, nil
}

// FinishJob stores the outcome of a record
func (r *SQLJobRepository) FinishJob(ctx context.Context, id int64, endTime time.Time, status JobStatus, errorMessage sql.NullString, duration float64) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE job_metadata
	SET end_time = ?, status = ?, error_message = ?, duration_seconds = ?
	WHERE job_id = ?`,
		formatTime(endTime), string(status), errorMessage, duration, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update job %d: %w", id, err)
	}

	return nil
}

// ListJobs returns records most recent first
func (r *SQLJobRepository) ListJobs(ctx context.Context, filter HistoryFilter) ([]JobRecord, error) {
	var (
		conditions []string
		args       []any
	)

	if filter.JobName != "" {
		conditions = append(conditions, "job_name = ?")
		args = append(args, filter.JobName)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "start_time >= ?")
		args = append(args, formatTime(filter.Since))
	}
	if !filter.Until.IsZero() {
		conditions = append(conditions, "start_time <= ?")
		args = append(args, formatTime(filter.Until))
	}

	query := selectJobs
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_time DESC, job_id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query job history: %w", err)
	}
	defer rows.Close()

	var records []JobRecord
	for rows.Next() {
		record, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job record: %w", err)
		}
		records = append(records, *record)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate job history: %w", err)
	}

	return records, nil
}

const selectJobs = `SELECT job_id, run_id, job_name, start_time, end_time, status, error_message, duration_seconds FROM job_metadata`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*JobRecord, error) {
	var (
		record    JobRecord
		runID     sql.NullString
		startTime string
		endTime   sql.NullString
		status    string
	)

	err := s.Scan(&record.ID, &runID, &record.Name, &startTime, &endTime, &status, &record.ErrorMessage, &record.DurationSeconds)
	if err != nil {
		return nil, err
	}

	record.RunID = runID.String
	record.Status = JobStatus(status)

	record.StartTime, err = time.Parse(timeLayout, startTime)
	if err != nil {
		return nil, fmt.Errorf("invalid start_time %q: %w", startTime, err)
	}
	if endTime.Valid {
		end, err := time.Parse(timeLayout, endTime.String)
		if err != nil {
			return nil, fmt.Errorf("invalid end_time %q: %w", endTime.String, err)
		}
		record.EndTime = &end
	}

	return &record, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
