// routes/status_handlers.go
package routes

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/LilVoxy/northwind_etl/ETL/models"
	"github.com/LilVoxy/northwind_etl/ETL/scheduler"
	"github.com/LilVoxy/northwind_etl/ETL/utils"
)

// JobInfo is a job_metadata record as served by the API
type JobInfo struct {
	ID              int64            `json:"job_id"`
	RunID           string           `json:"run_id,omitempty"`
	Name            string           `json:"job_name"`
	StartTime       time.Time        `json:"start_time"`
	EndTime         *time.Time       `json:"end_time,omitempty"`
	Status          models.JobStatus `json:"status"`
	ErrorMessage    *string          `json:"error_message,omitempty"`
	DurationSeconds *float64         `json:"duration_seconds,omitempty"`
}

// JobsResponse is the answer of /api/jobs
type JobsResponse struct {
	Jobs []JobInfo `json:"jobs"`
}

// StatusResponse is the answer of /api/status
type StatusResponse struct {
	NextRun time.Time `json:"next_run"`
	Jobs    []JobInfo `json:"jobs"`
}

func toJobInfo(records []models.JobRecord) []JobInfo {
	jobs := make([]JobInfo, 0, len(records))
	for _, r := range records {
		job := JobInfo{
			ID:        r.ID,
			RunID:     r.RunID,
			Name:      r.Name,
			StartTime: r.StartTime,
			EndTime:   r.EndTime,
			Status:    r.Status,
		}
		if r.ErrorMessage.Valid {
			msg := r.ErrorMessage.String
			job.ErrorMessage = &msg
		}
		if r.DurationSeconds.Valid {
			d := r.DurationSeconds.Float64
			job.DurationSeconds = &d
		}
		jobs = append(jobs, job)
	}
	return jobs
}

func writeJSON(w http.ResponseWriter, logger *utils.ETLLogger, response any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("Failed to encode JSON response: %v", err)
	}
}

// GetStatusHandler serves the next scheduled run and the latest jobs
func GetStatusHandler(status StatusProvider, logger *utils.ETLLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := status.Status(r.Context())
		if err != nil {
			logger.Error("Failed to build status report: %v", err)
			http.Error(w, "failed to read job history", http.StatusInternalServerError)
			return
		}

		writeJSON(w, logger, StatusResponse{
			NextRun: report.NextRun,
			Jobs:    toJobInfo(report.Jobs),
		})
	}
}

// GetJobsHandler serves the job history. Query parameters: name, limit,
// since and until (RFC 3339).
func GetJobsHandler(history scheduler.HistorySource, logger *utils.ETLLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		filter := models.HistoryFilter{JobName: query.Get("name")}

		if v := query.Get("limit"); v != "" {
			limit, err := strconv.Atoi(v)
			if err != nil || limit < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			filter.Limit = limit
		}

		for _, bound := range []struct {
			param string
			dst   *time.Time
		}{
			{"since", &filter.Since},
			{"until", &filter.Until},
		} {
			v := query.Get(bound.param)
			if v == "" {
				continue
			}
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				http.Error(w, "invalid "+bound.param+", expected RFC 3339", http.StatusBadRequest)
				return
			}
			*bound.dst = t
		}

		records, err := history.History(r.Context(), filter)
		if err != nil {
			logger.Error("Failed to read job history: %v", err)
			http.Error(w, "failed to read job history", http.StatusInternalServerError)
			return
		}

		writeJSON(w, logger, JobsResponse{Jobs: toJobInfo(records)})
	}
}
