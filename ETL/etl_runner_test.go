package main

import (
	"bytes"
	"database/sql"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/LilVoxy/northwind_etl/ETL/models"
	"github.com/LilVoxy/northwind_etl/ETL/scheduler"
)

func TestRenderStatus(t *testing.T) {
	color.NoColor = true

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	report := &scheduler.StatusReport{
		NextRun: start.Add(24 * time.Hour),
		Jobs: []models.JobRecord{
			{
				ID: 3, RunID: "0f8fad5b-d9cb-469f-a165-70867728950e", Name: "load_data", StartTime: start,
				Status: models.JobFailed, ErrorMessage: sql.NullString{String: "disk full", Valid: true},
				DurationSeconds: sql.NullFloat64{Float64: 2.5, Valid: true},
			},
			{ID: 2, Name: "transform_data", StartTime: start, Status: models.JobRunning},
		},
	}

	var out bytes.Buffer
	renderStatus(&out, report)

	text := out.String()
	assert.Contains(t, text, "Next scheduled run:")
	assert.Contains(t, text, "0f8fad5b")
	assert.NotContains(t, text, "0f8fad5b-d9cb")
	assert.Contains(t, text, "✗ failed")
	assert.Contains(t, text, "disk full")
	assert.Contains(t, text, "2.5s")
	assert.Contains(t, text, "… running")
}

func TestRenderStatus_Empty(t *testing.T) {
	var out bytes.Buffer
	renderStatus(&out, &scheduler.StatusReport{NextRun: time.Now()})
	assert.Contains(t, out.String(), "No jobs recorded yet")
}

func TestStatusLabel(t *testing.T) {
	color.NoColor = true
	assert.Equal(t, "✓ success", statusLabel(models.JobSuccess))
}
