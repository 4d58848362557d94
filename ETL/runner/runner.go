package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/LilVoxy/northwind_etl/ETL/config"
	"github.com/LilVoxy/northwind_etl/ETL/extractors"
	"github.com/LilVoxy/northwind_etl/ETL/load"
	"github.com/LilVoxy/northwind_etl/ETL/metrics"
	"github.com/LilVoxy/northwind_etl/ETL/models"
	"github.com/LilVoxy/northwind_etl/ETL/scheduler"
	"github.com/LilVoxy/northwind_etl/ETL/tracker"
	"github.com/LilVoxy/northwind_etl/ETL/transform"
	"github.com/LilVoxy/northwind_etl/ETL/utils"
	"github.com/LilVoxy/northwind_etl/processor"
)

// Names of the tracked phases in job_metadata
const (
	PhaseExtract   = "extract_data"
	PhaseTransform = "transform_data"
	PhaseLoad      = "load_data"
)

// ETLRunner wires the pipeline components and runs one full pipeline
type ETLRunner struct {
	cfg         *config.ETLConfig
	warehouse   *config.Warehouse
	logger      *utils.ETLLogger
	extractor   *extractors.Extractor
	transformer *transform.Transformer
	loadManager *load.LoadManager
	tracker     *tracker.JobTracker
	metrics     *metrics.Metrics
	archiver    *processor.Archiver
	newRunID    func() string
}

// NewETLRunner opens the warehouse, prepares job_metadata and creates the
// components. m may be nil.
func NewETLRunner(ctx context.Context, cfg *config.ETLConfig, logger *utils.ETLLogger, m *metrics.Metrics) (*ETLRunner, error) {
	logger.Info("Initializing ETL runner")

	warehouse, err := config.OpenWarehouse(cfg.Warehouse)
	if err != nil {
		return nil, err
	}

	jobTracker := tracker.NewJobTracker(models.NewSQLJobRepository(warehouse.DB, warehouse.Dialect), logger)
	if err := jobTracker.Init(ctx); err != nil {
		warehouse.Close()
		return nil, fmt.Errorf("failed to create job_metadata table: %w", err)
	}

	if m == nil {
		m = metrics.New()
	}

	r := &ETLRunner{
		cfg:         cfg,
		warehouse:   warehouse,
		logger:      logger,
		extractor:   extractors.NewExtractor(cfg, logger),
		transformer: transform.NewTransformer(cfg.ETL.Placeholder, transform.DefaultCorrections(), logger),
		loadManager: load.NewLoadManager(warehouse, cfg.ETL.BatchSize, logger),
		tracker:     jobTracker,
		metrics:     m,
		newRunID:    func() string { return uuid.NewString() },
	}
	if cfg.Archive.Enabled {
		r.archiver = processor.NewArchiver(warehouse, cfg.Archive.Dir, logger)
	}

	return r, nil
}

// Close closes the warehouse connection
func (r *ETLRunner) Close() {
	r.logger.Info("Shutting down ETL runner")
	if err := r.warehouse.Close(); err != nil {
		r.logger.Warn("Failed to close warehouse: %v", err)
	}
}

// Tracker returns the job tracker, used for status reports
func (r *ETLRunner) Tracker() *tracker.JobTracker {
	return r.tracker
}

// Metrics returns the collectors updated by the runner
func (r *ETLRunner) Metrics() *metrics.Metrics {
	return r.metrics
}

// Attempt runs the pipeline once and classifies the outcome for the retry
// driver. A missing city reference file cannot be fixed by retrying.
func (r *ETLRunner) Attempt(ctx context.Context) scheduler.Result {
	err := r.ExecuteETL(ctx)
	if errors.Is(err, extractors.ErrCityReferenceMissing) {
		return scheduler.Result{Outcome: scheduler.Fatal, Err: err}
	}
	return scheduler.Classify(err)
}

// ExecuteETL runs extract, transform and load as three tracked phases
func (r *ETLRunner) ExecuteETL(ctx context.Context) error {
	runID := r.newRunID()
	r.tracker.SetRunID(runID)

	startTime := time.Now()
	r.logger.Info("Starting ETL run %s", runID)

	err := r.execute(ctx, runID)
	r.metrics.RecordRun(time.Now(), err)
	if err != nil {
		r.logger.Error("ETL run %s failed: %v", runID, err)
		return err
	}

	r.logger.Info("ETL run %s finished in %v", runID, time.Since(startTime).Round(time.Millisecond))
	return nil
}

func (r *ETLRunner) execute(ctx context.Context, runID string) error {
	startTime := time.Now()

	// 1. Extract
	var extracted *models.ExtractedData
	err := r.phase(ctx, PhaseExtract, func() error {
		var err error
		extracted, err = r.extractor.Extract(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("extract phase failed: %w", err)
	}
	r.metrics.RecordRate(extracted.ExchangeRate, extracted.RateFallback)

	// 2. Transform
	var transformed *models.TransformedData
	err = r.phase(ctx, PhaseTransform, func() error {
		var err error
		transformed, err = r.transformer.Transform(extracted)
		return err
	})
	if err != nil {
		return fmt.Errorf("transform phase failed: %w", err)
	}
	r.metrics.CleanedRows.Add(float64(transformed.DuplicatesDropped))
	r.metrics.UnmatchedCustomers.Set(float64(transformed.UnmatchedCustomers))

	// 3. Load, then derive EUR revenue on the loaded fact table
	err = r.phase(ctx, PhaseLoad, func() error {
		if err := r.loadManager.Load(ctx, transformed); err != nil {
			return err
		}
		_, err := r.loadManager.AddRevenueEUR(ctx, extracted.ExchangeRate)
		return err
	})
	if err != nil {
		return fmt.Errorf("load phase failed: %w", err)
	}

	r.metrics.RowsLoaded.WithLabelValues(models.TableFactSales).Add(float64(len(transformed.Sales)))
	r.metrics.RowsLoaded.WithLabelValues(models.TableDimCustomer).Add(float64(len(transformed.Dimensions.Customers)))
	r.metrics.RowsLoaded.WithLabelValues(models.TableDimProduct).Add(float64(len(transformed.Dimensions.Products)))
	r.metrics.RowsLoaded.WithLabelValues(models.TableDimDate).Add(float64(len(transformed.Dimensions.Dates)))

	r.archive(ctx, runID)

	r.logger.LogETLComplete(startTime, len(transformed.Sales), len(transformed.Dimensions.Customers), len(transformed.Dimensions.Products))
	return nil
}

// phase runs fn as a tracked job and records its duration
func (r *ETLRunner) phase(ctx context.Context, name string, fn func() error) error {
	r.logger.LogPhaseStart(name)
	startTime := time.Now()

	err := r.tracker.Track(ctx, name, fn)

	duration := time.Since(startTime)
	r.metrics.ObservePhase(name, duration, err)
	if err == nil {
		r.logger.LogPhaseComplete(name, duration)
	}
	return err
}

// archive snapshots the loaded tables. Failures never fail the run.
func (r *ETLRunner) archive(ctx context.Context, runID string) {
	if r.archiver == nil {
		return
	}

	tables := []string{models.TableFactSales, models.TableDimCustomer, models.TableDimProduct, models.TableDimDate}
	if _, err := r.archiver.Archive(ctx, runID, tables); err != nil {
		r.logger.Warn("Snapshot archive of run %s failed: %v", runID, err)
	}
}
