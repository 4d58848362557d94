package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/mux"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/LilVoxy/northwind_etl/ETL/config"
	"github.com/LilVoxy/northwind_etl/ETL/metrics"
	"github.com/LilVoxy/northwind_etl/ETL/models"
	"github.com/LilVoxy/northwind_etl/ETL/runner"
	"github.com/LilVoxy/northwind_etl/ETL/scheduler"
	"github.com/LilVoxy/northwind_etl/ETL/tracker"
	"github.com/LilVoxy/northwind_etl/ETL/utils"
	"github.com/LilVoxy/northwind_etl/routes"
)

var (
	configFile string
	runOnce    bool
	showStatus bool
)

var rootCmd = &cobra.Command{
	Use:   "northwind-etl",
	Short: "Build the Northwind sales data warehouse",
	Long: `Extracts the Northwind operational database, builds a star schema
(fact_sales, dim_customer, dim_product, dim_date) enriched with city
coordinates and EUR revenue, and loads it into the warehouse.

Without flags the pipeline runs at once and then every day at schedule.daily_at.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "config file (default ./etl.yaml or ./config/etl.yaml)")
	rootCmd.Flags().BoolVar(&runOnce, "once", false, "run the pipeline once and exit")
	rootCmd.Flags().BoolVar(&showStatus, "status", false, "print the next scheduled run and the latest jobs")
	rootCmd.MarkFlagsMutuallyExclusive("once", "status")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logger, err := utils.NewETLLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if showStatus {
		return printStatus(ctx, cfg, logger, cmd.OutOrStdout())
	}

	etlRunner, err := runner.NewETLRunner(ctx, cfg, logger, metrics.New())
	if err != nil {
		return fmt.Errorf("failed to create ETL runner: %w", err)
	}
	defer etlRunner.Close()

	sched, err := scheduler.New(etlRunner.Attempt, cfg, etlRunner.Tracker(), logger)
	if err != nil {
		return err
	}

	if runOnce {
		logger.Info("Running ETL once")
		if err := sched.RunOnce(ctx); err != nil {
			return fmt.Errorf("ETL run failed: %w", err)
		}
		return nil
	}

	if cfg.Status.Addr != "" {
		router := mux.NewRouter()
		routes.SetupRoutes(router, sched, etlRunner.Tracker(), etlRunner.Metrics().Handler(), logger)
		server := routes.NewServer(cfg.Status.Addr, router)
		go func() {
			if err := routes.Serve(ctx, server, logger); err != nil {
				logger.Error("Status API failed: %v", err)
			}
		}()
	}

	return sched.RunPeriodic(ctx)
}

// printStatus reports without running the pipeline
func printStatus(ctx context.Context, cfg *config.ETLConfig, logger *utils.ETLLogger, out io.Writer) error {
	warehouse, err := config.OpenWarehouse(cfg.Warehouse)
	if err != nil {
		return err
	}
	defer warehouse.Close()

	jobTracker := tracker.NewJobTracker(models.NewSQLJobRepository(warehouse.DB, warehouse.Dialect), logger)
	if err := jobTracker.Init(ctx); err != nil {
		return err
	}

	sched, err := scheduler.New(nil, cfg, jobTracker, logger)
	if err != nil {
		return err
	}

	report, err := sched.Status(ctx)
	if err != nil {
		return err
	}

	renderStatus(out, report)
	return nil
}

func renderStatus(out io.Writer, report *scheduler.StatusReport) {
	fmt.Fprintf(out, "Next scheduled run: %s\n\n", report.NextRun.Local().Format(time.DateTime))

	if len(report.Jobs) == 0 {
		fmt.Fprintln(out, "No jobs recorded yet")
		return
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"ID", "Run", "Job", "Started", "Duration", "Status", "Error"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, job := range report.Jobs {
		runID := job.RunID
		if len(runID) > 8 {
			runID = runID[:8]
		}

		duration := "-"
		if job.DurationSeconds.Valid {
			duration = fmt.Sprintf("%.1fs", job.DurationSeconds.Float64)
		}

		table.Append([]string{
			fmt.Sprint(job.ID),
			runID,
			job.Name,
			job.StartTime.Local().Format(time.DateTime),
			duration,
			statusLabel(job.Status),
			job.ErrorMessage.String,
		})
	}

	table.Render()
}

func statusLabel(status models.JobStatus) string {
	switch status {
	case models.JobSuccess:
		return color.GreenString("✓ success")
	case models.JobFailed:
		return color.RedString("✗ failed")
	default:
		return color.YellowString("… %s", status)
	}
}
