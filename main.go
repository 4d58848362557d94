// main.go
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/LilVoxy/northwind_etl/ETL/config"
	"github.com/LilVoxy/northwind_etl/ETL/metrics"
	"github.com/LilVoxy/northwind_etl/ETL/models"
	"github.com/LilVoxy/northwind_etl/ETL/scheduler"
	"github.com/LilVoxy/northwind_etl/ETL/tracker"
	"github.com/LilVoxy/northwind_etl/ETL/utils"
	"github.com/LilVoxy/northwind_etl/routes"
)

var (
	configFile string
	listenAddr string
)

var rootCmd = &cobra.Command{
	Use:   "northwind-status",
	Short: "Serve the ETL job history of an existing warehouse",
	Long: `Read-only HTTP API over the job_metadata table of the warehouse:

  GET /api/status   next scheduled run and the latest jobs
  GET /api/jobs     job history, filtered by name, limit, since and until
  GET /metrics      Prometheus metrics of this process`,
	SilenceUsage: true,
	RunE:         serve,
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "config file (default ./etl.yaml or ./config/etl.yaml)")
	rootCmd.Flags().StringVar(&listenAddr, "addr", ":8080", "listen address, overrides status.addr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") || cfg.Status.Addr == "" {
		cfg.Status.Addr = listenAddr
	}

	logger, err := utils.NewETLLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	warehouse, err := config.OpenWarehouse(cfg.Warehouse)
	if err != nil {
		return err
	}
	defer func() {
		if err := warehouse.Close(); err != nil {
			logger.Warn("Failed to close warehouse: %v", err)
		}
	}()

	jobTracker := tracker.NewJobTracker(models.NewSQLJobRepository(warehouse.DB, warehouse.Dialect), logger)

	sched, err := scheduler.New(nil, cfg, jobTracker, logger)
	if err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	router := mux.NewRouter()
	routes.SetupRoutes(router, sched, jobTracker, metrics.New().Handler(), logger)

	return routes.Serve(ctx, routes.NewServer(cfg.Status.Addr, router), logger)
}
