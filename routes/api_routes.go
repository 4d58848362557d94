// routes/api_routes.go
package routes

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/LilVoxy/northwind_etl/ETL/scheduler"
	"github.com/LilVoxy/northwind_etl/ETL/utils"
)

// StatusProvider reports the next scheduled run and the latest jobs
type StatusProvider interface {
	Status(ctx context.Context) (*scheduler.StatusReport, error)
}

// SetupRoutes registers the read-only status API. metrics may be nil.
func SetupRoutes(router *mux.Router, status StatusProvider, history scheduler.HistorySource, metrics http.Handler, logger *utils.ETLLogger) {
	router.Use(corsMiddleware)

	router.HandleFunc("/api/status", GetStatusHandler(status, logger)).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/jobs", GetJobsHandler(history, logger)).Methods("GET", "OPTIONS")

	if metrics != nil {
		router.Handle("/metrics", metrics).Methods("GET")
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewServer creates the HTTP server of the status API
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Serve runs server until ctx is cancelled, then shuts it down
func Serve(ctx context.Context, server *http.Server, logger *utils.ETLLogger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Status API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("Status API stopped")
	return nil
}
