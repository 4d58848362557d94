// Package metrics exposes Prometheus collectors for pipeline runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "northwind_etl"

// Metrics holds the collectors of one process
type Metrics struct {
	// Counters
	RunsTotal     *prometheus.CounterVec
	RowsLoaded    *prometheus.CounterVec
	FallbackRates prometheus.Counter
	CleanedRows   prometheus.Counter

	// Gauges
	ExchangeRate       prometheus.Gauge
	UnmatchedCustomers prometheus.Gauge
	LastSuccess        prometheus.Gauge

	// Histograms
	PhaseDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates the collectors and registers them on a private registry
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by final status",
		},
		[]string{"status"}, // "success", "failed"
	)

	m.RowsLoaded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Rows written to the warehouse by table",
		},
		[]string{"table"},
	)

	m.FallbackRates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchange_rate_fallback_total",
			Help:      "Runs that used the fallback USD to EUR rate",
		},
	)

	m.CleanedRows = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_rows_removed_total",
			Help:      "Duplicate source rows removed during cleaning",
		},
	)

	m.ExchangeRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "exchange_rate_usd_eur",
			Help:      "USD to EUR rate used by the last run",
		},
	)

	m.UnmatchedCustomers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unmatched_customers",
			Help:      "Customers without a city reference match in the last run",
		},
	)

	m.LastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		},
	)

	m.PhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of pipeline phases",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		},
		[]string{"phase", "status"},
	)

	m.registry.MustRegister(
		m.RunsTotal,
		m.RowsLoaded,
		m.FallbackRates,
		m.CleanedRows,
		m.ExchangeRate,
		m.UnmatchedCustomers,
		m.LastSuccess,
		m.PhaseDuration,
	)

	return m
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePhase records the duration of a phase
func (m *Metrics) ObservePhase(phase string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	m.PhaseDuration.WithLabelValues(phase, status).Observe(duration.Seconds())
}

// RecordRun counts a finished run
func (m *Metrics) RecordRun(at time.Time, err error) {
	if err != nil {
		m.RunsTotal.WithLabelValues("failed").Inc()
		return
	}
	m.RunsTotal.WithLabelValues("success").Inc()
	m.LastSuccess.Set(float64(at.Unix()))
}

// RecordRate stores the exchange rate of a run
func (m *Metrics) RecordRate(rate float64, fallback bool) {
	m.ExchangeRate.Set(rate)
	if fallback {
		m.FallbackRates.Inc()
	}
}
