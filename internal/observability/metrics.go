// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"token-radar/internal/domain"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Cycle metrics
	CyclesTotal   *prometheus.CounterVec
	CycleDuration *prometheus.HistogramVec
	CyclesSkipped *prometheus.CounterVec

	// Feed metrics
	PagesFetched       *prometheus.CounterVec
	RecordsFetched     *prometheus.CounterVec
	FeedRequestLatency *prometheus.HistogramVec

	// Persistence metrics
	TokensUpserted *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulCycle prometheus.Gauge
	LastCycleWritten    *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance registered with the default registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith creates a new Metrics instance registered with reg.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_radar"
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Cycle metrics
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "runs_total",
			Help:      "Total number of ingestion cycles by class and status",
		}, []string{"class", "status"}),
		CycleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Ingestion cycle duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"class"}),
		CyclesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "skipped_total",
			Help:      "Total number of cycles skipped because another replica held the lease",
		}, []string{"class"}),

		// Feed metrics
		PagesFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "pages_total",
			Help:      "Total number of listing pages requested",
		}, []string{"class"}),
		RecordsFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "records_total",
			Help:      "Total number of raw records received",
		}, []string{"class"}),
		FeedRequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "request_latency_seconds",
			Help:      "Feed page request latency in seconds, including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),

		// Persistence metrics
		TokensUpserted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "tokens_upserted_total",
			Help:      "Total number of token writes by result",
		}, []string{"result"}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulCycle: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of last successful cycle",
		}),
		LastCycleWritten: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_cycle_written",
			Help:      "Records written by the most recent cycle",
		}, []string{"class"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordCycle records a finished cycle.
func RecordCycle(run *domain.CycleRun) {
	DefaultMetrics.RecordCycle(run)
}

// RecordCycle records a finished cycle on m.
func (m *Metrics) RecordCycle(run *domain.CycleRun) {
	class := run.Class.String()
	status := "success"
	if !run.Success {
		status = "failed"
	}
	m.CyclesTotal.WithLabelValues(class, status).Inc()
	m.CycleDuration.WithLabelValues(class).Observe(run.Duration().Seconds())
	m.PagesFetched.WithLabelValues(class).Add(float64(run.Pages))
	m.RecordsFetched.WithLabelValues(class).Add(float64(run.Seen))
	m.LastCycleWritten.WithLabelValues(class).Set(float64(run.Written()))
	if run.Success {
		m.LastSuccessfulCycle.Set(float64(run.FinishedAt.Unix()))
	}
}

// RecordCycleSkipped increments the skipped cycles counter.
func RecordCycleSkipped(class domain.TokenClass) {
	DefaultMetrics.CyclesSkipped.WithLabelValues(class.String()).Inc()
}

// RecordUpsert increments the token writes counter for result (created, updated, failed).
func RecordUpsert(result string) {
	DefaultMetrics.TokensUpserted.WithLabelValues(result).Inc()
}

// RecordFeedRequest records a page request latency by outcome (ok, error).
func RecordFeedRequest(outcome string, d time.Duration) {
	DefaultMetrics.FeedRequestLatency.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
