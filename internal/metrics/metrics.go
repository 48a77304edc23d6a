package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photodex_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photodex_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photodex_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Job runner metrics
var (
	JobsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photodex_jobs_submitted_total",
			Help: "Total number of jobs submitted",
		},
		[]string{"kind"},
	)

	JobsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photodex_jobs_finished_total",
			Help: "Total number of jobs that reached a terminal status",
		},
		[]string{"kind", "status"},
	)

	JobsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photodex_jobs_running",
			Help: "Number of jobs currently executing",
		},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photodex_job_duration_seconds",
			Help:    "Job execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 1800, 7200},
		},
		[]string{"kind"},
	)
)

// Pipeline metrics
var (
	FilesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photodex_files_processed_total",
			Help: "Per-file pipeline outcomes across scan and import jobs",
		},
		[]string{"outcome"}, // indexed, duplicate, failed
	)

	ImportMovesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photodex_import_moves_total",
			Help: "Files moved out of the staging root by destination",
		},
		[]string{"destination"}, // library, quarantine
	)
)

// Derivative generation metrics
var (
	DerivativeGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photodex_derivative_generations_total",
			Help: "Total number of derivative generation attempts",
		},
		[]string{"status"}, // success, error
	)

	DerivativeGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photodex_derivative_generation_duration_seconds",
			Help:    "Time to produce all derivative tiers for one source image",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)

// Geocode metrics
var (
	GeocodeLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photodex_geocode_lookups_total",
			Help: "Geocode cache lookups by outcome",
		},
		[]string{"outcome"}, // hit, miss, negative_hit, provider_error, disabled
	)

	GeocodeProviderCallsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photodex_geocode_provider_calls_total",
			Help: "Total number of reverse-geocode provider requests issued",
		},
	)

	GeocodeProviderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photodex_geocode_provider_duration_seconds",
			Help:    "Reverse-geocode provider request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photodex_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photodex_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photodex_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)
