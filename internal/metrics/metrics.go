// Package metrics provides the Prometheus collectors exported on /metrics.
//
// All collectors are registered with the default registry during package
// initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Number of per-client rate limiter buckets",
		},
	)

	ReportAnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_analyses_total",
			Help: "Report analyses by outcome",
		},
		[]string{"outcome"},
	)

	DiseasesDetectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_diseases_detected_total",
			Help: "Disease mentions detected in analyzed reports",
		},
		[]string{"disease"},
	)

	MedicationsParsedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "report_medications_parsed_total",
			Help: "Medication entries parsed from analyzed reports",
		},
	)

	TrendFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trend_fetches_total",
			Help: "Trend dataset fetches by outcome",
		},
		[]string{"outcome"},
	)

	TrendSnapshotTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trend_snapshot_timestamp_seconds",
			Help: "Unix time of the last successful trend snapshot refresh",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(ReportAnalysesTotal)
	prometheus.MustRegister(DiseasesDetectedTotal)
	prometheus.MustRegister(MedicationsParsedTotal)
	prometheus.MustRegister(TrendFetchesTotal)
	prometheus.MustRegister(TrendSnapshotTimestamp)
}
