package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "albumforge_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "albumforge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	QuotaChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "albumforge_quota_checks_total",
			Help: "Total number of quota gate decisions.",
		},
		[]string{"result"},
	)

	GenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "albumforge_generations_total",
			Help: "Total number of AI image generations by outcome.",
		},
		[]string{"status"},
	)

	ProviderRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "albumforge_provider_request_duration_seconds",
			Help:    "Image provider request duration in seconds.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 120},
		},
	)
)

// Label values for QuotaChecksTotal.
const (
	QuotaResultAllowed    = "allowed"
	QuotaResultDenied     = "denied"
	QuotaResultInvalidKey = "invalid_key"
)

// Label values for GenerationsTotal.
const (
	GenStatusSuccess    = "success"
	GenStatusOverloaded = "overloaded"
	GenStatusNoImage    = "no_image"
	GenStatusError      = "error"
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		QuotaChecksTotal,
		GenerationsTotal,
		ProviderRequestDuration,
	)
}
