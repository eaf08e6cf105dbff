package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for remote fetches.
var (
	fetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "browser_fetch_requests_total",
		Help: "Total remote fetches by method and status",
	}, []string{"method", "status"})

	fetchRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "browser_fetch_request_duration_seconds",
		Help:    "Remote fetch duration in seconds by method",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"method"})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "browser_fetch_errors_total",
		Help: "Total remote fetch errors by class",
	}, []string{"class"})

	fetchRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "browser_fetch_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	fetchCacheServedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "browser_fetch_cache_served_total",
		Help: "Total fetches answered from the response cache",
	})
)
