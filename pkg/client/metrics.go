package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the request pipeline.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gitfeed_requests_total",
		Help: "Total client requests by outcome",
	}, []string{"outcome"}) // "remote", "cache", "refetch", "error"

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gitfeed_request_duration_seconds",
		Help:    "Client request duration in seconds, cache lookups included",
		Buckets: []float64{0.005, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gitfeed_upstream_requests_total",
		Help: "Total upstream HTTP requests by status",
	}, []string{"status"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gitfeed_errors_total",
		Help: "Total client errors by kind",
	}, []string{"kind"})

	conditionalRequestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gitfeed_conditional_requests_total",
		Help: "Total requests sent with If-None-Match",
	})

	notModifiedResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gitfeed_304_responses_total",
		Help: "Total 304 Not Modified responses, synthetic ones included",
	})

	graceShortCircuits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gitfeed_grace_short_circuits_total",
		Help: "Total conditional requests answered locally within the grace period",
	})

	fastCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gitfeed_fast_cache_hits_total",
		Help: "Total requests served by a request-scoped fast cache",
	})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gitfeed_retries_total",
		Help: "Total retry attempts after transport failures",
	})

	retryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gitfeed_retry_backoff_seconds",
		Help:    "Backoff duration before a retry",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	})

	retryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gitfeed_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted",
	})
)
