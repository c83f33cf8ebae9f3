package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks store lookups that found a value, by backend.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitfeed_cache_hits_total",
			Help: "Total number of cache store hits",
		},
		[]string{"backend"}, // "redis", "memory"
	)

	// CacheMisses tracks store lookups that found nothing, by backend.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitfeed_cache_misses_total",
			Help: "Total number of cache store misses",
		},
		[]string{"backend"},
	)

	// CacheWrites tracks successful store writes, by backend.
	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitfeed_cache_writes_total",
			Help: "Total number of cache store writes",
		},
		[]string{"backend"},
	)

	// CacheErrors tracks store operation failures.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitfeed_cache_errors_total",
			Help: "Total number of cache store operation errors",
		},
		[]string{"backend", "operation"}, // "get", "set", "exists", "close"
	)
)
