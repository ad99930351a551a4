package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by endpoint
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "football_cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"endpoint"},
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "football_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	// CacheBytesWritten tracks the volume of data written to the cache
	CacheBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "football_cache_written_bytes_total",
			Help: "Total bytes written to the response cache",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "football_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
