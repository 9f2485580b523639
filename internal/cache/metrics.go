package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheAccessesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_accesses_total",
			Help: "Total number of cache reads by result",
		},
		[]string{"result"},
	)

	cacheClearedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_entries_cleared_total",
			Help: "Total number of cache entries removed by pattern clears",
		},
	)
)

// recordAccess records a cache read result (hit or miss).
func recordAccess(result string) {
	cacheAccessesTotal.WithLabelValues(result).Inc()
}

// recordCleared records entries removed by ClearPattern.
func recordCleared(n int64) {
	cacheClearedTotal.Add(float64(n))
}
