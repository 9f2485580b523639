package kvstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for backend store operations.
var (
	storeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvstore_operations_total",
			Help: "Total number of key-value store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	storeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kvstore_operation_duration_seconds",
			Help:    "Duration of key-value store operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"backend", "operation"},
	)

	storeConnectionRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kvstore_connection_retries_total",
			Help: "Total number of backend connection retry attempts",
		},
	)

	storeConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kvstore_connection_errors_total",
			Help: "Total number of backend connection errors",
		},
	)
)

// recordOperation records the outcome and duration of a store operation.
func recordOperation(backend, operation, status string, seconds float64) {
	storeOperationsTotal.WithLabelValues(backend, operation, status).Inc()
	storeOperationDuration.WithLabelValues(backend, operation).Observe(seconds)
}
