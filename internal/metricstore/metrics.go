package metricstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ingestedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "metrics_ingested_total",
		Help: "Total number of metrics ingested by type",
	},
	[]string{"type"},
)

// recordIngested records an ingested metric.
func recordIngested(metricType string) {
	ingestedTotal.WithLabelValues(metricType).Inc()
}
