package health

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "health_check_status",
			Help: "Current status of a dependency check (1=up, 0=down)",
		},
		[]string{"check"},
	)

	checkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "health_check_duration_seconds",
			Help:    "Duration of dependency health checks in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"check"},
	)
)

// recordCheck records the outcome and duration of a dependency check.
func recordCheck(name string, healthy bool, seconds float64) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	checkStatus.WithLabelValues(name).Set(value)
	checkDuration.WithLabelValues(name).Observe(seconds)
}
