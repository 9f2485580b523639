package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var limiterDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limit_decisions_total",
		Help: "Total number of rate limit decisions by result",
	},
	[]string{"result"},
)

// recordDecision records a limiter decision (allowed, denied, fail_open).
func recordDecision(result string) {
	limiterDecisionsTotal.WithLabelValues(result).Inc()
}
