package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/resilientlabs/analytics-api/internal/cache"
	"github.com/resilientlabs/analytics-api/internal/circuitbreaker"
	"github.com/resilientlabs/analytics-api/internal/external"
	"github.com/resilientlabs/analytics-api/internal/health"
	"github.com/resilientlabs/analytics-api/internal/metricstore"
	"github.com/resilientlabs/analytics-api/internal/observability"
)

// MetricRequest is the metric ingestion payload. Pointer fields
// distinguish absent values from zero values during binding.
type MetricRequest struct {
	Timestamp *time.Time `json:"timestamp" binding:"required"`
	Value     *float64   `json:"value" binding:"required"`
	Type      string     `json:"type" binding:"required,min=1,max=100"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func errorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// handlers carries the service dependencies for the API endpoints.
type handlers struct {
	logger   observability.Logger
	metrics  *metricstore.Store
	cache    *cache.Service
	breakers *circuitbreaker.Registry
	breaker  *circuitbreaker.CircuitBreaker
	external *external.Service
	checker  *health.Checker
}

// createMetric handles POST /api/metrics.
func (h *handlers) createMetric(c *gin.Context) {
	var req MetricRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(
			"VALIDATION_ERROR", fmt.Sprintf("Invalid request: %v", err)))
		return
	}

	h.metrics.Add(metricstore.Metric{
		Timestamp: *req.Timestamp,
		Value:     *req.Value,
		Type:      req.Type,
	})

	h.logger.Info("metric stored",
		observability.String("type", req.Type),
		observability.Float64("value", *req.Value))

	c.JSON(http.StatusCreated, gin.H{
		"message":   "Metric received",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"type":      req.Type,
	})
}

// getSummary handles GET /api/metrics/summary. Summaries are served
// cache-aside: on a miss the summary is computed from local data, the
// external enrichment call runs under circuit breaker protection (an open
// circuit degrades to local data only), and the result is cached.
func (h *handlers) getSummary(c *gin.Context) {
	metricType := c.Query("type")
	if metricType == "" {
		c.JSON(http.StatusBadRequest, errorResponse(
			"VALIDATION_ERROR", "Query parameter 'type' is required"))
		return
	}

	period := c.DefaultQuery("period", metricstore.PeriodAll)
	ctx := c.Request.Context()
	cacheKey := fmt.Sprintf("summary:%s:%s", metricType, period)

	var cached metricstore.Summary
	if h.cache.Get(ctx, cacheKey, &cached) {
		h.logger.Debug("summary cache hit",
			observability.String("key", cacheKey))
		c.JSON(http.StatusOK, cached)
		return
	}

	summary, err := h.metrics.Summarize(metricType, period)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("VALIDATION_ERROR", err.Error()))
		return
	}

	_, err = h.breaker.Call(ctx, func(ctx context.Context) (any, error) {
		return h.external.Fetch(ctx, metricType)
	})
	switch {
	case err == nil:
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		h.logger.Warn("circuit breaker open, using local data only")
	default:
		h.logger.Error("external service call failed",
			observability.Error(err))
	}

	h.cache.Set(ctx, cacheKey, summary, 0)
	c.JSON(http.StatusOK, summary)
}

// listMetrics handles GET /api/metrics/list.
func (h *handlers) listMetrics(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, errorResponse(
				"VALIDATION_ERROR", "Query parameter 'limit' must be a positive integer"))
			return
		}
		limit = parsed
	}

	metrics := h.metrics.List(c.Query("type"), limit)
	if metrics == nil {
		metrics = []metricstore.Metric{}
	}
	c.JSON(http.StatusOK, metrics)
}

// breakerStatus handles GET /api/circuit-breaker/status.
func (h *handlers) breakerStatus(c *gin.Context) {
	status := h.breakers.StatusAll()[h.breaker.Name()]
	c.JSON(http.StatusOK, gin.H{
		"state":         status.State,
		"failure_count": status.FailureCount,
		"success_count": status.SuccessCount,
	})
}

// breakerReset handles POST /api/circuit-breaker/reset.
func (h *handlers) breakerReset(c *gin.Context) {
	h.breakers.ResetAll()
	c.JSON(http.StatusOK, gin.H{
		"message": "Circuit breaker reset",
		"state":   h.breaker.State().String(),
	})
}

// callExternal handles GET /api/external. An open circuit returns a
// fallback payload rather than an error; a genuine downstream failure
// maps to 503.
func (h *handlers) callExternal(c *gin.Context) {
	ctx := c.Request.Context()

	result, err := h.breaker.Call(ctx, func(ctx context.Context) (any, error) {
		return h.external.Fetch(ctx, "external_request")
	})

	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"status":    "success",
			"source":    "external_service",
			"data":      result,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})

	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		h.logger.Warn("circuit breaker open, returning fallback")
		c.JSON(http.StatusOK, gin.H{
			"status":    "fallback",
			"source":    "circuit_breaker_fallback",
			"message":   "External service unavailable, using fallback",
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})

	default:
		h.logger.Error("external service error",
			observability.Error(err))
		c.JSON(http.StatusServiceUnavailable, errorResponse(
			"EXTERNAL_SERVICE_ERROR", "External service temporarily unavailable"))
	}
}

// healthCheck handles GET /health. A degraded report still returns 200;
// the service keeps serving from local data when a dependency is down.
func (h *handlers) healthCheck(c *gin.Context) {
	report := h.checker.Run(c.Request.Context())
	c.JSON(http.StatusOK, report)
}
