package server

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/resilientlabs/analytics-api/internal/observability"
	"github.com/resilientlabs/analytics-api/internal/ratelimit"
)

const (
	// RequestIDHeader is the header name for request ID.
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the gin context key for request ID.
	RequestIDKey = "requestID"
)

// RequestID returns a middleware that attaches a request ID to every
// request, generating one when the client did not send one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		ctx := observability.ContextWithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// requestIDFrom returns the request ID set by the RequestID middleware.
func requestIDFrom(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// Logging returns a middleware that logs completed requests, leveled by
// status code. Health and metrics probes are skipped to keep the log
// readable.
func Logging(logger observability.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NopLogger()
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []observability.Field{
			observability.String("request_id", requestIDFrom(c)),
			observability.String("method", c.Request.Method),
			observability.String("path", path),
			observability.Int("status", status),
			observability.Duration("latency", time.Since(start)),
			observability.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, observability.String("errors", c.Errors.String()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request completed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request completed", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}

// Recovery returns a middleware that converts panics into 500 responses.
func Recovery(logger observability.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NopLogger()
	}

	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					observability.Any("error", err),
					observability.String("request_id", requestIDFrom(c)),
					observability.String("method", c.Request.Method),
					observability.String("path", c.Request.URL.Path),
					observability.String("stack", string(debug.Stack())))

				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse(
					"INTERNAL_ERROR", "Internal server error"))
			}
		}()
		c.Next()
	}
}

// RateLimit returns a middleware that applies per-client-IP rate
// limiting. Denied requests receive 429 with a Retry-After header in
// whole seconds.
func RateLimit(limiter *ratelimit.Limiter, logger observability.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NopLogger()
	}

	return func(c *gin.Context) {
		key := c.ClientIP()

		if !limiter.Allow(c.Request.Context(), key) {
			retryAfter := limiter.RetryAfter(c.Request.Context(), key)
			seconds := int(retryAfter.Round(time.Second).Seconds())
			if seconds < 1 {
				seconds = 1
			}

			logger.Warn("rate limit exceeded",
				observability.String("client_ip", key),
				observability.Int64("limit", limiter.Threshold()),
				observability.Duration("window", limiter.Window()),
				observability.Int("retry_after_seconds", seconds))

			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse(
				"RATE_LIMIT_EXCEEDED", "Rate limit exceeded"))
			return
		}

		c.Next()
	}
}
