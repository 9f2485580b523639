// Package server wires the HTTP surface of the analytics API: routing,
// middleware, request metrics, and the handlers over the resilience core.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/resilientlabs/analytics-api/internal/cache"
	"github.com/resilientlabs/analytics-api/internal/circuitbreaker"
	"github.com/resilientlabs/analytics-api/internal/external"
	"github.com/resilientlabs/analytics-api/internal/health"
	"github.com/resilientlabs/analytics-api/internal/metricstore"
	"github.com/resilientlabs/analytics-api/internal/observability"
	"github.com/resilientlabs/analytics-api/internal/ratelimit"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            8000,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// Deps are the service dependencies the HTTP layer is composed from.
type Deps struct {
	Logger   observability.Logger
	Metrics  *metricstore.Store
	Cache    *cache.Service
	Limiter  *ratelimit.Limiter
	Breakers *circuitbreaker.Registry
	Breaker  *circuitbreaker.CircuitBreaker
	External *external.Service
	Checker  *health.Checker
}

// Server is the analytics API HTTP server.
type Server struct {
	config *Config
	engine *gin.Engine
	http   *http.Server
	logger observability.Logger
}

// New creates the server and registers all routes.
func New(config *Config, deps Deps) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	defaults := DefaultConfig()
	if config.Host == "" {
		config.Host = defaults.Host
	}
	if config.Port == 0 {
		config.Port = defaults.Port
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = defaults.IdleTimeout
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(
		RequestID(),
		Logging(logger),
		Recovery(logger),
		RequestMetrics(),
	)

	// The status and reset endpoints are backed by the registry, so the
	// breaker guarding the external service must be registered in it.
	breakers := deps.Breakers
	if breakers == nil {
		breakers = circuitbreaker.NewRegistry(nil, logger)
	}
	breaker := deps.Breaker
	if breaker != nil {
		breaker = breakers.Register(breaker)
	}

	h := &handlers{
		logger:   logger,
		metrics:  deps.Metrics,
		cache:    deps.Cache,
		breakers: breakers,
		breaker:  breaker,
		external: deps.External,
		checker:  deps.Checker,
	}

	engine.GET("/health", h.healthCheck)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api")
	{
		// Ingestion is the only rate-limited surface; reads stay cheap
		// via the cache.
		api.POST("/metrics", RateLimit(deps.Limiter, logger), h.createMetric)
		api.GET("/metrics/summary", h.getSummary)
		api.GET("/metrics/list", h.listMetrics)
		api.GET("/circuit-breaker/status", h.breakerStatus)
		api.POST("/circuit-breaker/reset", h.breakerReset)
		api.GET("/external", h.callExternal)
	}

	return &Server{
		config: config,
		engine: engine,
		logger: logger,
		http: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
			Handler:      engine,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
	}
}

// Handler returns the underlying HTTP handler. Intended for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server starting",
		observability.String("address", s.http.Addr))

	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	return s.http.Shutdown(ctx)
}
