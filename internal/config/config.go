// Package config provides configuration types and loading for the analytics API.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the analytics API.
type Config struct {
	// Server contains HTTP server configuration.
	Server ServerConfig `yaml:"server" json:"server"`

	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Tracing contains OpenTelemetry tracing configuration.
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`

	// Redis contains key-value backend configuration.
	Redis RedisConfig `yaml:"redis" json:"redis"`

	// Cache contains cache service configuration.
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// RateLimit contains rate limiter configuration.
	RateLimit RateLimitConfig `yaml:"rateLimit" json:"rateLimit"`

	// CircuitBreaker contains circuit breaker configuration.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker" json:"circuitBreaker"`

	// External contains simulated external service configuration.
	External ExternalConfig `yaml:"external" json:"external"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Host is the listen address.
	Host string `yaml:"host" json:"host"`

	// Port is the listen port.
	Port int `yaml:"port" json:"port"`

	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`

	// WriteTimeout is the maximum duration for writing a response.
	WriteTimeout Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`

	// ShutdownTimeout is the grace period for draining connections on shutdown.
	ShutdownTimeout Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" json:"level"`

	// Format is the log output format (json, console).
	Format string `yaml:"format" json:"format"`
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled indicates whether tracing is enabled.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint.
	OTLPEndpoint string `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`

	// SamplingRate is the trace sampling rate (0.0 to 1.0).
	SamplingRate float64 `yaml:"samplingRate,omitempty" json:"samplingRate,omitempty"`
}

// RedisConfig contains key-value backend configuration.
type RedisConfig struct {
	// URL is the Redis connection URL.
	// Format: redis://[user:password@]host:port[/db]
	URL string `yaml:"url" json:"url"`

	// KeyPrefix is a prefix added to all keys.
	KeyPrefix string `yaml:"keyPrefix,omitempty" json:"keyPrefix,omitempty"`

	// PoolSize is the maximum number of connections in the pool.
	PoolSize int `yaml:"poolSize,omitempty" json:"poolSize,omitempty"`

	// ConnectTimeout is the timeout for establishing connections.
	ConnectTimeout Duration `yaml:"connectTimeout,omitempty" json:"connectTimeout,omitempty"`

	// ReadTimeout is the timeout for read operations.
	ReadTimeout Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`

	// WriteTimeout is the timeout for write operations.
	WriteTimeout Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`

	// ConnectionRetries is the number of initial connection attempts.
	ConnectionRetries int `yaml:"connectionRetries,omitempty" json:"connectionRetries,omitempty"`

	// InitialBackoff is the initial backoff between connection attempts.
	InitialBackoff Duration `yaml:"initialBackoff,omitempty" json:"initialBackoff,omitempty"`

	// MaxBackoff is the maximum backoff between connection attempts.
	MaxBackoff Duration `yaml:"maxBackoff,omitempty" json:"maxBackoff,omitempty"`
}

// CacheConfig contains cache service configuration.
type CacheConfig struct {
	// TTL is the default time-to-live for cached entries.
	TTL Duration `yaml:"ttl" json:"ttl"`
}

// RateLimitConfig contains rate limiter configuration.
type RateLimitConfig struct {
	// Requests is the maximum number of requests per window.
	Requests int64 `yaml:"requests" json:"requests"`

	// Window is the fixed window length.
	Window Duration `yaml:"window" json:"window"`
}

// CircuitBreakerConfig contains circuit breaker configuration.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// circuit opens.
	FailureThreshold int `yaml:"failureThreshold" json:"failureThreshold"`

	// ResetTimeout is how long the circuit stays open before admitting a
	// probe request.
	ResetTimeout Duration `yaml:"resetTimeout" json:"resetTimeout"`
}

// ExternalConfig contains simulated external service configuration.
type ExternalConfig struct {
	// FailureRate is the simulated failure rate (0.0 to 1.0).
	FailureRate float64 `yaml:"failureRate" json:"failureRate"`

	// MinLatency is the minimum simulated latency per call.
	MinLatency Duration `yaml:"minLatency,omitempty" json:"minLatency,omitempty"`

	// MaxLatency is the maximum simulated latency per call.
	MaxLatency Duration `yaml:"maxLatency,omitempty" json:"maxLatency,omitempty"`
}

// Default configuration values.
const (
	DefaultServerHost        = "0.0.0.0"
	DefaultServerPort        = 8000
	DefaultRedisURL          = "redis://localhost:6379/0"
	DefaultKeyPrefix         = "analytics:"
	DefaultCacheTTL          = 5 * time.Minute
	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = time.Minute
	DefaultFailureThreshold  = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultFailureRate       = 0.1
	DefaultMinLatency        = 50 * time.Millisecond
	DefaultMaxLatency        = 150 * time.Millisecond
	DefaultShutdownTimeout   = 15 * time.Second
)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultServerHost,
			Port:            DefaultServerPort,
			ShutdownTimeout: Duration(DefaultShutdownTimeout),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			SamplingRate: 1.0,
		},
		Redis: RedisConfig{
			URL:       DefaultRedisURL,
			KeyPrefix: DefaultKeyPrefix,
		},
		Cache: CacheConfig{
			TTL: Duration(DefaultCacheTTL),
		},
		RateLimit: RateLimitConfig{
			Requests: DefaultRateLimitRequests,
			Window:   Duration(DefaultRateLimitWindow),
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: DefaultFailureThreshold,
			ResetTimeout:     Duration(DefaultResetTimeout),
		},
		External: ExternalConfig{
			FailureRate: DefaultFailureRate,
			MinLatency:  Duration(DefaultMinLatency),
			MaxLatency:  Duration(DefaultMaxLatency),
		},
	}
}

// applyDefaults fills zero-valued fields with defaults.
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = 1.0
	}
	if c.Redis.URL == "" {
		c.Redis.URL = DefaultRedisURL
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = DefaultKeyPrefix
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = Duration(DefaultCacheTTL)
	}
	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = DefaultRateLimitRequests
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = Duration(DefaultRateLimitWindow)
	}
	if c.CircuitBreaker.FailureThreshold == 0 {
		c.CircuitBreaker.FailureThreshold = DefaultFailureThreshold
	}
	if c.CircuitBreaker.ResetTimeout == 0 {
		c.CircuitBreaker.ResetTimeout = Duration(DefaultResetTimeout)
	}
	if c.External.MinLatency == 0 {
		c.External.MinLatency = Duration(DefaultMinLatency)
	}
	if c.External.MaxLatency == 0 {
		c.External.MaxLatency = Duration(DefaultMaxLatency)
	}
}

// Validate checks the configuration for invalid values. Invalid thresholds,
// windows, and TTLs are fatal at startup rather than silently corrected.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL.Duration())
	}
	if c.RateLimit.Requests <= 0 {
		return fmt.Errorf("rateLimit.requests must be positive, got %d", c.RateLimit.Requests)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rateLimit.window must be positive, got %s", c.RateLimit.Window.Duration())
	}
	if c.CircuitBreaker.FailureThreshold <= 0 {
		return fmt.Errorf("circuitBreaker.failureThreshold must be positive, got %d",
			c.CircuitBreaker.FailureThreshold)
	}
	if c.CircuitBreaker.ResetTimeout <= 0 {
		return fmt.Errorf("circuitBreaker.resetTimeout must be positive, got %s",
			c.CircuitBreaker.ResetTimeout.Duration())
	}
	if c.External.FailureRate < 0 || c.External.FailureRate > 1 {
		return fmt.Errorf("external.failureRate must be between 0.0 and 1.0, got %g",
			c.External.FailureRate)
	}
	if c.External.MinLatency < 0 || c.External.MaxLatency < c.External.MinLatency {
		return fmt.Errorf("external latency bounds are invalid: min=%s max=%s",
			c.External.MinLatency.Duration(), c.External.MaxLatency.Duration())
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("tracing.samplingRate must be between 0.0 and 1.0, got %g",
			c.Tracing.SamplingRate)
	}
	return nil
}
