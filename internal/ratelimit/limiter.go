// Package ratelimit implements fixed-window request rate limiting backed
// by the shared key-value store. Counting is atomic at the backend, so
// concurrent callers observe a strictly increasing count per window.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/resilientlabs/analytics-api/internal/kvstore"
	"github.com/resilientlabs/analytics-api/internal/observability"
)

// keyPrefix namespaces limiter counters in the shared backend.
const keyPrefix = "rate_limit:"

// Config holds configuration for a rate limiter.
type Config struct {
	// Threshold is the maximum number of requests allowed per window.
	Threshold int64

	// Window is the fixed window length. The window boundary is anchored
	// to the first request for a key, not to wall-clock intervals.
	Window time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Threshold: 10,
		Window:    time.Minute,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Threshold < 1 {
		return fmt.Errorf("ratelimit: threshold must be positive, got %d", c.Threshold)
	}
	if c.Window <= 0 {
		return fmt.Errorf("ratelimit: window must be positive, got %s", c.Window)
	}
	return nil
}

// Limiter is a fixed-window rate limiter. Backend unavailability fails
// open: legitimate traffic is never blocked because the counting
// mechanism itself is broken.
type Limiter struct {
	store     kvstore.Store
	threshold int64
	window    time.Duration
	logger    observability.Logger
}

// NewLimiter creates a fixed-window rate limiter over the given store.
func NewLimiter(store kvstore.Store, config *Config, logger observability.Logger) (*Limiter, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &Limiter{
		store:     store,
		threshold: config.Threshold,
		window:    config.Window,
		logger:    logger,
	}, nil
}

// counterKey builds the backend key for a client identity.
func (l *Limiter) counterKey(key string) string {
	return keyPrefix + key
}

// Allow reports whether a request for key is admitted. Every request
// increments the window counter, including ones past the threshold, so
// RetryAfter stays accurate under sustained pressure. The counter TTL is
// attached only when the increment creates the key.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	count, err := l.store.IncrWithExpiry(ctx, l.counterKey(key), 1, l.window)
	if err != nil {
		l.logger.Warn("rate limit backend unavailable, failing open",
			observability.String("key", key),
			observability.Error(err))
		recordDecision("fail_open")
		return true
	}

	if count > l.threshold {
		recordDecision("denied")
		return false
	}
	recordDecision("allowed")
	return true
}

// RetryAfter returns how long the caller should wait before retrying,
// never less than one second. When the backend is unreachable or the
// counter has no TTL, the full window length is reported.
func (l *Limiter) RetryAfter(ctx context.Context, key string) time.Duration {
	ttl, err := l.store.TTL(ctx, l.counterKey(key))
	if err != nil || ttl < 0 {
		ttl = l.window
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

// Reset clears the window counter for key, immediately admitting new
// requests.
func (l *Limiter) Reset(ctx context.Context, key string) {
	if _, err := l.store.Del(ctx, l.counterKey(key)); err != nil {
		l.logger.Warn("rate limit reset failed",
			observability.String("key", key),
			observability.Error(err))
	}
}

// Threshold returns the configured per-window request limit.
func (l *Limiter) Threshold() int64 {
	return l.threshold
}

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration {
	return l.window
}
