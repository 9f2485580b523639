// Package cache implements a cache-aside service over the shared
// key-value store. Values are JSON-serialized; backend failures degrade
// silently so a broken cache never breaks the request path.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/resilientlabs/analytics-api/internal/kvstore"
	"github.com/resilientlabs/analytics-api/internal/observability"
)

// Producer computes the value for a cache key on miss.
type Producer func(ctx context.Context) (any, error)

// Config holds configuration for the cache service.
type Config struct {
	// DefaultTTL applies to writes that do not specify their own TTL.
	DefaultTTL time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		DefaultTTL: 5 * time.Minute,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.DefaultTTL <= 0 {
		return fmt.Errorf("cache: default TTL must be positive, got %s", c.DefaultTTL)
	}
	return nil
}

// Service is a cache-aside layer over a key-value store.
type Service struct {
	store      kvstore.Store
	defaultTTL time.Duration
	logger     observability.Logger
}

// NewService creates a cache service over the given store.
func NewService(store kvstore.Store, config *Config, logger observability.Logger) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &Service{
		store:      store,
		defaultTTL: config.DefaultTTL,
		logger:     logger,
	}, nil
}

// Get loads the value at key into out and reports whether it was found.
// Backend failures and undecodable entries behave as misses.
func (s *Service) Get(ctx context.Context, key string, out any) bool {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if !kvstore.IsNotFound(err) {
			s.logger.Warn("cache get failed, treating as miss",
				observability.String("key", key),
				observability.Error(err))
		}
		recordAccess("miss")
		return false
	}

	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Warn("cache entry undecodable, treating as miss",
			observability.String("key", key),
			observability.Error(err))
		recordAccess("miss")
		return false
	}

	recordAccess("hit")
	return true
}

// Set stores value at key and reports success. A non-positive ttl selects
// the configured default. Failures are logged, never raised.
func (s *Service) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("cache value not serializable",
			observability.String("key", key),
			observability.Error(err))
		return false
	}

	if err := s.store.SetEx(ctx, key, data, ttl); err != nil {
		s.logger.Warn("cache set failed",
			observability.String("key", key),
			observability.Error(err))
		return false
	}
	return true
}

// Delete removes key and reports whether an entry was removed.
func (s *Service) Delete(ctx context.Context, key string) bool {
	n, err := s.store.Del(ctx, key)
	if err != nil {
		s.logger.Warn("cache delete failed",
			observability.String("key", key),
			observability.Error(err))
		return false
	}
	return n > 0
}

// GetOrSet loads the value at key into out, invoking producer on miss and
// persisting its result. Producer errors propagate to the caller; cache
// write failures do not. Concurrent misses for the same key are not
// coalesced, so each calling miss invokes the producer independently.
func (s *Service) GetOrSet(ctx context.Context, key string, out any, ttl time.Duration, producer Producer) error {
	if s.Get(ctx, key, out) {
		return nil
	}

	value, err := producer(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: produced value not serializable: %w", err)
	}

	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if err := s.store.SetEx(ctx, key, data, ttl); err != nil {
		s.logger.Warn("cache set failed after produce",
			observability.String("key", key),
			observability.Error(err))
	}

	return json.Unmarshal(data, out)
}

// ClearPattern removes all entries matching the glob-style pattern in one
// batch and returns the number removed, 0 on backend failure.
func (s *Service) ClearPattern(ctx context.Context, pattern string) int {
	keys, err := s.store.Keys(ctx, pattern)
	if err != nil {
		s.logger.Warn("cache pattern enumeration failed",
			observability.String("pattern", pattern),
			observability.Error(err))
		return 0
	}
	if len(keys) == 0 {
		return 0
	}

	n, err := s.store.Del(ctx, keys...)
	if err != nil {
		s.logger.Warn("cache pattern delete failed",
			observability.String("pattern", pattern),
			observability.Error(err))
		return 0
	}

	recordCleared(n)
	return int(n)
}
