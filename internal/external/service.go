// Package external simulates an unreliable downstream dependency with a
// configurable failure rate and latency, giving the circuit breaker a
// real failure source without requiring an actual remote service.
package external

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/resilientlabs/analytics-api/internal/observability"
)

// ErrUnavailable is the simulated downstream failure.
var ErrUnavailable = errors.New("external service unavailable")

// Data is the payload returned by the simulated service.
type Data struct {
	Source      string    `json:"source"`
	MetricType  string    `json:"metric_type"`
	SampleValue int       `json:"sample_value"`
	Timestamp   time.Time `json:"timestamp"`
}

// Config holds configuration for the simulated service.
type Config struct {
	// FailureRate is the probability in [0, 1] that a fetch fails.
	FailureRate float64

	// MinLatency and MaxLatency bound the simulated round-trip time.
	MinLatency time.Duration
	MaxLatency time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		FailureRate: 0.1,
		MinLatency:  50 * time.Millisecond,
		MaxLatency:  150 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.FailureRate < 0 || c.FailureRate > 1 {
		return fmt.Errorf("external: failure rate must be between 0.0 and 1.0, got %g", c.FailureRate)
	}
	if c.MinLatency < 0 || c.MaxLatency < c.MinLatency {
		return fmt.Errorf("external: invalid latency bounds [%s, %s]", c.MinLatency, c.MaxLatency)
	}
	return nil
}

// Service simulates the downstream dependency. The failure rate is held
// atomically so it can be changed at runtime by tests and config reloads
// while fetches are in flight.
type Service struct {
	failureRate atomic.Uint64
	minLatency  time.Duration
	maxLatency  time.Duration
	logger      observability.Logger
}

// NewService creates a simulated external service.
func NewService(config *Config, logger observability.Logger) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	s := &Service{
		minLatency: config.MinLatency,
		maxLatency: config.MaxLatency,
		logger:     logger,
	}
	s.failureRate.Store(math.Float64bits(config.FailureRate))
	return s, nil
}

// SetFailureRate changes the simulated failure rate at runtime.
func (s *Service) SetFailureRate(rate float64) error {
	if rate < 0 || rate > 1 {
		return fmt.Errorf("external: failure rate must be between 0.0 and 1.0, got %g", rate)
	}
	s.failureRate.Store(math.Float64bits(rate))
	s.logger.Info("external service failure rate changed",
		observability.Float64("rate", rate))
	return nil
}

// FailureRate returns the current simulated failure rate.
func (s *Service) FailureRate() float64 {
	return math.Float64frombits(s.failureRate.Load())
}

// Fetch simulates a downstream call for the given metric type. It waits a
// random latency within the configured bounds (respecting context
// cancellation), then fails with ErrUnavailable according to the failure
// rate.
func (s *Service) Fetch(ctx context.Context, metricType string) (*Data, error) {
	latency := s.minLatency
	if spread := s.maxLatency - s.minLatency; spread > 0 {
		latency += time.Duration(rand.Int63n(int64(spread)))
	}

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if rand.Float64() < s.FailureRate() {
		s.logger.Debug("simulated external service failure",
			observability.String("metric_type", metricType))
		return nil, fmt.Errorf("%w for %s due to high load", ErrUnavailable, metricType)
	}

	return &Data{
		Source:      "external_service",
		MetricType:  metricType,
		SampleValue: 50 + rand.Intn(151),
		Timestamp:   time.Now().UTC(),
	}, nil
}
