// Package circuitbreaker implements the circuit breaker pattern around a
// single unreliable downstream dependency, failing fast while the
// dependency is unhealthy and probing for recovery with at most one test
// call at a time.
package circuitbreaker

import (
	"fmt"
	"time"
)

// Config holds configuration for a circuit breaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures while Closed
	// that trips the circuit to Open.
	FailureThreshold int

	// ResetTimeout is how long the circuit stays Open after the last
	// failure before a recovery probe is admitted. Sub-second values are
	// allowed.
	ResetTimeout time.Duration

	// Clock overrides the time source. Intended for tests; nil means
	// time.Now.
	Clock func() time.Time

	// OnStateChange is called asynchronously on every state transition.
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// Validate checks the configuration. Non-positive thresholds and timeouts
// are construction-time errors, not silently corrected.
func (c *Config) Validate() error {
	if c.FailureThreshold < 1 {
		return fmt.Errorf("circuitbreaker: failure threshold must be positive, got %d", c.FailureThreshold)
	}
	if c.ResetTimeout <= 0 {
		return fmt.Errorf("circuitbreaker: reset timeout must be positive, got %s", c.ResetTimeout)
	}
	return nil
}
