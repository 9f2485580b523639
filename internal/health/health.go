// Package health aggregates named dependency checks into a service
// health report. A failing check degrades the report instead of failing
// it: the service keeps serving from local data when the backend is down.
package health

import (
	"context"
	"sync"
	"time"
)

// Status is the aggregate health status of the service.
type Status string

const (
	// StatusHealthy means every registered check passed.
	StatusHealthy Status = "healthy"

	// StatusDegraded means at least one check failed but the service is
	// still serving.
	StatusDegraded Status = "degraded"
)

// CheckFunc probes a single dependency.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of one dependency check.
type CheckResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Report is a point-in-time health report.
type Report struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// Checker runs registered dependency checks.
type Checker struct {
	mu     sync.Mutex
	checks map[string]CheckFunc
	names  []string
	now    func() time.Time
}

// NewChecker creates an empty health checker.
func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]CheckFunc),
		now:    time.Now,
	}
}

// RegisterCheck adds a named dependency check, replacing any existing
// check with the same name.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.checks[name]; !exists {
		c.names = append(c.names, name)
	}
	c.checks[name] = check
}

// Run executes all registered checks and aggregates their results. Checks
// run in registration order.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.Lock()
	names := make([]string, len(c.names))
	copy(names, c.names)
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	now := c.now
	c.mu.Unlock()

	report := Report{
		Status:    StatusHealthy,
		Timestamp: now().UTC(),
		Checks:    make(map[string]CheckResult, len(names)),
	}

	for _, name := range names {
		start := time.Now()
		err := checks[name](ctx)
		recordCheck(name, err == nil, time.Since(start).Seconds())

		if err != nil {
			report.Status = StatusDegraded
			report.Checks[name] = CheckResult{Status: "down", Error: err.Error()}
			continue
		}
		report.Checks[name] = CheckResult{Status: "up"}
	}

	return report
}
