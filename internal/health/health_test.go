package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker_AllHealthy(t *testing.T) {
	c := NewChecker()
	c.RegisterCheck("redis", func(_ context.Context) error { return nil })
	c.RegisterCheck("external", func(_ context.Context) error { return nil })

	report := c.Run(context.Background())
	assert.Equal(t, StatusHealthy, report.Status)
	require.Len(t, report.Checks, 2)
	assert.Equal(t, "up", report.Checks["redis"].Status)
	assert.Empty(t, report.Checks["redis"].Error)
}

func TestChecker_DegradedOnFailure(t *testing.T) {
	c := NewChecker()
	c.RegisterCheck("redis", func(_ context.Context) error {
		return errors.New("connection refused")
	})
	c.RegisterCheck("external", func(_ context.Context) error { return nil })

	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "down", report.Checks["redis"].Status)
	assert.Equal(t, "connection refused", report.Checks["redis"].Error)
	assert.Equal(t, "up", report.Checks["external"].Status)
	assert.False(t, report.Timestamp.IsZero())
}

func TestChecker_RegisterReplaces(t *testing.T) {
	c := NewChecker()
	c.RegisterCheck("redis", func(_ context.Context) error {
		return errors.New("down")
	})
	c.RegisterCheck("redis", func(_ context.Context) error { return nil })

	report := c.Run(context.Background())
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Len(t, report.Checks, 1)
}

func TestChecker_NoChecks(t *testing.T) {
	report := NewChecker().Run(context.Background())
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Empty(t, report.Checks)
}
