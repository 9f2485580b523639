package external

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, failureRate float64) *Service {
	t.Helper()

	s, err := NewService(&Config{
		FailureRate: failureRate,
		MinLatency:  0,
		MaxLatency:  time.Millisecond,
	}, nil)
	require.NoError(t, err)
	return s
}

func TestNewService_InvalidConfig(t *testing.T) {
	_, err := NewService(&Config{FailureRate: 1.5}, nil)
	require.Error(t, err)

	_, err = NewService(&Config{FailureRate: 0.5, MinLatency: time.Second, MaxLatency: 0}, nil)
	require.Error(t, err)
}

func TestService_FetchAlwaysSucceeds(t *testing.T) {
	s := newTestService(t, 0)

	for i := 0; i < 20; i++ {
		data, err := s.Fetch(context.Background(), "cpu_usage")
		require.NoError(t, err)
		assert.Equal(t, "external_service", data.Source)
		assert.Equal(t, "cpu_usage", data.MetricType)
		assert.GreaterOrEqual(t, data.SampleValue, 50)
		assert.LessOrEqual(t, data.SampleValue, 200)
		assert.False(t, data.Timestamp.IsZero())
	}
}

func TestService_FetchAlwaysFails(t *testing.T) {
	s := newTestService(t, 1)

	for i := 0; i < 20; i++ {
		_, err := s.Fetch(context.Background(), "cpu_usage")
		assert.ErrorIs(t, err, ErrUnavailable)
	}
}

func TestService_SetFailureRate(t *testing.T) {
	s := newTestService(t, 0)

	require.NoError(t, s.SetFailureRate(1))
	assert.Equal(t, 1.0, s.FailureRate())

	_, err := s.Fetch(context.Background(), "cpu_usage")
	assert.ErrorIs(t, err, ErrUnavailable)

	require.NoError(t, s.SetFailureRate(0))
	_, err = s.Fetch(context.Background(), "cpu_usage")
	assert.NoError(t, err)

	assert.Error(t, s.SetFailureRate(-0.1))
	assert.Error(t, s.SetFailureRate(1.1))
}

func TestService_FetchRespectsContext(t *testing.T) {
	s, err := NewService(&Config{
		FailureRate: 0,
		MinLatency:  time.Minute,
		MaxLatency:  time.Minute,
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = s.Fetch(ctx, "cpu_usage")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
