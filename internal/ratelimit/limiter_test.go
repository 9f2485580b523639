package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resilientlabs/analytics-api/internal/kvstore"
)

func newTestLimiter(t *testing.T, threshold int64, window time.Duration) (*Limiter, *miniredis.Miniredis, *kvstore.RedisStore) {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := kvstore.DefaultRedisConfig()
	cfg.URL = "redis://" + mr.Addr()
	cfg.Prefix = "test:"
	cfg.ConnectionRetries = 1

	store, err := kvstore.NewRedisStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	limiter, err := NewLimiter(store, &Config{Threshold: threshold, Window: window}, nil)
	require.NoError(t, err)

	return limiter, mr, store
}

func TestNewLimiter_InvalidConfig(t *testing.T) {
	_, err := NewLimiter(kvstore.NewMemoryStore(), &Config{Threshold: 0, Window: time.Minute}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "threshold")

	_, err = NewLimiter(kvstore.NewMemoryStore(), &Config{Threshold: 5, Window: 0}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window")
}

func TestLimiter_FixedWindow(t *testing.T) {
	limiter, mr, _ := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	// Requests 1-3 within the window are admitted, request 4 is denied.
	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow(ctx, "10.0.0.1"))
	}
	assert.False(t, limiter.Allow(ctx, "10.0.0.1"))

	// Another client has its own window.
	assert.True(t, limiter.Allow(ctx, "10.0.0.2"))

	// A fresh window opens after the TTL elapses.
	mr.FastForward(time.Minute)
	assert.True(t, limiter.Allow(ctx, "10.0.0.1"))
}

func TestLimiter_DeniedRequestsKeepCounting(t *testing.T) {
	limiter, _, store := newTestLimiter(t, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		limiter.Allow(ctx, "client")
	}

	val, err := store.Get(ctx, "rate_limit:client")
	require.NoError(t, err)
	assert.Equal(t, []byte("5"), val)
}

func TestLimiter_WindowAnchoredToFirstRequest(t *testing.T) {
	limiter, mr, _ := newTestLimiter(t, 10, time.Minute)
	ctx := context.Background()

	require.True(t, limiter.Allow(ctx, "client"))
	mr.FastForward(30 * time.Second)

	// A second request must not refresh the window TTL.
	require.True(t, limiter.Allow(ctx, "client"))
	assert.Equal(t, 30*time.Second, mr.TTL("test:rate_limit:client"))
}

func TestLimiter_RetryAfter(t *testing.T) {
	limiter, mr, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	// Unknown key reports the full window.
	assert.Equal(t, time.Minute, limiter.RetryAfter(ctx, "unknown"))

	require.True(t, limiter.Allow(ctx, "client"))
	assert.Equal(t, time.Minute, limiter.RetryAfter(ctx, "client"))

	mr.FastForward(45 * time.Second)
	assert.Equal(t, 15*time.Second, limiter.RetryAfter(ctx, "client"))

	// Never below one second, even just before expiry.
	mr.FastForward(14*time.Second + 800*time.Millisecond)
	assert.Equal(t, time.Second, limiter.RetryAfter(ctx, "client"))
}

func TestLimiter_Reset(t *testing.T) {
	limiter, _, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	require.True(t, limiter.Allow(ctx, "client"))
	require.False(t, limiter.Allow(ctx, "client"))

	limiter.Reset(ctx, "client")
	assert.True(t, limiter.Allow(ctx, "client"))
}

func TestLimiter_FailOpenOnBackendDown(t *testing.T) {
	limiter, mr, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	mr.Close()

	// The limiter admits everything when it cannot count.
	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow(ctx, "client"))
	}
	assert.Equal(t, time.Minute, limiter.RetryAfter(ctx, "client"))

	// Reset must not panic or surface the backend error.
	limiter.Reset(ctx, "client")
}

func TestLimiter_MemoryStoreBackend(t *testing.T) {
	limiter, err := NewLimiter(kvstore.NewMemoryStore(), &Config{Threshold: 2, Window: time.Minute}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	assert.True(t, limiter.Allow(ctx, "client"))
	assert.True(t, limiter.Allow(ctx, "client"))
	assert.False(t, limiter.Allow(ctx, "client"))
}
