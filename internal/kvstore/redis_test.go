package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := DefaultRedisConfig()
	cfg.URL = "redis://" + mr.Addr()
	cfg.Prefix = "test:"
	cfg.ConnectionRetries = 1

	store, err := NewRedisStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}

func TestNewRedisStore_InvalidURL(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.URL = "not-a-url"

	_, err := NewRedisStore(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid redis URL")
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.URL = "redis://127.0.0.1:1"
	cfg.ConnectionRetries = 1
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	cfg.DialTimeout = 100 * time.Millisecond

	_, err := NewRedisStore(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestRedisStore_Incr(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	n, err := store.Incr(ctx, "counter", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.Incr(ctx, "counter", 4)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	// Keys are stored under the configured prefix.
	assert.True(t, mr.Exists("test:counter"))
}

func TestRedisStore_IncrWithExpiry(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	n, err := store.IncrWithExpiry(ctx, "window", 1, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 10*time.Second, mr.TTL("test:window"))

	// Subsequent increments must not refresh the expiry.
	mr.FastForward(4 * time.Second)
	n, err = store.IncrWithExpiry(ctx, "window", 1, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 6*time.Second, mr.TTL("test:window"))

	// After the window expires the counter starts over.
	mr.FastForward(7 * time.Second)
	n, err = store.IncrWithExpiry(ctx, "window", 1, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 10*time.Second, mr.TTL("test:window"))
}

func TestRedisStore_IncrWithExpiry_SubSecondFloor(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	_, err := store.IncrWithExpiry(ctx, "window", 1, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, time.Second, mr.TTL("test:window"))
}

func TestRedisStore_TTLSentinels(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	ttl, err := store.TTL(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, TTLKeyMissing, ttl)

	mr.Set("test:forever", "v")
	ttl, err = store.TTL(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, TTLNoExpiry, ttl)

	require.NoError(t, store.SetEx(ctx, "bounded", []byte("v"), 30*time.Second))
	ttl, err = store.TTL(ctx, "bounded")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, ttl)
}

func TestRedisStore_GetSetDel(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	require.NoError(t, store.SetEx(ctx, "k", []byte(`{"a":1}`), time.Minute))

	val, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), val)

	n, err := store.Del(ctx, "k", "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.Get(ctx, "k")
	assert.True(t, IsNotFound(err))
}

func TestRedisStore_Del_NoKeys(t *testing.T) {
	store, _ := newTestRedisStore(t)

	n, err := store.Del(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisStore_Keys(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetEx(ctx, "summary:cpu:daily", []byte("1"), time.Minute))
	require.NoError(t, store.SetEx(ctx, "summary:mem:daily", []byte("2"), time.Minute))
	require.NoError(t, store.SetEx(ctx, "other", []byte("3"), time.Minute))

	keys, err := store.Keys(ctx, "summary:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"summary:cpu:daily", "summary:mem:daily"}, keys)
}

func TestRedisStore_Expire(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	ok, err := store.Expire(ctx, "missing", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.Set("test:k", "v")
	ok, err = store.Expire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("test:k"))
}

func TestRedisStore_PingAfterBackendDown(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	mr.Close()
	assert.Error(t, store.Ping(ctx))
}

func TestRedisStore_CloseIdempotent(t *testing.T) {
	store, _ := newTestRedisStore(t)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
