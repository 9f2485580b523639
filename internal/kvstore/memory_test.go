package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryStore(t *testing.T) (*MemoryStore, *time.Time) {
	t.Helper()

	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.SetClock(func() time.Time { return now })
	t.Cleanup(func() { _ = store.Close() })

	return store, &now
}

func TestMemoryStore_IncrWithExpiry(t *testing.T) {
	store, now := newTestMemoryStore(t)
	ctx := context.Background()

	n, err := store.IncrWithExpiry(ctx, "window", 1, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// The expiry stays anchored to the first increment.
	*now = now.Add(4 * time.Second)
	n, err = store.IncrWithExpiry(ctx, "window", 1, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ttl, err := store.TTL(ctx, "window")
	require.NoError(t, err)
	assert.Equal(t, 6*time.Second, ttl)

	// The window rolls over after expiry.
	*now = now.Add(7 * time.Second)
	n, err = store.IncrWithExpiry(ctx, "window", 1, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryStore_IncrNonInteger(t *testing.T) {
	store, _ := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetEx(ctx, "k", []byte("not-a-number"), 0))

	_, err := store.Incr(ctx, "k", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an integer")
}

func TestMemoryStore_TTLSentinels(t *testing.T) {
	store, _ := newTestMemoryStore(t)
	ctx := context.Background()

	ttl, err := store.TTL(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, TTLKeyMissing, ttl)

	require.NoError(t, store.SetEx(ctx, "forever", []byte("v"), 0))
	ttl, err = store.TTL(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, TTLNoExpiry, ttl)
}

func TestMemoryStore_LazyExpiry(t *testing.T) {
	store, now := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetEx(ctx, "k", []byte("v"), time.Second))

	val, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)

	*now = now.Add(2 * time.Second)
	_, err = store.Get(ctx, "k")
	assert.True(t, IsNotFound(err))
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	store, _ := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetEx(ctx, "k", []byte("abc"), 0))

	val, err := store.Get(ctx, "k")
	require.NoError(t, err)
	val[0] = 'x'

	val, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), val)
}

func TestMemoryStore_DelAndKeys(t *testing.T) {
	store, _ := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetEx(ctx, "summary:cpu:daily", []byte("1"), 0))
	require.NoError(t, store.SetEx(ctx, "summary:mem:daily", []byte("2"), 0))
	require.NoError(t, store.SetEx(ctx, "other", []byte("3"), 0))

	keys, err := store.Keys(ctx, "summary:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"summary:cpu:daily", "summary:mem:daily"}, keys)

	n, err := store.Del(ctx, keys...)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	keys, err = store.Keys(ctx, "summary:*")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMemoryStore_Expire(t *testing.T) {
	store, now := newTestMemoryStore(t)
	ctx := context.Background()

	ok, err := store.Expire(ctx, "missing", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetEx(ctx, "k", []byte("v"), 0))
	ok, err = store.Expire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	*now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, "k")
	assert.True(t, IsNotFound(err))
}

func TestMemoryStore_ClosedOperationsFail(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	ctx := context.Background()

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)

	err = store.SetEx(ctx, "k", []byte("v"), 0)
	assert.ErrorIs(t, err, ErrClosed)

	_, err = store.IncrWithExpiry(ctx, "k", 1, time.Second)
	assert.ErrorIs(t, err, ErrClosed)

	assert.ErrorIs(t, store.Ping(ctx), ErrClosed)
}
