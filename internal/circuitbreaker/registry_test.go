package circuitbreaker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetOrCreate(t *testing.T) {
	r := NewRegistry(nil, nil)

	assert.Nil(t, r.Get("external"))

	cb, err := r.GetOrCreate("external")
	require.NoError(t, err)
	require.NotNil(t, cb)

	again, err := r.GetOrCreate("external")
	require.NoError(t, err)
	assert.Same(t, cb, again)
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_GetOrCreateWithConfig(t *testing.T) {
	r := NewRegistry(nil, nil)

	_, err := r.GetOrCreateWithConfig("bad", &Config{FailureThreshold: 0, ResetTimeout: time.Second})
	require.Error(t, err)

	cb, err := r.GetOrCreateWithConfig("good", &Config{FailureThreshold: 2, ResetTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "good", cb.Name())
}

func TestRegistry_ResetAllAndStatus(t *testing.T) {
	r := NewRegistry(&Config{FailureThreshold: 1, ResetTimeout: time.Hour}, nil)
	ctx := context.Background()

	a, err := r.GetOrCreate("a")
	require.NoError(t, err)
	b, err := r.GetOrCreate("b")
	require.NoError(t, err)

	_, _ = a.Call(ctx, failingOp)
	_, _ = b.Call(ctx, failingOp)
	require.Equal(t, StateOpen, a.State())
	require.Equal(t, StateOpen, b.State())

	statuses := r.StatusAll()
	require.Len(t, statuses, 2)
	assert.Equal(t, "open", statuses["a"].State)

	r.ResetAll()
	assert.Equal(t, StateClosed, a.State())
	assert.Equal(t, StateClosed, b.State())
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(nil, nil)

	cb, err := New("external", nil, nil)
	require.NoError(t, err)
	assert.Same(t, cb, r.Register(cb))
	assert.Same(t, cb, r.Get("external"))

	// Registering a second breaker under a taken name keeps the first.
	other, err := New("external", nil, nil)
	require.NoError(t, err)
	assert.Same(t, cb, r.Register(other))
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry(nil, nil)

	_, err := r.GetOrCreate("gone")
	require.NoError(t, err)
	r.Remove("gone")
	assert.Nil(t, r.Get("gone"))
	assert.Zero(t, r.Count())
	assert.Empty(t, r.List())
}
