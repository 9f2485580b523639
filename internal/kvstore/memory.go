package kvstore

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"sync"
	"time"
)

// MemoryStore implements Store using an in-process map. It is intended
// for tests and redis-less development runs; entries expire lazily on
// access.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	closed  bool
	now     func() time.Time
}

// memoryEntry holds a value and its expiration time. A zero expiresAt
// means the entry never expires.
type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// SetClock overrides the clock used for expiry checks. Intended for tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// get returns the live entry for key, expiring it if needed.
// Caller must hold the lock.
func (s *MemoryStore) get(key string) *memoryEntry {
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return nil
	}
	return e
}

// incr increments the counter at key by delta. Caller must hold the lock.
func (s *MemoryStore) incr(key string, delta int64) (int64, bool, error) {
	e := s.get(key)
	if e == nil {
		s.entries[key] = &memoryEntry{data: []byte(strconv.FormatInt(delta, 10))}
		return delta, true, nil
	}

	n, err := strconv.ParseInt(string(e.data), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("value at %s is not an integer: %w", key, err)
	}
	n += delta
	e.data = []byte(strconv.FormatInt(n, 10))
	return n, false, nil
}

// Incr implements Store.
func (s *MemoryStore) Incr(_ context.Context, key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	n, _, err := s.incr(key, delta)
	return n, err
}

// IncrWithExpiry implements Store. The expiry is attached only when the
// increment created the key, matching the Redis script behavior.
func (s *MemoryStore) IncrWithExpiry(
	_ context.Context,
	key string,
	delta int64,
	expiry time.Duration,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	n, created, err := s.incr(key, delta)
	if err != nil {
		return 0, err
	}
	if created && expiry > 0 {
		s.entries[key].expiresAt = s.now().Add(expiry)
	}
	return n, nil
}

// Expire implements Store.
func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}

	e := s.get(key)
	if e == nil {
		return false, nil
	}
	e.expiresAt = s.now().Add(ttl)
	return true, nil
}

// TTL implements Store.
func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	e := s.get(key)
	if e == nil {
		return TTLKeyMissing, nil
	}
	if e.expiresAt.IsZero() {
		return TTLNoExpiry, nil
	}
	return e.expiresAt.Sub(s.now()), nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	e := s.get(key)
	if e == nil {
		return nil, &ErrKeyNotFound{Key: key}
	}

	value := make([]byte, len(e.data))
	copy(value, e.data)
	return value, nil
}

// SetEx implements Store.
func (s *MemoryStore) SetEx(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	data := make([]byte, len(value))
	copy(data, value)

	e := &memoryEntry{data: data}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

// Del implements Store.
func (s *MemoryStore) Del(_ context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	var n int64
	for _, key := range keys {
		if s.get(key) != nil {
			delete(s.entries, key)
			n++
		}
	}
	return n, nil
}

// Keys implements Store. Patterns use path.Match syntax, which covers the
// glob subset (*, ?, character classes) the cache service relies on.
func (s *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	var keys []string
	for key := range s.entries {
		if s.get(key) == nil {
			continue
		}
		ok, err := path.Match(pattern, key)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close implements Store. Close is idempotent.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entries = nil
	return nil
}
