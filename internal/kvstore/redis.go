package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/resilientlabs/analytics-api/internal/observability"
)

// kvstoreTracerName is the tracer name for store spans.
const kvstoreTracerName = "kvstore"

// incrWithExpiryScript atomically increments a counter and attaches the
// expiry only when the increment created the key. Executing both steps in
// one script removes the crash window between INCR and EXPIRE that would
// otherwise leave an orphaned, non-expiring counter.
// KEYS[1] = key, ARGV[1] = delta, ARGV[2] = expiry in seconds.
var incrWithExpiryScript = redis.NewScript(`
	local current = redis.call('INCRBY', KEYS[1], ARGV[1])
	if current == tonumber(ARGV[1]) then
		redis.call('EXPIRE', KEYS[1], ARGV[2])
	end
	return current
`)

// RedisConfig holds configuration for the Redis store.
type RedisConfig struct {
	// URL is the Redis connection URL.
	URL string

	// Prefix is prepended to every key.
	Prefix string

	// Connection pool settings.
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// ConnectionRetries is the number of initial connection attempts.
	ConnectionRetries int

	// InitialBackoff is the initial backoff between connection attempts.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff between connection attempts.
	MaxBackoff time.Duration

	// Logger for the store.
	Logger observability.Logger
}

// DefaultRedisConfig returns a RedisConfig with default values.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		URL:               "redis://localhost:6379/0",
		Prefix:            "analytics:",
		PoolSize:          10,
		DialTimeout:       5 * time.Second,
		ReadTimeout:       3 * time.Second,
		WriteTimeout:      3 * time.Second,
		ConnectionRetries: 5,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
	}
}

// RedisStore implements Store using Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger observability.Logger
	mu     sync.Mutex
	closed bool
}

// NewRedisStore creates a new Redis store and verifies connectivity,
// retrying with decorrelated jitter backoff to avoid thundering herds
// when the backend and the service restart together.
func NewRedisStore(cfg *RedisConfig) (*RedisStore, error) {
	if cfg == nil {
		cfg = DefaultRedisConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opts)

	if err := connectWithRetry(client, cfg, logger); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("redis store initialized",
		observability.String("address", opts.Addr),
		observability.String("prefix", cfg.Prefix))

	return &RedisStore{
		client: client,
		prefix: cfg.Prefix,
		logger: logger,
	}, nil
}

// connectWithRetry pings Redis until it responds or retries are exhausted.
func connectWithRetry(client *redis.Client, cfg *RedisConfig, logger observability.Logger) error {
	retries := cfg.ConnectionRetries
	if retries <= 0 {
		retries = 5
	}
	backoff := newDecorrelatedJitterBackoff(cfg.InitialBackoff, cfg.MaxBackoff)

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
		lastErr = client.Ping(ctx).Err()
		cancel()

		if lastErr == nil {
			if attempt > 0 {
				logger.Info("redis connection established after retry",
					observability.Int("attempt", attempt+1))
			}
			return nil
		}

		storeConnectionErrors.Inc()
		if attempt >= retries {
			break
		}

		wait := backoff.next(attempt)
		logger.Debug("redis connection failed, retrying",
			observability.Int("attempt", attempt+1),
			observability.Int("max_retries", retries),
			observability.Duration("backoff", wait),
			observability.Error(lastErr))
		storeConnectionRetries.Inc()
		time.Sleep(wait)
	}

	return fmt.Errorf("failed to connect to redis after %d attempts: %w", retries+1, lastErr)
}

// decorrelatedJitterBackoff implements AWS-style decorrelated jitter
// backoff: sleep = min(cap, random_between(base, sleep * 3)).
type decorrelatedJitterBackoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newDecorrelatedJitterBackoff(initial, maxDuration time.Duration) *decorrelatedJitterBackoff {
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	if maxDuration <= 0 {
		maxDuration = 10 * time.Second
	}
	return &decorrelatedJitterBackoff{
		initial: initial,
		max:     maxDuration,
		current: initial,
	}
}

func (b *decorrelatedJitterBackoff) next(attempt int) time.Duration {
	if attempt == 0 {
		b.current = b.initial
		return b.current
	}

	minBackoff := float64(b.initial)
	maxBackoff := float64(b.current) * 3

	//nolint:gosec // weak random is acceptable for jitter
	backoff := minBackoff + float64(time.Now().UnixNano()%1000)/1000.0*(maxBackoff-minBackoff)

	if backoff > float64(b.max) {
		backoff = float64(b.max)
	}

	b.current = time.Duration(backoff)
	return b.current
}

// prefixKey adds the prefix to the key.
func (s *RedisStore) prefixKey(key string) string {
	return s.prefix + key
}

// startSpan starts a client span for a store operation.
func startSpan(ctx context.Context, operation, key string) (context.Context, trace.Span) {
	return otel.Tracer(kvstoreTracerName).Start(ctx, "kvstore."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("kvstore.key", key),
		),
	)
}

// finishSpan records the error state on a span and ends it.
func finishSpan(span trace.Span, err error) {
	if err != nil && !IsNotFound(err) {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	span.End()
}

// Incr implements Store.
func (s *RedisStore) Incr(ctx context.Context, key string, delta int64) (int64, error) {
	ctx, span := startSpan(ctx, "incr", key)
	start := time.Now()

	val, err := s.client.IncrBy(ctx, s.prefixKey(key), delta).Result()

	finishSpan(span, err)
	if err != nil {
		recordOperation("redis", "incr", "error", time.Since(start).Seconds())
		return 0, fmt.Errorf("redis incr error: %w", err)
	}

	recordOperation("redis", "incr", "success", time.Since(start).Seconds())
	return val, nil
}

// IncrWithExpiry implements Store using a Lua script for atomicity.
func (s *RedisStore) IncrWithExpiry(
	ctx context.Context,
	key string,
	delta int64,
	expiry time.Duration,
) (int64, error) {
	ctx, span := startSpan(ctx, "incr_with_expiry", key)
	start := time.Now()

	expirySecs := int64(expiry.Seconds())
	if expirySecs < 1 {
		expirySecs = 1
	}

	result, err := incrWithExpiryScript.Run(
		ctx, s.client, []string{s.prefixKey(key)}, delta, expirySecs,
	).Result()

	finishSpan(span, err)
	if err != nil {
		recordOperation("redis", "incr_with_expiry", "error", time.Since(start).Seconds())
		return 0, fmt.Errorf("redis script error: %w", err)
	}

	val, ok := result.(int64)
	if !ok {
		recordOperation("redis", "incr_with_expiry", "error", time.Since(start).Seconds())
		return 0, fmt.Errorf("redis script returned unexpected type: %T", result)
	}

	recordOperation("redis", "incr_with_expiry", "success", time.Since(start).Seconds())
	return val, nil
}

// Expire implements Store.
func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ctx, span := startSpan(ctx, "expire", key)
	start := time.Now()

	ok, err := s.client.Expire(ctx, s.prefixKey(key), ttl).Result()

	finishSpan(span, err)
	if err != nil {
		recordOperation("redis", "expire", "error", time.Since(start).Seconds())
		return false, fmt.Errorf("redis expire error: %w", err)
	}

	recordOperation("redis", "expire", "success", time.Since(start).Seconds())
	return ok, nil
}

// TTL implements Store. The go-redis client reports the Redis sentinels
// -1 (no expiry) and -2 (missing key) as raw negative durations; they are
// normalized to the package sentinels here.
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, span := startSpan(ctx, "ttl", key)
	start := time.Now()

	ttl, err := s.client.TTL(ctx, s.prefixKey(key)).Result()

	finishSpan(span, err)
	if err != nil {
		recordOperation("redis", "ttl", "error", time.Since(start).Seconds())
		return 0, fmt.Errorf("redis ttl error: %w", err)
	}

	recordOperation("redis", "ttl", "success", time.Since(start).Seconds())
	if ttl < 0 {
		if ttl == -2 || ttl == -2*time.Second {
			return TTLKeyMissing, nil
		}
		return TTLNoExpiry, nil
	}
	return ttl, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := startSpan(ctx, "get", key)
	start := time.Now()

	val, err := s.client.Get(ctx, s.prefixKey(key)).Bytes()

	if errors.Is(err, redis.Nil) {
		finishSpan(span, nil)
		recordOperation("redis", "get", "not_found", time.Since(start).Seconds())
		return nil, &ErrKeyNotFound{Key: key}
	}

	finishSpan(span, err)
	if err != nil {
		recordOperation("redis", "get", "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	recordOperation("redis", "get", "success", time.Since(start).Seconds())
	return val, nil
}

// SetEx implements Store.
func (s *RedisStore) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, span := startSpan(ctx, "setex", key)
	start := time.Now()

	err := s.client.Set(ctx, s.prefixKey(key), value, ttl).Err()

	finishSpan(span, err)
	if err != nil {
		recordOperation("redis", "setex", "error", time.Since(start).Seconds())
		return fmt.Errorf("redis set error: %w", err)
	}

	recordOperation("redis", "setex", "success", time.Since(start).Seconds())
	return nil
}

// Del implements Store.
func (s *RedisStore) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	ctx, span := startSpan(ctx, "del", strings.Join(keys, ","))
	start := time.Now()

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.prefixKey(k)
	}

	n, err := s.client.Del(ctx, prefixed...).Result()

	finishSpan(span, err)
	if err != nil {
		recordOperation("redis", "del", "error", time.Since(start).Seconds())
		return 0, fmt.Errorf("redis del error: %w", err)
	}

	recordOperation("redis", "del", "success", time.Since(start).Seconds())
	return n, nil
}

// Keys implements Store. The returned keys have the store prefix removed
// so they can be passed back to other Store operations.
func (s *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	ctx, span := startSpan(ctx, "keys", pattern)
	start := time.Now()

	matches, err := s.client.Keys(ctx, s.prefixKey(pattern)).Result()

	finishSpan(span, err)
	if err != nil {
		recordOperation("redis", "keys", "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("redis keys error: %w", err)
	}

	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		keys = append(keys, strings.TrimPrefix(m, s.prefix))
	}

	recordOperation("redis", "keys", "success", time.Since(start).Seconds())
	return keys, nil
}

// Ping implements Store.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements Store. Close is idempotent.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
