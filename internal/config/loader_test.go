package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  host: 127.0.0.1
  port: 9000

logging:
  level: debug
  format: console

redis:
  url: redis://redis.internal:6379/1
  keyPrefix: "app:"

cache:
  ttl: 90s

rateLimit:
  requests: 25
  window: 30s

circuitBreaker:
  failureThreshold: 3
  resetTimeout: 500ms

external:
  failureRate: 0.25
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "analytics.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "redis://redis.internal:6379/1", cfg.Redis.URL)
	assert.Equal(t, "app:", cfg.Redis.KeyPrefix)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL.Duration())
	assert.Equal(t, int64(25), cfg.RateLimit.Requests)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window.Duration())
	assert.Equal(t, 3, cfg.CircuitBreaker.FailureThreshold)
	assert.Equal(t, 500*time.Millisecond, cfg.CircuitBreaker.ResetTimeout.Duration())
	assert.Equal(t, 0.25, cfg.External.FailureRate)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9000\n"))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, DefaultServerHost, cfg.Server.Host)
	assert.Equal(t, DefaultRedisURL, cfg.Redis.URL)
	assert.Equal(t, DefaultCacheTTL, cfg.Cache.TTL.Duration())
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [not a mapping"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse YAML")
}

func TestLoadFromReader_EnvSubstitution(t *testing.T) {
	t.Setenv("TEST_REDIS_URL", "redis://override:6379/2")
	os.Unsetenv("TEST_UNSET_PORT")

	content := `
server:
  port: ${TEST_UNSET_PORT:-8100}
redis:
  url: ${TEST_REDIS_URL:-redis://localhost:6379/0}
`
	cfg, err := LoadFromReader(strings.NewReader(content))
	require.NoError(t, err)

	assert.Equal(t, 8100, cfg.Server.Port)
	assert.Equal(t, "redis://override:6379/2", cfg.Redis.URL)
}

func TestSubstituteEnvVars_EscapedDollar(t *testing.T) {
	assert.Equal(t, "${literal}", substituteEnvVars("$${literal}"))
}
