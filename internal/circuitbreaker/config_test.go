package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{
			name:   "defaults are valid",
			config: DefaultConfig(),
		},
		{
			name:   "sub-second reset timeout is valid",
			config: &Config{FailureThreshold: 1, ResetTimeout: 100 * time.Millisecond},
		},
		{
			name:    "zero threshold",
			config:  &Config{FailureThreshold: 0, ResetTimeout: time.Second},
			wantErr: "failure threshold",
		},
		{
			name:    "negative threshold",
			config:  &Config{FailureThreshold: -1, ResetTimeout: time.Second},
			wantErr: "failure threshold",
		},
		{
			name:    "zero reset timeout",
			config:  &Config{FailureThreshold: 5, ResetTimeout: 0},
			wantErr: "reset timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New("bad", &Config{FailureThreshold: 0, ResetTimeout: time.Second}, nil)
	require.Error(t, err)
}

func TestNew_NilConfigUsesDefaults(t *testing.T) {
	cb, err := New("defaults", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}
