package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()
	require.Equal(t, DefaultHandshakeTimeout, cfg.Timeout)
	require.Equal(t, DefaultBufferSize, cfg.BufferSize)
	require.Equal(t, uint8(DefaultMaxAttempts), cfg.MaxAttempts)
	require.NotNil(t, cfg.Logger)
}

func TestOptionsOverrideDefaults(t *testing.T) {
	cfg := defaultConfig()
	WithTimeout(10 * time.Second)(&cfg)
	WithMTU(900)(&cfg)
	WithMaxAttempts(3)(&cfg)
	WithBufferSize(16)(&cfg)

	require.Equal(t, 10*time.Second, cfg.Timeout)
	require.Equal(t, uint(900), cfg.MTU)
	require.Equal(t, uint8(3), cfg.MaxAttempts)
	require.Equal(t, 16, cfg.BufferSize)
}
