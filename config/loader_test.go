package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callmux/callmux/orchestrator"
	"github.com/callmux/callmux/session"
)

func TestLoader_DefaultsOnly(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, session.StoreTypeMemory, cfg.Session.Type)
	assert.Equal(t, orchestrator.ModePipelined, cfg.Orchestrator.Mode)
	assert.Equal(t, 4, cfg.Recognizers.WarmTarget)
}

func TestLoader_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "callmux.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listen_addr: ":7000"
log:
  level: debug
session:
  type: redis
  redis:
    addr: "redis:6379"
synthesizers:
  warm_target: 8
  affinity_ttl: 2m
orchestrator:
  mode: duplex
  watchdog_timeout: 10s
`), 0o600))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.ListenAddr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, session.StoreTypeRedis, cfg.Session.Type)
	assert.Equal(t, "redis:6379", cfg.Session.Redis.Addr)
	assert.Equal(t, 8, cfg.Synthesizers.WarmTarget)
	assert.Equal(t, 2*time.Minute, cfg.Synthesizers.AffinityTTL)
	assert.Equal(t, orchestrator.ModeDuplex, cfg.Orchestrator.Mode)
	assert.Equal(t, 10*time.Second, cfg.Orchestrator.WatchdogTimeout)

	// Untouched sections keep their defaults.
	assert.Equal(t, ":9091", cfg.Server.MetricsAddr)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "callmux.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))

	t.Setenv("CALLMUX_LOG_LEVEL", "warn")
	t.Setenv("CALLMUX_SERVER_SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("CALLMUX_SYNTHESIZERS_WARM_TARGET", "12")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 12, cfg.Synthesizers.WarmTarget)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/callmux.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
}

func TestLoader_ValidationRejectsBadLevel(t *testing.T) {
	t.Setenv("CALLMUX_LOG_LEVEL", "loud")
	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestLoader_ValidationRejectsBadMode(t *testing.T) {
	t.Setenv("CALLMUX_ORCHESTRATOR_MODE", "quantum")
	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orchestrator.mode")
}

func TestLoader_CustomValidator(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error {
			return assert.AnError
		}).
		Load()
	require.Error(t, err)
}
