package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(10200), cfg.Bidding.MinIncrementBps)
	assert.Equal(t, 48*time.Hour, cfg.Bidding.TokenGracePeriod)
	assert.Equal(t, 24*time.Hour, cfg.Bidding.TokenReminderLead)
	assert.Equal(t, 7*24*time.Hour, cfg.Bidding.DefaultDuration)
	assert.Equal(t, 30*time.Second, cfg.Redis.TTL)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9999
bidding:
  min_increment_bps: 10500
  token_grace_period: 72h
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, int64(10500), cfg.Bidding.MinIncrementBps)
	assert.Equal(t, 72*time.Hour, cfg.Bidding.TokenGracePeriod)
	// untouched keys keep their defaults
	assert.Equal(t, 24*time.Hour, cfg.Bidding.TokenReminderLead)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MEX_SERVER_PORT", "7070")
	t.Setenv("MEX_ENVIRONMENT", "staging")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "staging", cfg.Environment)
}
