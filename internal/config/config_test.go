package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labstreak.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.Storage.MemoTTL)
	assert.Empty(t, cfg.Storage.PostgresDSN)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9100
  rate_limit_rps: 5
storage:
  redis_addr: localhost:6379
rules:
  neutropenia:
    cutoff: 0.8
    days: 14
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host, "unset fields keep defaults")
	assert.Equal(t, "localhost:6379", cfg.Storage.RedisAddr)
	assert.Equal(t, 0.8, cfg.Rules["neutropenia"]["cutoff"])
	assert.Equal(t, 14.0, cfg.Rules["neutropenia"]["days"])
}

func TestLoadRejectsBadPort(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 70000\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())

	cfg.Server.RateLimitRPS = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Server.RateBurst = 0
	assert.Error(t, cfg.Validate())
}

func TestRuleOverridesNotValidated(t *testing.T) {
	// Out-of-range parameters load fine; they clamp when applied to the rule.
	path := writeConfig(t, "rules:\n  neutropenia:\n    days: 900\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 900.0, cfg.Rules["neutropenia"]["days"])
}
