package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "taskd.db", cfg.Storage.Path)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Dates.Fallback.Enabled)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9191"
  auth_token: sekrit
storage:
  path: /tmp/tasks.db
session:
  idle_timeout: 5m
logging:
  level: debug
  format: console
dates:
  fallback:
    enabled: true
    model: gpt-4o
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9191", cfg.Server.Addr)
	assert.Equal(t, "sekrit", cfg.Server.AuthToken)
	assert.Equal(t, "/tmp/tasks.db", cfg.Storage.Path)
	assert.Equal(t, 5*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Dates.Fallback.Enabled)
	assert.Equal(t, "gpt-4o", cfg.Dates.Fallback.Model)
	// Unset fallback fields still get defaults.
	assert.Equal(t, 10*time.Second, cfg.Dates.Fallback.Timeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9191\"\n")
	t.Setenv("TASKD_SERVER_ADDR", ":7070")
	t.Setenv("TASKD_LOGGING_LEVEL", "warn")
	t.Setenv("TASKD_DATES_FALLBACK__API_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "from-env", cfg.Dates.Fallback.APIKey)
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_RejectsWorldReadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":1\"\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "permissions")
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	require.NoError(t, cfg.Validate())

	bad := *cfg
	bad.Server.Addr = "8080"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Logging.Level = "loud"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Session.IdleTimeout = 48 * time.Hour
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Dates.Fallback.Enabled = true
	bad.Dates.Fallback.Model = ""
	assert.Error(t, bad.Validate())
}
