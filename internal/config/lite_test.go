package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.True(t, cfg.Persist)
	assert.Equal(t, 5*time.Second, cfg.SaveTimeout)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.True(t, cfg.Persist)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("PANS_DATA_DIR", "/tmp/test-pans")
	t.Setenv("PANS_PERSIST", "false")
	t.Setenv("PANS_SAVE_TIMEOUT", "2s")
	t.Setenv("PANS_CACHE_MAX_ITEMS", "500")
	t.Setenv("PANS_CACHE_TTL", "12h")
	t.Setenv("PANS_LOG_LEVEL", "debug")
	t.Setenv("PANS_LOG_FORMAT", "text")

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-pans", cfg.DataDir)
	assert.False(t, cfg.Persist)
	assert.Equal(t, 2*time.Second, cfg.SaveTimeout)
	assert.Equal(t, 500, cfg.CacheMaxItems)
	assert.Equal(t, 12*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadLiteConfig_InvalidValues(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("PANS_CACHE_MAX_ITEMS", "invalid")
	t.Setenv("PANS_CACHE_TTL", "invalid")
	t.Setenv("PANS_PERSIST", "sometimes")
	t.Setenv("PANS_SAVE_TIMEOUT", "-1s")

	cfg := LoadLiteConfig()

	// Should fall back to defaults
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.True(t, cfg.Persist)
	assert.Equal(t, 5*time.Second, cfg.SaveTimeout)
}

func TestLiteConfig_Paths(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.pans-scales"}

	assert.Equal(t, "/home/user/.pans-scales/results.db", cfg.ResultsDBPath())
	assert.Equal(t, "/home/user/.pans-scales/exports", cfg.ExportDir())
	assert.Equal(t, "stderr", cfg.LoggingConfig().Output)
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	cfg := &LiteConfig{DataDir: filepath.Join(t.TempDir(), "pans")}

	require.NoError(t, cfg.EnsureDataDir())

	_, err := os.Stat(cfg.DataDir)
	assert.NoError(t, err)

	_, err = os.Stat(cfg.ExportDir())
	assert.NoError(t, err)
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"PANS_DATA_DIR",
		"PANS_PERSIST",
		"PANS_SAVE_TIMEOUT",
		"PANS_CACHE_MAX_ITEMS",
		"PANS_CACHE_TTL",
		"PANS_LOG_LEVEL",
		"PANS_LOG_FORMAT",
	}
	for _, v := range vars {
		t.Setenv(v, "")
	}
}
