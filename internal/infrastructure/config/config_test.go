package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 0.7, cfg.Analyzer.Threshold)
	assert.Equal(t, 1000, cfg.Analyzer.CacheSize)
	assert.Equal(t, 50, cfg.Analyzer.MinDimension)
	assert.Equal(t, 224, cfg.Analyzer.MaxCanvasSide)
	assert.Equal(t, 3*time.Second, cfg.Analyzer.CORSTimeout)
	assert.True(t, cfg.Browser.EnableScripts)
	assert.Equal(t, 60*time.Second, cfg.Server.ScanTimeout)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, 1000, cfg.Analyzer.CacheSize)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	t.Setenv("BLURGUARD_ANALYZER_THRESHOLD", "0.85")
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_DEV", "true")
	t.Setenv("BLURGUARD_ANALYZER_CORS_TIMEOUT", "1500ms")
	t.Setenv("EXCLUDED_SITES", "example.org,intranet.local")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.85, cfg.Analyzer.Threshold)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 1500*time.Millisecond, cfg.Analyzer.CORSTimeout)
	assert.Equal(t, []string{"example.org", "intranet.local"}, cfg.Exclusion.Sites)
	// Untouched values keep their defaults.
	assert.Equal(t, 1000, cfg.Analyzer.CacheSize)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blurguard.yaml")
	content := `
analyzer:
  threshold: 0.6
  cache_size: 250
exclusion:
  sites:
    - "*.bank.example/**"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Run("file overrides defaults", func(t *testing.T) {
		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 0.6, cfg.Analyzer.Threshold)
		assert.Equal(t, 250, cfg.Analyzer.CacheSize)
		assert.Equal(t, []string{"*.bank.example/**"}, cfg.Exclusion.Sites)
		assert.Equal(t, 224, cfg.Analyzer.MaxCanvasSide)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("CACHE_SIZE", "10")
		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 10, cfg.Analyzer.CacheSize)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "threshold above one", mutate: func(c *Config) { c.Analyzer.Threshold = 1.5 }},
		{name: "negative threshold", mutate: func(c *Config) { c.Analyzer.Threshold = -0.1 }},
		{name: "empty cache", mutate: func(c *Config) { c.Analyzer.CacheSize = 0 }},
		{name: "zero canvas", mutate: func(c *Config) { c.Analyzer.MaxCanvasSide = 0 }},
		{name: "zero timeout", mutate: func(c *Config) { c.Analyzer.CORSTimeout = 0 }},
		{name: "zero scan timeout", mutate: func(c *Config) { c.Server.ScanTimeout = 0 }},
		{name: "rate limit without burst", mutate: func(c *Config) { c.RateLimit.Burst = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
