package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "grok", cfg.Capture.FilenamePrefix)
	assert.Equal(t, "Grok AI", cfg.Capture.Software)
	assert.Equal(t, 95, cfg.Capture.JPEGQuality)
	assert.Equal(t, 3, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 10, cfg.Browser.MaxDepth)
	assert.Equal(t, "conversation", cfg.Watcher.SessionParam)
	assert.Equal(t, time.Second, cfg.GetSessionCheckInterval())
	assert.Equal(t, 10*time.Second, cfg.GetRescanInterval())
	assert.Equal(t, 2*time.Second, cfg.GetStartupDelay())
	assert.Equal(t, time.Second, cfg.GetRetryDelay())
	require.NoError(t, cfg.Validate())
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("GROKCAPTURE_OUTPUT_DIR", "")
	t.Setenv("GROKCAPTURE_DB", "")
	t.Setenv("GROKCAPTURE_DEBUGGER_URL", "")
	t.Setenv("GROKCAPTURE_HEADLESS", "")

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Capture.OutputDir = "/tmp/out"
	cfg.Store.Driver = "sqlite3"
	cfg.Watcher.RescanInterval = "30s"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out", loaded.Capture.OutputDir)
	assert.Equal(t, "sqlite3", loaded.Store.Driver)
	assert.Equal(t, 30*time.Second, loaded.GetRescanInterval())
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("GROKCAPTURE_OUTPUT_DIR", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Capture, cfg.Capture)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("capture: [unterminated"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("GROKCAPTURE_DEBUGGER_URL", "ws://127.0.0.1:9222/devtools/browser/abc")
	t.Setenv("GROKCAPTURE_OUTPUT_DIR", "/data/grok")
	t.Setenv("GROKCAPTURE_DB", "/data/counters.db")
	t.Setenv("GROKCAPTURE_HEADLESS", "true")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc", cfg.Browser.DebuggerURL)
	assert.Equal(t, "/data/grok", cfg.Capture.OutputDir)
	assert.Equal(t, "/data/counters.db", cfg.Store.Path)
	assert.True(t, cfg.Browser.Headless)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty output dir", func(c *Config) { c.Capture.OutputDir = "" }},
		{"quality too high", func(c *Config) { c.Capture.JPEGQuality = 101 }},
		{"negative retries", func(c *Config) { c.Pipeline.MaxRetries = -1 }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "postgres" }},
		{"sqlite without path", func(c *Config) { c.Store.Path = "" }},
		{"zero depth", func(c *Config) { c.Browser.MaxDepth = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := DefaultConfig()
	cfg.Store.Driver = "memory"
	cfg.Store.Path = ""
	assert.NoError(t, cfg.Validate())
}

func TestDurationFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.RetryDelay = "not-a-duration"
	cfg.Watcher.RescanInterval = "-5s"
	assert.Equal(t, time.Second, cfg.GetRetryDelay())
	assert.Equal(t, 10*time.Second, cfg.GetRescanInterval())
}

func TestLoggingConfig_IsCategoryEnabled(t *testing.T) {
	lc := LoggingConfig{DebugMode: false}
	assert.False(t, lc.IsCategoryEnabled("watcher"))

	lc = LoggingConfig{DebugMode: true, Categories: map[string]bool{"browser": false}}
	assert.True(t, lc.IsCategoryEnabled("watcher"))
	assert.False(t, lc.IsCategoryEnabled("browser"))

	s := lc.Settings()
	assert.True(t, s.DebugMode)
	assert.Equal(t, lc.Categories, s.Categories)
}
