package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for the config file when --config is not given.
const DefaultPath = ".grokcapture/config.yaml"

// Config holds all grokcapture configuration.
type Config struct {
	// Directory for logs and other runtime state.
	StateDir string `yaml:"state_dir"`

	Browser  BrowserConfig  `yaml:"browser"`
	Watcher  WatcherConfig  `yaml:"watcher"`
	Capture  CaptureConfig  `yaml:"capture"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Store    StoreConfig    `yaml:"store"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BrowserConfig configures the Chromium connection and the in-page hooks.
type BrowserConfig struct {
	// DevTools websocket URL of an already running browser. Empty means launch one.
	DebuggerURL string `yaml:"debugger_url"`
	// Launch command: binary followed by flags. Empty means rod's default browser.
	Launch            []string `yaml:"launch"`
	Headless          bool     `yaml:"headless"`
	ViewportWidth     int      `yaml:"viewport_width"`
	ViewportHeight    int      `yaml:"viewport_height"`
	NavigationTimeout string   `yaml:"navigation_timeout"`
	StartURL          string   `yaml:"start_url"`
	TargetID          string   `yaml:"target_id"`
	ImageSelector     string   `yaml:"image_selector"`
	TextSelector      string   `yaml:"text_selector"`
	MaxDepth          int      `yaml:"max_depth"`
	DrainInterval     string   `yaml:"drain_interval"`
}

// WatcherConfig configures the change watcher schedules.
type WatcherConfig struct {
	SessionParam         string `yaml:"session_param"`
	SessionCheckInterval string `yaml:"session_check_interval"`
	RescanInterval       string `yaml:"rescan_interval"`
	StartupDelay         string `yaml:"startup_delay"`
}

// CaptureConfig configures artifact naming and embedded metadata.
type CaptureConfig struct {
	OutputDir      string `yaml:"output_dir"`
	FilenamePrefix string `yaml:"filename_prefix"`
	Software       string `yaml:"software"`
	JPEGQuality    int    `yaml:"jpeg_quality"`
}

// PipelineConfig configures the retry budget.
type PipelineConfig struct {
	MaxRetries   int    `yaml:"max_retries"`
	RetryDelay   string `yaml:"retry_delay"`
	FetchTimeout string `yaml:"fetch_timeout"`
}

// StoreConfig configures counter persistence.
type StoreConfig struct {
	// Driver is "sqlite" (pure Go), "sqlite3" (cgo) or "memory".
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		StateDir: ".grokcapture",
		Browser: BrowserConfig{
			Headless:          false,
			ViewportWidth:     1920,
			ViewportHeight:    1080,
			NavigationTimeout: "30s",
			StartURL:          "https://x.com/i/grok",
			ImageSelector:     `img[src^="blob:"]`,
			TextSelector:      `div[dir="ltr"]`,
			MaxDepth:          10,
			DrainInterval:     "500ms",
		},
		Watcher: WatcherConfig{
			SessionParam:         "conversation",
			SessionCheckInterval: "1s",
			RescanInterval:       "10s",
			StartupDelay:         "2s",
		},
		Capture: CaptureConfig{
			OutputDir:      "captures",
			FilenamePrefix: "grok",
			Software:       "Grok AI",
			JPEGQuality:    95,
		},
		Pipeline: PipelineConfig{
			MaxRetries:   3,
			RetryDelay:   "1s",
			FetchTimeout: "30s",
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   ".grokcapture/grokcapture.db",
		},
		Logging: LoggingConfig{
			Level:     "info",
			DebugMode: false,
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("GROKCAPTURE_DEBUGGER_URL"); url != "" {
		c.Browser.DebuggerURL = url
	}
	if dir := os.Getenv("GROKCAPTURE_OUTPUT_DIR"); dir != "" {
		c.Capture.OutputDir = dir
	}
	if path := os.Getenv("GROKCAPTURE_DB"); path != "" {
		c.Store.Path = path
	}
	if v := os.Getenv("GROKCAPTURE_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		}
	}
}

// Validate checks the configuration for values the components cannot work with.
func (c *Config) Validate() error {
	if c.Capture.OutputDir == "" {
		return fmt.Errorf("capture.output_dir is required")
	}
	if c.Capture.FilenamePrefix == "" {
		return fmt.Errorf("capture.filename_prefix is required")
	}
	if c.Capture.JPEGQuality < 1 || c.Capture.JPEGQuality > 100 {
		return fmt.Errorf("capture.jpeg_quality must be within 1..100, got %d", c.Capture.JPEGQuality)
	}
	if c.Pipeline.MaxRetries < 0 {
		return fmt.Errorf("pipeline.max_retries must be >= 0, got %d", c.Pipeline.MaxRetries)
	}
	switch c.Store.Driver {
	case "sqlite", "sqlite3":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for driver %q", c.Store.Driver)
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store.driver %q (want sqlite, sqlite3 or memory)", c.Store.Driver)
	}
	if c.Browser.MaxDepth <= 0 {
		return fmt.Errorf("browser.max_depth must be > 0")
	}
	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetNavigationTimeout returns the page navigation timeout.
func (c *Config) GetNavigationTimeout() time.Duration {
	return parseDuration(c.Browser.NavigationTimeout, 30*time.Second)
}

// GetDrainInterval returns how often the in-page event buffer is drained.
func (c *Config) GetDrainInterval() time.Duration {
	return parseDuration(c.Browser.DrainInterval, 500*time.Millisecond)
}

// GetSessionCheckInterval returns the session change polling interval.
func (c *Config) GetSessionCheckInterval() time.Duration {
	return parseDuration(c.Watcher.SessionCheckInterval, time.Second)
}

// GetRescanInterval returns the full rescan interval.
func (c *Config) GetRescanInterval() time.Duration {
	return parseDuration(c.Watcher.RescanInterval, 10*time.Second)
}

// GetStartupDelay returns the settling delay before the first rescan.
func (c *Config) GetStartupDelay() time.Duration {
	return parseDuration(c.Watcher.StartupDelay, 2*time.Second)
}

// GetRetryDelay returns the fixed delay between pipeline attempts.
func (c *Config) GetRetryDelay() time.Duration {
	return parseDuration(c.Pipeline.RetryDelay, time.Second)
}

// GetFetchTimeout returns the per-attempt fetch timeout.
func (c *Config) GetFetchTimeout() time.Duration {
	return parseDuration(c.Pipeline.FetchTimeout, 30*time.Second)
}
