package browser

import "time"

// Config holds browser configuration.
type Config struct {
	DebuggerURL       string
	Launch            []string
	Headless          bool
	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
	StartURL          string
	TargetID          string
	ImageSelector     string
	TextSelector      string
	MaxDepth          int
	DrainInterval     time.Duration
	// ChangeBuffer is the capacity of the Changes channel.
	ChangeBuffer int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		NavigationTimeout: 30 * time.Second,
		StartURL:          "https://x.com/i/grok",
		ImageSelector:     `img[src^="blob:"]`,
		TextSelector:      `div[dir="ltr"]`,
		MaxDepth:          10,
		DrainInterval:     500 * time.Millisecond,
		ChangeBuffer:      64,
	}
}

// GetViewportWidth returns viewport width.
func (c Config) GetViewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1920
	}
	return c.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (c Config) GetViewportHeight() int {
	if c.ViewportHeight == 0 {
		return 1080
	}
	return c.ViewportHeight
}

// GetNavigationTimeout returns the navigation timeout.
func (c Config) GetNavigationTimeout() time.Duration {
	if c.NavigationTimeout <= 0 {
		return 30 * time.Second
	}
	return c.NavigationTimeout
}

func (c Config) drainInterval() time.Duration {
	if c.DrainInterval <= 0 {
		return 500 * time.Millisecond
	}
	return c.DrainInterval
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ImageSelector == "" {
		c.ImageSelector = def.ImageSelector
	}
	if c.TextSelector == "" {
		c.TextSelector = def.TextSelector
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = def.MaxDepth
	}
	if c.ChangeBuffer <= 0 {
		c.ChangeBuffer = def.ChangeBuffer
	}
	if c.StartURL == "" {
		c.StartURL = def.StartURL
	}
	return c
}
