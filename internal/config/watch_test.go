package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatch_ReloadsOnWrite(t *testing.T) {
	t.Setenv("GROKCAPTURE_OUTPUT_DIR", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, DefaultConfig().Save(path))

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var got *Config
	var errs []error
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) {
			mu.Lock()
			got = c
			mu.Unlock()
		}, func(err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		})
	}()

	// Give the watcher a moment to register before the write.
	require.Eventually(t, func() bool {
		cfg := DefaultConfig()
		cfg.Logging.DebugMode = true
		require.NoError(t, cfg.Save(path))
		mu.Lock()
		defer mu.Unlock()
		return got != nil && got.Logging.DebugMode
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("capture: [broken"), 0644))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) > 0
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "absent", "config.yaml"), func(*Config) {}, nil)
	require.NoError(t, err)
}
