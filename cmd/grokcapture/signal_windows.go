//go:build windows

package main

import (
	"context"

	"grokcapture/internal/watcher"
)

// rescanOnSignal blocks until ctx is done; there is no SIGUSR1 on Windows.
func rescanOnSignal(ctx context.Context, _ *watcher.Watcher) {
	<-ctx.Done()
}
