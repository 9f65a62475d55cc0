//go:build !windows

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"grokcapture/internal/watcher"
)

// rescanOnSignal requests a rescan on every SIGUSR1 until ctx is done.
func rescanOnSignal(ctx context.Context, w *watcher.Watcher) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			logger.Info("SIGUSR1 received, rescanning")
			w.Rescan()
		}
	}
}
