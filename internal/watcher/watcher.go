// Package watcher discovers images in a live document and hands each new one to the
// persistence pipeline exactly once per session.
package watcher

import (
	"context"
	"sync"
	"time"

	"grokcapture/internal/dedup"
	"grokcapture/internal/logging"
	"grokcapture/internal/pipeline"
	"grokcapture/internal/prompt"
	"grokcapture/internal/session"
	"grokcapture/internal/status"
)

// Image is a qualifying image found in the document.
type Image struct {
	// Ref is the image source reference and its identity.
	Ref string
	// Container is the structural context the prompt is searched from.
	Container prompt.Node
}

// Batch is the set of images found in one group of inserted subtrees, in document order.
type Batch []Image

// Source is the live document.
type Source interface {
	// Changes delivers images from newly inserted content. It may be closed.
	Changes() <-chan Batch
	// Scan enumerates every qualifying image currently in the document.
	Scan(ctx context.Context) ([]Image, error)
}

// Submitter accepts jobs without blocking on their completion.
type Submitter interface {
	Submit(ctx context.Context, job pipeline.Job)
}

// PromptResolver finds the prompt for an image container.
type PromptResolver interface {
	Resolve(container prompt.Node) string
}

// Config holds the watcher schedules.
type Config struct {
	SessionCheckInterval time.Duration
	RescanInterval       time.Duration
	StartupDelay         time.Duration
}

// DefaultConfig returns the standard schedules.
func DefaultConfig() Config {
	return Config{
		SessionCheckInterval: time.Second,
		RescanInterval:       10 * time.Second,
		StartupDelay:         2 * time.Second,
	}
}

// Stats counts watcher activity.
type Stats struct {
	Batches        int
	Candidates     int
	Submitted      int
	Duplicates     int
	Rescans        int
	ScanErrors     int
	SessionChanges int
}

// Watcher runs the discovery loop. All discovery, dedup and session handling happens on
// the goroutine calling Run.
type Watcher struct {
	cfg      Config
	src      Source
	identity *session.Identity
	registry *dedup.Registry
	resolver PromptResolver
	submit   Submitter
	sink     status.Sink

	rescan chan struct{}

	mu    sync.Mutex
	stats Stats
}

// New creates a Watcher. Zero intervals in cfg take the defaults; a nil sink discards
// status lines.
func New(cfg Config, src Source, identity *session.Identity, registry *dedup.Registry,
	resolver PromptResolver, submit Submitter, sink status.Sink) *Watcher {
	def := DefaultConfig()
	if cfg.SessionCheckInterval <= 0 {
		cfg.SessionCheckInterval = def.SessionCheckInterval
	}
	if cfg.RescanInterval <= 0 {
		cfg.RescanInterval = def.RescanInterval
	}
	if cfg.StartupDelay <= 0 {
		cfg.StartupDelay = def.StartupDelay
	}
	if sink == nil {
		sink = status.Nop{}
	}
	return &Watcher{
		cfg:      cfg,
		src:      src,
		identity: identity,
		registry: registry,
		resolver: resolver,
		submit:   submit,
		sink:     sink,
		rescan:   make(chan struct{}, 1),
	}
}

// Rescan requests a full rescan. Requests made while one is pending are coalesced.
func (w *Watcher) Rescan() {
	select {
	case w.rescan <- struct{}{}:
	default:
	}
}

// Session returns the session id the watcher last observed.
func (w *Watcher) Session() string {
	return w.identity.Last()
}

// Stats returns a snapshot of the activity counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) count(fn func(*Stats)) {
	w.mu.Lock()
	fn(&w.stats)
	w.mu.Unlock()
}

// Run processes changes until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	id := w.identity.Prime()
	logging.Watcher("Watcher started in session %s", id)
	w.sink.SetStatus(status.SessionActive(id))

	startup := time.NewTimer(w.cfg.StartupDelay)
	defer startup.Stop()
	rescanTicker := time.NewTicker(w.cfg.RescanInterval)
	defer rescanTicker.Stop()
	sessionTicker := time.NewTicker(w.cfg.SessionCheckInterval)
	defer sessionTicker.Stop()

	changes := w.src.Changes()
	for {
		select {
		case <-ctx.Done():
			logging.Watcher("Watcher stopped: %v", ctx.Err())
			return nil

		case batch, ok := <-changes:
			if !ok {
				logging.WatcherWarn("Change stream closed; relying on rescans")
				changes = nil
				continue
			}
			w.count(func(s *Stats) { s.Batches++ })
			w.handle(ctx, batch)

		case <-startup.C:
			w.scan(ctx, "startup")

		case <-rescanTicker.C:
			w.scan(ctx, "periodic")

		case <-w.rescan:
			w.scan(ctx, "requested")

		case <-sessionTicker.C:
			w.checkSession(ctx)
		}
	}
}

func (w *Watcher) checkSession(ctx context.Context) {
	id, changed := w.identity.Changed()
	if !changed {
		return
	}
	w.registry.Clear()
	w.count(func(s *Stats) { s.SessionChanges++ })
	logging.Watcher("New session %s, dedup registry cleared", id)
	w.sink.SetStatus(status.SessionActive(id))
	w.scan(ctx, "session change")
}

func (w *Watcher) scan(ctx context.Context, reason string) {
	timer := logging.StartTimer(logging.CategoryWatcher, "Rescan ("+reason+")")
	defer timer.StopWithThreshold(2 * time.Second)

	w.sink.SetStatus(status.Rescanning)
	w.count(func(s *Stats) { s.Rescans++ })

	images, err := w.src.Scan(ctx)
	if err != nil {
		w.count(func(s *Stats) { s.ScanErrors++ })
		logging.WatcherWarn("Rescan (%s) failed: %v", reason, err)
		return
	}
	logging.WatcherDebug("Rescan (%s) found %d images", reason, len(images))
	w.handle(ctx, images)
}

func (w *Watcher) handle(ctx context.Context, images []Image) {
	// The registry belongs to the last observed session; pick up a navigation before
	// marking anything so marks and file names agree.
	w.checkSession(ctx)

	for _, img := range images {
		if img.Ref == "" {
			continue
		}
		w.count(func(s *Stats) { s.Candidates++ })

		if !w.registry.TryMark(img.Ref) {
			w.count(func(s *Stats) { s.Duplicates++ })
			continue
		}

		job := pipeline.Job{
			Ref:       img.Ref,
			Prompt:    w.resolver.Resolve(img.Container),
			SessionID: w.identity.Last(),
		}
		logging.WatcherDebug("Submitting %s for session %s", job.Ref, job.SessionID)
		w.count(func(s *Stats) { s.Submitted++ })
		w.submit.Submit(ctx, job)
	}
}
