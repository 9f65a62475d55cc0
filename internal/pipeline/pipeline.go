// Package pipeline turns a discovered image reference into a persisted JPEG with the
// prompt and session embedded as EXIF text tags.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"
	"sync"
	"time"

	_ "golang.org/x/image/webp"

	"grokcapture/internal/exif"
	"grokcapture/internal/logging"
	"grokcapture/internal/status"
	"grokcapture/internal/store"
)

// Stages reported in StageError.
const (
	StageFetch    = "fetch"
	StageDecode   = "decode"
	StageEncode   = "encode"
	StageAllocate = "allocate"
	StageWrite    = "write"
)

// Fetcher retrieves the raw bytes behind an image reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Writer stores a finished artifact under name and returns where it went.
type Writer interface {
	Write(ctx context.Context, name string, data []byte) (string, error)
}

// Allocator issues per-session sequence numbers.
type Allocator interface {
	Next(ctx context.Context, sessionID string) (int, error)
}

// Recorder keeps a history of persisted artifacts.
type Recorder interface {
	RecordCapture(ctx context.Context, c store.Capture) error
}

// Job is one image to persist. SessionID is captured when the image is discovered.
type Job struct {
	Ref       string
	Prompt    string
	SessionID string
}

// Result describes a persisted artifact.
type Result struct {
	Filename string
	Path     string
	Sequence int
	Attempts int
}

// StageError is a failure of a single attempt.
type StageError struct {
	Stage   string
	Attempt int
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed (attempt %d): %v", e.Stage, e.Attempt, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Config holds pipeline settings.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries   int
	RetryDelay   time.Duration
	FetchTimeout time.Duration
	Quality      int
	Software     string
	Prefix       string
}

// DefaultConfig returns the standard pipeline settings.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		RetryDelay:   time.Second,
		FetchTimeout: 30 * time.Second,
		Quality:      95,
		Software:     "Grok AI",
		Prefix:       "grok",
	}
}

// Pipeline fetches, re-encodes, names and writes images.
type Pipeline struct {
	cfg      Config
	fetcher  Fetcher
	writer   Writer
	alloc    Allocator
	sink     status.Sink
	recorder Recorder
	now      func() time.Time

	wg sync.WaitGroup
}

// New creates a Pipeline. A nil sink discards status lines.
func New(cfg Config, fetcher Fetcher, writer Writer, alloc Allocator, sink status.Sink) *Pipeline {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = 95
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "grok"
	}
	if sink == nil {
		sink = status.Nop{}
	}
	return &Pipeline{
		cfg:     cfg,
		fetcher: fetcher,
		writer:  writer,
		alloc:   alloc,
		sink:    sink,
		now:     time.Now,
	}
}

// SetRecorder attaches a capture history. Recording failures never fail a save.
func (p *Pipeline) SetRecorder(r Recorder) { p.recorder = r }

// Submit processes job on its own goroutine. Failures are logged and never surface
// to the caller.
func (p *Pipeline) Submit(ctx context.Context, job Job) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if _, err := p.Process(ctx, job); err != nil {
			logging.PipelineError("Abandoned %s: %v", job.Ref, err)
		}
	}()
}

// Wait blocks until every submitted job has finished.
func (p *Pipeline) Wait() { p.wg.Wait() }

// Process runs the attempt loop for job synchronously. Every failed attempt restarts
// from the fetch after RetryDelay, up to MaxRetries times.
func (p *Pipeline) Process(ctx context.Context, job Job) (Result, error) {
	timer := logging.StartTimer(logging.CategoryPipeline, "Process "+job.Ref)
	defer timer.Stop()

	attempts := p.cfg.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, p.cfg.RetryDelay); err != nil {
				return Result{Attempts: attempt - 1}, fmt.Errorf("retry cancelled: %w", lastErr)
			}
		}

		res, err := p.attempt(ctx, job, attempt)
		if err == nil {
			res.Attempts = attempt
			p.finish(ctx, job, res)
			return res, nil
		}
		lastErr = err
		logging.PipelineWarn("Attempt %d/%d for %s failed: %v", attempt, attempts, job.Ref, err)
		if ctx.Err() != nil {
			return Result{Attempts: attempt}, err
		}
	}
	return Result{Attempts: attempts}, fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}

func (p *Pipeline) attempt(ctx context.Context, job Job, attempt int) (Result, error) {
	fail := func(stage string, err error) (Result, error) {
		return Result{}, &StageError{Stage: stage, Attempt: attempt, Err: err}
	}

	fetchCtx := ctx
	if p.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, p.cfg.FetchTimeout)
		defer cancel()
	}
	raw, err := p.fetcher.Fetch(fetchCtx, job.Ref)
	if err != nil {
		return fail(StageFetch, err)
	}
	logging.PipelineDebug("Fetched %d bytes for %s", len(raw), job.Ref)

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return fail(StageDecode, err)
	}
	logging.PipelineDebug("Decoded %s %dx%d", format, img.Bounds().Dx(), img.Bounds().Dy())

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.cfg.Quality}); err != nil {
		return fail(StageEncode, err)
	}
	data, err := exif.Insert(buf.Bytes(), exif.Fields{
		Description:  job.Prompt,
		Software:     p.cfg.Software,
		DateTime:     p.now().UTC().Format(exif.DateTimeLayout),
		DocumentName: "Session: " + job.SessionID,
	})
	if err != nil {
		return fail(StageEncode, err)
	}

	seq, err := p.alloc.Next(ctx, job.SessionID)
	if err != nil {
		return fail(StageAllocate, err)
	}
	name := Filename(p.cfg.Prefix, job.SessionID, seq)

	path, err := p.writer.Write(ctx, name, data)
	if err != nil {
		return fail(StageWrite, err)
	}
	return Result{Filename: name, Path: path, Sequence: seq}, nil
}

func (p *Pipeline) finish(ctx context.Context, job Job, res Result) {
	logging.Pipeline("Saved %s (attempt %d)", res.Filename, res.Attempts)
	p.sink.SetStatus(status.Saved(res.Filename))

	if p.recorder == nil {
		return
	}
	err := p.recorder.RecordCapture(ctx, store.Capture{
		SessionID: job.SessionID,
		Sequence:  res.Sequence,
		Filename:  res.Filename,
		ImageRef:  job.Ref,
		Prompt:    job.Prompt,
		Attempts:  res.Attempts,
		SavedAt:   p.now(),
	})
	if err != nil {
		logging.PipelineWarn("Capture record for %s not written: %v", res.Filename, err)
	}
}

// Filename returns the artifact name <prefix>_<session>_<seq>.jpg with seq padded to
// three digits. Characters that cannot appear in a file name are replaced by '_'.
func Filename(prefix, sessionID string, seq int) string {
	return fmt.Sprintf("%s_%s_%03d.jpg", prefix, sanitize(sessionID), seq)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == 0x7f:
			return '_'
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		}
		return r
	}, s)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
