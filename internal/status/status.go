// Package status carries the short human-readable lines shown to the user while
// captures are running.
package status

import (
	"sync"

	"go.uber.org/zap"
)

// Sink receives status lines.
type Sink interface {
	SetStatus(msg string)
}

// Func adapts a function to Sink.
type Func func(msg string)

// SetStatus implements Sink.
func (f Func) SetStatus(msg string) { f(msg) }

// Nop discards status lines.
type Nop struct{}

// SetStatus implements Sink.
func (Nop) SetStatus(string) {}

// Multi fans a status line out to several sinks in order.
type Multi []Sink

// SetStatus implements Sink.
func (m Multi) SetStatus(msg string) {
	for _, s := range m {
		if s != nil {
			s.SetStatus(msg)
		}
	}
}

// ZapSink writes status lines through a zap logger.
type ZapSink struct {
	Logger *zap.Logger
}

// SetStatus implements Sink.
func (z ZapSink) SetStatus(msg string) {
	if z.Logger == nil {
		return
	}
	z.Logger.Info("status", zap.String("message", msg))
}

// Recorder keeps every status line it receives. Safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

// SetStatus implements Sink.
func (r *Recorder) SetStatus(msg string) {
	r.mu.Lock()
	r.lines = append(r.lines, msg)
	r.mu.Unlock()
}

// Lines returns a copy of the recorded lines.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

// Last returns the most recent line, or "" if none was recorded.
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.lines) == 0 {
		return ""
	}
	return r.lines[len(r.lines)-1]
}

// Common status lines.
const (
	Rescanning  = "Rescanning..."
	SavedPrefix = "Last saved: "
)

// Saved is the status line reported after an artifact is written.
func Saved(filename string) string { return SavedPrefix + filename }

// SessionActive is the status line reported when a new session becomes active.
func SessionActive(id string) string { return "Session: " + id }

// CounterReset is the status line reported after a counter reset.
func CounterReset(id string) string { return "Counter reset for " + id }
