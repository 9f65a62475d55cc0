package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"grokcapture/internal/logging"
)

// CountersKey is the backend key holding the session -> next sequence mapping.
const CountersKey = "session_counters"

// CounterStore hands out per-session sequence numbers starting at 1.
//
// Every allocation persists the whole mapping before the number is returned. When the
// write fails the in-memory counter stays advanced, so a number may be skipped but is
// never issued twice.
type CounterStore struct {
	mu       sync.Mutex
	backend  Backend
	counters map[string]int
	loaded   bool
}

// NewCounterStore creates a CounterStore over backend. Call Load before use to pick up
// persisted counters; Next loads lazily if Load was not called.
func NewCounterStore(backend Backend) *CounterStore {
	return &CounterStore{
		backend:  backend,
		counters: make(map[string]int),
	}
}

// Load reads the persisted mapping, replacing any in-memory state.
func (s *CounterStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *CounterStore) loadLocked(ctx context.Context) error {
	raw, ok, err := s.backend.Get(ctx, CountersKey)
	if err != nil {
		return fmt.Errorf("load counters: %w", err)
	}
	counters := make(map[string]int)
	if ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &counters); err != nil {
			return fmt.Errorf("decode counters: %w", err)
		}
	}
	s.counters = counters
	s.loaded = true
	logging.StoreDebug("Loaded %d session counters", len(counters))
	return nil
}

// Next allocates the next sequence number for sessionID.
func (s *CounterStore) Next(ctx context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		if err := s.loadLocked(ctx); err != nil {
			return 0, err
		}
	}

	n := s.counters[sessionID]
	if n < 1 {
		n = 1
	}
	s.counters[sessionID] = n + 1

	if err := s.persistLocked(ctx); err != nil {
		logging.StoreWarn("Counter %d for %s skipped: %v", n, sessionID, err)
		return 0, err
	}
	logging.StoreDebug("Issued sequence %d for session %s", n, sessionID)
	return n, nil
}

// Reset sets the counter for sessionID back to 1.
func (s *CounterStore) Reset(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		if err := s.loadLocked(ctx); err != nil {
			return err
		}
	}
	s.counters[sessionID] = 1
	if err := s.persistLocked(ctx); err != nil {
		return err
	}
	logging.Store("Reset counter for session %s", sessionID)
	return nil
}

// Flush rewrites the full mapping to the backend.
func (s *CounterStore) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

func (s *CounterStore) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(s.counters)
	if err != nil {
		return fmt.Errorf("encode counters: %w", err)
	}
	if err := s.backend.Set(ctx, CountersKey, raw); err != nil {
		return fmt.Errorf("persist counters: %w", err)
	}
	return nil
}

// Peek returns the number the next allocation for sessionID would yield, or 0 if the
// session has never been seen.
func (s *CounterStore) Peek(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[sessionID]
}

// Snapshot returns a copy of the in-memory mapping.
func (s *CounterStore) Snapshot() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.counters))
	for k, v := range s.counters {
		out[k] = v
	}
	return out
}

// SessionIDs returns the known session ids in sorted order.
func (s *CounterStore) SessionIDs() []string {
	snap := s.Snapshot()
	ids := make([]string, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
