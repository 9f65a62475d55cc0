package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyBackend struct {
	*MemoryBackend
	failSet bool
	sets    int
}

func (f *flakyBackend) Set(ctx context.Context, key string, value []byte) error {
	f.sets++
	if f.failSet {
		return errors.New("disk full")
	}
	return f.MemoryBackend.Set(ctx, key, value)
}

func TestCounterStore_Monotonic(t *testing.T) {
	ctx := context.Background()
	s := NewCounterStore(NewMemoryBackend())
	require.NoError(t, s.Load(ctx))

	for want := 1; want <= 25; want++ {
		got, err := s.Next(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 26, s.Peek("abc123"))
}

func TestCounterStore_SessionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := NewCounterStore(NewMemoryBackend())

	a1, _ := s.Next(ctx, "a")
	a2, _ := s.Next(ctx, "a")
	b1, _ := s.Next(ctx, "b")
	assert.Equal(t, []int{1, 2, 1}, []int{a1, a2, b1})
	assert.Equal(t, []string{"a", "b"}, s.SessionIDs())
}

func TestCounterStore_Reset(t *testing.T) {
	ctx := context.Background()
	s := NewCounterStore(NewMemoryBackend())

	for i := 0; i < 3; i++ {
		_, err := s.Next(ctx, "abc")
		require.NoError(t, err)
	}
	require.NoError(t, s.Reset(ctx, "abc"))

	got, err := s.Next(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestCounterStore_WriteThroughSurvivesReload(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()

	first := NewCounterStore(backend)
	for i := 0; i < 4; i++ {
		_, err := first.Next(ctx, "abc")
		require.NoError(t, err)
	}

	// A fresh store over the same backend simulates a restart.
	second := NewCounterStore(backend)
	require.NoError(t, second.Load(ctx))
	got, err := second.Next(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 5, got)
}

func TestCounterStore_FailedPersistSkipsNeverReuses(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{MemoryBackend: NewMemoryBackend()}
	s := NewCounterStore(backend)

	n, err := s.Next(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	backend.failSet = true
	_, err = s.Next(ctx, "abc")
	require.Error(t, err)

	backend.failSet = false
	n, err = s.Next(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 3, n, "the number lost to the failed write is skipped")
}

func TestCounterStore_ConcurrentAllocationsAreUnique(t *testing.T) {
	ctx := context.Background()
	s := NewCounterStore(NewMemoryBackend())

	const n = 50
	var wg sync.WaitGroup
	results := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.Next(ctx, "abc")
			if err == nil {
				results <- v
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int]bool)
	for v := range results {
		assert.False(t, seen[v], "duplicate sequence %d", v)
		seen[v] = true
	}
	assert.Len(t, seen, n)
}

func TestCounterStore_LoadRejectsCorruptState(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	require.NoError(t, backend.Set(ctx, CountersKey, []byte("{not json")))

	s := NewCounterStore(backend)
	assert.Error(t, s.Load(ctx))
}
