package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeLocator struct {
	mu  sync.Mutex
	url string
}

func (f *fakeLocator) Location() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url
}

func (f *fakeLocator) set(u string) {
	f.mu.Lock()
	f.url = u
	f.mu.Unlock()
}

func TestFromURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://x.com/i/grok?conversation=abc123", "abc123"},
		{"https://x.com/i/grok?foo=1&conversation=1890&bar=2", "1890"},
		{"https://x.com/i/grok", Unknown},
		{"https://x.com/i/grok?conversation=", Unknown},
		{"", Unknown},
		{"://bad url", Unknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FromURL(tt.raw, ""), tt.raw)
	}
	assert.Equal(t, "42", FromURL("https://example.com/chat?id=42", "id"))
}

func TestIdentity_CurrentIDIsPure(t *testing.T) {
	loc := &fakeLocator{url: "https://x.com/i/grok?conversation=a"}
	id := NewIdentity(loc, "")

	assert.Equal(t, "a", id.CurrentID())
	assert.Equal(t, "a", id.CurrentID())
	assert.Equal(t, Unknown, id.Last(), "CurrentID must not record a baseline")
}

func TestIdentity_ChangedReportsOncePerTransition(t *testing.T) {
	loc := &fakeLocator{url: "https://x.com/i/grok?conversation=a"}
	id := NewIdentity(loc, "")

	got, changed := id.Changed()
	assert.Equal(t, "a", got)
	assert.False(t, changed, "first observation only primes the baseline")

	_, changed = id.Changed()
	assert.False(t, changed)

	loc.set("https://x.com/i/grok?conversation=b")
	got, changed = id.Changed()
	assert.Equal(t, "b", got)
	assert.True(t, changed)

	_, changed = id.Changed()
	assert.False(t, changed, "a transition is reported exactly once")

	loc.set("https://x.com/i/grok")
	got, changed = id.Changed()
	assert.Equal(t, Unknown, got)
	assert.True(t, changed)
	assert.Equal(t, Unknown, id.Last())
}

func TestIdentity_PrimeThenChange(t *testing.T) {
	loc := &fakeLocator{url: "https://x.com/i/grok?conversation=a"}
	id := NewIdentity(loc, "")
	assert.Equal(t, "a", id.Prime())

	loc.set("https://x.com/i/grok?conversation=b")
	_, changed := id.Changed()
	assert.True(t, changed)
}

func TestIdentity_NilLocator(t *testing.T) {
	id := NewIdentity(nil, "")
	assert.Equal(t, Unknown, id.CurrentID())
	assert.Equal(t, "x", NewIdentity(LocatorFunc(func() string { return "?conversation=x" }), "").CurrentID())
}
