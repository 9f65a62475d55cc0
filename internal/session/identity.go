// Package session derives the active conversation id from the page location and
// reports transitions between conversations.
package session

import (
	"net/url"
	"strings"
	"sync"

	"grokcapture/internal/logging"
)

// Unknown is the session id used when the location carries no identifiable session.
const Unknown = "unknown"

// DefaultParam is the query parameter holding the conversation id on Grok pages.
const DefaultParam = "conversation"

// Locator reports the current location of the watched document.
type Locator interface {
	Location() string
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func() string

// Location implements Locator.
func (f LocatorFunc) Location() string { return f() }

// FromURL extracts the session id from raw using the given query parameter.
// Missing, empty or unparseable input yields Unknown.
func FromURL(raw, param string) string {
	if param == "" {
		param = DefaultParam
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Unknown
	}
	id := strings.TrimSpace(u.Query().Get(param))
	if id == "" {
		return Unknown
	}
	return id
}

// Identity tracks the current session id of a Locator.
type Identity struct {
	loc   Locator
	param string

	mu      sync.Mutex
	current string
	primed  bool
}

// NewIdentity creates an Identity for loc. The first call to Changed establishes the
// baseline without reporting a transition.
func NewIdentity(loc Locator, param string) *Identity {
	if param == "" {
		param = DefaultParam
	}
	return &Identity{loc: loc, param: param}
}

// CurrentID derives the session id from the locator at call time. It has no side effects.
func (i *Identity) CurrentID() string {
	if i.loc == nil {
		return Unknown
	}
	return FromURL(i.loc.Location(), i.param)
}

// Prime records the current id as the baseline and returns it.
func (i *Identity) Prime() string {
	id := i.CurrentID()
	i.mu.Lock()
	i.current = id
	i.primed = true
	i.mu.Unlock()
	return id
}

// Last returns the most recently recorded session id.
func (i *Identity) Last() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.primed {
		return Unknown
	}
	return i.current
}

// Changed compares the current id against the last recorded one. On a difference it
// records the new id and returns it with true; each transition is reported once.
func (i *Identity) Changed() (string, bool) {
	id := i.CurrentID()

	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.primed {
		i.current = id
		i.primed = true
		return id, false
	}
	if id == i.current {
		return id, false
	}
	prev := i.current
	i.current = id
	logging.Session("Session changed: %s -> %s", prev, id)
	return id, true
}
