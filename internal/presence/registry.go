// Package presence tracks which user and room each live socket connection is bound to.
package presence

import (
	"sort"
	"sync"
)

// Entry is a snapshot of one connection's bindings. UserID is nil until the
// client identifies; RoomID is nil when no room is joined.
type Entry struct {
	ConnID string
	UserID *int
	RoomID *int
}

// Directory is the presence lookup used by the router and dispatcher.
type Directory interface {
	Register(connID string)
	SetUser(connID string, userID int)
	SetRoom(connID string, roomID *int)
	Unregister(connID string)
	Get(connID string) (Entry, bool)
	Select(match func(Entry) bool) []Entry
	ConnectionsForUser(userID int) []Entry
}

// Registry is an in-memory Directory for a single process.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds a connection with no user and no room. Registering an id
// that is already present resets its bindings.
func (r *Registry) Register(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[connID] = &Entry{ConnID: connID}
}

// SetUser binds a user id. Unknown connections are ignored.
func (r *Registry) SetUser(connID string, userID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[connID]; ok {
		e.UserID = intPtr(userID)
	}
}

// SetRoom binds a room, or clears it when roomID is nil. Unknown connections are ignored.
func (r *Registry) SetRoom(connID string, roomID *int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[connID]
	if !ok {
		return
	}
	if roomID == nil {
		e.RoomID = nil
		return
	}
	e.RoomID = intPtr(*roomID)
}

// Unregister drops a connection. Unknown connections are ignored.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, connID)
}

// Get returns a copy of the connection's entry.
func (r *Registry) Get(connID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[connID]
	if !ok {
		return Entry{}, false
	}
	return e.snapshot(), true
}

// Select returns copies of every entry matching match, ordered by ConnID.
func (r *Registry) Select(match func(Entry) bool) []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		snap := e.snapshot()
		if match == nil || match(snap) {
			out = append(out, snap)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ConnID < out[j].ConnID })
	return out
}

// ConnectionsForUser returns every connection identified as userID.
func (r *Registry) ConnectionsForUser(userID int) []Entry {
	return r.Select(func(e Entry) bool {
		return e.UserID != nil && *e.UserID == userID
	})
}

// Len reports the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (e *Entry) snapshot() Entry {
	out := Entry{ConnID: e.ConnID}
	if e.UserID != nil {
		out.UserID = intPtr(*e.UserID)
	}
	if e.RoomID != nil {
		out.RoomID = intPtr(*e.RoomID)
	}
	return out
}

func intPtr(v int) *int { return &v }
