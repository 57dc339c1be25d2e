// Package server tracks which connections have joined the room. The Registry
// is the single source of truth for "who is online"; nothing else keeps a
// copy of session state.
package server

import (
	"sync"
	"time"

	"github.com/samber/lo"
)

// Status is a session's presence state. Only StatusOnline is set by the
// event flows; StatusAway is reachable through the presence publisher's
// status hook.
type Status string

const (
	StatusOnline Status = "Online"
	StatusAway   Status = "Away"
)

// lastActiveLayout matches the timestamp format clients render in the
// roster.
const lastActiveLayout = "2006-01-02 15:04:05"

// Session is the record of a joined user, keyed by connection ID in the
// Registry. A session exists exactly while the connection is joined.
type Session struct {
	Username   string
	Status     Status
	LastActive time.Time
}

// Registry maps connection IDs to sessions. Handlers for different
// connections run concurrently, so every read and write goes through one
// mutex. An explicit insertion-order slice keeps Snapshot and
// FindByUsername deterministic; Go's map iteration order is not.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Put creates a session with status Online and a fresh last-active time.
// A pre-existing session at the same connection ID is overwritten in place,
// keeping its position in insertion order.
func (r *Registry) Put(connID, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[connID]; !exists {
		r.order = append(r.order, connID)
	}
	r.sessions[connID] = &Session{
		Username:   username,
		Status:     StatusOnline,
		LastActive: time.Now(),
	}
}

// Get returns a copy of the session for connID, if one exists.
func (r *Registry) Get(connID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[connID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Remove deletes the session for connID. Removing an absent session is a
// no-op, which makes disconnect handling idempotent.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[connID]; !ok {
		return
	}
	delete(r.sessions, connID)
	r.order = lo.Without(r.order, connID)
}

// SetStatus updates the session's status and refreshes its last-active
// time. It reports whether a session existed; no session means no change.
func (r *Registry) SetStatus(connID string, status Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return false
	}
	s.Status = status
	s.LastActive = time.Now()
	return true
}

// FindByUsername resolves a display name back to a connection ID. Usernames
// are not unique; the first match in insertion order wins.
func (r *Registry) FindByUsername(username string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Find(r.order, func(connID string) bool {
		return r.sessions[connID].Username == username
	})
}

// Snapshot returns a point-in-time copy of all sessions in insertion order.
func (r *Registry) Snapshot() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Map(r.order, func(connID string, _ int) Session {
		return *r.sessions[connID]
	})
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}
