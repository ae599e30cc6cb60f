package main

import (
	"sync"
	"time"
)

// Registry maps live transport handles to Connection contexts and
// authenticated user ids to their current Connection, and is the one
// primitive every service uses to push events (§4.4).
type Registry struct {
	mu      sync.Mutex
	byConn  map[*Connection]struct{}
	byUser  map[string]*Connection
}

func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[*Connection]struct{}),
		byUser: make(map[string]*Connection),
	}
}

// Register adds a freshly-accepted connection to the handle index.
func (r *Registry) Register(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byConn[c] = struct{}{}
}

// Unregister removes a connection from both indexes. If it was the
// current binding for its user, that entry is removed too; if a later
// connection had already displaced it, the user index is left untouched
// (§4.4's "most recently bound context" invariant).
func (r *Registry) Unregister(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byConn, c)
	userID := c.UserID()
	if userID != "" && r.byUser[userID] == c {
		delete(r.byUser, userID)
	}
}

// BindUser binds c to userID, displacing any prior connection bound to the
// same user — last-login-wins (§4.4, §9). The displaced connection stays
// open but loses its binding; it is not forcibly closed.
func (r *Registry) BindUser(c *Connection, userID, token string) {
	r.mu.Lock()
	prev := r.byUser[userID]
	r.byUser[userID] = c
	r.mu.Unlock()

	c.setBinding(userID, token)
	if prev != nil && prev != c {
		prev.clearBinding()
	}
}

// UnbindUser clears c's binding and removes it from the user index if it
// is still the current entry.
func (r *Registry) UnbindUser(c *Connection) {
	userID := c.UserID()
	if userID == "" {
		return
	}
	r.mu.Lock()
	if r.byUser[userID] == c {
		delete(r.byUser, userID)
	}
	r.mu.Unlock()
	c.clearBinding()
}

// SendToUser encodes and enqueues env for delivery to userID's current
// connection. Returns false without raising if the user has no live
// connection or the connection's outbox rejected the frame (§4.4).
func (r *Registry) SendToUser(userID string, env Envelope) bool {
	r.mu.Lock()
	c := r.byUser[userID]
	r.mu.Unlock()
	if c == nil {
		return false
	}
	return c.enqueue(env)
}

// GetAllUsers returns a snapshot copy of currently bound user ids, taken
// under the registry lock.
func (r *Registry) GetAllUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]string, 0, len(r.byUser))
	for u := range r.byUser {
		users = append(users, u)
	}
	return users
}

// Connected reports whether userID currently has a live bound connection.
func (r *Registry) Connected(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byUser[userID]
	return ok
}

// CleanupIdle unregisters and returns every bound connection whose
// last_seen predates cutoff (§4.4, §4.7).
func (r *Registry) CleanupIdle(cutoff time.Time) map[string]*Connection {
	r.mu.Lock()
	var stale []*Connection
	for userID, c := range r.byUser {
		if c.LastSeen().Before(cutoff) {
			stale = append(stale, c)
			delete(r.byUser, userID)
			delete(r.byConn, c)
		}
	}
	r.mu.Unlock()

	evicted := make(map[string]*Connection, len(stale))
	for _, c := range stale {
		userID := c.UserID()
		c.clearBinding()
		evicted[userID] = c
	}
	return evicted
}
