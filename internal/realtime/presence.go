package realtime

import (
	"sort"
	"sync"
)

// Registry tracks every live connection and, for identified ones, which user
// they belong to. A user has at most one addressable connection; registering
// again replaces the previous entry.
//
// All state is process-local. Running more than one server process needs a
// shared broadcast bus instead of this registry.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]Conn   // conn id -> conn, anonymous included
	users  map[string]string // user id -> conn id
	owners map[string]string // conn id -> user id, kept after displacement
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]Conn),
		users:  make(map[string]string),
		owners: make(map[string]string),
	}
}

// Attach records a live connection without giving it an identity.
func (r *Registry) Attach(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID()] = c
}

// Register makes c the reachable connection of userID. It returns the id of
// the connection it displaced, if any. The displaced connection stays
// attached but is no longer addressable by identity.
func (r *Registry) Register(userID string, c Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[c.ID()] = c
	prev, had := r.users[userID]
	r.users[userID] = c.ID()
	r.owners[c.ID()] = userID
	return prev, had && prev != c.ID()
}

// Unregister detaches c. The presence entry of its user is removed only if it
// still points at c, so a late unregister of a replaced connection cannot
// evict the newer one. It returns the user whose presence was removed.
func (r *Registry) Unregister(c Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, c.ID())
	userID, ok := r.owners[c.ID()]
	if !ok {
		return "", false
	}
	delete(r.owners, c.ID())
	if r.users[userID] != c.ID() {
		return "", false
	}
	delete(r.users, userID)
	return userID, true
}

// Lookup returns the reachable connection of userID.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.users[userID]
	if !ok {
		return nil, false
	}
	c, ok := r.conns[id]
	return c, ok
}

// UserOf returns the identity c was registered under. A displaced connection
// keeps its identity even though Lookup no longer returns it.
func (r *Registry) UserOf(c Conn) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.owners[c.ID()]
	return u, ok
}

// Snapshot returns the sorted identities that currently have a live connection.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.users))
	for u := range r.users {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Connections returns every live connection, identified or not.
func (r *Registry) Connections() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
