// Package realtime maintains the live websocket connections and fans
// domain events out to them. The registry maps identities (DJ usernames
// or anonymous session tokens) to connection sets; the broadcaster
// addresses events either to everyone or to one identity.
package realtime

import "sync"

// Conn is a live connection handle. Send queues one event for delivery
// and reports false when the event was dropped (closed connection or full
// buffer); senders never block and never retry.
type Conn interface {
	Send(event string, payload any) bool
}

// Registry maps identities to their live connections. It is mutated from
// two independent triggers, HTTP-driven login and transport-driven
// connect/disconnect, so every map access is guarded. A connection
// appears under at most one identity at a time.
type Registry struct {
	mu         sync.RWMutex
	byIdentity map[string]map[Conn]struct{}
	identityOf map[Conn]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byIdentity: make(map[string]map[Conn]struct{}),
		identityOf: make(map[Conn]string),
	}
}

// Register indexes a connection under an identity. Registering the same
// handle twice under the same identity is a no-op. Registering it under a
// new identity moves it: this is the re-registration path used when an
// anonymous connection authenticates over the same transport.
func (r *Registry) Register(identity string, c Conn) {
	if identity == "" || c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.identityOf[c]; ok {
		if prev == identity {
			return
		}
		r.removeLocked(prev, c)
	}
	set, ok := r.byIdentity[identity]
	if !ok {
		set = make(map[Conn]struct{})
		r.byIdentity[identity] = set
	}
	set[c] = struct{}{}
	r.identityOf[c] = identity
}

// Unregister removes a connection from whichever identity set contains
// it. The caller does not need to know the identity; connection-close
// hooks only have the handle.
func (r *Registry) Unregister(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.identityOf[c]
	if !ok {
		return
	}
	r.removeLocked(identity, c)
}

func (r *Registry) removeLocked(identity string, c Conn) {
	if set, ok := r.byIdentity[identity]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(r.byIdentity, identity)
		}
	}
	delete(r.identityOf, c)
}

// ConnectionsFor returns the live connections of an identity. An unknown
// identity yields an empty slice, not an error.
func (r *Registry) ConnectionsFor(identity string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byIdentity[identity]
	out := make([]Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// All returns every registered connection, used for shared timeslot
// broadcasts.
func (r *Registry) All() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conn, 0, len(r.identityOf))
	for c := range r.identityOf {
		out = append(out, c)
	}
	return out
}

// IdentityOf reports the identity a connection is currently indexed
// under. Used by tests and the websocket handler's disconnect log line.
func (r *Registry) IdentityOf(c Conn) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.identityOf[c]
	return id, ok
}
