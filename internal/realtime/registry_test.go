package realtime

import (
	"sync"
	"testing"
)

// fakeConn records events sent to it; ok controls the Send result.
type fakeConn struct {
	mu     sync.Mutex
	events []string
	ok     bool
}

func newFakeConn() *fakeConn { return &fakeConn{ok: true} }

func (f *fakeConn) Send(event string, _ any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ok {
		return false
	}
	f.events = append(f.events, event)
	return true
}

func (f *fakeConn) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	copy(out, f.events)
	return out
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	c := newFakeConn()

	r.Register("dj-1", c)
	if got := r.ConnectionsFor("dj-1"); len(got) != 1 {
		t.Fatalf("connections = %d, want 1", len(got))
	}
	if id, ok := r.IdentityOf(c); !ok || id != "dj-1" {
		t.Fatalf("identity = %q/%v", id, ok)
	}
	if got := r.ConnectionsFor("nobody"); len(got) != 0 {
		t.Fatalf("unknown identity returned %d connections", len(got))
	}
}

func TestRegisterIdempotent(t *testing.T) {
	r := NewRegistry()
	c := newFakeConn()

	r.Register("dj-1", c)
	r.Register("dj-1", c)
	if got := r.ConnectionsFor("dj-1"); len(got) != 1 {
		t.Fatalf("connections = %d after double register, want 1", len(got))
	}
	if got := r.All(); len(got) != 1 {
		t.Fatalf("All() = %d, want 1", len(got))
	}
}

func TestRegisterMovesIdentity(t *testing.T) {
	r := NewRegistry()
	c := newFakeConn()

	// Anonymous connection authenticates over the same transport.
	r.Register("session-abc", c)
	r.Register("djnova", c)

	if got := r.ConnectionsFor("session-abc"); len(got) != 0 {
		t.Fatalf("old identity kept %d connections", len(got))
	}
	if got := r.ConnectionsFor("djnova"); len(got) != 1 {
		t.Fatalf("new identity has %d connections, want 1", len(got))
	}
	if id, _ := r.IdentityOf(c); id != "djnova" {
		t.Fatalf("identity = %q, want djnova", id)
	}
}

func TestMultipleConnectionsPerIdentity(t *testing.T) {
	r := NewRegistry()
	a, b := newFakeConn(), newFakeConn()

	r.Register("djnova", a)
	r.Register("djnova", b)
	if got := r.ConnectionsFor("djnova"); len(got) != 2 {
		t.Fatalf("connections = %d, want 2", len(got))
	}

	r.Unregister(a)
	if got := r.ConnectionsFor("djnova"); len(got) != 1 {
		t.Fatalf("connections = %d after one unregister, want 1", len(got))
	}
	r.Unregister(b)
	if got := r.ConnectionsFor("djnova"); len(got) != 0 {
		t.Fatalf("connections = %d after both gone, want 0", len(got))
	}
	// Unregistering an unknown handle is harmless.
	r.Unregister(a)
}

func TestRegisterRejectsEmpty(t *testing.T) {
	r := NewRegistry()
	r.Register("", newFakeConn())
	r.Register("id", nil)
	if got := r.All(); len(got) != 0 {
		t.Fatalf("All() = %d, want 0", len(got))
	}
}
