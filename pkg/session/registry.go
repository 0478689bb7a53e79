package session

import (
	"sync"
	"weak"

	"github.com/scpigo/hislipd/pkg/lock"
)

// entry is what the registry stores per session id: weak references only.
// Strong references to Shared and the LockHandle live inside the two
// channel tasks of a session; once both exit and drop their strong
// references, the weak pointers here resolve to zero values and the next
// lookup or sweep reclaims the slot. This keeps the registry from being the
// thing that keeps a dead session's memory alive.
type entry struct {
	shared weak.Pointer[Shared]
	handle weak.Pointer[lock.LockHandle]
}

// Registry maps live HiSLIP session ids to their session record and lock
// handle, for AsyncInitialize to attach an async connection to a session
// that was created by a prior Initialize on the sync side.
type Registry struct {
	mu      sync.Mutex
	entries map[uint16]entry
	// next is the id_counter from which fresh even, non-zero session ids
	// are allocated; wraps, skips ids whose session is still live, and
	// reuses ids whose entry no longer resolves.
	next uint32
}

// NewRegistry returns an empty session registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uint16]entry)}
}

// ErrExhausted is returned by Allocate when every even 16-bit id is
// currently in use (MaximumClientsExceeded at the wire level).
var ErrExhausted = errExhausted{}

type errExhausted struct{}

func (errExhausted) Error() string { return "session: id space exhausted" }

// Allocate reserves a fresh session id and registers shared and handle
// under it using weak references. It scans forward from the last id
// issued, skipping any id whose entry still resolves live, and returns
// ErrExhausted after a full wrap with nothing free.
func (r *Registry) Allocate(shared *Shared, handle *lock.LockHandle) (uint16, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweepLocked()

	for i := 0; i < 1<<15; i++ {
		r.next += 2
		id := uint16(r.next & 0xfffe)
		if id == 0 {
			continue
		}
		if _, live := r.liveLocked(id); live {
			continue
		}
		r.entries[id] = entry{
			shared: weak.Make(shared),
			handle: weak.Make(handle),
		}
		return id, nil
	}
	return 0, ErrExhausted
}

// liveLocked reports whether id's entry still resolves to a live Shared.
// Must be called with mu held.
func (r *Registry) liveLocked(id uint16) (entry, bool) {
	e, ok := r.entries[id]
	if !ok {
		return entry{}, false
	}
	if e.shared.Value() == nil {
		delete(r.entries, id)
		return entry{}, false
	}
	return e, true
}

// sweepLocked drops entries whose Shared has already been collected. Must
// be called with mu held.
func (r *Registry) sweepLocked() {
	for id, e := range r.entries {
		if e.shared.Value() == nil {
			delete(r.entries, id)
		}
	}
}

// Lookup resolves id to its live Shared and LockHandle, for AsyncInitialize.
// ok is false if the id was never allocated or its session has since been
// destroyed.
func (r *Registry) Lookup(id uint16) (shared *Shared, handle *lock.LockHandle, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, live := r.liveLocked(id)
	if !live {
		return nil, nil, false
	}
	h := e.handle.Value()
	if h == nil {
		delete(r.entries, id)
		return nil, nil, false
	}
	return e.shared.Value(), h, true
}

// Release drops id's entry outright, called when a session is explicitly
// torn down rather than left to be swept on next allocation.
func (r *Registry) Release(id uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Info is a point-in-time snapshot of one live session, for the admin
// surface's session listing.
type Info struct {
	ID             uint16
	TraceID        string
	Protocol       Protocol
	State          State
	Mode           Mode
	AsyncConnected bool
}

// Snapshot returns Info for every currently live session, sweeping dead
// entries as it goes.
func (r *Registry) Snapshot() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweepLocked()

	infos := make([]Info, 0, len(r.entries))
	for id, e := range r.entries {
		shared := e.shared.Value()
		if shared == nil {
			continue
		}
		infos = append(infos, Info{
			ID:             id,
			TraceID:        shared.TraceID().String(),
			Protocol:       shared.Protocol(),
			State:          shared.State(),
			Mode:           shared.Mode(),
			AsyncConnected: shared.AsyncConnected(),
		})
	}
	return infos
}
