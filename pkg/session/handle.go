package session

import (
	"weak"

	"github.com/scpigo/hislipd/pkg/lock"
)

// Handle is a per-channel weak view onto a session's Shared record and
// LockHandle. Unlike the strong references each channel task holds while
// running, a Handle is safe to stash somewhere longer-lived (e.g. a
// diagnostics listing) without keeping the session alive past both
// channels exiting.
type Handle struct {
	shared weak.Pointer[Shared]
	handle weak.Pointer[lock.LockHandle]
}

// NewHandle wraps shared and handle as weak references.
func NewHandle(shared *Shared, handle *lock.LockHandle) Handle {
	return Handle{shared: weak.Make(shared), handle: weak.Make(handle)}
}

// Active reports whether both the session record and the lock handle are
// still live, i.e. at least one channel task still holds a strong
// reference to each.
func (h Handle) Active() bool {
	return h.shared.Value() != nil && h.handle.Value() != nil
}

// Shared resolves the weak reference to a strong one, or nil if the
// session has been destroyed.
func (h Handle) Shared() *Shared {
	return h.shared.Value()
}

// LockHandle resolves the weak reference to a strong one, or nil if the
// session has been destroyed.
func (h Handle) LockHandle() *lock.LockHandle {
	return h.handle.Value()
}
