package lock

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// LockHandle is owned by one client session and tracks that session's
// current grants against a SharedLock, plus the device mutex races against
// when performing the compound AsyncLock operation.
type LockHandle struct {
	id      uint64
	debugID uuid.UUID
	lock    *SharedLock
	device  *DeviceMutex

	mu           sync.Mutex
	hasShared    bool
	hasExclusive bool
	sharedKey    string
}

// ID returns the handle's identifier, assigned from the owning SharedLock's
// id_counter at creation time.
func (h *LockHandle) ID() uint64 {
	return h.id
}

// DebugID returns a process-lifetime-unique identifier for this handle,
// for log correlation across the numeric id's reuse after a session ends.
func (h *LockHandle) DebugID() uuid.UUID {
	return h.debugID
}

// HasShared reports whether this handle currently holds a shared-mode grant.
func (h *LockHandle) HasShared() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hasShared
}

// HasExclusive reports whether this handle currently holds the exclusive grant.
func (h *LockHandle) HasExclusive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hasExclusive
}

// AcquireExclusive blocks until this handle is granted the exclusive lock or
// ctx is cancelled (typically by a device-clear event).
func (h *LockHandle) AcquireExclusive(ctx context.Context) error {
	return h.lock.AcquireExclusive(ctx, h)
}

// AcquireShared blocks until this handle is granted a shared-mode lock under
// key, or ctx is cancelled.
func (h *LockHandle) AcquireShared(ctx context.Context, key string) error {
	return h.lock.AcquireShared(ctx, h, key)
}

// Release drops every grant this handle holds and wakes any waiters.
// Reports what, if anything, was released.
func (h *LockHandle) Release() ReleaseResult {
	return h.lock.release(h)
}

// SharedCount returns the owning SharedLock's current shared-grant count,
// for AsyncLockInfo replies.
func (h *LockHandle) SharedCount() int {
	return h.lock.SharedCount()
}

// RemoteLockHandle is a shareable wrapper over a LockHandle used when the
// sync and async channels of the same session need to coordinate access to a
// single handle and its device mutex. Both channels must wrap the *same*
// LockHandle instance (as looked up from the session registry) so that they
// race against the one DeviceMutex that handle owns, not independent ones.
type RemoteLockHandle struct {
	handle *LockHandle
}

// NewRemoteLockHandle wraps h, whose DeviceMutex was created alongside it by
// SharedLock.NewHandle.
func NewRemoteLockHandle(h *LockHandle) *RemoteLockHandle {
	return &RemoteLockHandle{handle: h}
}

// Handle returns the underlying LockHandle.
func (r *RemoteLockHandle) Handle() *LockHandle {
	return r.handle
}

// AsyncLock is the compound "I may operate on the device now" operation: a
// non-mutating admission check against the SharedLock, then race the
// device mutex against a waiter on the SharedLock itself. It never
// acquires a new shared/exclusive grant — a handle holding no grant at all
// may pass through while the device is unlocked, exactly as it would for an
// ordinary Data/Trigger send with no prior Lock request. If the SharedLock
// changes state before the device mutex is acquired, admission must be
// rechecked — another session may have taken exclusive access while this
// caller was queued for the device mutex.
//
// On success, the returned release func unlocks the device mutex; it must
// be called exactly once. This has nothing to do with lock admission: a
// real shared/exclusive grant is acquired only via a protocol Lock request
// and released only via Handle().Release().
func (r *RemoteLockHandle) AsyncLock(ctx context.Context) (func(), error) {
	for {
		if err := r.handle.lock.waitCanTouchDevice(ctx, r.handle); err != nil {
			return nil, err
		}

		release, changed, err := r.handle.device.lockRacingStateChange(ctx, r.handle.lock)
		if err != nil {
			return nil, err
		}
		if !changed {
			return release, nil
		}
		// The shared lock transitioned while we queued for the device
		// mutex: recheck admission before touching the device.
	}
}
