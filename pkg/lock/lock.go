// Package lock implements the HiSLIP shared device lock: a reader/writer
// lock extended with a named-key shared mode, upgrade from shared to
// exclusive, and cancellable async waiting.
//
// The lock is deliberately two-level (see SharedLock and DeviceMutex):
// admission (who is allowed to touch the device right now) is cheap and
// synchronous; actually touching the device may block, and is guarded by a
// separate mutex so that a session waiting on admission never holds up a
// session that is mid-operation.
package lock

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Outcome is the result of a synchronous acquire attempt against a SharedLock.
type Outcome int

const (
	// Granted indicates the requested grant was given.
	Granted Outcome = iota
	// AlreadyLocked indicates the caller already holds an incompatible or
	// redundant grant (e.g. requesting exclusive while already exclusive).
	AlreadyLocked
	// LockedByExclusive indicates another handle holds the exclusive lock.
	LockedByExclusive
	// LockedByShared indicates another cohort holds the shared lock under a
	// different key.
	LockedByShared
)

// ErrAborted is returned by AcquireExclusive, AcquireShared and the admission
// wait inside RemoteLockHandle.AsyncLock when ctx is cancelled (by a
// device-clear event or a timeout) before admission is granted.
var ErrAborted = errors.New("lock: acquire aborted by device clear")

// waiter is a one-shot notification sink. Every state transition that frees
// a grant closes every outstanding waiter's channel.
type waiter struct {
	ch chan struct{}
}

func newWaiter() *waiter {
	return &waiter{ch: make(chan struct{})}
}

// SharedLock gates exclusive vs. shared access to a single logical device
// among many HiSLIP sessions. One SharedLock exists per device; every
// LockHandle created against that device references the same SharedLock.
type SharedLock struct {
	mu sync.Mutex

	sharedKey   string
	hasSharedKey bool
	sharedCount int
	exclusive   bool
	idCounter   uint64

	waiters map[*waiter]struct{}
}

// NewSharedLock returns an unlocked SharedLock.
func NewSharedLock() *SharedLock {
	return &SharedLock{waiters: make(map[*waiter]struct{})}
}

// nextID assigns a monotonically wrapping handle identifier. Must be called
// with mu held.
func (l *SharedLock) nextID() uint64 {
	l.idCounter++
	return l.idCounter
}

// NewHandle creates a LockHandle bound to this SharedLock, with its own
// identifier drawn from the lock's id_counter.
func (l *SharedLock) NewHandle() *LockHandle {
	l.mu.Lock()
	id := l.nextID()
	l.mu.Unlock()

	return &LockHandle{id: id, debugID: uuid.New(), lock: l, device: NewDeviceMutex()}
}

// wakeAll closes and clears every registered waiter. Must be called with mu
// held, and only after the state mutation that justifies the wake-up — a
// waiter registered after the mutation must still observe the new state on
// its next acquire attempt, and closing before mutating risks a spurious
// grant race; closing strictly after mutating under the same critical
// section avoids both missed and premature wakeups.
func (l *SharedLock) wakeAll() {
	for w := range l.waiters {
		close(w.ch)
	}
	l.waiters = make(map[*waiter]struct{})
}

// register adds a fresh waiter to be woken on the next state change. Must be
// called with mu held.
func (l *SharedLock) register() *waiter {
	w := newWaiter()
	l.waiters[w] = struct{}{}
	return w
}

// unregister removes w without waking it, used when an async acquire's
// context is cancelled while the waiter is still pending. Must be called
// with mu held.
func (l *SharedLock) unregister(w *waiter) {
	delete(l.waiters, w)
}

// tryAcquireExclusive attempts to grant h exclusive access per the admission
// matrix (spec §4.1). Returns the outcome; on Granted, h.hasExclusive is set.
func (l *SharedLock) tryAcquireExclusive(h *LockHandle) Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.exclusive:
		if h.hasExclusive {
			return AlreadyLocked
		}
		return LockedByExclusive

	case l.hasSharedKey:
		if h.hasShared && h.sharedKey == l.sharedKey {
			// Upgrade: this handle is a member of the current shared
			// cohort: promote it to exclusive in place.
			l.exclusive = true
			h.hasExclusive = true
			return Granted
		}
		return LockedByShared

	default:
		l.exclusive = true
		h.hasExclusive = true
		return Granted
	}
}

// tryAcquireShared attempts to grant h a shared-mode lock under key per the
// admission matrix (spec §4.1).
func (l *SharedLock) tryAcquireShared(h *LockHandle, key string) Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.exclusive:
		if h.hasExclusive && (!l.hasSharedKey || l.sharedKey == key) {
			// The exclusive holder may also hold/extend the shared cohort
			// it upgraded from.
			if !l.hasSharedKey {
				l.sharedKey = key
				l.hasSharedKey = true
			}
			l.sharedCount++
			h.hasShared = true
			h.sharedKey = key
			return Granted
		}
		return LockedByExclusive

	case l.hasSharedKey:
		if h.hasShared {
			// Already a member of the current cohort: re-requesting shared
			// is not a new grant.
			return AlreadyLocked
		}
		if l.sharedKey != key {
			return LockedByShared
		}
		l.sharedCount++
		h.hasShared = true
		h.sharedKey = key
		return Granted

	default:
		l.sharedKey = key
		l.hasSharedKey = true
		l.sharedCount = 1
		h.hasShared = true
		h.sharedKey = key
		return Granted
	}
}

// ReleaseResult reports what a release call actually released, so callers
// can distinguish "released exclusive"/"released shared" from "held
// nothing" (the latter is an error per the async lock-release protocol).
type ReleaseResult int

const (
	// ReleasedNothing indicates the handle held no grant to release.
	ReleasedNothing ReleaseResult = iota
	// ReleasedShared indicates a shared-mode grant was released.
	ReleasedShared
	// ReleasedExclusive indicates the exclusive grant was released.
	ReleasedExclusive
)

// release clears whatever grants h holds and wakes waiters if anything
// changed. Safe to call even if h holds nothing, in which case it reports
// ReleasedNothing.
func (l *SharedLock) release(h *LockHandle) ReleaseResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := ReleasedNothing

	if h.hasShared {
		h.hasShared = false
		h.sharedKey = ""
		l.sharedCount--
		if l.sharedCount <= 0 {
			l.sharedCount = 0
			l.hasSharedKey = false
			l.sharedKey = ""
		}
		result = ReleasedShared
	}

	// An exclusive release takes priority in the report: a handle that
	// upgraded from shared to exclusive without fully releasing the shared
	// membership reports the exclusive release, matching the grant it most
	// recently held.
	if h.hasExclusive {
		h.hasExclusive = false
		l.exclusive = false
		result = ReleasedExclusive
	}

	if result != ReleasedNothing {
		l.wakeAll()
	}

	return result
}

// SharedCount returns the number of active shared-lock grants, for
// AsyncLockInfo replies.
func (l *SharedLock) SharedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sharedCount
}

// acquireAsync is the generic retry-with-cancellation loop shared by
// AcquireExclusive and AcquireShared: try synchronously, and on a
// LockedBy... outcome, register a waiter and block until either the state
// changes or ctx is cancelled.
func acquireAsync(ctx context.Context, l *SharedLock, try func() Outcome) error {
	for {
		outcome := try()
		switch outcome {
		case Granted, AlreadyLocked:
			return nil
		}

		l.mu.Lock()
		w := l.register()
		l.mu.Unlock()

		select {
		case <-w.ch:
			// State changed; loop and retry admission.
		case <-ctx.Done():
			l.mu.Lock()
			l.unregister(w)
			l.mu.Unlock()
			return ErrAborted
		}
	}
}

// AcquireExclusive blocks until h is granted (or already holds) the
// exclusive lock, or ctx is cancelled.
func (l *SharedLock) AcquireExclusive(ctx context.Context, h *LockHandle) error {
	return acquireAsync(ctx, l, func() Outcome {
		return l.tryAcquireExclusive(h)
	})
}

// AcquireShared blocks until h is granted (or already holds) a shared-mode
// lock under key, or ctx is cancelled.
func (l *SharedLock) AcquireShared(ctx context.Context, h *LockHandle, key string) error {
	return acquireAsync(ctx, l, func() Outcome {
		return l.tryAcquireShared(h, key)
	})
}

// canTouchDevice reports whether h may operate on the device right now
// without being granted anything new: true if h already holds a grant
// compatible with the current lock state (its own exclusive grant, or
// shared membership while nobody holds exclusive), or if the device is
// entirely unlocked. It never mutates admission state.
func (l *SharedLock) canTouchDevice(h *LockHandle) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.exclusive:
		return h.hasExclusive
	case l.hasSharedKey:
		return h.hasShared
	default:
		return true
	}
}

// waitCanTouchDevice blocks until canTouchDevice(h) is true or ctx is
// cancelled. It grants nothing: a handle holding no grant at all may pass
// through here as soon as the device is unlocked, and remains ungranted
// afterward.
func (l *SharedLock) waitCanTouchDevice(ctx context.Context, h *LockHandle) error {
	for {
		if l.canTouchDevice(h) {
			return nil
		}

		l.mu.Lock()
		w := l.register()
		l.mu.Unlock()

		select {
		case <-w.ch:
			// State changed; loop and recheck.
		case <-ctx.Done():
			l.mu.Lock()
			l.unregister(w)
			l.mu.Unlock()
			return ErrAborted
		}
	}
}
