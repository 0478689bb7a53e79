package lock

import "context"

// DeviceMutex guards actual device I/O, as distinct from the SharedLock's
// admission bookkeeping. Acquiring it may suspend the caller (device
// operations are not O(1)), which is why it is never taken while holding the
// SharedLock's internal mutex — see SharedLock's critical sections, which
// are all bounded and non-blocking.
type DeviceMutex struct {
	sem chan struct{}
}

// NewDeviceMutex returns an unlocked DeviceMutex.
func NewDeviceMutex() *DeviceMutex {
	d := &DeviceMutex{sem: make(chan struct{}, 1)}
	d.sem <- struct{}{}
	return d
}

// lockRacingStateChange attempts to acquire the device mutex while also
// watching l for a state change (admission was granted, then revoked again,
// or upgraded, while we were queued for the device). It returns:
//   - (release, false, nil) if the device mutex was acquired cleanly,
//   - (nil, true, nil) if l changed state first — the caller must recheck
//     admission before retrying,
//   - (nil, false, err) if ctx was cancelled first.
func (d *DeviceMutex) lockRacingStateChange(ctx context.Context, l *SharedLock) (func(), bool, error) {
	l.mu.Lock()
	w := l.register()
	l.mu.Unlock()

	select {
	case <-d.sem:
		l.mu.Lock()
		l.unregister(w)
		l.mu.Unlock()
		return func() { d.sem <- struct{}{} }, false, nil
	case <-w.ch:
		return nil, true, nil
	case <-ctx.Done():
		l.mu.Lock()
		l.unregister(w)
		l.mu.Unlock()
		return nil, false, ctx.Err()
	}
}
