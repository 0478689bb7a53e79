// Package device abstracts the instrument a HiSLIP session ultimately talks
// to. The server core never assumes anything about the instrument beyond
// this capability surface.
package device

import (
	"context"
	"errors"
)

// Device is the small capability an instrument must expose to sit behind a
// HiSLIP server. Implementations must be safe for concurrent use and must not
// assume calls arrive on any particular goroutine. The server serializes the
// device calls of one session's two channels through that session's
// DeviceMutex (pkg/lock); calls from different sessions are not serialized
// against each other.
type Device interface {
	// Execute runs a command payload against the instrument (typically a
	// SCPI string) and returns an optional response payload. A nil response
	// means the command produced no data (e.g. a bare "*RST").
	Execute(ctx context.Context, payload []byte) ([]byte, error)

	// Status returns the instrument's current status byte (STB), without
	// the MAV bit — the caller patches that in from session state.
	Status(ctx context.Context) (byte, error)

	// Trigger issues a bus trigger (IEEE 488.1 GET equivalent).
	Trigger(ctx context.Context) error

	// Clear resets the instrument (device-clear, IEEE 488.1 SDC/DCL
	// equivalent), discarding any pending operation.
	Clear(ctx context.Context) error

	// SetRemote enables or disables remote-control mode.
	SetRemote(ctx context.Context, remote bool) error

	// SetLocalLockout enables or disables local lockout (front-panel
	// controls disabled even when not in remote mode).
	SetLocalLockout(ctx context.Context, lockout bool) error
}

// Error is the small error enum devices report; the server maps these to
// wire-level fatal/non-fatal error codes at the call site.
type Error int

const (
	// NotSupported indicates the device does not implement the requested
	// operation at all.
	NotSupported Error = iota
	// IoTimeout indicates the device did not respond within its own
	// timeout budget.
	IoTimeout
	// IoError indicates a low-level communication failure with the
	// instrument.
	IoError
)

func (e Error) Error() string {
	switch e {
	case NotSupported:
		return "device: operation not supported"
	case IoTimeout:
		return "device: i/o timeout"
	case IoError:
		return "device: i/o error"
	default:
		return "device: unknown error"
	}
}

// ErrNotSupported, ErrIoTimeout and ErrIoError are sentinel instances of
// Error for use with errors.Is.
var (
	ErrNotSupported = NotSupported
	ErrIoTimeout    = IoTimeout
	ErrIoError      = IoError
)

// IsNotSupported reports whether err wraps device.NotSupported.
func IsNotSupported(err error) bool {
	var derr Error
	return errors.As(err, &derr) && derr == NotSupported
}
