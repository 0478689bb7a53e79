package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation
// and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Session & Channel
	// ========================================================================
	KeySessionID = "session_id" // HiSLIP session id
	KeyChannel   = "channel"    // "sync" or "async"
	KeyClientIP  = "client_ip" // Client IP address (without port)

	// ========================================================================
	// Wire Protocol
	// ========================================================================
	KeyMessageType = "message_type" // HiSLIP message type name
	KeyMessageID   = "message_id"   // Sequenced message id (MAV tracking)
	KeyControl     = "control"      // Raw control byte
	KeyParameter   = "parameter"    // Raw parameter word
	KeyPayloadLen  = "payload_len"  // Payload length in bytes

	// ========================================================================
	// Locking
	// ========================================================================
	KeyLockKey    = "lock_key"   // Shared-lock cohort key
	KeyLockHandle = "lock_handle" // Lock handle id
	KeyLockMode   = "lock_mode"  // "exclusive" or "shared"

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // Numeric error code
	KeyOperation  = "operation"   // Sub-operation type for complex operations
)

// ----------------------------------------------------------------------------
// Distributed Tracing
// ----------------------------------------------------------------------------

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// ----------------------------------------------------------------------------
// Session & Channel
// ----------------------------------------------------------------------------

// SessionID returns a slog.Attr for the HiSLIP session id
func SessionID(id uint16) slog.Attr {
	return slog.Any(KeySessionID, id)
}

// Channel returns a slog.Attr for the channel role ("sync" / "async")
func Channel(role string) slog.Attr {
	return slog.String(KeyChannel, role)
}

// ClientIP returns a slog.Attr for client IP address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// ----------------------------------------------------------------------------
// Wire Protocol
// ----------------------------------------------------------------------------

// MessageType returns a slog.Attr for a HiSLIP message type name
func MessageType(name string) slog.Attr {
	return slog.String(KeyMessageType, name)
}

// MessageID returns a slog.Attr for a sequenced message id
func MessageID(id uint32) slog.Attr {
	return slog.Any(KeyMessageID, id)
}

// Control returns a slog.Attr for a raw control byte (formatted as hex)
func Control(c uint8) slog.Attr {
	return slog.String(KeyControl, fmt.Sprintf("0x%02x", c))
}

// Parameter returns a slog.Attr for a raw parameter word
func Parameter(p uint32) slog.Attr {
	return slog.Any(KeyParameter, p)
}

// PayloadLen returns a slog.Attr for payload length in bytes
func PayloadLen(n uint64) slog.Attr {
	return slog.Uint64(KeyPayloadLen, n)
}

// ----------------------------------------------------------------------------
// Locking
// ----------------------------------------------------------------------------

// LockKey returns a slog.Attr for a shared-lock cohort key
func LockKey(key string) slog.Attr {
	return slog.String(KeyLockKey, key)
}

// LockHandle returns a slog.Attr for a lock handle id
func LockHandle(id uint64) slog.Attr {
	return slog.Uint64(KeyLockHandle, id)
}

// LockMode returns a slog.Attr for the lock mode held/requested
func LockMode(mode string) slog.Attr {
	return slog.String(KeyLockMode, mode)
}

// ----------------------------------------------------------------------------
// Operation Metadata
// ----------------------------------------------------------------------------

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for numeric error code
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}

// Operation returns a slog.Attr for sub-operation type
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}
