package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for HiSLIP message-dispatch spans.
const (
	AttrSessionID   = "hislip.session_id"
	AttrChannel     = "hislip.channel" // "sync" or "async"
	AttrMessageType = "hislip.message_type"
	AttrLockKey     = "hislip.lock_key"
	AttrExclusive   = "hislip.exclusive"
	AttrClientIP    = "hislip.client_ip"
)

// Span names: one root span per dispatched message, named by channel.
const (
	SpanSyncDispatch  = "hislip.sync.dispatch"
	SpanAsyncDispatch = "hislip.async.dispatch"
	SpanAsyncLock     = "hislip.async_lock"
)

// SessionID returns an attribute for the HiSLIP session id.
func SessionID(id uint16) attribute.KeyValue {
	return attribute.Int64(AttrSessionID, int64(id))
}

// Channel returns an attribute identifying which channel ("sync" or
// "async") produced a span.
func Channel(channel string) attribute.KeyValue {
	return attribute.String(AttrChannel, channel)
}

// MessageType returns an attribute for the dispatched wire message type.
func MessageType(name string) attribute.KeyValue {
	return attribute.String(AttrMessageType, name)
}

// LockKey returns an attribute for the shared-lock key requested by an
// AsyncLock message, empty for an exclusive request.
func LockKey(key string) attribute.KeyValue {
	return attribute.String(AttrLockKey, key)
}

// Exclusive returns an attribute indicating whether a lock request is for
// exclusive (vs. shared) access.
func Exclusive(exclusive bool) attribute.KeyValue {
	return attribute.Bool(AttrExclusive, exclusive)
}

// ClientIP returns an attribute for the connecting client's address.
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// StartDispatchSpan starts a span covering one dispatched message on
// channel (sync or async), tagged with the session id and message type.
func StartDispatchSpan(ctx context.Context, channel string, sessionID uint16, messageType string) (context.Context, trace.Span) {
	name := SpanSyncDispatch
	if channel == "async" {
		name = SpanAsyncDispatch
	}
	return StartSpan(ctx, name, trace.WithAttributes(
		Channel(channel),
		SessionID(sessionID),
		MessageType(messageType),
	))
}
