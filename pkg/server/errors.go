package server

import (
	"fmt"
	"io"

	"github.com/scpigo/hislipd/internal/logger"
	"github.com/scpigo/hislipd/internal/metrics"
	"github.com/scpigo/hislipd/pkg/wire"
)

// writeFatal sends a FatalError message with the given code, recording it
// against channel ("sync", "async", or "handshake") in m. Per §7, the
// connection must be closed after it is flushed; callers are expected to
// return immediately afterward, letting the deferred conn.Close() run.
func writeFatal(w io.Writer, channel string, m *metrics.Hislip, code wire.FatalErrorCode) {
	m.ErrorSent(channel, fmt.Sprintf("fatal:%d", code))
	_ = wire.WriteMessage(w, wire.Header{
		Type:      wire.TypeFatalError,
		Parameter: uint32(code),
	}, nil)
}

// writeNonFatal sends a non-fatal Error message; the connection continues.
func writeNonFatal(w io.Writer, channel string, m *metrics.Hislip, code wire.NonFatalErrorCode) error {
	m.ErrorSent(channel, fmt.Sprintf("error:%d", code))
	return wire.WriteMessage(w, wire.Header{
		Type:      wire.TypeError,
		Parameter: uint32(code),
	}, nil)
}

// logPeerError logs a client-sent Error/FatalError message without echoing
// it, per §4.3/§4.4's "log; do not echo" instruction.
func logPeerError(msg wire.Message) {
	logger.Debug("peer reported error", "type", msg.Header.Type.String(), "code", msg.Header.Parameter)
}
