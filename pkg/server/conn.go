package server

import (
	"context"
	"net"
	"runtime/debug"
	"strings"
	"time"
	"unicode"

	"github.com/scpigo/hislipd/internal/logger"
	"github.com/scpigo/hislipd/pkg/lock"
	"github.com/scpigo/hislipd/pkg/session"
	"github.com/scpigo/hislipd/pkg/wire"
)

// knownSubAddresses lists the device sub-addresses this server answers
// Initialize for. A real multi-device server would look these up from a
// routing table; this core serves a single logical device under any of
// them.
var knownSubAddresses = map[string]bool{
	"hislip0": true,
	"hislip1": true,
}

// handleConn reads the first message off a freshly accepted connection and
// routes it per §4.2: Initialize starts a new session as the sync side,
// AsyncInitialize attaches as the async side of an existing session.
// Anything else, or an invalid handshake, gets a fatal reply and the
// connection is closed.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in connection handler",
				"remote_addr", conn.RemoteAddr().String(),
				"error", r,
				"stack", string(debug.Stack()))
		}
	}()

	clientIP, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	lc := logger.NewLogContext(clientIP)
	ctx = logger.WithContext(ctx, lc)

	msg, err := wire.ReadMessage(conn, s.cfg.effectiveMaxMessageSize())
	if err != nil {
		logger.InfoCtx(ctx, "handshake read failed", "error", err)
		return
	}

	switch msg.Header.Type {
	case wire.TypeInitialize:
		s.handleInitialize(ctx, conn, msg)
	case wire.TypeAsyncInitialize:
		s.handleAsyncInitialize(ctx, conn, msg)
	default:
		logger.InfoCtx(ctx, "non-handshake first message", "type", msg.Header.Type.String())
		writeFatal(conn, "handshake", s.metrics, wire.FatalInvalidInitialization)
	}
}

func (c Config) effectiveMaxMessageSize() uint64 {
	if c.MaxMessageSize == 0 {
		return 1024
	}
	return c.MaxMessageSize
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// handleInitialize implements the sync-side opening handshake.
func (s *Server) handleInitialize(ctx context.Context, conn net.Conn, msg wire.Message) {
	subAddress := strings.TrimRight(string(msg.Payload), "\x00")
	if !isASCII(subAddress) || !knownSubAddresses[subAddress] {
		logger.InfoCtx(ctx, "unknown sub-address", "sub_address", subAddress)
		writeFatal(conn, "handshake", s.metrics, wire.FatalInvalidInitialization)
		return
	}

	var param wire.InitializeParameter
	param.Decode(msg.Header.Parameter)

	negotiatedMajor := s.cfg.ProtocolMajor
	negotiatedMinor := minUint16(param.ProtocolMinorVersion, uint16(s.cfg.ProtocolMinor))

	shared := session.NewShared(0, session.Protocol{Major: negotiatedMajor, Minor: uint8(negotiatedMinor)}, s.cfg.PreferredMode, s.cfg.effectiveMaxMessageSize())
	handle := s.lock.NewHandle()

	id, err := s.registry.Allocate(shared, handle)
	if err != nil {
		logger.WarnCtx(ctx, "session id space exhausted")
		writeFatal(conn, "handshake", s.metrics, wire.FatalMaximumClientsExceeded)
		return
	}
	shared.SetID(id)

	lc := logger.FromContext(ctx).WithChannel("sync").WithSession(id)
	ctx = logger.WithContext(ctx, lc)

	var respParam wire.InitializeResponseParameter
	respParam.ProtocolMinorVersion = negotiatedMinor
	respParam.SessionID = id

	var respControl wire.InitializeResponseControl
	respControl.Overlapped = s.cfg.PreferredMode == session.Overlapped
	respControl.EncryptionSupport = false
	respControl.InitialEncryption = s.cfg.InitialEncryption

	if err := wire.WriteMessage(conn, wire.Header{
		Type:      wire.TypeInitializeResponse,
		Control:   respControl.Encode(),
		Parameter: respParam.Encode(),
	}, nil); err != nil {
		logger.InfoCtx(ctx, "write InitializeResponse failed", "error", err)
		s.registry.Release(id)
		return
	}

	remote := lock.NewRemoteLockHandle(handle)
	sc := &syncChannel{
		server: s,
		conn:   conn,
		shared: shared,
		remote: remote,
	}
	s.metrics.SessionEstablished()
	defer s.metrics.SessionDestroyed()
	logger.InfoCtx(ctx, "session established (sync)", "sub_address", subAddress, "trace_id", shared.TraceID())
	sc.run(ctx)
}

// handleAsyncInitialize implements the async-side opening handshake.
func (s *Server) handleAsyncInitialize(ctx context.Context, conn net.Conn, msg wire.Message) {
	id := uint16(msg.Header.Parameter)

	shared, handle, ok := s.registry.Lookup(id)
	if !ok {
		logger.InfoCtx(ctx, "async initialize for unknown session", "session_id", id)
		writeFatal(conn, "handshake", s.metrics, wire.FatalInvalidInitialization)
		return
	}
	if shared.AsyncConnected() {
		logger.InfoCtx(ctx, "async initialize for already-attached session", "session_id", id)
		writeFatal(conn, "handshake", s.metrics, wire.FatalInvalidInitialization)
		return
	}
	shared.SetAsyncConnected()

	lc := logger.FromContext(ctx).WithChannel("async").WithSession(id)
	ctx = logger.WithContext(ctx, lc)

	var respParam wire.AsyncInitializeResponseParameter
	respParam.ServerVendorID = uint32(s.cfg.VendorID)

	var respControl wire.AsyncInitializeResponseControl
	respControl.EncryptionMandatory = s.cfg.EncryptionMandatory

	if err := wire.WriteMessage(conn, wire.Header{
		Type:      wire.TypeAsyncInitializeResponse,
		Control:   respControl.Encode(),
		Parameter: respParam.Encode(),
	}, nil); err != nil {
		logger.InfoCtx(ctx, "write AsyncInitializeResponse failed", "error", err)
		return
	}

	remote := lock.NewRemoteLockHandle(handle)
	ac := &asyncChannel{
		server: s,
		conn:   conn,
		shared: shared,
		remote: remote,
	}
	logger.InfoCtx(ctx, "session attached (async)", "session_id", id)
	ac.run(ctx)

	s.registry.Release(id)
}

func minUint16(a, b uint16) uint16 {
	if a < b {
		return a
	}
	return b
}

// deviceClearCompleteTimeout bounds how long DeviceClearComplete waits for the async
// side's clear token, per §4.4.
const deviceClearCompleteTimeout = 10 * time.Second
