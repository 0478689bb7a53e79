package server

import (
	"context"
	"encoding/binary"
	"net"
	"strings"
	"time"

	"github.com/scpigo/hislipd/internal/logger"
	"github.com/scpigo/hislipd/internal/telemetry"
	"github.com/scpigo/hislipd/pkg/device"
	"github.com/scpigo/hislipd/pkg/lock"
	"github.com/scpigo/hislipd/pkg/session"
	"github.com/scpigo/hislipd/pkg/wire"
)

// asyncChannel drives the async side of one HiSLIP session: locking,
// remote/local, status queries, device-clear, maximum-message-size
// negotiation, and service-request delivery.
type asyncChannel struct {
	server *Server
	conn   net.Conn
	shared *session.Shared
	remote *lock.RemoteLockHandle
}

// run is the async handler's main loop: read the next frame, or deliver a
// pending status event, whichever is ready first. Per §4.3, a message read
// already in flight when a status event fires must still be completed
// before the status event is handled, since abandoning a partial frame
// desynchronizes the stream; readMessage below always runs to completion
// once started, so the race is only ever "which starts first."
func (a *asyncChannel) run(ctx context.Context) {
	sub := a.server.status.Subscribe()
	if sub == nil {
		return
	}
	defer sub.Close()

	msgCh := make(chan wire.Message, 1)
	errCh := make(chan error, 1)
	go a.readLoop(msgCh, errCh)

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			if !a.dispatch(ctx, msg) {
				return
			}
		case err := <-errCh:
			logger.InfoCtx(ctx, "async channel closing", "error", err)
			return
		case status, ok := <-sub.C():
			if !ok {
				return
			}
			if !a.shared.ServiceRequestPosted() {
				a.shared.SetServiceRequestPosted(true)
				if err := wire.WriteMessage(a.conn, wire.Header{
					Type:      wire.TypeAsyncServiceRequest,
					Parameter: uint32(status),
				}, nil); err != nil {
					logger.InfoCtx(ctx, "write AsyncServiceRequest failed", "error", err)
					return
				}
			}
		}
	}
}

// readLoop feeds frames from the connection into msgCh, one at a time,
// never abandoning a read mid-frame; it blocks on the next read until the
// consumer (run's select) has taken the previous message.
func (a *asyncChannel) readLoop(msgCh chan<- wire.Message, errCh chan<- error) {
	for {
		msg, err := wire.ReadMessage(a.conn, a.shared.MaxMessageSize())
		if err != nil {
			errCh <- err
			return
		}
		msgCh <- msg
	}
}

// dispatch handles one async-channel message. Returns false if the
// connection should be closed (fatal error sent, or read loop done).
func (a *asyncChannel) dispatch(ctx context.Context, msg wire.Message) bool {
	a.server.metrics.MessageProcessed("async", msg.Header.Type.String())

	ctx, span := telemetry.StartDispatchSpan(ctx, "async", a.shared.ID(), msg.Header.Type.String())
	defer span.End()

	switch msg.Header.Type {
	case wire.TypeAsyncLock:
		return a.handleAsyncLock(ctx, msg)
	case wire.TypeAsyncRemoteLocalControl:
		return a.handleRemoteLocal(ctx, msg)
	case wire.TypeAsyncMaximumMessageSize:
		return a.handleMaxMessageSize(ctx, msg)
	case wire.TypeAsyncDeviceClear:
		return a.handleAsyncDeviceClear(ctx, msg)
	case wire.TypeAsyncStatusQuery:
		return a.handleStatusQuery(ctx, msg)
	case wire.TypeAsyncLockInfo:
		return a.handleLockInfo(ctx, msg)
	case wire.TypeAsyncStartTLS, wire.TypeAsyncEndTLS:
		writeFatal(a.conn, "async", a.server.metrics, wire.FatalSecureConnectionFailed)
		return false
	case wire.TypeError, wire.TypeFatalError:
		logPeerError(msg)
		return msg.Header.Type != wire.TypeFatalError
	default:
		if msg.Header.Type >= wire.VendorSpecificMin {
			return writeNonFatal(a.conn, "async", a.server.metrics, wire.NonFatalUnrecognizedVendorDefinedMessage) == nil
		}
		return writeNonFatal(a.conn, "async", a.server.metrics, wire.NonFatalUnrecognizedMessageType) == nil
	}
}

func (a *asyncChannel) handleAsyncLock(ctx context.Context, msg wire.Message) bool {
	if msg.Header.Control == 0 {
		var control uint8
		switch a.remote.Handle().Release() {
		case lock.ReleasedExclusive:
			control = wire.ReleaseLockSuccessExclusive
		case lock.ReleasedShared:
			control = wire.ReleaseLockSuccessShared
		default:
			control = wire.ReleaseLockError
		}
		return wire.WriteMessage(a.conn, wire.Header{Type: wire.TypeAsyncLockResponse, Control: control}, nil) == nil
	}

	key := strings.TrimRight(string(msg.Payload), "\x00")
	timeoutMs := msg.Header.Parameter

	acquireCtx := ctx
	var cancel context.CancelFunc
	if timeoutMs > 0 {
		acquireCtx, cancel = context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
		defer cancel()
	} else {
		var immediateCancel context.CancelFunc
		acquireCtx, immediateCancel = context.WithCancel(ctx)
		immediateCancel()
	}

	var err error
	if key == "" {
		err = a.remote.Handle().AcquireExclusive(acquireCtx)
	} else {
		err = a.remote.Handle().AcquireShared(acquireCtx, key)
	}

	var control uint8
	switch {
	case err == nil:
		control = wire.RequestLockSuccess
	case err == lock.ErrAborted || err == context.DeadlineExceeded || err == context.Canceled:
		control = wire.RequestLockFailure
	default:
		control = wire.RequestLockError
	}

	return wire.WriteMessage(a.conn, wire.Header{Type: wire.TypeAsyncLockResponse, Control: control}, nil) == nil
}

func (a *asyncChannel) handleRemoteLocal(ctx context.Context, msg wire.Message) bool {
	var err error
	dev := a.server.device

	switch msg.Header.Control {
	case 0:
		a.shared.SetEnableRemote(false)
		err = dev.SetLocalLockout(ctx, false)
		if err == nil {
			err = dev.SetRemote(ctx, false)
		}
	case 1:
		a.shared.SetEnableRemote(true)
	case 2:
		a.shared.SetEnableRemote(false)
		err = dev.SetLocalLockout(ctx, false)
		if err == nil {
			err = dev.SetRemote(ctx, false)
		}
	case 3:
		a.shared.SetEnableRemote(true)
		err = dev.SetRemote(ctx, false)
	case 4:
		a.shared.SetEnableRemote(true)
		err = dev.SetLocalLockout(ctx, true)
	case 5:
		a.shared.SetEnableRemote(true)
		err = dev.SetLocalLockout(ctx, true)
		if err == nil {
			err = dev.SetRemote(ctx, true)
		}
	case 6:
		err = dev.SetRemote(ctx, false)
	default:
		return writeNonFatal(a.conn, "async", a.server.metrics, wire.NonFatalUnrecognizedControlCode) == nil
	}

	if err != nil {
		if device.IsNotSupported(err) {
			return writeNonFatal(a.conn, "async", a.server.metrics, wire.NonFatalUnrecognizedControlCode) == nil
		}
		return writeNonFatal(a.conn, "async", a.server.metrics, wire.NonFatalUnidentifiedError) == nil
	}

	return wire.WriteMessage(a.conn, wire.Header{Type: wire.TypeAsyncRemoteLocalResponse}, nil) == nil
}

func (a *asyncChannel) handleMaxMessageSize(ctx context.Context, msg wire.Message) bool {
	if len(msg.Payload) != 8 {
		writeFatal(a.conn, "async", a.server.metrics, wire.FatalUnidentifiedError)
		return false
	}
	clientMax := binary.BigEndian.Uint64(msg.Payload)
	a.shared.SetMaxMessageSize(clientMax)

	var payload [8]byte
	binary.BigEndian.PutUint64(payload[:], a.server.cfg.effectiveMaxMessageSize())
	return wire.WriteMessage(a.conn, wire.Header{Type: wire.TypeAsyncMaximumMessageSizeResponse}, payload[:]) == nil
}

func (a *asyncChannel) handleAsyncDeviceClear(ctx context.Context, msg wire.Message) bool {
	a.shared.SignalClear()

	var bitmap uint8
	if a.shared.Mode() == session.Overlapped {
		bitmap |= wire.FeatureOverlapped
	}
	return wire.WriteMessage(a.conn, wire.Header{Type: wire.TypeAsyncDeviceClearAcknowledge, Control: bitmap}, nil) == nil
}

func (a *asyncChannel) handleStatusQuery(ctx context.Context, msg wire.Message) bool {
	requestedID := msg.Header.Parameter

	release, err := a.remote.AsyncLock(ctx)
	if err != nil {
		return writeNonFatal(a.conn, "async", a.server.metrics, wire.NonFatalUnidentifiedError) == nil
	}
	defer release()

	if a.shared.EnableRemote() {
		_ = a.server.device.SetRemote(ctx, true)
	}

	stb, err := a.server.device.Status(ctx)
	if err != nil {
		return writeNonFatal(a.conn, "async", a.server.metrics, wire.NonFatalUnidentifiedError) == nil
	}

	if a.shared.MessageAvailable(requestedID) {
		stb |= 1 << 4
	}

	a.shared.SetServiceRequestPosted(false)

	return wire.WriteMessage(a.conn, wire.Header{Type: wire.TypeAsyncStatusResponse, Parameter: uint32(stb)}, nil) == nil
}

func (a *asyncChannel) handleLockInfo(ctx context.Context, msg wire.Message) bool {
	h := a.remote.Handle()
	var control uint8
	if h.HasExclusive() {
		control = 1
	}
	return wire.WriteMessage(a.conn, wire.Header{
		Type:      wire.TypeAsyncLockInfoResponse,
		Control:   control,
		Parameter: uint32(h.SharedCount()),
	}, nil) == nil
}
