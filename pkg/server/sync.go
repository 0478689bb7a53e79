package server

import (
	"bytes"
	"context"
	"net"
	"time"

	"github.com/scpigo/hislipd/internal/logger"
	"github.com/scpigo/hislipd/internal/telemetry"
	"github.com/scpigo/hislipd/pkg/lock"
	"github.com/scpigo/hislipd/pkg/session"
	"github.com/scpigo/hislipd/pkg/wire"
)

// syncChannel drives the sync side of one HiSLIP session: data, triggers,
// and device-clear completion.
type syncChannel struct {
	server *Server
	conn   net.Conn
	shared *session.Shared
	remote *lock.RemoteLockHandle

	buffer bytes.Buffer
}

func (sc *syncChannel) run(ctx context.Context) {
	defer sc.remote.Handle().Release()

	for {
		msg, err := wire.ReadMessage(sc.conn, sc.shared.MaxMessageSize())
		if err != nil {
			logger.InfoCtx(ctx, "sync channel closing", "error", err)
			return
		}
		if !sc.dispatch(ctx, msg) {
			return
		}
	}
}

func (sc *syncChannel) dispatch(ctx context.Context, msg wire.Message) bool {
	sc.server.metrics.MessageProcessed("sync", msg.Header.Type.String())

	ctx, span := telemetry.StartDispatchSpan(ctx, "sync", sc.shared.ID(), msg.Header.Type.String())
	defer span.End()

	switch msg.Header.Type {
	case wire.TypeData, wire.TypeDataEnd:
		return sc.handleData(ctx, msg)
	case wire.TypeTrigger:
		return sc.handleTrigger(ctx, msg)
	case wire.TypeDeviceClearComplete:
		return sc.handleDeviceClearComplete(ctx, msg)
	case wire.TypeStartTLS, wire.TypeEndTLS,
		wire.TypeGetSaslMechanismList, wire.TypeAuthenticationStart, wire.TypeAuthenticationExchange:
		writeFatal(sc.conn, "sync", sc.server.metrics, wire.FatalSecureConnectionFailed)
		return false
	case wire.TypeError, wire.TypeFatalError:
		logPeerError(msg)
		return msg.Header.Type != wire.TypeFatalError
	default:
		if msg.Header.Type >= wire.VendorSpecificMin {
			return writeNonFatal(sc.conn, "sync", sc.server.metrics, wire.NonFatalUnrecognizedVendorDefinedMessage) == nil
		}
		return writeNonFatal(sc.conn, "sync", sc.server.metrics, wire.NonFatalUnidentifiedError) == nil
	}
}

// lockDeviceOrClear races AsyncLock against the session's clear channel,
// per the device-clear interlock in §4.4: a clear arriving while queued for
// the device aborts the wait so the sync loop can resynchronize instead of
// touching the device. A watcher goroutine cancels a derived context as
// soon as the clear token arrives, so AsyncLock's own wait loop (which
// already selects on ctx.Done) unwinds instead of being abandoned.
func (sc *syncChannel) lockDeviceOrClear(ctx context.Context) (release func(), cleared bool, err error) {
	lockCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchDone := make(chan struct{})
	clearSeen := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case <-sc.shared.ClearChannel():
			close(clearSeen)
			cancel()
		case <-lockCtx.Done():
		}
	}()

	start := time.Now()
	release, err = sc.remote.AsyncLock(lockCtx)
	sc.server.metrics.ObserveLockWait(time.Since(start).Seconds(), time.Since(start) > time.Millisecond)
	<-watchDone

	select {
	case <-clearSeen:
		if release != nil {
			release()
		}
		return nil, true, nil
	default:
	}

	return release, false, err
}

func (sc *syncChannel) handleData(ctx context.Context, msg wire.Message) bool {
	if sc.shared.State() == session.Handshake {
		writeFatal(sc.conn, "sync", sc.server.metrics, wire.FatalAttemptUseWithoutBothChannels)
		return false
	}

	release, cleared, err := sc.lockDeviceOrClear(ctx)
	if cleared {
		sc.buffer.Reset()
		sc.acknowledgeClear()
		return true
	}
	if err != nil {
		return writeNonFatal(sc.conn, "sync", sc.server.metrics, wire.NonFatalUnidentifiedError) == nil
	}
	defer release()

	sc.buffer.Write(msg.Payload)
	sc.shared.SetReadMessageID(msg.Header.Parameter)
	sc.server.metrics.DataBytes("in", len(msg.Payload))

	if msg.Header.Type == wire.TypeData {
		return true
	}

	command := sc.buffer.Bytes()
	sc.buffer.Reset()

	response, err := sc.execute(ctx, command)
	if err != nil {
		return writeNonFatal(sc.conn, "sync", sc.server.metrics, wire.NonFatalUnidentifiedError) == nil
	}

	return sc.sendChunked(ctx, response)
}

// execute runs command through the device, honoring the configured IDN
// fast path for "*IDN?" (with or without a trailing newline) instead of
// reaching the device.
func (sc *syncChannel) execute(ctx context.Context, command []byte) ([]byte, error) {
	trimmed := bytes.TrimRight(command, "\n")
	if sc.server.cfg.ShortIDN != "" && string(trimmed) == "*IDN?" {
		return []byte(sc.server.cfg.ShortIDN), nil
	}
	return sc.server.device.Execute(ctx, command)
}

// sendChunked writes response as a sequence of Data messages, the last
// marked DataEnd, each no larger than the negotiated max message size.
// Aborts mid-send if a clear token arrives.
func (sc *syncChannel) sendChunked(ctx context.Context, response []byte) bool {
	maxSize := sc.shared.MaxMessageSize()
	if maxSize == 0 {
		maxSize = 1024
	}

	offset := 0
	for {
		select {
		case <-sc.shared.ClearChannel():
			sc.acknowledgeClear()
			return true
		default:
		}

		end := offset + int(maxSize)
		last := end >= len(response)
		if last {
			end = len(response)
		}

		msgType := wire.TypeData
		if last {
			msgType = wire.TypeDataEnd
		}

		sentID := sc.shared.SentMessageID() + 1
		sc.shared.SetSentMessageID(sentID)

		if err := wire.WriteMessage(sc.conn, wire.Header{
			Type:      msgType,
			Parameter: sentID,
		}, response[offset:end]); err != nil {
			return false
		}
		sc.server.metrics.DataBytes("out", end-offset)

		if last {
			return true
		}
		offset = end
	}
}

func (sc *syncChannel) handleTrigger(ctx context.Context, msg wire.Message) bool {
	if sc.shared.State() == session.Handshake {
		writeFatal(sc.conn, "sync", sc.server.metrics, wire.FatalAttemptUseWithoutBothChannels)
		return false
	}

	release, cleared, err := sc.lockDeviceOrClear(ctx)
	if cleared {
		sc.acknowledgeClear()
		return true
	}
	if err != nil {
		return writeNonFatal(sc.conn, "sync", sc.server.metrics, wire.NonFatalUnidentifiedError) == nil
	}
	defer release()

	if err := sc.server.device.Trigger(ctx); err != nil {
		return writeNonFatal(sc.conn, "sync", sc.server.metrics, wire.NonFatalUnidentifiedError) == nil
	}
	return true
}

// acknowledgeClear drains any clear token still pending after a
// mid-operation abort. It sends no message; DeviceClearAcknowledge is sent
// only by handleDeviceClearComplete.
func (sc *syncChannel) acknowledgeClear() {
	select {
	case <-sc.shared.ClearChannel():
	default:
	}
}

func (sc *syncChannel) handleDeviceClearComplete(ctx context.Context, msg wire.Message) bool {
	waitCtx, cancel := context.WithTimeout(ctx, deviceClearCompleteTimeout)
	defer cancel()

	select {
	case <-sc.shared.ClearChannel():
	case <-waitCtx.Done():
		writeFatal(sc.conn, "sync", sc.server.metrics, wire.FatalUnidentifiedError)
		return false
	}

	sc.buffer.Reset()
	sc.shared.SetNormal()

	var clientControl wire.InitializeResponseControl
	clientControl.Decode(msg.Header.Control)

	var agreed wire.InitializeResponseControl
	agreed.Overlapped = clientControl.Overlapped
	agreed.EncryptionSupport = false
	agreed.InitialEncryption = false

	return wire.WriteMessage(sc.conn, wire.Header{
		Type:      wire.TypeDeviceClearAcknowledge,
		Control:   agreed.Encode(),
		Parameter: sc.shared.SentMessageID(),
	}, nil) == nil
}
