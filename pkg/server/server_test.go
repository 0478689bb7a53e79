package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/scpigo/hislipd/pkg/device"
	"github.com/scpigo/hislipd/pkg/session"
	"github.com/scpigo/hislipd/pkg/wire"
)

func startTestServer(t *testing.T) (addr string, stop func()) {
	t.Helper()

	cfg := Config{
		VendorID:       0xABCD,
		MaxMessageSize: 1024,
		PreferredMode:  session.Overlapped,
		ShortIDN:       "HISLIP,test,0,1.0",
		ProtocolMajor:  1,
		ProtocolMinor:  1,
	}
	srv := New(cfg, device.NewDemoDevice("HISLIP,test,0,1.0"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv.listener = ln

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.handleConn(ctx, conn)
		}
	}()

	return ln.Addr().String(), func() {
		cancel()
		_ = ln.Close()
	}
}

func dialAndInitialize(t *testing.T, addr string) (net.Conn, uint16) {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	var param wire.InitializeParameter
	param.ProtocolMinorVersion = 1
	param.VendorID = 0x1234

	if err := wire.WriteMessage(conn, wire.Header{
		Type:      wire.TypeInitialize,
		Parameter: param.Encode(),
	}, []byte("hislip0")); err != nil {
		t.Fatalf("write Initialize: %v", err)
	}

	msg, err := wire.ReadMessage(conn, 1<<20)
	if err != nil {
		t.Fatalf("read InitializeResponse: %v", err)
	}
	if msg.Header.Type != wire.TypeInitializeResponse {
		t.Fatalf("expected InitializeResponse, got %s", msg.Header.Type)
	}

	var resp wire.InitializeResponseParameter
	resp.Decode(msg.Header.Parameter)
	return conn, resp.SessionID
}

func TestServer_TwoChannelHandshake(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	syncConn, sessionID := dialAndInitialize(t, addr)
	defer syncConn.Close()

	asyncConn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial async: %v", err)
	}
	defer asyncConn.Close()

	if err := wire.WriteMessage(asyncConn, wire.Header{
		Type:      wire.TypeAsyncInitialize,
		Parameter: uint32(sessionID),
	}, nil); err != nil {
		t.Fatalf("write AsyncInitialize: %v", err)
	}

	msg, err := wire.ReadMessage(asyncConn, 1<<20)
	if err != nil {
		t.Fatalf("read AsyncInitializeResponse: %v", err)
	}
	if msg.Header.Type != wire.TypeAsyncInitializeResponse {
		t.Fatalf("expected AsyncInitializeResponse, got %s", msg.Header.Type)
	}

	var resp wire.AsyncInitializeResponseParameter
	resp.Decode(msg.Header.Parameter)
	if resp.ServerVendorID != 0xABCD {
		t.Fatalf("expected vendor id 0xABCD, got 0x%x", resp.ServerVendorID)
	}
}

func TestServer_DataRoundTripWithIDNShortcut(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	syncConn, sessionID := dialAndInitialize(t, addr)
	defer syncConn.Close()

	asyncConn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial async: %v", err)
	}
	defer asyncConn.Close()

	if err := wire.WriteMessage(asyncConn, wire.Header{
		Type:      wire.TypeAsyncInitialize,
		Parameter: uint32(sessionID),
	}, nil); err != nil {
		t.Fatalf("write AsyncInitialize: %v", err)
	}
	if _, err := wire.ReadMessage(asyncConn, 1<<20); err != nil {
		t.Fatalf("read AsyncInitializeResponse: %v", err)
	}

	// Complete the device-clear handshake to reach Normal state.
	if err := wire.WriteMessage(asyncConn, wire.Header{Type: wire.TypeAsyncDeviceClear}, nil); err != nil {
		t.Fatalf("write AsyncDeviceClear: %v", err)
	}
	if _, err := wire.ReadMessage(asyncConn, 1<<20); err != nil {
		t.Fatalf("read AsyncDeviceClearAcknowledge: %v", err)
	}
	if err := wire.WriteMessage(syncConn, wire.Header{Type: wire.TypeDeviceClearComplete}, nil); err != nil {
		t.Fatalf("write DeviceClearComplete: %v", err)
	}
	if _, err := wire.ReadMessage(syncConn, 1<<20); err != nil {
		t.Fatalf("read DeviceClearAcknowledge: %v", err)
	}

	if err := wire.WriteMessage(syncConn, wire.Header{
		Type:      wire.TypeDataEnd,
		Parameter: 0x1000,
	}, []byte("*IDN?\n")); err != nil {
		t.Fatalf("write DataEnd: %v", err)
	}

	var reply []byte
	for {
		msg, err := wire.ReadMessage(syncConn, 1<<20)
		if err != nil {
			t.Fatalf("read data reply: %v", err)
		}
		reply = append(reply, msg.Payload...)
		if msg.Header.Type == wire.TypeDataEnd {
			break
		}
	}

	if string(reply) != "HISLIP,test,0,1.0" {
		t.Fatalf("expected short IDN reply, got %q", reply)
	}
}
