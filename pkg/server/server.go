// Package server implements the HiSLIP front door: a single TCP listener
// that routes each accepted connection to either "start a new session as
// sync" or "attach as async to an existing session" based on its first
// message, then runs the matching channel handler.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/scpigo/hislipd/internal/logger"
	"github.com/scpigo/hislipd/internal/metrics"
	"github.com/scpigo/hislipd/pkg/device"
	"github.com/scpigo/hislipd/pkg/lock"
	"github.com/scpigo/hislipd/pkg/session"
)

// Config carries the server-side knobs recognized per the spec's
// configuration surface (vendor id, negotiated sizes, preferred mode,
// encryption policy, IDN fast path).
type Config struct {
	VendorID            uint16
	MaxMessageSize      uint64
	PreferredMode       session.Mode
	EncryptionMandatory bool
	InitialEncryption   bool
	ShortIDN            string
	ProtocolMajor       uint8
	ProtocolMinor       uint8
}

// Server owns the listener, the device under control, its shared lock, the
// status broadcaster feeding every async channel, and the registry mapping
// session ids to their live Shared record and LockHandle.
type Server struct {
	cfg      Config
	device   device.Device
	lock     *lock.SharedLock
	status   *session.Broadcaster
	registry *session.Registry
	metrics  *metrics.Hislip

	listener net.Listener

	wg sync.WaitGroup
}

// New constructs a Server bound to dev, not yet listening.
func New(cfg Config, dev device.Device) *Server {
	return &Server{
		cfg:      cfg,
		device:   dev,
		lock:     lock.NewSharedLock(),
		status:   session.NewBroadcaster(),
		registry: session.NewRegistry(),
		metrics:  metrics.NewHislip(),
	}
}

// ListenAndServe listens on addr and accepts connections until ctx is
// cancelled or the listener fails. It blocks until every spawned connection
// handler has returned.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln

	logger.Info("hislip server listening", "address", addr)

	go func() {
		<-ctx.Done()
		s.status.Shutdown()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				logger.Error("accept failed", "error", err)
				s.wg.Wait()
				return err
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// Shutdown waits for all connection handlers spawned by ListenAndServe to
// return. Callers typically cancel the context passed to ListenAndServe
// first.
func (s *Server) Shutdown() {
	s.wg.Wait()
}

// Registry exposes the session registry for the admin surface's session
// listing.
func (s *Server) Registry() *session.Registry {
	return s.registry
}
