// Package admin implements hislipd's operational HTTP surface: liveness,
// Prometheus metrics, and a live-session listing. It is entirely separate
// from the HiSLIP TCP front door and from the out-of-scope LXI HTTP
// identification endpoint.
package admin

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/scpigo/hislipd/internal/logger"
	"github.com/scpigo/hislipd/pkg/session"
)

// Server is the admin/metrics HTTP server.
type Server struct {
	server       *http.Server
	shutdownOnce sync.Once
}

// NewServer builds an admin server bound to addr, backed by registry for the
// /sessions endpoint. Not yet listening until Start is called.
func NewServer(addr string, registry *session.Registry) *Server {
	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      newRouter(registry),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("admin server listening", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errCh <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("admin server failed: %w", err)
	}
}

// Stop initiates graceful shutdown; safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.server.Shutdown(ctx)
	})
	return err
}
