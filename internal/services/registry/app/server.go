package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"

	"github.com/louisbranch/soulbound/internal/platform/timeouts"
	"github.com/louisbranch/soulbound/internal/services/registry/api/httpapi"
)

// Server hosts the registry HTTP API and its storage lifecycle.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	runtime    *Runtime
}

// New creates a configured registry server listening on the provided port.
func New(ctx context.Context, port int, cfg RuntimeConfig) (*Server, error) {
	return NewWithAddr(ctx, fmt.Sprintf(":%d", port), cfg)
}

// NewWithAddr creates a configured registry server for the provided address.
func NewWithAddr(ctx context.Context, addr string, cfg RuntimeConfig) (*Server, error) {
	runtime, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		_ = runtime.Close()
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	if runtime.Verifier == nil {
		log.Printf("no caller public key configured; write routes will reject every request")
	}

	return &Server{
		listener: listener,
		httpServer: &http.Server{
			Handler:           httpapi.New(runtime.Registry, runtime.Guard, runtime.Authenticator()),
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
		runtime: runtime,
	}, nil
}

// Authenticator returns the caller verifier, or nil when none is configured.
func (r *Runtime) Authenticator() httpapi.Authenticator {
	if r == nil || r.Verifier == nil {
		return nil
	}
	return r.Verifier
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a registry server until context cancellation.
func Run(ctx context.Context, port int, cfg RuntimeConfig) error {
	server, err := New(ctx, port, cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve handles HTTP requests until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("registry server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown registry server: %v", err)
		}
		err := <-serveErr
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases registry server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.runtime != nil {
		if err := s.runtime.Close(); err != nil {
			log.Printf("close registry store: %v", err)
		}
		s.runtime = nil
	}
}
