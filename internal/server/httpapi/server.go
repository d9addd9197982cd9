// Package httpapi exposes the text store over a small REST surface.
// It is built on the standard library mux; the interesting decisions
// (tiering, gating, one-time reads) all live in the services layer.
package httpapi

import (
	"context"
	"net/http"
	"time"
)

// Server wraps net/http.Server with sane timeouts.
type Server struct {
	httpServer *http.Server
}

// NewServer builds a server listening on addr and serving handler.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
	}
}

// ListenAndServe starts serving and blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
