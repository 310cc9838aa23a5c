// Package metricsserver exposes the prometheus registry over a plain
// net/http listener when the operator opts in with --metrics-addr. There
// is no live-preview surface to stream (out of scope), so this is a thin
// mux rather than the teacher's websocket-upgrading server.
package metricsserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is an optional HTTP listener serving /metrics.
type Server struct {
	httpServer *http.Server
}

// New constructs a Server bound to addr, not yet listening.
func New(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{httpServer: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start begins serving in the background. The returned error channel
// receives at most one value: the error ListenAndServe exited with, or nil
// if Shutdown caused the exit.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metricsserver: listen: %w", err)
			return
		}
		errCh <- nil
	}()
	return errCh
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
