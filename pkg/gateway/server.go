// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/datahive/pkg/logger"
)

const (
	// defaultReadHeaderTimeout prevents slowloris attacks by limiting time
	// to read request headers.
	defaultReadHeaderTimeout = 10 * time.Second
	defaultReadTimeout       = 30 * time.Second
	defaultWriteTimeout      = 60 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultMaxHeaderBytes    = 1 << 20

	// defaultShutdownTimeout is the maximum time to wait for graceful
	// shutdown.
	defaultShutdownTimeout = 10 * time.Second
)

// Server wraps the gateway's http.Server with hardened timeouts and a
// graceful shutdown path.
type Server struct {
	httpServer *http.Server
}

// NewServer creates the gateway server on host:port.
func NewServer(host string, port int, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              net.JoinHostPort(host, fmt.Sprintf("%d", port)),
			Handler:           handler,
			ReadHeaderTimeout: defaultReadHeaderTimeout,
			ReadTimeout:       defaultReadTimeout,
			WriteTimeout:      defaultWriteTimeout,
			IdleTimeout:       defaultIdleTimeout,
			MaxHeaderBytes:    defaultMaxHeaderBytes,
		},
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully. It returns
// once the listener is closed and in-flight requests have drained or the
// shutdown timeout has passed.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	logger.Infof("Starting gateway at %s", listener.Addr())

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-gctx.Done()
		logger.Infof("Shutting down gateway")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
		return nil
	})

	return group.Wait()
}
