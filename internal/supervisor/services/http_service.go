// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

// Package services holds suture.Service wrappers for the process's
// long-running components.
package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/nktu/gatekeeper/internal/logging"
)

// HTTPServer is the subset of *http.Server the service needs; tests
// substitute a fake.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs an HTTP server under supervision: Serve
// blocks until the server fails or the context is cancelled, then
// shuts the server down gracefully.
type HTTPServerService struct {
	server          HTTPServer
	addr            string
	shutdownTimeout time.Duration
}

// NewHTTPServerService wraps an HTTP server for supervision.
func NewHTTPServerService(server HTTPServer, addr string, shutdownTimeout time.Duration) *HTTPServerService {
	return &HTTPServerService{
		server:          server,
		addr:            addr,
		shutdownTimeout: shutdownTimeout,
	}
}

// Serve implements suture.Service.
func (s *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		logging.Info().Str("addr", s.addr).Msg("HTTP server listening")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("HTTP server failed")
			return err
		}
		return nil

	case <-ctx.Done():
		// Shutdown gets its own deadline: the serve context is
		// already cancelled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		logging.Info().Msg("HTTP server shutting down")
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("HTTP server shutdown failed")
			return err
		}
		return ctx.Err()
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *HTTPServerService) String() string {
	return "http-server(" + s.addr + ")"
}
