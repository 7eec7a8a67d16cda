// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

// Package supervisor manages long-running services under a suture
// supervision tree, restarting them with backoff when they fail.
package supervisor

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/nktu/gatekeeper/internal/logging"
)

// TreeConfig tunes restart behavior for the supervision tree.
type TreeConfig struct {
	// FailureThreshold is how many failures within the decay window
	// trigger backoff.
	FailureThreshold float64

	// FailureDecay is the failure counter half-life in seconds.
	FailureDecay float64

	// FailureBackoff is how long the supervisor waits before
	// restarting after the threshold trips.
	FailureBackoff time.Duration

	// ShutdownTimeout bounds graceful termination of a service.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns restart settings suited to a small
// service: tolerate transient crashes, back off on crash loops.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the root supervisor for the process.
type Tree struct {
	root *suture.Supervisor
	cfg  TreeConfig
}

// NewTree builds the root supervisor with suture events routed into
// the structured logger.
func NewTree(cfg TreeConfig) *Tree {
	hook := (&sutureslog.Handler{
		Logger: logging.NewSlogLogger(),
	}).MustHook()

	root := suture.New("gatekeeper", suture.Spec{
		EventHook:        hook,
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})

	return &Tree{root: root, cfg: cfg}
}

// Add registers a service with the root supervisor.
func (t *Tree) Add(svc suture.Service) suture.ServiceToken {
	return t.root.Add(svc)
}

// Serve runs the tree until ctx is cancelled, then shuts all services
// down. It blocks; run it from main's final line or a goroutine.
func (t *Tree) Serve(ctx context.Context) error {
	logging.Info().Msg("Supervision tree starting")
	err := t.root.Serve(ctx)
	if err != nil && err != context.Canceled {
		logging.Error().Err(err).Msg("Supervision tree exited with error")
		return err
	}
	logging.Info().Msg("Supervision tree stopped")
	return nil
}
