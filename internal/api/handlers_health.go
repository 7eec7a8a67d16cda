// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

package api

import (
	"net/http"
	"time"
)

// HealthLive handles liveness probe requests. Returns 200 OK as long
// as the process is alive, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probe requests. Ready means the
// database answers a ping; mail and storage are best-effort
// dependencies and do not gate readiness.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.store != nil && h.store.Ping(r.Context()) == nil

	statusCode := http.StatusOK
	status := "ready"
	if !dbConnected {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	respondSuccess(w, statusCode, map[string]interface{}{
		"status":             status,
		"database_connected": dbConnected,
		"uptime":             time.Since(h.startTime).Seconds(),
	})
}

// Health handles the summary health endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.store != nil && h.store.Ping(r.Context()) == nil

	status := "healthy"
	if !dbConnected {
		status = "degraded"
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"status":             status,
		"version":            Version,
		"database_connected": dbConnected,
		"uptime":             time.Since(h.startTime).Seconds(),
	})
}

// Version is the reported service version, overridden at build time
// via -ldflags.
var Version = "dev"
