// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

package api

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestHealthLiveAlwaysOK(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	env.store.pingErr = errors.New("db gone")

	rec := env.do(t, http.MethodGet, "/health/live", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 regardless of dependencies", rec.Code)
	}
}

func TestHealthReady(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/health/ready", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	env.store.pingErr = errors.New("db gone")
	rec = env.do(t, http.MethodGet, "/health/ready", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when DB is down", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not_ready") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHealthSummary(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("body = %q", rec.Body.String())
	}

	env.store.pingErr = errors.New("db gone")
	rec = env.do(t, http.MethodGet, "/health", nil)
	if !strings.Contains(rec.Body.String(), "degraded") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("expected Prometheus runtime metrics")
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/health/live", nil)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}
