// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

package api

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/nktu/gatekeeper/internal/config"
	"github.com/nktu/gatekeeper/internal/logging"
)

// Per-group rate limit profiles. Registration and login are strict to
// block abuse of the public form and brute forcing; status polling is
// permissive because the registration page polls every few seconds
// while waiting on the host.
type rateLimitConfig struct {
	Requests int
	Window   time.Duration
}

var (
	rateLimitRegister = rateLimitConfig{Requests: 10, Window: time.Minute}
	rateLimitLogin    = rateLimitConfig{Requests: 5, Window: 5 * time.Minute}
	rateLimitStatus   = rateLimitConfig{Requests: 600, Window: time.Minute}
)

// ChiMiddleware provides Chi-compatible middleware factories built
// from the security configuration.
type ChiMiddleware struct {
	cfg  *config.SecurityConfig
	cors func(http.Handler) http.Handler
}

// NewChiMiddleware creates the middleware factory.
func NewChiMiddleware(cfg *config.SecurityConfig) *ChiMiddleware {
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	})

	return &ChiMiddleware{cfg: cfg, cors: corsHandler}
}

// CORS returns the CORS middleware built from configured origins.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns the default per-IP rate limiter.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	return m.limit(rateLimitConfig{Requests: m.cfg.RateLimitReqs, Window: m.cfg.RateLimitWindow})
}

// RateLimitRegister is the strict limiter for the public registration
// form.
func (m *ChiMiddleware) RateLimitRegister() func(http.Handler) http.Handler {
	return m.limit(rateLimitRegister)
}

// RateLimitLogin is the strict limiter for admin login attempts.
func (m *ChiMiddleware) RateLimitLogin() func(http.Handler) http.Handler {
	return m.limit(rateLimitLogin)
}

// RateLimitStatus is the permissive limiter for status polling.
func (m *ChiMiddleware) RateLimitStatus() func(http.Handler) http.Handler {
	return m.limit(rateLimitStatus)
}

func (m *ChiMiddleware) limit(cfg rateLimitConfig) func(http.Handler) http.Handler {
	if m.cfg.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(rateLimitExceeded),
	)
}

// rateLimitExceeded keeps the 429 response in the standard error
// envelope.
func rateLimitExceeded(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many requests, slow down", nil)
}

// RequestIDWithLogging adds an X-Request-ID header and threads the ID
// through the logging context for request tracing.
func RequestIDWithLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		chiRequestID := chimiddleware.RequestID(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = logging.GenerateRequestID()
				r.Header.Set("X-Request-ID", requestID)
			}
			w.Header().Set("X-Request-ID", requestID)

			ctx := logging.ContextWithRequestID(r.Context(), requestID)
			chiRequestID.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SecurityHeaders adds standard security headers to API responses.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
