// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

// Package api provides the HTTP surface of the service: visitor
// registration, host decisions, status polling, and the admin listing
// endpoints, routed with chi.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nktu/gatekeeper/internal/middleware"
)

// Router wires handlers and middleware into the HTTP route tree.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router.
func NewRouter(handler *Handler, chiMW *ChiMiddleware) *Router {
	return &Router{handler: handler, chiMiddleware: chiMW}
}

// Setup builds the route tree.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(SecurityHeaders())
	r.Use(middleware.PrometheusMetrics)

	r.Route("/visitors", func(r chi.Router) {
		// Public registration, strict rate limit.
		r.With(router.chiMiddleware.RateLimitRegister()).Post("/register", router.handler.Register)

		// Host decision link from the approval email. Token possession
		// is the only auth.
		r.With(router.chiMiddleware.RateLimit()).Get("/decision/{token}", router.handler.Decision)

		// Status polling from the registration page, permissive limit.
		r.With(router.chiMiddleware.RateLimitStatus()).Get("/status/{id}", router.handler.Status)

		// Admin listing surface.
		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())

			r.Get("/", router.handler.List)
			r.Get("/stats", router.handler.Stats)
			r.Get("/export", router.handler.Export)
			r.Get("/{id}", router.handler.GetByID)
			r.Put("/{id}/expire", router.handler.Expire)
		})
	})

	r.Route("/auth", func(r chi.Router) {
		r.With(router.chiMiddleware.RateLimitLogin()).Post("/login", router.handler.Login)
	})

	r.Route("/health", func(r chi.Router) {
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
