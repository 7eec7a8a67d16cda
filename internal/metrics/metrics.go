// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

// Package metrics provides Prometheus instrumentation for:
//   - API endpoint latency and throughput
//   - DuckDB query performance
//   - Pass generation (strategy and outcome)
//   - Email delivery and the SMTP circuit breaker
//   - Object storage uploads
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Database metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// Visitor lifecycle metrics
	VisitorRegistrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visitor_registrations_total",
			Help: "Total number of visitor registration attempts",
		},
		[]string{"outcome"}, // "created", "validation_failed", "upload_failed", "db_error"
	)

	VisitorDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visitor_decisions_total",
			Help: "Total number of host decisions applied",
		},
		[]string{"decision"}, // "approved", "rejected", "already_decided", "token_expired", "not_found"
	)

	// Pass generation metrics
	PassGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pass_generations_total",
			Help: "Total number of gate pass generation attempts",
		},
		[]string{"strategy", "outcome"}, // strategy: "browser", "fallback"
	)

	PassGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pass_generation_duration_seconds",
			Help:    "Gate pass generation duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 45},
		},
		[]string{"strategy"},
	)

	// Email metrics
	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total number of transactional email attempts",
		},
		[]string{"template", "outcome"}, // template: "host_request", "visitor_approved", "visitor_rejected"
	)

	// Object storage metrics
	StorageUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_uploads_total",
			Help: "Total number of object storage uploads",
		},
		[]string{"folder", "outcome"},
	)

	StorageUploadBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_upload_bytes_total",
			Help: "Total bytes uploaded to object storage",
		},
		[]string{"folder"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breakers",
		},
		[]string{"name", "outcome"}, // outcome: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Application metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordDBQuery records a database query metric.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordPassGeneration records a pass generation attempt for one
// strategy.
func RecordPassGeneration(strategy string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	PassGenerations.WithLabelValues(strategy, outcome).Inc()
	PassGenerationDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordEmail records a transactional email attempt.
func RecordEmail(template string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	EmailsSent.WithLabelValues(template, outcome).Inc()
}

// RecordStorageUpload records an object storage upload attempt.
func RecordStorageUpload(folder string, size int64, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	} else {
		StorageUploadBytes.WithLabelValues(folder).Add(float64(size))
	}
	StorageUploads.WithLabelValues(folder, outcome).Inc()
}
