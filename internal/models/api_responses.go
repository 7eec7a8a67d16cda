// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

package models

import (
	"time"
)

// APIResponse is the standardized response wrapper used by all JSON
// endpoints. HTML endpoints (the decision confirmation page) do not
// use it.
//
// Status field values:
//   - "success": request completed, see Data
//   - "error": request failed, see Error
//
// Example:
//
//	{
//	  "status": "success",
//	  "data": {"_id": "…", "status": "pending"},
//	  "metadata": {"timestamp": "2026-09-01T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError carries structured error details.
//
// Error codes used by the service:
//   - VALIDATION_ERROR: invalid input
//   - NOT_FOUND: resource does not exist
//   - PHOTO_UPLOAD_FAILED: object storage rejected the visitor photo
//   - AUTHENTICATION_ERROR: invalid admin credentials
//   - DATABASE_ERROR: query execution failure
//   - RATE_LIMIT_EXCEEDED: too many requests
//   - INTERNAL_ERROR: unexpected failure
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
