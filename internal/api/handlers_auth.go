// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/nktu/gatekeeper/internal/logging"
	"github.com/nktu/gatekeeper/internal/models"
)

// Login handles POST /auth/login. It is a constant-time comparison
// against the configured admin credentials; no session or token is
// issued, the front end only gates its dashboard view on the result.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err)
		return
	}

	if apiErr := validateRequest(&req); apiErr != nil {
		respondJSON(w, http.StatusBadRequest, &models.APIResponse{
			Status:   "error",
			Metadata: models.Metadata{Timestamp: time.Now()},
			Error:    apiErr,
		})
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.config.Security.AdminUsername)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.config.Security.AdminPassword)) == 1
	if !userOK || !passOK {
		logging.Warn().Str("username", sanitizeLogValue(req.Username)).Msg("Admin login rejected")
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "Invalid credentials", nil)
		return
	}

	logging.Info().Str("username", sanitizeLogValue(req.Username)).Msg("Admin login accepted")
	respondSuccess(w, http.StatusOK, map[string]interface{}{"message": "Login successful"})
}
