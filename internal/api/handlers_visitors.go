// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nktu/gatekeeper/internal/database"
	"github.com/nktu/gatekeeper/internal/logging"
	"github.com/nktu/gatekeeper/internal/metrics"
	"github.com/nktu/gatekeeper/internal/models"
)

// createAttempts is how often registration retries a fresh visitor
// code after a unique constraint collision.
const createAttempts = 3

// deliveryTimeout bounds the post-decision follow-up: pass rendering
// (navigation + ready waits), upload, and the visitor email.
const deliveryTimeout = 2 * time.Minute

// Register handles POST /visitors/register.
//
// The photo arrives as base64 inside the JSON body and is uploaded to
// object storage before the record is created; a failed upload aborts
// registration. The host approval email is best-effort.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterVisitorRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		metrics.VisitorRegistrations.WithLabelValues("validation_failed").Inc()
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err)
		return
	}

	if apiErr := validateRequest(&req); apiErr != nil {
		metrics.VisitorRegistrations.WithLabelValues("validation_failed").Inc()
		respondJSON(w, http.StatusBadRequest, &models.APIResponse{
			Status:   "error",
			Metadata: models.Metadata{Timestamp: time.Now()},
			Error:    apiErr,
		})
		return
	}

	photo, contentType, err := decodePhoto(req.Photo)
	if err != nil {
		metrics.VisitorRegistrations.WithLabelValues("validation_failed").Inc()
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "photo must be valid base64 image data", err)
		return
	}

	photoURL, err := h.objects.Upload(r.Context(), h.config.Storage.PhotoPrefix, photoFileName(req.Name, contentType), photo, contentType)
	if err != nil {
		metrics.VisitorRegistrations.WithLabelValues("upload_failed").Inc()
		respondError(w, http.StatusInternalServerError, "PHOTO_UPLOAD_FAILED", "Photo upload failed", err)
		return
	}

	v, err := h.createVisitor(r.Context(), &req, photoURL)
	if err != nil {
		metrics.VisitorRegistrations.WithLabelValues("db_error").Inc()
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create visitor", err)
		return
	}
	metrics.VisitorRegistrations.WithLabelValues("created").Inc()

	// Best-effort: the visitor can still be approved from the admin
	// listing if the host mail never arrives.
	if err := h.notifier.SendApprovalRequest(r.Context(), v); err != nil {
		logging.Warn().Err(err).Str("visitor_id", v.ID).Msg("Failed to send host approval request")
	}

	logging.Info().
		Str("visitor_id", v.ID).
		Str("visitor_code", v.VisitorCode).
		Str("host_email", sanitizeLogValue(v.HostEmail)).
		Msg("Visitor registered")

	respondSuccess(w, http.StatusCreated, v)
}

// createVisitor builds and persists the record, retrying with a fresh
// visitor code when the unique constraint fires.
func (h *Handler) createVisitor(ctx context.Context, req *models.RegisterVisitorRequest, photoURL string) (*models.VisitorRecord, error) {
	now := time.Now()

	laptop := req.Laptop
	if laptop == "" {
		laptop = "No"
	}

	v := &models.VisitorRecord{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Email:          req.Email,
		Mobile:         req.Mobile,
		NationalID:     req.NationalID,
		Purpose:        req.Purpose,
		ToMeet:         req.ToMeet,
		OtherPerson:    req.OtherPerson,
		PersonType:     req.PersonType,
		CompanyName:    req.CompanyName,
		GateNumber:     req.GateNumber,
		Laptop:         laptop,
		VehicleNumber:  req.VehicleNumber,
		HostEmail:      req.HostEmail,
		HostPhone:      req.HostPhone,
		PhotoURL:       photoURL,
		Status:         models.StatusPending,
		TokenExpiresAt: now.Add(h.config.Security.ApprovalTokenTTL),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for attempt := 1; ; attempt++ {
		code, err := newVisitorCode(h.config.Security.VisitorCodePrefix, now)
		if err != nil {
			return nil, err
		}
		token, err := newApprovalToken()
		if err != nil {
			return nil, err
		}
		v.VisitorCode = code
		v.ApprovalToken = token

		err = h.store.CreateVisitor(ctx, v)
		if err == nil {
			return v, nil
		}
		if !database.IsUniqueViolation(err) || attempt >= createAttempts {
			return nil, err
		}
		logging.Debug().Str("visitor_code", code).Int("attempt", attempt).Msg("Visitor code collision, retrying")
	}
}

// Decision handles GET /visitors/decision/{token}.
//
// Opened from the host's email client, so every outcome renders a
// small HTML fragment rather than JSON. Exactly one decision wins; a
// second click reports the recorded state.
func (h *Handler) Decision(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	status := models.VisitorStatus(r.URL.Query().Get("status"))

	if !status.Decided() {
		metrics.VisitorDecisions.WithLabelValues("invalid_action").Inc()
		respondHTML(w, http.StatusBadRequest, "<h2>Invalid action</h2>")
		return
	}

	v, err := h.store.GetVisitorByToken(r.Context(), token)
	if err != nil {
		respondHTML(w, http.StatusInternalServerError, "<h2>Server error</h2>")
		return
	}
	if v == nil {
		metrics.VisitorDecisions.WithLabelValues("not_found").Inc()
		respondHTML(w, http.StatusNotFound, "<h2>Visitor not found</h2>")
		return
	}

	// A stale link is a dead end regardless of the record's state: no
	// transition happens here, the countdown endpoint owns expiry.
	if v.TokenExpired(time.Now()) {
		metrics.VisitorDecisions.WithLabelValues("token_expired").Inc()
		respondHTML(w, http.StatusGone, "<h2>Token Expired</h2>")
		return
	}

	won, err := h.store.DecideVisitor(r.Context(), v.ID, status, v.HostEmail, time.Now())
	if err != nil {
		respondHTML(w, http.StatusInternalServerError, "<h2>Server error</h2>")
		return
	}
	if !won {
		// Lost the race (or the link was clicked twice): report
		// whatever decision is on record.
		current, err := h.store.GetVisitorByID(r.Context(), v.ID)
		if err != nil || current == nil {
			respondHTML(w, http.StatusInternalServerError, "<h2>Server error</h2>")
			return
		}
		metrics.VisitorDecisions.WithLabelValues("already_decided").Inc()
		respondHTML(w, http.StatusOK, fmt.Sprintf("<h2>Already %s</h2>", current.Status))
		return
	}

	metrics.VisitorDecisions.WithLabelValues(string(status)).Inc()
	logging.Info().
		Str("visitor_id", v.ID).
		Str("status", string(status)).
		Msg("Visitor decision recorded")

	v.Status = status

	color := "#dc3545"
	if status == models.StatusApproved {
		color = "#28a745"
	}
	respondHTML(w, http.StatusOK, fmt.Sprintf(`
      <div style="font-family: Arial, sans-serif; padding: 30px; text-align: center;">
        <h2>Visitor request <span style="color: %s">%s</span></h2>
        <p>You can now close this window.</p>
      </div>
    `, color, strings.ToUpper(string(status))))

	// The decision is committed and the confirmation is written. The
	// follow-up email and pass chain can take longer than the server's
	// write timeout and must survive the host closing the tab, so it
	// runs on its own deadline, detached from the request context.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), deliveryTimeout)
	defer cancel()

	if status == models.StatusApproved {
		h.deliverPass(ctx, v)
	} else if err := h.notifier.SendRejection(ctx, v); err != nil {
		logging.Warn().Err(err).Str("visitor_id", v.ID).Msg("Failed to send rejection email")
	}
}

// deliverPass renders the gate pass, stores it, records its URL, and
// mails it to the visitor. Each step depends on the previous one;
// failures are logged and the approval itself stands.
func (h *Handler) deliverPass(ctx context.Context, v *models.VisitorRecord) {
	pdf, err := h.passes.Generate(ctx, v)
	if err != nil {
		logging.Error().Err(err).Str("visitor_id", v.ID).Msg("Gate pass generation failed")
		return
	}

	passURL, err := h.objects.Upload(ctx, h.config.Storage.PassPrefix, v.Name+".pdf", pdf, "application/pdf")
	if err != nil {
		logging.Error().Err(err).Str("visitor_id", v.ID).Msg("Gate pass upload failed")
		return
	}

	if err := h.store.SetPassURL(ctx, v.ID, passURL); err != nil {
		logging.Error().Err(err).Str("visitor_id", v.ID).Msg("Failed to record gate pass URL")
		return
	}
	v.PDFURL = passURL

	if err := h.notifier.SendApproval(ctx, v, pdf); err != nil {
		logging.Warn().Err(err).Str("visitor_id", v.ID).Msg("Failed to send approval email")
		return
	}

	logging.Info().Str("visitor_id", v.ID).Str("pdf_url", passURL).Msg("Gate pass delivered")
}

// Status handles GET /visitors/status/{id}, the polling
// endpoint the registration page uses while waiting on the host.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	v, err := h.store.GetVisitorByID(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to fetch visitor", err)
		return
	}
	if v == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Visitor not found", nil)
		return
	}

	respondSuccess(w, http.StatusOK, v.StatusInfo())
}

// Expire handles PUT /visitors/{id}/expire, driven by the
// registration page's countdown timer. The transition is deliberately
// unguarded: an already-decided record is still forced to expired.
func (h *Handler) Expire(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	found, err := h.store.ExpireVisitor(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to expire visitor", err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Visitor not found", nil)
		return
	}

	logging.Info().Str("visitor_id", id).Msg("Visitor expired")
	respondSuccess(w, http.StatusOK, map[string]interface{}{"message": "Visitor expired"})
}

// List handles GET /visitors with an optional ?status= filter,
// newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var status models.VisitorStatus
	if s := r.URL.Query().Get("status"); s != "" {
		status = models.VisitorStatus(s)
		if !status.Valid() {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "status must be one of pending, approved, rejected, expired", nil)
			return
		}
	}

	start := time.Now()
	visitors, err := h.store.ListVisitors(r.Context(), status)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list visitors", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   visitors,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// GetByID handles GET /visitors/{id}, returning the full
// record for the admin detail view.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	v, err := h.store.GetVisitorByID(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to fetch visitor", err)
		return
	}
	if v == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Visitor not found", nil)
		return
	}

	respondSuccess(w, http.StatusOK, v)
}

// Stats handles GET /visitors/stats for the admin dashboard
// summary cards.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetVisitorStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to compute visitor stats", err)
		return
	}
	respondSuccess(w, http.StatusOK, stats)
}

// decodePhoto decodes a base64 photo, accepting an optional
// data:image/...;base64, prefix as sent by canvas.toDataURL().
func decodePhoto(photo string) ([]byte, string, error) {
	contentType := "image/jpeg"

	if strings.HasPrefix(photo, "data:") {
		idx := strings.Index(photo, ",")
		if idx < 0 {
			return nil, "", fmt.Errorf("malformed data URI")
		}
		header := photo[len("data:"):idx]
		mt, _, _ := strings.Cut(header, ";")
		if mt != "" {
			contentType = mt
		}
		photo = photo[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(photo)
	if err != nil {
		return nil, "", fmt.Errorf("invalid base64 photo data: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty photo")
	}
	return data, contentType, nil
}

// photoFileName derives the stored file name from the visitor's name
// and the photo content type.
func photoFileName(name, contentType string) string {
	ext := ".jpg"
	if strings.Contains(contentType, "png") {
		ext = ".png"
	}
	return name + ext
}
