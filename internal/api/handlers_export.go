// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/nktu/gatekeeper/internal/logging"
	"github.com/nktu/gatekeeper/internal/models"
)

// Export handles GET /visitors/export, streaming all visitor records
// as a CSV attachment for the admin dashboard.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	visitors, err := h.store.ListVisitors(r.Context(), "")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list visitors", err)
		return
	}

	filename := fmt.Sprintf("visitors-%s.csv", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	header := []string{
		"visitor_code", "name", "email", "mobile", "national_id",
		"purpose", "to_meet", "other_person", "person_type", "company_name",
		"gate_number", "laptop", "vehicle_number", "host_email", "host_phone",
		"status", "decision_at", "approved_by", "pdf_url", "created_at",
	}
	if err := cw.Write(header); err != nil {
		logging.Error().Err(err).Msg("Failed to write CSV header")
		return
	}

	for i := range visitors {
		if err := cw.Write(csvRow(&visitors[i])); err != nil {
			logging.Error().Err(err).Msg("Failed to write CSV row")
			return
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		logging.Error().Err(err).Msg("Failed to flush CSV export")
		return
	}

	logging.Info().Int("records", len(visitors)).Msg("Visitor CSV export served")
}

func csvRow(v *models.VisitorRecord) []string {
	decisionAt := ""
	if v.DecisionAt != nil {
		decisionAt = v.DecisionAt.Format(time.RFC3339)
	}
	return []string{
		v.VisitorCode, v.Name, v.Email, v.Mobile, v.NationalID,
		v.Purpose, v.ToMeet, v.OtherPerson, v.PersonType, v.CompanyName,
		strconv.Itoa(v.GateNumber), v.Laptop, v.VehicleNumber, v.HostEmail, v.HostPhone,
		string(v.Status), decisionAt, v.ApprovedBy, v.PDFURL, v.CreatedAt.Format(time.RFC3339),
	}
}
