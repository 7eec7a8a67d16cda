// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

package api

import (
	"context"
	"encoding/csv"
	"net/http"
	"strings"
	"testing"

	"github.com/nktu/gatekeeper/internal/models"
)

func TestExportServesCSV(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	v := pendingVisitor()
	v.CompanyName = "Acme, Inc." // comma exercises CSV quoting
	env.store.listFn = func(_ context.Context, _ models.VisitorStatus) ([]models.VisitorRecord, error) {
		return []models.VisitorRecord{*v}, nil
	}

	rec := env.do(t, http.MethodGet, "/visitors/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rows, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1 record", len(rows))
	}
	if rows[0][0] != "visitor_code" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != v.VisitorCode {
		t.Errorf("record = %v", rows[1])
	}

	found := false
	for _, cell := range rows[1] {
		if cell == "Acme, Inc." {
			found = true
		}
	}
	if !found {
		t.Error("comma-containing field did not survive the round trip")
	}
}

func TestExportEmpty(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/visitors/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rows, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("rows = %d, want header only", len(rows))
	}
}
