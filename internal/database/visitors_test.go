// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nktu/gatekeeper/internal/config"
	"github.com/nktu/gatekeeper/internal/models"
)

// newTestDB opens an in-memory DuckDB instance for a single test.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(&config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "256MB",
		Threads:   2,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return db
}

// newTestVisitor returns a pending visitor with unique ID, code, and token.
func newTestVisitor() *models.VisitorRecord {
	now := time.Now().UTC().Truncate(time.Microsecond)
	id := uuid.New().String()
	return &models.VisitorRecord{
		ID:             id,
		VisitorCode:    "NK-2026-" + id[:4],
		Name:           "Ravi Kumar",
		Email:          "ravi@example.com",
		Mobile:         "9876543210",
		NationalID:     "123412341234",
		Purpose:        "Network maintenance",
		ToMeet:         "Anita Sharma",
		PersonType:     models.PersonTypeVendor,
		CompanyName:    "Acme Networks",
		GateNumber:     1,
		Laptop:         "Yes",
		HostEmail:      "anita@nktu.example",
		PhotoURL:       "https://cdn.example.com/visitor-photos/ravi.png",
		Status:         models.StatusPending,
		ApprovalToken:  uuid.New().String(),
		TokenExpiresAt: now.Add(24 * time.Hour),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestCreateAndGetVisitor(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	v := newTestVisitor()
	if err := db.CreateVisitor(ctx, v); err != nil {
		t.Fatalf("CreateVisitor failed: %v", err)
	}

	got, err := db.GetVisitorByID(ctx, v.ID)
	if err != nil {
		t.Fatalf("GetVisitorByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected record, got nil")
	}
	if got.Name != v.Name || got.VisitorCode != v.VisitorCode || got.Status != models.StatusPending {
		t.Errorf("round-trip mismatch: %+v", got)
	}
	if got.ToMeet != "Anita Sharma" {
		t.Errorf("optional field lost: %q", got.ToMeet)
	}
	if got.VehicleNumber != "" || got.PDFURL != "" || got.DecisionAt != nil {
		t.Errorf("empty optionals should stay empty: %+v", got)
	}
}

func TestGetVisitorByIDNotFound(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)

	got, err := db.GetVisitorByID(context.Background(), uuid.New().String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing record, got %+v", got)
	}
}

func TestGetVisitorByToken(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	v := newTestVisitor()
	if err := db.CreateVisitor(ctx, v); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetVisitorByToken(ctx, v.ApprovalToken)
	if err != nil {
		t.Fatalf("GetVisitorByToken failed: %v", err)
	}
	if got == nil || got.ID != v.ID {
		t.Errorf("token lookup failed: %+v", got)
	}

	missing, err := db.GetVisitorByToken(ctx, "no-such-token")
	if err != nil || missing != nil {
		t.Errorf("expected (nil, nil) for unknown token, got (%+v, %v)", missing, err)
	}
}

func TestCreateVisitorCodeCollision(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	v1 := newTestVisitor()
	if err := db.CreateVisitor(ctx, v1); err != nil {
		t.Fatal(err)
	}

	v2 := newTestVisitor()
	v2.VisitorCode = v1.VisitorCode

	err := db.CreateVisitor(ctx, v2)
	if err == nil {
		t.Fatal("expected unique violation for duplicate visitor code")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation should recognize %v", err)
	}
}

func TestDecideVisitor(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	v := newTestVisitor()
	if err := db.CreateVisitor(ctx, v); err != nil {
		t.Fatal(err)
	}

	at := time.Now().UTC().Truncate(time.Microsecond)
	won, err := db.DecideVisitor(ctx, v.ID, models.StatusApproved, v.HostEmail, at)
	if err != nil {
		t.Fatalf("DecideVisitor failed: %v", err)
	}
	if !won {
		t.Fatal("first decision should win")
	}

	got, err := db.GetVisitorByID(ctx, v.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusApproved {
		t.Errorf("status = %q, want approved", got.Status)
	}
	if got.DecisionAt == nil {
		t.Error("decision_at should be set")
	}
	if got.ApprovedBy != v.HostEmail {
		t.Errorf("approved_by = %q, want %q", got.ApprovedBy, v.HostEmail)
	}
}

func TestDecideVisitorAlreadyDecided(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	v := newTestVisitor()
	if err := db.CreateVisitor(ctx, v); err != nil {
		t.Fatal(err)
	}

	at := time.Now().UTC()
	if _, err := db.DecideVisitor(ctx, v.ID, models.StatusRejected, v.HostEmail, at); err != nil {
		t.Fatal(err)
	}

	// A second decision must lose without error.
	won, err := db.DecideVisitor(ctx, v.ID, models.StatusApproved, v.HostEmail, at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if won {
		t.Error("second decision must not win")
	}

	got, _ := db.GetVisitorByID(ctx, v.ID)
	if got.Status != models.StatusRejected {
		t.Errorf("first decision overwritten: %q", got.Status)
	}
}

func TestDecideVisitorConcurrent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	v := newTestVisitor()
	if err := db.CreateVisitor(ctx, v); err != nil {
		t.Fatal(err)
	}

	const racers = 8
	var wg sync.WaitGroup
	wins := make(chan models.VisitorStatus, racers)

	for i := 0; i < racers; i++ {
		status := models.StatusApproved
		if i%2 == 1 {
			status = models.StatusRejected
		}
		wg.Add(1)
		go func(s models.VisitorStatus) {
			defer wg.Done()
			won, err := db.DecideVisitor(ctx, v.ID, s, "host", time.Now().UTC())
			if err != nil {
				t.Errorf("DecideVisitor error: %v", err)
				return
			}
			if won {
				wins <- s
			}
		}(status)
	}
	wg.Wait()
	close(wins)

	var winners []models.VisitorStatus
	for s := range wins {
		winners = append(winners, s)
	}
	if len(winners) != 1 {
		t.Fatalf("exactly one decision must win, got %d", len(winners))
	}

	got, _ := db.GetVisitorByID(ctx, v.ID)
	if got.Status != winners[0] {
		t.Errorf("stored status %q does not match winner %q", got.Status, winners[0])
	}
}

func TestDecideVisitorInvalidStatus(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)

	for _, s := range []models.VisitorStatus{models.StatusPending, models.StatusExpired, "bogus"} {
		if _, err := db.DecideVisitor(context.Background(), "any", s, "", time.Now()); err == nil {
			t.Errorf("expected error for decision status %q", s)
		}
	}
}

func TestSetPassURL(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	v := newTestVisitor()
	if err := db.CreateVisitor(ctx, v); err != nil {
		t.Fatal(err)
	}

	url := "https://cdn.example.com/visitor-passes/pass.pdf"
	if err := db.SetPassURL(ctx, v.ID, url); err != nil {
		t.Fatalf("SetPassURL failed: %v", err)
	}

	got, _ := db.GetVisitorByID(ctx, v.ID)
	if got.PDFURL != url {
		t.Errorf("pdf_url = %q, want %q", got.PDFURL, url)
	}

	if err := db.SetPassURL(ctx, uuid.New().String(), url); err == nil {
		t.Error("expected error for unknown visitor")
	}
}

func TestExpireVisitor(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	v := newTestVisitor()
	if err := db.CreateVisitor(ctx, v); err != nil {
		t.Fatal(err)
	}

	found, err := db.ExpireVisitor(ctx, v.ID)
	if err != nil {
		t.Fatalf("ExpireVisitor failed: %v", err)
	}
	if !found {
		t.Fatal("expected record to be found")
	}

	got, _ := db.GetVisitorByID(ctx, v.ID)
	if got.Status != models.StatusExpired {
		t.Errorf("status = %q, want expired", got.Status)
	}

	found, err = db.ExpireVisitor(ctx, uuid.New().String())
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("unknown id should report not found")
	}
}

// The expire guard is deliberately unconditional: it overwrites even
// decided records.
func TestExpireVisitorOverwritesDecision(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	v := newTestVisitor()
	if err := db.CreateVisitor(ctx, v); err != nil {
		t.Fatal(err)
	}
	if _, err := db.DecideVisitor(ctx, v.ID, models.StatusApproved, "host", time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	found, err := db.ExpireVisitor(ctx, v.ID)
	if err != nil || !found {
		t.Fatalf("ExpireVisitor failed: found=%v err=%v", found, err)
	}

	got, _ := db.GetVisitorByID(ctx, v.ID)
	if got.Status != models.StatusExpired {
		t.Errorf("status = %q, want expired", got.Status)
	}
}

func TestListVisitors(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v := newTestVisitor()
		v.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Minute)
		v.UpdatedAt = v.CreatedAt
		if err := db.CreateVisitor(ctx, v); err != nil {
			t.Fatal(err)
		}
	}

	all, err := db.ListVisitors(ctx, "")
	if err != nil {
		t.Fatalf("ListVisitors failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	// Newest first.
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.After(all[i-1].CreatedAt) {
			t.Errorf("records not ordered newest first at index %d", i)
		}
	}
}

func TestListVisitorsStatusFilter(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	pending := newTestVisitor()
	if err := db.CreateVisitor(ctx, pending); err != nil {
		t.Fatal(err)
	}
	approved := newTestVisitor()
	if err := db.CreateVisitor(ctx, approved); err != nil {
		t.Fatal(err)
	}
	if _, err := db.DecideVisitor(ctx, approved.ID, models.StatusApproved, "host", time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	got, err := db.ListVisitors(ctx, models.StatusApproved)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != approved.ID {
		t.Errorf("status filter returned wrong records: %+v", got)
	}

	empty, err := db.ListVisitors(ctx, models.StatusRejected)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty slice, got %d records", len(empty))
	}
}

func TestGetVisitorStats(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		v := newTestVisitor()
		if err := db.CreateVisitor(ctx, v); err != nil {
			t.Fatal(err)
		}
		switch i {
		case 1:
			if _, err := db.DecideVisitor(ctx, v.ID, models.StatusApproved, "host", time.Now().UTC()); err != nil {
				t.Fatal(err)
			}
		case 2:
			if _, err := db.ExpireVisitor(ctx, v.ID); err != nil {
				t.Fatal(err)
			}
		}
	}

	stats, err := db.GetVisitorStats(ctx)
	if err != nil {
		t.Fatalf("GetVisitorStats failed: %v", err)
	}
	want := models.VisitorStats{Total: 4, Pending: 2, Approved: 1, Expired: 1}
	if *stats != want {
		t.Errorf("stats = %+v, want %+v", *stats, want)
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	if IsUniqueViolation(nil) {
		t.Error("nil is not a violation")
	}
	if IsUniqueViolation(errors.New("connection refused")) {
		t.Error("unrelated error is not a violation")
	}
	if !IsUniqueViolation(fmt.Errorf("wrap: %w", errors.New("Constraint Error: Duplicate key"))) {
		t.Error("constraint error should be recognized")
	}
}
