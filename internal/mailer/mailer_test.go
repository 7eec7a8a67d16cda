// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

package mailer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nktu/gatekeeper/internal/config"
	"github.com/nktu/gatekeeper/internal/models"
)

func testVisitor() *models.VisitorRecord {
	return &models.VisitorRecord{
		ID:            "v-1",
		VisitorCode:   "NK-2026-0042",
		Name:          "Ravi Kumar",
		Email:         "ravi@example.com",
		Mobile:        "9876543210",
		Purpose:       "Network maintenance",
		ToMeet:        "Anita Sharma",
		PersonType:    models.PersonTypeVendor,
		CompanyName:   "Acme Networks",
		GateNumber:    1,
		HostEmail:     "anita@nktu.example",
		PhotoURL:      "https://cdn.example.com/visitor-photos/ravi.png",
		ApprovalToken: "deadbeefdeadbeefdeadbeefdeadbeef",
		CreatedAt:     time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC),
	}
}

func TestHostRequestTemplate(t *testing.T) {
	t.Parallel()

	v := testVisitor()
	html, err := renderTemplate(hostRequestTmpl, templateData{
		Visitor:     v,
		ApproveLink: "https://gate.example.com/visitors/decision/tok?status=approved",
		RejectLink:  "https://gate.example.com/visitors/decision/tok?status=rejected",
	})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	for _, want := range []string{
		"NK-2026-0042",
		"Ravi Kumar",
		"wants to meet you",
		"status=approved",
		"status=rejected",
		"Acme Networks",
		"01 Sep 2026",
		"10:30",
		v.PhotoURL,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("host request missing %q", want)
		}
	}
}

func TestHostRequestTemplateOptionalFields(t *testing.T) {
	t.Parallel()

	v := testVisitor()
	v.ToMeet = ""
	v.PhotoURL = ""

	html, err := renderTemplate(hostRequestTmpl, templateData{Visitor: v})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(html, "N/A") {
		t.Error("empty optional field should render as N/A")
	}
	if strings.Contains(html, "<img") {
		t.Error("photo block should be omitted without a photo URL")
	}
}

func TestVisitorApprovedTemplate(t *testing.T) {
	t.Parallel()

	html, err := renderTemplate(visitorApprovedTmpl, templateData{Visitor: testVisitor()})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(html, "APPROVED") || !strings.Contains(html, "attached below") {
		t.Errorf("unexpected approved template: %s", html)
	}
}

func TestVisitorRejectedTemplate(t *testing.T) {
	t.Parallel()

	html, err := renderTemplate(visitorRejectedTmpl, templateData{Visitor: testVisitor()})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(html, "declined") || !strings.Contains(html, "Ravi Kumar") {
		t.Errorf("unexpected rejected template: %s", html)
	}
}

func TestDecisionLink(t *testing.T) {
	t.Parallel()

	m, err := New(config.EmailConfig{}, "https://gate.example.com/")
	if err != nil {
		t.Fatal(err)
	}

	got := m.decisionLink("tok123", models.StatusApproved)
	want := "https://gate.example.com/visitors/decision/tok123?status=approved"
	if got != want {
		t.Errorf("decisionLink = %q, want %q", got, want)
	}
}

// A Mailer without an SMTP host is disabled: sends succeed as no-ops
// so callers never special-case development setups.
func TestDisabledMailerSkipsSend(t *testing.T) {
	t.Parallel()

	m, err := New(config.EmailConfig{}, "https://gate.example.com")
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	v := testVisitor()
	if err := m.SendApprovalRequest(ctx, v); err != nil {
		t.Errorf("disabled mailer should not fail: %v", err)
	}
	if err := m.SendApproval(ctx, v, []byte("%PDF-1.4")); err != nil {
		t.Errorf("disabled mailer should not fail: %v", err)
	}
	if err := m.SendRejection(ctx, v); err != nil {
		t.Errorf("disabled mailer should not fail: %v", err)
	}
}

func TestNewWithSMTPConfig(t *testing.T) {
	t.Parallel()

	m, err := New(config.EmailConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "mailer",
		Password: "secret",
		From:     "noreply@nktu.example",
		FromName: "NK Tech Union",
		Timeout:  15 * time.Second,
	}, "https://gate.example.com")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if m.client == nil {
		t.Error("expected configured SMTP client")
	}
}
