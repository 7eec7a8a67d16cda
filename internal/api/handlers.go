// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/nktu/gatekeeper/internal/config"
	"github.com/nktu/gatekeeper/internal/models"
)

// VisitorStore is the persistence surface the handlers need.
// *database.DB satisfies it; tests substitute a mock.
type VisitorStore interface {
	CreateVisitor(ctx context.Context, v *models.VisitorRecord) error
	GetVisitorByID(ctx context.Context, id string) (*models.VisitorRecord, error)
	GetVisitorByToken(ctx context.Context, token string) (*models.VisitorRecord, error)
	ListVisitors(ctx context.Context, status models.VisitorStatus) ([]models.VisitorRecord, error)
	DecideVisitor(ctx context.Context, id string, status models.VisitorStatus, decidedBy string, at time.Time) (bool, error)
	SetPassURL(ctx context.Context, id, url string) error
	ExpireVisitor(ctx context.Context, id string) (bool, error)
	GetVisitorStats(ctx context.Context) (*models.VisitorStats, error)
	Ping(ctx context.Context) error
}

// ObjectStore uploads visitor assets (photos, passes) and returns the
// public URL of the stored object.
type ObjectStore interface {
	Upload(ctx context.Context, folder, fileName string, data []byte, contentType string) (string, error)
}

// Notifier sends the transactional email for the visitor lifecycle.
type Notifier interface {
	SendApprovalRequest(ctx context.Context, v *models.VisitorRecord) error
	SendApproval(ctx context.Context, v *models.VisitorRecord, pdf []byte) error
	SendRejection(ctx context.Context, v *models.VisitorRecord) error
}

// PassGenerator renders the gate pass PDF for an approved visitor.
type PassGenerator interface {
	Generate(ctx context.Context, v *models.VisitorRecord) ([]byte, error)
}

// Handler holds dependencies for all HTTP handlers.
type Handler struct {
	store     VisitorStore
	objects   ObjectStore
	notifier  Notifier
	passes    PassGenerator
	config    *config.Config
	startTime time.Time
}

// NewHandler creates a Handler with the given dependencies.
func NewHandler(store VisitorStore, objects ObjectStore, notifier Notifier, passes PassGenerator, cfg *config.Config) *Handler {
	return &Handler{
		store:     store,
		objects:   objects,
		notifier:  notifier,
		passes:    passes,
		config:    cfg,
		startTime: time.Now(),
	}
}

// newVisitorCode builds a human-readable visitor code such as
// NK-2026-0421. The four random digits come from crypto/rand; the
// database's unique constraint catches the rare collision and the
// caller retries with a fresh code.
func newVisitorCode(prefix string, now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("failed to generate visitor code: %w", err)
	}
	return fmt.Sprintf("%s-%d-%04d", prefix, now.Year(), n.Int64()), nil
}

// newApprovalToken returns a 32-char hex token for the host decision
// link.
func newApprovalToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate approval token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
