// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

// Package pass renders the visitor gate pass PDF.
//
// The primary strategy drives a headless Chromium instance at the
// frontend's printable pass page, which produces the styled pass the
// visitor sees in the browser. When no browser is available (or the
// page fails to render in time) a programmatic fallback builds a
// plain but complete pass so approval is never blocked on Chromium.
package pass

import (
	"context"
	"fmt"
	"time"

	"github.com/nktu/gatekeeper/internal/config"
	"github.com/nktu/gatekeeper/internal/logging"
	"github.com/nktu/gatekeeper/internal/metrics"
	"github.com/nktu/gatekeeper/internal/models"
)

// Generation strategies as reported in metrics.
const (
	StrategyBrowser  = "browser"
	StrategyFallback = "fallback"
)

// Generator renders a gate pass PDF for an approved visitor.
type Generator interface {
	Generate(ctx context.Context, v *models.VisitorRecord) ([]byte, error)
}

// PDFGenerator is the production Generator: headless browser first,
// programmatic fallback second.
type PDFGenerator struct {
	primary  Generator
	fallback Generator
}

// NewGenerator builds the two-strategy pass generator from config.
func NewGenerator(cfg *config.PassConfig) *PDFGenerator {
	return &PDFGenerator{
		primary:  newBrowserGenerator(cfg),
		fallback: newFallbackGenerator(),
	}
}

// Generate renders the pass, falling back to the programmatic
// generator when the browser render fails. The error from the browser
// attempt is logged, not returned; only a fallback failure surfaces.
func (g *PDFGenerator) Generate(ctx context.Context, v *models.VisitorRecord) ([]byte, error) {
	start := time.Now()
	pdf, err := g.primary.Generate(ctx, v)
	metrics.RecordPassGeneration(StrategyBrowser, time.Since(start), err)
	if err == nil {
		logging.Debug().
			Str("visitor_id", v.ID).
			Int("bytes", len(pdf)).
			Msg("Gate pass rendered via headless browser")
		return pdf, nil
	}

	logging.Warn().
		Err(err).
		Str("visitor_id", v.ID).
		Msg("Headless render failed, using fallback generator")

	start = time.Now()
	pdf, err = g.fallback.Generate(ctx, v)
	metrics.RecordPassGeneration(StrategyFallback, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("fallback pass generation failed: %w", err)
	}

	logging.Debug().
		Str("visitor_id", v.ID).
		Int("bytes", len(pdf)).
		Msg("Gate pass rendered via fallback generator")
	return pdf, nil
}
