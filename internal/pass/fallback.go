// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

package pass

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/nktu/gatekeeper/internal/logging"
	"github.com/nktu/gatekeeper/internal/models"
)

// fallbackGenerator builds the pass programmatically. It is plainer
// than the browser render but needs nothing beyond the visitor record
// and, best-effort, the stored photo.
type fallbackGenerator struct {
	httpClient *http.Client
}

func newFallbackGenerator() *fallbackGenerator {
	return &fallbackGenerator{
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *fallbackGenerator) Generate(ctx context.Context, v *models.VisitorRecord) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 18, 18)
	pdf.AddPage()

	// Header
	pdf.SetFont("Helvetica", "B", 24)
	pdf.CellFormat(0, 12, "VISITOR PASS", "", 1, "C", false, 0, "")
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.7)
	pdf.Line(18, pdf.GetY()+2, 192, pdf.GetY()+2)
	pdf.Ln(8)

	// Visitor information, skipping fields the visitor left empty.
	pdf.SetFont("Helvetica", "BU", 14)
	pdf.CellFormat(0, 8, "VISITOR INFORMATION", "", 1, "L", false, 0, "")
	pdf.Ln(1)

	fields := []struct {
		label string
		value string
	}{
		{"Name", v.Name},
		{"Visitor Code", v.VisitorCode},
		{"Purpose", v.Purpose},
		{"Meeting With", v.ToMeet},
		{"Contact", v.Mobile},
		{"Email", v.Email},
		{"Organization", v.CompanyName},
		{"Person Type", v.PersonType},
		{"Gate Number", fmt.Sprintf("%d", v.GateNumber)},
		{"Status", strings.ToUpper(string(v.Status))},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(42, 7, f.label+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 7, f.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	g.addPhoto(ctx, pdf, v)

	// Visit details
	pdf.SetFont("Helvetica", "BU", 13)
	pdf.CellFormat(0, 8, "VISIT DETAILS", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Visit Date: "+v.CreatedAt.Format("Monday, January 2, 2006"), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Visit Time: "+v.CreatedAt.Format("03:04 PM"), "", 1, "L", false, 0, "")
	pdf.Ln(14)

	// Signature lines
	sigY := pdf.GetY()
	pdf.SetLineWidth(0.3)
	pdf.Line(28, sigY, 88, sigY)
	pdf.Line(122, sigY, 182, sigY)
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetY(sigY + 2)
	pdf.SetX(28)
	pdf.CellFormat(60, 5, "Entry Signature", "", 0, "C", false, 0, "")
	pdf.SetX(122)
	pdf.CellFormat(60, 5, "Exit Signature", "", 1, "C", false, 0, "")
	pdf.Ln(10)

	// Footer
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(128, 128, 128)
	pdf.CellFormat(0, 5, "Generated: "+time.Now().Format("2006-01-02 15:04:05"), "", 1, "R", false, 0, "")
	pdf.CellFormat(0, 5, "Please present this pass at reception", "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 5, "Valid for authorized visit only", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to build pass document: %w", err)
	}
	return buf.Bytes(), nil
}

// addPhoto embeds the stored visitor photo if it can be fetched. Any
// failure is logged and the pass renders without it.
func (g *fallbackGenerator) addPhoto(ctx context.Context, pdf *fpdf.Fpdf, v *models.VisitorRecord) {
	if v.PhotoURL == "" {
		return
	}

	data, imageType, err := g.fetchPhoto(ctx, v.PhotoURL)
	if err != nil {
		logging.Warn().
			Err(err).
			Str("visitor_id", v.ID).
			Msg("Could not load visitor photo for pass, continuing without it")
		return
	}

	pdf.SetFont("Helvetica", "BU", 13)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 8, "VISITOR PHOTO", "", 1, "C", false, 0, "")

	name := "photo-" + v.ID
	pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: imageType}, bytes.NewReader(data))
	x := (210.0 - 50.0) / 2 // center a 50mm wide photo on A4
	pdf.ImageOptions(name, x, pdf.GetY()+2, 50, 0, false, fpdf.ImageOptions{ImageType: imageType}, 0, "")
	pdf.SetY(pdf.GetY() + 58)
}

// fetchPhoto downloads the photo and maps its content type onto an
// image type the PDF encoder understands.
func (g *fallbackGenerator) fetchPhoto(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("photo fetch returned status %d", resp.StatusCode)
	}

	var imageType string
	switch ct := resp.Header.Get("Content-Type"); {
	case strings.Contains(ct, "png"):
		imageType = "PNG"
	case strings.Contains(ct, "jpeg"), strings.Contains(ct, "jpg"):
		imageType = "JPG"
	default:
		return nil, "", fmt.Errorf("unsupported photo content type %q", ct)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), imageType, nil
}
