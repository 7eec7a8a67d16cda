// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

package pass

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/nktu/gatekeeper/internal/config"
	"github.com/nktu/gatekeeper/internal/models"
)

// A4 in inches, with ~10mm margins, as PrintToPDF expects.
const (
	paperWidthIn  = 8.27
	paperHeightIn = 11.69
	marginIn      = 0.39
)

// browserGenerator prints the frontend's pass page through headless
// Chromium. Each Generate call runs a fresh browser so a wedged
// renderer cannot poison later requests.
type browserGenerator struct {
	cfg *config.PassConfig
}

func newBrowserGenerator(cfg *config.PassConfig) *browserGenerator {
	return &browserGenerator{cfg: cfg}
}

// passURL is the printable pass page for a visitor.
func (g *browserGenerator) passURL(visitorID string) string {
	return strings.TrimRight(g.cfg.FrontendBaseURL, "/") + "/pass/" + visitorID
}

func (g *browserGenerator) Generate(ctx context.Context, v *models.VisitorRecord) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
	)
	if g.cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(g.cfg.ChromePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	url := g.passURL(v.ID)

	navCtx, cancelNav := context.WithTimeout(browserCtx, g.cfg.NavigationTimeout)
	defer cancelNav()
	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		return nil, fmt.Errorf("failed to open pass page %s: %w", url, err)
	}

	// The frontend flips this selector visible once the photo and pass
	// details have loaded. Printing before that yields a blank card.
	readyCtx, cancelReady := context.WithTimeout(browserCtx, g.cfg.ReadyTimeout)
	defer cancelReady()
	if err := chromedp.Run(readyCtx, chromedp.WaitVisible(g.cfg.ReadySelector)); err != nil {
		return nil, fmt.Errorf("pass page never became ready: %w", err)
	}

	var pdf []byte
	printCtx, cancelPrint := context.WithTimeout(browserCtx, g.cfg.NavigationTimeout)
	defer cancelPrint()
	err := chromedp.Run(printCtx,
		emulation.SetEmulatedMedia().WithMedia("print"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				WithPaperWidth(paperWidthIn).
				WithPaperHeight(paperHeightIn).
				WithMarginTop(marginIn).
				WithMarginBottom(marginIn).
				WithMarginLeft(marginIn).
				WithMarginRight(marginIn).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to print pass page: %w", err)
	}
	return pdf, nil
}
