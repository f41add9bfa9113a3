// Package scraper drives the live-browser acquisition path: an isolated
// Playwright context per request, anti-detection tactics, block detection and
// a cascading DOM-selector extraction pipeline.
package scraper

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/playwright-community/playwright-go"

	"github.com/pricewatch/mercadolivre-scraper/internal/browser"
	"github.com/pricewatch/mercadolivre-scraper/internal/models"
)

// Name identifies this source in logs and statistics.
const Name = "browser"

// Sub-resource types aborted before navigation. Skipping them cuts load time
// and shrinks the fingerprint surface.
var blockedResourceTypes = map[string]bool{
	"image":      true,
	"stylesheet": true,
	"font":       true,
	"media":      true,
	"texttrack":  true,
	"object":     true,
	"beacon":     true,
	"csp_report": true,
	"imageset":   true,
}

// BrowserSource scrapes product pages through the shared browser engine. One
// call is exactly one navigation attempt; cross-attempt retry belongs to the
// coordinator.
type BrowserSource struct {
	engine *browser.Engine
	logger *slog.Logger
}

func NewBrowserSource(engine *browser.Engine, logger *slog.Logger) *BrowserSource {
	return &BrowserSource{
		engine: engine,
		logger: logger.With("component", "browser_scraper"),
	}
}

func (s *BrowserSource) Name() string { return Name }

// Fetch navigates to the product URL in a fresh context and extracts a
// record. The context is released on every exit path.
func (s *BrowserSource) Fetch(ctx context.Context, productURL string) (models.Result, error) {
	bctx, err := s.engine.NewContext()
	if err != nil {
		if errors.Is(err, browser.ErrNotStarted) {
			return models.Result{}, err
		}
		s.logger.Error("failed to create context", "error", err)
		return models.Failure(models.StatusTransient), nil
	}
	defer bctx.Close()

	page, err := bctx.NewPage()
	if err != nil {
		s.logger.Error("failed to create page", "error", err)
		return models.Failure(models.StatusTransient), nil
	}

	if err := blockResources(page); err != nil {
		s.logger.Warn("failed to install resource blocking", "error", err)
	}

	s.logger.Info("navigating", "url", productURL)
	_, err = page.Goto(productURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(s.engine.Timeout().Milliseconds())),
	})
	if err != nil {
		if isNavigationTimeout(err) {
			s.logger.Warn("navigation timed out", "url", productURL)
			return models.Failure(models.StatusTimeout), nil
		}
		s.logger.Warn("navigation failed", "url", productURL, "error", err)
		return models.Failure(models.StatusTransient), nil
	}

	// Human-scale pause: lets client-side rendering settle and avoids a
	// suspiciously instant read.
	page.WaitForTimeout(float64(1000 + rand.Intn(1000)))

	title, _ := page.Title()
	bodyText, _ := page.Locator("body").InnerText()
	if Blocked(title, bodyText) {
		s.logger.Warn("block page detected", "url", productURL, "page_title", title)
		return models.Failure(models.StatusBlocked), nil
	}

	doc := pageDocument{page: page}
	product, ok := extractRecord(doc)
	if !ok {
		s.logger.Warn("extraction incomplete", "url", productURL,
			"title", product.Title, "price", product.Price)
		return models.Failure(models.StatusTransient), nil
	}

	s.logger.Info("scrape succeeded", "url", productURL, "title", product.Title, "price", product.Price)
	return models.Success(product), nil
}

func blockResources(page playwright.Page) error {
	return page.Route("**/*", func(route playwright.Route) {
		if blockedResourceTypes[route.Request().ResourceType()] {
			route.Abort()
			return
		}
		route.Continue()
	})
}

func isNavigationTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// pageDocument adapts a live page to the extraction Document interface.
type pageDocument struct {
	page playwright.Page
}

func (d pageDocument) Text(selector string) string {
	el, err := d.page.QuerySelector(selector)
	if err != nil || el == nil {
		return ""
	}
	text, err := el.InnerText()
	if err != nil {
		return ""
	}
	return text
}

func (d pageDocument) Attr(selector, attr string) string {
	el, err := d.page.QuerySelector(selector)
	if err != nil || el == nil {
		return ""
	}
	value, err := el.GetAttribute(attr)
	if err != nil {
		return ""
	}
	return value
}
