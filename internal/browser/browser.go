// Package browser owns the shared headless Playwright instance. The browser
// is launched once and reused across requests; each scrape gets its own
// isolated context so concurrent requests never share session state.
package browser

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// ErrNotStarted means the engine was used before Start. That is a programming
// error in the caller, not a scrape failure.
var ErrNotStarted = errors.New("browser: engine not started")

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgents     []string
	Locale         string
	TimezoneID     string
	ViewportWidth  int
	ViewportHeight int
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        10 * time.Second,
		UserAgents:     defaultUserAgents(),
		Locale:         "pt-BR",
		TimezoneID:     "America/Sao_Paulo",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
	}
}

// Realistic desktop signatures; one is picked at random per request.
func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	}
}

// Engine wraps the long-lived Playwright browser. Context creation is safe
// for concurrent use once started.
type Engine struct {
	opts   *Options
	logger *slog.Logger

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
}

func NewEngine(opts *Options, logger *slog.Logger) *Engine {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Engine{
		opts:   opts,
		logger: logger.With("component", "browser"),
	}
}

// Start launches the persistent browser instance. Idempotent.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.browser != nil && e.browser.IsConnected() {
		e.logger.Info("browser already running")
		return nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(e.opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-first-run",
			"--no-default-browser-check",
		},
	})
	if err != nil {
		pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	e.pw = pw
	e.browser = b
	e.logger.Info("persistent browser launched", "headless", e.opts.Headless)
	return nil
}

// Started reports whether the engine is ready for NewContext.
func (e *Engine) Started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.browser != nil && e.browser.IsConnected()
}

// NewContext creates an isolated browser context (separate cookie/storage
// jar) with a random user agent. The caller must Close it on every exit path.
func (e *Engine) NewContext() (playwright.BrowserContext, error) {
	e.mu.Lock()
	b := e.browser
	e.mu.Unlock()

	if b == nil || !b.IsConnected() {
		return nil, ErrNotStarted
	}

	userAgent := e.opts.UserAgents[rand.Intn(len(e.opts.UserAgents))]

	ctx, err := b.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         playwright.String(userAgent),
		Locale:            playwright.String(e.opts.Locale),
		TimezoneId:        playwright.String(e.opts.TimezoneID),
		IgnoreHttpsErrors: playwright.Bool(true),
		Viewport: &playwright.Size{
			Width:  e.opts.ViewportWidth,
			Height: e.opts.ViewportHeight,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	return ctx, nil
}

// Timeout returns the per-navigation timeout.
func (e *Engine) Timeout() time.Duration {
	return e.opts.Timeout
}

// Close tears down the browser and Playwright. Call at process shutdown.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	if e.browser != nil {
		if err := e.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
		e.browser = nil
	}
	if e.pw != nil {
		if err := e.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
		e.pw = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	e.logger.Info("browser closed")
	return nil
}
