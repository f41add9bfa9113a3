// Package proxyapi delegates page fetching to a third-party rendering proxy
// (ScraperAPI-style) and extracts product data from the returned static
// markup. The proxy rotates IPs and solves CAPTCHAs on its side, which makes
// this the preferred production path.
package proxyapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pricewatch/mercadolivre-scraper/internal/models"
)

// Name identifies this source in logs and statistics.
const Name = "proxy"

const defaultEndpoint = "http://api.scraperapi.com"

// ErrNotConfigured means no proxy API key is set. That is a configuration
// condition, not a transient scrape failure.
var ErrNotConfigured = errors.New("proxyapi: api key not configured")

// Client performs parameterized fetches through the rendering proxy.
type Client struct {
	apiKey   string
	endpoint string
	country  string
	client   *http.Client
	logger   *slog.Logger
}

// NewClient builds a proxy client. Rendering proxies are slow, so the timeout
// should be generous (60s is typical).
func NewClient(apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		country:  "br",
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With("component", "proxyapi"),
	}
}

// WithEndpoint points the client at a different proxy endpoint. Used in tests.
func (c *Client) WithEndpoint(endpoint string) *Client {
	c.endpoint = endpoint
	return c
}

func (c *Client) Name() string { return Name }

// Available reports whether the proxy credential is configured.
func (c *Client) Available() bool { return c.apiKey != "" }

// Fetch renders the product page through the proxy and runs the static-markup
// extraction pipeline over the result.
func (c *Client) Fetch(ctx context.Context, productURL string) (models.Result, error) {
	if !c.Available() {
		return models.Result{}, ErrNotConfigured
	}

	params := url.Values{
		"api_key":      {c.apiKey},
		"url":          {productURL},
		"country_code": {c.country},
		"render":       {"true"},
		"premium":      {"true"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return models.Failure(models.StatusTransient), nil
	}

	c.logger.Info("fetching through rendering proxy", "url", productURL)
	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			c.logger.Warn("proxy request timed out", "url", productURL)
			return models.Failure(models.StatusTimeout), nil
		}
		c.logger.Warn("proxy request failed", "url", productURL, "error", err)
		return models.Failure(models.StatusTransient), nil
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to extraction
	case http.StatusForbidden:
		c.logger.Warn("proxy blocked by target", "url", productURL)
		return models.Failure(models.StatusBlocked), nil
	case http.StatusInternalServerError:
		c.logger.Warn("proxy internal error", "url", productURL)
		return models.Failure(models.StatusTransient), nil
	default:
		c.logger.Warn("unexpected proxy status", "url", productURL, "status", resp.StatusCode)
		return models.Failure(models.StatusTransient), nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn("failed to read proxy response", "url", productURL, "error", err)
		return models.Failure(models.StatusTransient), nil
	}

	product, ok := ExtractProduct(strings.NewReader(string(body)))
	if !ok {
		c.logger.Warn("extraction incomplete", "url", productURL)
		return models.Failure(models.StatusTransient), nil
	}

	c.logger.Info("proxy scrape succeeded", "url", productURL,
		"title", product.Title, "price", product.Price, "discount", product.DiscountPercent)
	return models.Success(product), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
