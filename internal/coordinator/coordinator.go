// Package coordinator ties the acquisition sources together: it picks an
// ordered strategy list, applies retry with exponential backoff, enforces the
// shared rate limit, and records statistics for every terminal outcome.
package coordinator

import (
	"context"
	"log/slog"
	"time"

	"github.com/pricewatch/mercadolivre-scraper/internal/cache"
	"github.com/pricewatch/mercadolivre-scraper/internal/mlapi"
	"github.com/pricewatch/mercadolivre-scraper/internal/models"
	"github.com/pricewatch/mercadolivre-scraper/internal/ratelimit"
	"github.com/pricewatch/mercadolivre-scraper/internal/stats"
)

// Source is one strategy for obtaining product data. Fetch returns an error
// only for configuration or programming failures; acquisition failures come
// back as tagged results.
type Source interface {
	Name() string
	Fetch(ctx context.Context, productURL string) (models.Result, error)
}

const defaultBackoffBase = 2 * time.Second

// Coordinator runs the configured sources in order until one yields a valid
// product.
type Coordinator struct {
	sources    []Source
	maxRetries int
	backoff    time.Duration
	limiter    *ratelimit.Limiter
	cache      *cache.Cache
	stats      *stats.Collector
	logger     *slog.Logger

	// sleep is swapped out in tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// Options configures a Coordinator. Sources run in slice order; the API
// source, when present in the list, short-circuits url-pattern misses (see
// Fetch).
type Options struct {
	Sources    []Source
	MaxRetries int
	Backoff    time.Duration
	Limiter    *ratelimit.Limiter
	Cache      *cache.Cache
	Stats      *stats.Collector
	Logger     *slog.Logger
}

func New(opts Options) *Coordinator {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoffBase
	}
	c := &Coordinator{
		sources:    opts.Sources,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		limiter:    opts.Limiter,
		cache:      opts.Cache,
		stats:      opts.Stats,
		logger:     opts.Logger.With("component", "coordinator"),
		sleep:      sleepCtx,
	}
	return c
}

// SourceCache labels results served from the product cache rather than a
// scraping strategy.
const SourceCache = "cache"

// Fetch runs the strategy chain for the URL. It returns the first valid
// product, or nil when every strategy exhausts. The error return carries only
// configuration and programming failures, never acquisition outcomes.
func (c *Coordinator) Fetch(ctx context.Context, productURL string) (*models.Product, error) {
	product, _, err := c.FetchWithSource(ctx, productURL)
	return product, err
}

// FetchWithSource is Fetch plus the name of the strategy that produced the
// record (SourceCache for cache hits). The name is empty when no strategy
// succeeded.
func (c *Coordinator) FetchWithSource(ctx context.Context, productURL string) (*models.Product, string, error) {
	if cached := c.cache.Get(ctx, productURL); cached != nil {
		c.logger.Info("cache hit", "url", productURL)
		return cached, SourceCache, nil
	}

	for _, source := range c.sources {
		// The API source only understands canonical item URLs; skipping it
		// here avoids burning an attempt on a guaranteed NotFound.
		if source.Name() == mlapi.Name && mlapi.ExtractItemID(productURL) == "" {
			c.logger.Debug("url has no item id, skipping api source", "url", productURL)
			continue
		}

		product, err := c.runSource(ctx, source, productURL)
		if err != nil {
			return nil, "", err
		}
		if product != nil {
			c.cache.Set(ctx, productURL, product)
			return product, source.Name(), nil
		}
	}

	c.logger.Warn("all strategies exhausted", "url", productURL)
	return nil, "", nil
}

// runSource drives one source through its retry bound. A nil product with a
// nil error means the source gave up.
func (c *Coordinator) runSource(ctx context.Context, source Source, productURL string) (*models.Product, error) {
	delay := c.backoff

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		result, err := source.Fetch(ctx, productURL)
		if err != nil {
			return nil, err
		}

		c.stats.Record(source.Name(), result.Status)

		if result.Status == models.StatusSuccess {
			c.logger.Info("scrape succeeded",
				"url", productURL, "strategy", source.Name(), "attempt", attempt)
			return result.Product, nil
		}

		c.logger.Warn("attempt failed",
			"url", productURL, "strategy", source.Name(),
			"attempt", attempt, "outcome", result.Status.String())

		if !result.Status.Retryable() {
			return nil, nil
		}
		if attempt == c.maxRetries {
			break
		}

		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay *= 2
	}

	return nil, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
