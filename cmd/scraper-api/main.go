package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/pricewatch/mercadolivre-scraper/internal/api"
	"github.com/pricewatch/mercadolivre-scraper/internal/browser"
	"github.com/pricewatch/mercadolivre-scraper/internal/cache"
	"github.com/pricewatch/mercadolivre-scraper/internal/config"
	"github.com/pricewatch/mercadolivre-scraper/internal/coordinator"
	"github.com/pricewatch/mercadolivre-scraper/internal/database"
	"github.com/pricewatch/mercadolivre-scraper/internal/mlapi"
	"github.com/pricewatch/mercadolivre-scraper/internal/models"
	"github.com/pricewatch/mercadolivre-scraper/internal/proxyapi"
	"github.com/pricewatch/mercadolivre-scraper/internal/ratelimit"
	"github.com/pricewatch/mercadolivre-scraper/internal/scraper"
	"github.com/pricewatch/mercadolivre-scraper/internal/stats"
	"github.com/pricewatch/mercadolivre-scraper/internal/token"
	"github.com/pricewatch/mercadolivre-scraper/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := stats.NewCollector()

	// Token manager for the official API source.
	store := token.NewFileStore(cfg.MercadoLivre.TokenFile)
	tokens := token.NewManager(token.Config{
		ClientID:         cfg.MercadoLivre.AppID,
		ClientSecret:     cfg.MercadoLivre.ClientSecret,
		SeedRefreshToken: cfg.MercadoLivre.RefreshToken,
	}, store, collector, logger)

	// Shared browser engine, launched eagerly so the first request does not
	// pay the startup cost.
	engine := browser.NewEngine(&browser.Options{
		Headless:       cfg.Browser.Headless,
		Timeout:        cfg.Browser.Timeout,
		UserAgents:     browser.DefaultOptions().UserAgents,
		Locale:         "pt-BR",
		TimezoneID:     "America/Sao_Paulo",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
	}, logger)
	if err := engine.Start(); err != nil {
		logger.Error("failed to start browser engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	sources := buildSources(cfg, engine, tokens, logger)

	var productCache *cache.Cache
	if cfg.Cache.Enabled {
		productCache, err = cache.New(ctx, cfg.Cache.RedisAddr, cfg.Cache.TTL, logger)
		if err != nil {
			logger.Warn("cache disabled, redis unreachable", "addr", cfg.Cache.RedisAddr, "error", err)
		}
	}
	defer productCache.Close()

	var db *database.DB
	if cfg.Database.URL != "" {
		db, err = database.New(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
	}

	limiter := ratelimit.New(cfg.Scraper.MinDelay, cfg.Scraper.MaxDelay, cfg.Scraper.MaxRequestsPerMinute)

	coord := coordinator.New(coordinator.Options{
		Sources:    sources,
		MaxRetries: cfg.Scraper.MaxRetries,
		Limiter:    limiter,
		Cache:      productCache,
		Stats:      collector,
		Logger:     logger,
	})

	fetcher := api.Fetcher(coord)
	if db != nil {
		fetcher = &recordingFetcher{inner: coord, db: db, logger: logger}
	}

	var history api.HistoryStore
	if db != nil {
		history = db
	}
	handlers := api.NewHandlers(fetcher, collector, history, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.WriteTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", handlers.Health)
	r.Post("/scrape", handlers.Scrape)
	r.Get("/stats", handlers.GetStats)
	r.Post("/stats/reset", handlers.ResetStats)
	r.Get("/history", handlers.GetHistory)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting",
		"addr", server.Addr, "production", cfg.IsProduction, "proxy_enabled", cfg.ProxyAPI.Enabled)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// buildSources assembles the strategy chain. Production prefers the proxy;
// development prefers the local browser. The official API goes first either
// way and is skipped per-URL when no item id resolves.
func buildSources(cfg *config.Config, engine *browser.Engine, tokens *token.Manager, logger *slog.Logger) []coordinator.Source {
	var sources []coordinator.Source

	if cfg.MercadoLivre.AppID != "" && cfg.MercadoLivre.ClientSecret != "" {
		sources = append(sources, mlapi.NewSource(tokens, logger))
	}

	proxy := proxyapi.NewClient(cfg.ProxyAPI.APIKey, cfg.ProxyAPI.Timeout, logger)
	browserSource := scraper.NewBrowserSource(engine, logger)

	if cfg.IsProduction && cfg.ProxyAPI.Enabled && proxy.Available() {
		sources = append(sources, proxy, browserSource)
	} else if cfg.ProxyAPI.Enabled && proxy.Available() {
		sources = append(sources, browserSource, proxy)
	} else {
		sources = append(sources, browserSource)
	}

	return sources
}

// recordingFetcher appends a price snapshot for every successful scrape.
type recordingFetcher struct {
	inner  *coordinator.Coordinator
	db     *database.DB
	logger *slog.Logger
}

func (f *recordingFetcher) Fetch(ctx context.Context, productURL string) (*models.Product, error) {
	product, source, err := f.inner.FetchWithSource(ctx, productURL)
	if err != nil || product == nil {
		return product, err
	}
	// A cache hit is a replay of an already-recorded observation, not a new
	// price point.
	if source != coordinator.SourceCache {
		if dbErr := f.db.InsertSnapshot(ctx, productURL, source, product); dbErr != nil {
			f.logger.Warn("failed to record price snapshot", "url", productURL, "error", dbErr)
		}
	}
	return product, nil
}
