package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/pricewatch/mercadolivre-scraper/internal/browser"
	"github.com/pricewatch/mercadolivre-scraper/internal/config"
	"github.com/pricewatch/mercadolivre-scraper/internal/coordinator"
	"github.com/pricewatch/mercadolivre-scraper/internal/mlapi"
	"github.com/pricewatch/mercadolivre-scraper/internal/models"
	"github.com/pricewatch/mercadolivre-scraper/internal/proxyapi"
	"github.com/pricewatch/mercadolivre-scraper/internal/queue"
	"github.com/pricewatch/mercadolivre-scraper/internal/ratelimit"
	"github.com/pricewatch/mercadolivre-scraper/internal/scraper"
	"github.com/pricewatch/mercadolivre-scraper/internal/stats"
	"github.com/pricewatch/mercadolivre-scraper/internal/token"
	"github.com/pricewatch/mercadolivre-scraper/pkg/logging"
)

// requeueLimit bounds how often one task goes back into the queue after the
// whole strategy chain exhausts. Per-attempt retries belong to the
// coordinator.
const requeueLimit = 1

func main() {
	var (
		urls      = flag.String("urls", "", "Comma-separated list of Mercado Livre product URLs")
		inputFile = flag.String("file", "", "File containing product URLs (one per line)")
		output    = flag.String("output", "stdout", "Output format: stdout, json")
		headless  = flag.Bool("headless", true, "Run browser in headless mode")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	engine := browser.NewEngine(&browser.Options{
		Headless:       *headless && cfg.Browser.Headless,
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

	collector := stats.NewCollector()
	store := token.NewFileStore(cfg.MercadoLivre.TokenFile)
	tokens := token.NewManager(token.Config{
		ClientID:         cfg.MercadoLivre.AppID,
		ClientSecret:     cfg.MercadoLivre.ClientSecret,
		SeedRefreshToken: cfg.MercadoLivre.RefreshToken,
	}, store, collector, logger)

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

	coord := coordinator.New(coordinator.Options{
		Sources:    sources,
		MaxRetries: cfg.Scraper.MaxRetries,
		Limiter:    ratelimit.New(cfg.Scraper.MinDelay, cfg.Scraper.MaxDelay, cfg.Scraper.MaxRequestsPerMinute),
		Stats:      collector,
		Logger:     logger,
	})

	taskQueue := queue.NewInMemoryQueue()
	if err := loadTasks(taskQueue, *urls, *inputFile); err != nil {
		logger.Error("failed to load tasks", "error", err)
		os.Exit(1)
	}
	if taskQueue.Size() == 0 {
		fmt.Println("No tasks to process. Use -urls or -file to specify products to scrape.")
		flag.Usage()
		os.Exit(1)
	}

	logger.Info("starting batch scrape", "tasks", taskQueue.Size())

	for taskQueue.Size() > 0 {
		task, err := taskQueue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info("cancelled, exiting")
				return
			}
			break
		}

		product, err := coord.Fetch(ctx, task.URL)
		if err != nil {
			logger.Error("scrape failed", "url", task.URL, "error", err)
			os.Exit(1)
		}
		if product == nil {
			if task.Retries < requeueLimit {
				task.Retries++
				_ = taskQueue.Push(task)
				logger.Info("requeueing task", "url", task.URL, "retry", task.Retries)
			} else {
				logger.Warn("giving up on task", "url", task.URL)
			}
			continue
		}

		if err := outputResult(task.URL, product, *output); err != nil {
			logger.Error("failed to output result", "error", err)
		}
	}

	for name, snap := range collector.Snapshot() {
		logger.Info("source totals", "source", name,
			"attempts", snap.Attempts, "successes", snap.Successes, "success_rate", snap.SuccessRate)
	}
	logger.Info("batch scrape completed")
}

func loadTasks(q queue.Queue, urls, inputFile string) error {
	var items []string

	if urls != "" {
		items = append(items, strings.Split(urls, ",")...)
	}

	if inputFile != "" {
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "#") {
				items = append(items, line)
			}
		}
	}

	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if err := q.Push(queue.NewTask(item)); err != nil {
			return err
		}
	}

	return nil
}

func outputResult(url string, product *models.Product, format string) error {
	switch format {
	case "json":
		payload := struct {
			URL string `json:"url"`
			*models.Product
		}{URL: url, Product: product}
		return json.NewEncoder(os.Stdout).Encode(payload)
	default:
		fmt.Printf("%s\n  %s\n  R$ %.2f", url, product.Title, product.Price)
		if product.DiscountPercent > 0 {
			fmt.Printf(" (%d%% off, was R$ %.2f)", product.DiscountPercent, product.OriginalPrice)
		}
		fmt.Println()
		return nil
	}
}
