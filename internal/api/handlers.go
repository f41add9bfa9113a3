// Package api exposes the scrape engine over HTTP for backend consumers.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pricewatch/mercadolivre-scraper/internal/database"
	"github.com/pricewatch/mercadolivre-scraper/internal/models"
	"github.com/pricewatch/mercadolivre-scraper/internal/stats"
)

// Fetcher runs the acquisition chain for one product URL. A nil product with
// a nil error means every strategy exhausted.
type Fetcher interface {
	Fetch(ctx context.Context, productURL string) (*models.Product, error)
}

// HistoryStore serves recorded price snapshots. Nil when persistence is not
// configured.
type HistoryStore interface {
	History(ctx context.Context, url string, limit int) ([]database.Snapshot, error)
}

type Handlers struct {
	fetcher Fetcher
	stats   *stats.Collector
	history HistoryStore
	logger  *slog.Logger
}

func NewHandlers(fetcher Fetcher, collector *stats.Collector, history HistoryStore, logger *slog.Logger) *Handlers {
	return &Handlers{
		fetcher: fetcher,
		stats:   collector,
		history: history,
		logger:  logger,
	}
}

// ScrapeRequest carries the product URL to acquire.
type ScrapeRequest struct {
	URL string `json:"url"`
}

// Scrape runs the acquisition chain and returns the extracted product, or 404
// when every strategy exhausts.
func (h *Handlers) Scrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !validProductURL(req.URL) {
		h.respondError(w, http.StatusBadRequest, "a valid http(s) url is required")
		return
	}

	product, err := h.fetcher.Fetch(r.Context(), req.URL)
	if err != nil {
		h.logger.Error("scrape failed", "url", req.URL, "error", err)
		h.respondError(w, http.StatusInternalServerError, "scrape failed")
		return
	}
	if product == nil {
		h.respondError(w, http.StatusNotFound, "product could not be acquired")
		return
	}

	h.respondJSON(w, http.StatusOK, product)
}

// GetStats returns the per-source running counters.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.stats.Snapshot())
}

// ResetStats clears all counters.
func (h *Handlers) ResetStats(w http.ResponseWriter, r *http.Request) {
	h.stats.Reset()
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// GetHistory returns recorded price snapshots for a URL, newest first.
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.respondError(w, http.StatusServiceUnavailable, "price history is not configured")
		return
	}

	productURL := r.URL.Query().Get("url")
	if !validProductURL(productURL) {
		h.respondError(w, http.StatusBadRequest, "a valid http(s) url is required")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	snapshots, err := h.history.History(r.Context(), productURL, limit)
	if err != nil {
		h.logger.Error("history query failed", "url", productURL, "error", err)
		h.respondError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	if snapshots == nil {
		snapshots = []database.Snapshot{}
	}

	h.respondJSON(w, http.StatusOK, snapshots)
}

// Health reports process liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func validProductURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
