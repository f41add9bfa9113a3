package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricewatch/mercadolivre-scraper/internal/database"
	"github.com/pricewatch/mercadolivre-scraper/internal/models"
	"github.com/pricewatch/mercadolivre-scraper/internal/stats"
	"github.com/pricewatch/mercadolivre-scraper/pkg/logging"
)

type stubFetcher struct {
	product *models.Product
	err     error
	lastURL string
}

func (f *stubFetcher) Fetch(ctx context.Context, productURL string) (*models.Product, error) {
	f.lastURL = productURL
	return f.product, f.err
}

type stubHistory struct {
	snapshots []database.Snapshot
	err       error
}

func (s *stubHistory) History(ctx context.Context, url string, limit int) ([]database.Snapshot, error) {
	return s.snapshots, s.err
}

func newHandlers(fetcher Fetcher, history HistoryStore) (*Handlers, *stats.Collector) {
	collector := stats.NewCollector()
	return NewHandlers(fetcher, collector, history, logging.Discard()), collector
}

func TestScrapeReturnsProduct(t *testing.T) {
	fetcher := &stubFetcher{product: &models.Product{Title: "Cadeira Gamer", Price: 899.9}}
	h, _ := newHandlers(fetcher, nil)

	body := strings.NewReader(`{"url":"https://produto.mercadolivre.com.br/MLB-123"}`)
	req := httptest.NewRequest(http.MethodPost, "/scrape", body)
	rec := httptest.NewRecorder()

	h.Scrape(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://produto.mercadolivre.com.br/MLB-123", fetcher.lastURL)

	var product models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &product))
	assert.Equal(t, "Cadeira Gamer", product.Title)
	assert.InDelta(t, 899.9, product.Price, 0.001)
}

func TestScrapeRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "not-json"},
		{"missing url", `{}`},
		{"relative url", `{"url":"/p/MLB123"}`},
		{"unsupported scheme", `{"url":"ftp://example.com/x"}`},
	}

	h, _ := newHandlers(&stubFetcher{}, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/scrape", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Scrape(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestScrapeExhaustedIs404(t *testing.T) {
	h, _ := newHandlers(&stubFetcher{}, nil)

	body := strings.NewReader(`{"url":"https://produto.mercadolivre.com.br/MLB-404"}`)
	req := httptest.NewRequest(http.MethodPost, "/scrape", body)
	rec := httptest.NewRecorder()

	h.Scrape(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScrapeInternalError(t *testing.T) {
	h, _ := newHandlers(&stubFetcher{err: errors.New("engine not started")}, nil)

	body := strings.NewReader(`{"url":"https://produto.mercadolivre.com.br/MLB-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/scrape", body)
	rec := httptest.NewRecorder()

	h.Scrape(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStatsRoundTrip(t *testing.T) {
	h, collector := newHandlers(&stubFetcher{}, nil)
	collector.Record("proxy", models.StatusSuccess)
	collector.Record("proxy", models.StatusBlocked)

	rec := httptest.NewRecorder()
	h.GetStats(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot map[string]stats.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, int64(2), snapshot["proxy"].Attempts)
	assert.Equal(t, int64(1), snapshot["proxy"].Blocked)

	rec = httptest.NewRecorder()
	h.ResetStats(rec, httptest.NewRequest(http.MethodPost, "/stats/reset", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, collector.Snapshot())
}

func TestGetHistory(t *testing.T) {
	history := &stubHistory{snapshots: []database.Snapshot{{
		URL:        "https://produto.mercadolivre.com.br/MLB-1",
		Title:      "Fone",
		Price:      200,
		Source:     "proxy",
		ObservedAt: time.Now(),
	}}}
	h, _ := newHandlers(&stubFetcher{}, history)

	req := httptest.NewRequest(http.MethodGet,
		"/history?url=https%3A%2F%2Fproduto.mercadolivre.com.br%2FMLB-1", nil)
	rec := httptest.NewRecorder()

	h.GetHistory(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshots []database.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshots))
	require.Len(t, snapshots, 1)
	assert.Equal(t, "Fone", snapshots[0].Title)
}

func TestGetHistoryUnconfigured(t *testing.T) {
	h, _ := newHandlers(&stubFetcher{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/history?url=https://example.com", nil)
	rec := httptest.NewRecorder()

	h.GetHistory(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth(t *testing.T) {
	h, _ := newHandlers(&stubFetcher{}, nil)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
