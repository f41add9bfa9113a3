package mlapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricewatch/mercadolivre-scraper/internal/models"
	"github.com/pricewatch/mercadolivre-scraper/internal/stats"
	"github.com/pricewatch/mercadolivre-scraper/internal/token"
	"github.com/pricewatch/mercadolivre-scraper/pkg/logging"
)

func TestExtractItemID(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{"catalog path", "https://www.mercadolivre.com.br/cadeira-escritorio/p/MLB24578456", "MLB24578456"},
		{"short path", "https://site/p/AB123456", ""},
		{"path wins over slug", "https://site/MLB-999/p/MLB24578456", "MLB24578456"},
		{"slug with dash", "https://produto.mercadolivre.com.br/MLB-1234567890-cadeira", "MLB1234567890"},
		{"slug without dash", "https://produto.mercadolivre.com.br/MLB1234567890", "MLB1234567890"},
		{"no id", "https://www.mercadolivre.com.br/ofertas", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractItemID(tt.url))
		})
	}
}

type fixture struct {
	source   *Source
	tokens   *token.Manager
	store    *token.FileStore
	apiCalls *atomic.Int64
}

// newFixture wires a source against stub item and token endpoints.
func newFixture(t *testing.T, itemHandler http.HandlerFunc) *fixture {
	t.Helper()

	apiCalls := &atomic.Int64{}
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCalls.Add(1)
		itemHandler(w, r)
	}))
	t.Cleanup(api.Close)

	oauth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"fresh-token","refresh_token":"fresh-refresh"}`))
	}))
	t.Cleanup(oauth.Close)

	store := token.NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, store.Write(models.Credentials{AccessToken: "stale-token", RefreshToken: "r"}))

	tokens := token.NewManager(token.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     oauth.URL,
	}, store, stats.NewCollector(), logging.Discard())

	return &fixture{
		source:   NewSource(tokens, logging.Discard()).WithBaseURL(api.URL),
		tokens:   tokens,
		store:    store,
		apiCalls: apiCalls,
	}
}

func TestFetchSuccess(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/items/MLB24578456", r.URL.Path)
		assert.Equal(t, "Bearer stale-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"title":"Chair","price":199.9,"thumbnail":"http://img/thumb.jpg",
			"pictures":[{"secure_url":"https://img/full.jpg"}]}`))
	})

	result, err := f.source.Fetch(context.Background(), "https://site/p/MLB24578456")
	require.NoError(t, err)
	require.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, "Chair", result.Product.Title)
	assert.InDelta(t, 199.9, result.Product.Price, 0.001)
	assert.Equal(t, "https://img/full.jpg", result.Product.ImageURL)
}

func TestFetchThumbnailFallback(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title":"Chair","price":100,"thumbnail":"http://img/thumb.jpg"}`))
	})

	result, err := f.source.Fetch(context.Background(), "https://site/p/MLB1")
	require.NoError(t, err)
	assert.Equal(t, "http://img/thumb.jpg", result.Product.ImageURL)
}

func TestFetchUnresolvableURL(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("item endpoint must not be called")
	})

	result, err := f.source.Fetch(context.Background(), "https://www.mercadolivre.com.br/ofertas")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotFound, result.Status)
	assert.Equal(t, int64(0), f.apiCalls.Load())
}

func TestFetchAuthExpiredRefreshesOnce(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer stale-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer fresh-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"title":"Chair","price":199.9}`))
	})

	result, err := f.source.Fetch(context.Background(), "https://site/p/MLB24578456")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, int64(2), f.apiCalls.Load())
}

func TestFetchSecondAuthRejectionIsTerminal(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	result, err := f.source.Fetch(context.Background(), "https://site/p/MLB24578456")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAuthExpired, result.Status)
	// Original call plus exactly one retry after refresh; never a third.
	assert.Equal(t, int64(2), f.apiCalls.Load())
}

func TestFetchStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		body     string
		expected models.Status
	}{
		{"not found", http.StatusNotFound, "", models.StatusNotFound},
		{"rate limited", http.StatusTooManyRequests, "", models.StatusRateLimited},
		{"server error", http.StatusInternalServerError, "", models.StatusTransient},
		{"missing price", http.StatusOK, `{"title":"Chair"}`, models.StatusTransient},
		{"missing title", http.StatusOK, `{"price":10}`, models.StatusTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				w.Write([]byte(tt.body))
			})

			result, err := f.source.Fetch(context.Background(), "https://site/p/MLB24578456")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.Status)
			assert.Nil(t, result.Product)
		})
	}
}
