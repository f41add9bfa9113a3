package token

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pricewatch/mercadolivre-scraper/internal/models"
	"github.com/pricewatch/mercadolivre-scraper/internal/stats"
)

// ErrMissingCredentials signals a deployment problem: client id, client
// secret and a refresh token must all be configured before a refresh can be
// attempted. Fail fast; this is not a runtime condition to swallow.
var ErrMissingCredentials = errors.New("token: client id, client secret and refresh token must be configured")

// StatsSource is the label token refreshes are accounted under.
const StatsSource = "ml_api"

const defaultTokenURL = "https://api.mercadolibre.com/oauth/token"

// Config carries the OAuth client settings for the refresh grant.
type Config struct {
	ClientID     string
	ClientSecret string
	// SeedRefreshToken is used when no refresh token has been persisted yet.
	SeedRefreshToken string
	// TokenURL is the authorization-server token endpoint.
	TokenURL string
}

// Manager is the sole owner of persisted credential state. At most one
// refresh is in flight at a time; concurrent callers arriving during a
// refresh observe its result instead of starting their own.
type Manager struct {
	cfg    Config
	store  Store
	client *http.Client
	stats  *stats.Collector
	logger *slog.Logger

	mu         sync.Mutex
	generation atomic.Uint64
	// lastToken is the outcome of the most recent refresh attempt, handed to
	// callers that queued behind it. Guarded by mu.
	lastToken string
}

func NewManager(cfg Config, store Store, collector *stats.Collector, logger *slog.Logger) *Manager {
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	return &Manager{
		cfg:    cfg,
		store:  store,
		client: &http.Client{Timeout: 15 * time.Second},
		stats:  collector,
		logger: logger.With("component", "token_manager"),
	}
}

// Credentials returns the currently persisted pair.
func (m *Manager) Credentials() models.Credentials {
	return m.store.Read()
}

// AccessToken returns the cached access token, triggering a refresh when none
// is stored. Expiry is not checked preemptively; callers discover it through
// an auth rejection and call Refresh reactively.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	if creds := m.store.Read(); creds.AccessToken != "" {
		return creds.AccessToken, nil
	}
	m.logger.Info("no cached access token, refreshing")
	return m.Refresh(ctx)
}

// Refresh exchanges the refresh token for a new access token and persists the
// resulting pair. An empty return with nil error means the refresh failed
// recoverably (the authorization server said no); a non-nil error is a
// configuration problem.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	gen := m.generation.Load()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another caller completed a refresh attempt while we waited for the
	// lock; share its outcome (which may be "no token") instead of
	// refreshing again.
	if m.generation.Load() != gen {
		return m.lastToken, nil
	}

	refreshToken := m.store.Read().RefreshToken
	if refreshToken == "" {
		refreshToken = m.cfg.SeedRefreshToken
	}

	if m.cfg.ClientID == "" || m.cfg.ClientSecret == "" || refreshToken == "" {
		return "", ErrMissingCredentials
	}

	// Every completed attempt advances the generation, success or failure, so
	// callers queued behind this one share its outcome instead of each
	// issuing their own outbound call.
	m.lastToken = ""
	defer m.generation.Add(1)

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {m.cfg.ClientID},
		"client_secret": {m.cfg.ClientSecret},
		"refresh_token": {refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		m.logger.Error("failed to build refresh request", "error", err)
		return "", nil
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Error("token refresh request failed", "error", err)
		return "", nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		m.logger.Error("token refresh rejected", "status", resp.StatusCode, "body", string(body))
		return "", nil
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		m.logger.Error("failed to decode token response", "error", err)
		return "", nil
	}

	// The refresh token may rotate; always persist the pair together.
	if err := m.store.Write(models.Credentials{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
	}); err != nil {
		m.logger.Error("failed to persist refreshed tokens", "error", err)
	}

	m.lastToken = payload.AccessToken
	if m.stats != nil {
		m.stats.RecordTokenRefresh(StatsSource)
	}
	m.logger.Info("access token refreshed")

	return payload.AccessToken, nil
}
