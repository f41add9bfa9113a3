// Package mlapi talks to the official Mercado Livre REST API with bearer
// authorization and reactive token refresh.
package mlapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/pricewatch/mercadolivre-scraper/internal/models"
	"github.com/pricewatch/mercadolivre-scraper/internal/token"
)

// Name identifies this source in logs and statistics.
const Name = "ml_api"

const defaultBaseURL = "https://api.mercadolibre.com"

// Source fetches product data from the authenticated items endpoint.
type Source struct {
	tokens  *token.Manager
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewSource(tokens *token.Manager, logger *slog.Logger) *Source {
	return &Source{
		tokens:  tokens,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger.With("component", "ml_api"),
	}
}

// WithBaseURL points the source at a different API host. Used in tests.
func (s *Source) WithBaseURL(baseURL string) *Source {
	s.baseURL = baseURL
	return s
}

func (s *Source) Name() string { return Name }

type itemResponse struct {
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Thumbnail string  `json:"thumbnail"`
	Pictures  []struct {
		SecureURL string `json:"secure_url"`
	} `json:"pictures"`
}

// Fetch resolves the item id from the URL and queries the items endpoint. An
// auth rejection triggers exactly one refresh-and-retry; the bounded loop
// makes a second rejection terminal instead of looping on a structurally
// invalid request.
func (s *Source) Fetch(ctx context.Context, productURL string) (models.Result, error) {
	itemID := ExtractItemID(productURL)
	if itemID == "" {
		s.logger.Warn("no item id in url", "url", productURL)
		return models.Failure(models.StatusNotFound), nil
	}

	accessToken, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return models.Result{}, err
	}
	if accessToken == "" {
		return models.Failure(models.StatusAuthExpired), nil
	}

	refreshed := false
	for {
		result, authRejected, err := s.fetchItem(ctx, itemID, accessToken)
		if err != nil {
			return models.Result{}, err
		}
		if !authRejected {
			return result, nil
		}
		if refreshed {
			// Second rejection after a fresh token: the request itself is bad.
			return models.Failure(models.StatusAuthExpired), nil
		}

		refreshed = true
		s.logger.Warn("token rejected, refreshing", "item_id", itemID)
		accessToken, err = s.tokens.Refresh(ctx)
		if err != nil {
			return models.Result{}, err
		}
		if accessToken == "" {
			return models.Failure(models.StatusAuthExpired), nil
		}
	}
}

func (s *Source) fetchItem(ctx context.Context, itemID, accessToken string) (models.Result, bool, error) {
	url := fmt.Sprintf("%s/items/%s", s.baseURL, itemID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Result{}, false, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			s.logger.Warn("api call timed out", "item_id", itemID)
			return models.Failure(models.StatusTimeout), false, nil
		}
		s.logger.Warn("api call failed", "item_id", itemID, "error", err)
		return models.Failure(models.StatusTransient), false, nil
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return models.Result{}, true, nil
	case http.StatusNotFound:
		return models.Failure(models.StatusNotFound), false, nil
	case http.StatusTooManyRequests:
		s.logger.Warn("rate limited", "item_id", itemID)
		return models.Failure(models.StatusRateLimited), false, nil
	case http.StatusOK:
		// fall through to decoding
	default:
		s.logger.Warn("unexpected api status", "item_id", itemID, "status", resp.StatusCode)
		return models.Failure(models.StatusTransient), false, nil
	}

	var item itemResponse
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		s.logger.Warn("failed to decode item", "item_id", itemID, "error", err)
		return models.Failure(models.StatusTransient), false, nil
	}

	if item.Title == "" || item.Price <= 0 {
		s.logger.Warn("item missing required fields", "item_id", itemID,
			"has_title", item.Title != "", "price", item.Price)
		return models.Failure(models.StatusTransient), false, nil
	}

	imageURL := item.Thumbnail
	if len(item.Pictures) > 0 && item.Pictures[0].SecureURL != "" {
		imageURL = item.Pictures[0].SecureURL
	}

	s.logger.Info("item fetched", "item_id", itemID, "title", item.Title, "price", item.Price)
	return models.Success(&models.Product{
		Title:    item.Title,
		Price:    item.Price,
		ImageURL: imageURL,
	}), false, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
