package database

import (
	"context"
	"fmt"
	"time"

	"github.com/pricewatch/mercadolivre-scraper/internal/models"
)

// Snapshot is one observed price point for a product URL.
type Snapshot struct {
	ID              int64     `json:"id"`
	URL             string    `json:"url"`
	Title           string    `json:"title"`
	Price           float64   `json:"price"`
	OriginalPrice   float64   `json:"originalPrice,omitempty"`
	DiscountPercent int       `json:"discountPercent"`
	Source          string    `json:"source"`
	ObservedAt      time.Time `json:"observedAt"`
}

// InsertSnapshot appends a price observation for the URL.
func (db *DB) InsertSnapshot(ctx context.Context, url, source string, p *models.Product) error {
	query := `
		INSERT INTO price_snapshots (url, title, price, original_price, discount_percent, source)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := db.pool.Exec(ctx, query,
		url, p.Title, p.Price, p.OriginalPrice, p.DiscountPercent, source)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// History returns the most recent snapshots for a URL, newest first.
func (db *DB) History(ctx context.Context, url string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, url, title, price, COALESCE(original_price, 0), discount_percent, source, observed_at
		FROM price_snapshots
		WHERE url = $1
		ORDER BY observed_at DESC
		LIMIT $2`

	rows, err := db.pool.Query(ctx, query, url, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.ID, &s.URL, &s.Title, &s.Price, &s.OriginalPrice,
			&s.DiscountPercent, &s.Source, &s.ObservedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}
