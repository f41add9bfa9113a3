package scraper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocument map[string]string

func (d fakeDocument) Text(selector string) string       { return d[selector] }
func (d fakeDocument) Attr(selector, attr string) string { return d[selector+"@"+attr] }

func TestBlocked(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		body    string
		blocked bool
	}{
		{"captcha in title", "Resolva o CAPTCHA para continuar", "", true},
		{"robot check in body", "Mercado Livre", "Confirme que você não é um robô", true},
		{"access denied", "Access Denied", "", true},
		{"clean product page", "Cadeira Escritório | Mercado Livre", "Cadeira ergonômica com apoio", false},
		{"phrase only in class names is not visible text", "Produto", "Cadeira confortável", false},
		{"phrase beyond first 500 chars ignored", "Produto", strings.Repeat("a", 500) + " captcha", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.blocked, Blocked(tt.title, tt.body))
		})
	}
}

func TestExtractRecordFullPage(t *testing.T) {
	doc := fakeDocument{
		"h1.ui-pdp-title":                   "Cadeira Escritório Ergonômica",
		".andes-money-amount__fraction":     "1.234",
		".andes-money-amount__cents":        "56",
		"figure.ui-pdp-gallery__figure img@src": "https://http2.mlstatic.com/item-O.jpg",
	}

	product, ok := extractRecord(doc)
	require.True(t, ok)
	assert.Equal(t, "Cadeira Escritório Ergonômica", product.Title)
	assert.InDelta(t, 1234.56, product.Price, 0.001)
	assert.Equal(t, "https://http2.mlstatic.com/item-O.jpg", product.ImageURL)
}

func TestExtractRecordFallsBackToGenericSelectors(t *testing.T) {
	doc := fakeDocument{
		"h1":                 "Cadeira Gamer Reclinável",
		".price-tag-fraction": "899",
	}

	product, ok := extractRecord(doc)
	require.True(t, ok)
	assert.Equal(t, "Cadeira Gamer Reclinável", product.Title)
	assert.InDelta(t, 899, product.Price, 0.001)
	assert.Empty(t, product.ImageURL)
}

func TestExtractRecordRejectsShortTitle(t *testing.T) {
	doc := fakeDocument{
		"h1":                             "Ofer",
		".andes-money-amount__fraction":  "100",
	}

	_, ok := extractRecord(doc)
	assert.False(t, ok)
}

func TestExtractRecordMissingPriceFails(t *testing.T) {
	doc := fakeDocument{
		"h1.ui-pdp-title": "Cadeira Escritório Ergonômica",
	}

	product, ok := extractRecord(doc)
	assert.False(t, ok)
	// Partial fields are still surfaced for logging.
	assert.Equal(t, "Cadeira Escritório Ergonômica", product.Title)
}

func TestExtractRecordSingleDigitCents(t *testing.T) {
	doc := fakeDocument{
		"h1.ui-pdp-title":               "Cadeira Escritório",
		".andes-money-amount__fraction": "1234",
		".andes-money-amount__cents":    "5",
	}

	product, ok := extractRecord(doc)
	require.True(t, ok)
	assert.InDelta(t, 1234.05, product.Price, 0.001)
}
