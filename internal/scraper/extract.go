package scraper

import (
	"strings"

	"github.com/pricewatch/mercadolivre-scraper/internal/extract"
	"github.com/pricewatch/mercadolivre-scraper/internal/models"
	"github.com/pricewatch/mercadolivre-scraper/internal/price"
)

// minTitleLength rejects stray headings picked up by the generic selectors.
const minTitleLength = 5

// Block phrases checked against the page title and the first 500 characters
// of visible body text. Never against raw markup: class names containing
// these words would false-positive.
var blockPhrases = []string{
	"captcha",
	"não é um robô",
	"verify you are human",
	"acesso negado",
	"access denied",
}

// Blocked reports whether the page is an anti-bot interstitial.
func Blocked(pageTitle, bodyText string) bool {
	title := strings.ToLower(pageTitle)
	body := strings.ToLower(bodyText)
	if len(body) > 500 {
		body = body[:500]
	}

	for _, phrase := range blockPhrases {
		if strings.Contains(title, phrase) || strings.Contains(body, phrase) {
			return true
		}
	}
	return false
}

func titleOK(s string) bool { return len(s) > minTitleLength }

func priceOK(s string) bool {
	_, ok := price.Normalize(s)
	return ok
}

// Selector cascades, most stable first. The trailing entries are emergency
// fallbacks for markup drift.
var (
	titleRules = extract.Chain{
		{Selector: "h1.ui-pdp-title", Validate: titleOK},
		{Selector: `h1[data-testid="title"]`, Validate: titleOK},
		{Selector: `[data-testid="product-title"]`, Validate: titleOK},
		{Selector: ".ui-pdp-title", Validate: titleOK},
		{Selector: "h1", Validate: titleOK},
	}

	priceRules = extract.Chain{
		{Selector: ".andes-money-amount__fraction", Validate: priceOK},
		{Selector: "span.andes-money-amount__fraction", Validate: priceOK},
		{Selector: ".ui-pdp-price__second-line .andes-money-amount__fraction", Validate: priceOK},
		{Selector: `[data-testid="price-value"]`, Validate: priceOK},
		{Selector: ".price-tag-fraction", Validate: priceOK},
		{Selector: `[class*="price"] span:first-child`, Validate: priceOK},
	}

	imageRules = extract.Chain{
		{Selector: "figure.ui-pdp-gallery__figure img", Attr: "src"},
		{Selector: ".ui-pdp-gallery__figure img", Attr: "src"},
		{Selector: `[data-testid="gallery-image"] img`, Attr: "src"},
		{Selector: "img.ui-pdp-image", Attr: "src"},
		{Selector: `figure img[src*="http"]`, Attr: "src"},
		{Selector: `img[src*="mlstatic"]`, Attr: "src"},
	}
)

const centsSelector = ".andes-money-amount__cents"

// extractRecord runs the cascades over the document. The returned product is
// only usable when ok is true; otherwise it carries whatever partial fields
// resolved, for logging.
func extractRecord(doc extract.Document) (*models.Product, bool) {
	product := &models.Product{}

	if title, ok := titleRules.First(doc); ok {
		product.Title = title
	}

	if priceText, ok := priceRules.First(doc); ok {
		value, _ := price.Normalize(priceText)
		product.Price = price.WithCents(value, doc.Text(centsSelector))
	}

	if imageURL, ok := imageRules.First(doc); ok {
		product.ImageURL = imageURL
	}

	return product, product.Valid()
}
