package proxyapi

import (
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pricewatch/mercadolivre-scraper/internal/extract"
	"github.com/pricewatch/mercadolivre-scraper/internal/models"
	"github.com/pricewatch/mercadolivre-scraper/internal/price"
)

func priceOK(s string) bool {
	_, ok := price.Normalize(s)
	return ok
}

// Static-markup cascades. Unlike the live-browser path this one can also read
// meta tags and the crossed-out original price, so discounts are only
// available here.
var (
	titleRules = extract.Chain{
		{Selector: "h1.ui-pdp-title"},
		{Selector: `h1[class*="title"]`},
		{Selector: ".ui-pdp-title"},
		{Selector: "h1"},
		{Selector: `meta[property="og:title"]`, Attr: "content"},
	}

	// The crossed-out original price precedes the current one in document
	// order, so the second-line scope must be tried before the bare fraction.
	priceRules = extract.Chain{
		{Selector: ".ui-pdp-price__second-line .andes-money-amount__fraction", Validate: priceOK},
		{Selector: ".andes-money-amount__fraction", Validate: priceOK},
		{Selector: `span[class*="price-tag-fraction"]`, Validate: priceOK},
		{Selector: `meta[itemprop="price"]`, Attr: "content", Validate: priceOK},
		{Selector: ".price-tag-amount", Validate: priceOK},
	}

	centsRules = extract.Chain{
		{Selector: ".ui-pdp-price__second-line .andes-money-amount__cents"},
		{Selector: ".andes-money-amount__cents"},
	}

	originalPriceRules = extract.Chain{
		{Selector: ".ui-pdp-price__original-value .andes-money-amount__fraction", Validate: priceOK},
		{Selector: ".ui-pdp-price__second-line--crossed .andes-money-amount__fraction", Validate: priceOK},
		{Selector: "s.andes-money-amount .andes-money-amount__fraction", Validate: priceOK},
		{Selector: `[class*="crossed"] .andes-money-amount__fraction`, Validate: priceOK},
	}

	discountRules = extract.Chain{
		{Selector: ".ui-pdp-price__second-line__label"},
		{Selector: ".andes-money-amount__discount"},
		{Selector: `[class*="discount"]`},
	}

	imageRules = extract.Chain{
		{Selector: ".ui-pdp-gallery__figure img", Attr: "src"},
		{Selector: "img.ui-pdp-image", Attr: "src"},
		{Selector: `meta[property="og:image"]`, Attr: "content"},
		{Selector: "img[data-zoom]", Attr: "src"},
		{Selector: ".ui-pdp-image img", Attr: "src"},
	}
)

var (
	discountLabelPattern = regexp.MustCompile(`(?i)(\d+)\s*%\s*OFF`)
	// Media-service thumbnails end in a size code ("-S.jpg"); rewriting it to
	// "-O" yields the original-resolution variant.
	thumbnailSizePattern = regexp.MustCompile(`-[A-Z]\.jpg`)
)

// ExtractProduct runs the static-markup extraction pipeline over rendered
// HTML. Returns ok=false when the required title+price pair cannot be
// resolved.
func ExtractProduct(r io.Reader) (*models.Product, bool) {
	doc, err := extract.ParseHTML(r)
	if err != nil {
		return nil, false
	}

	product := &models.Product{}

	if title, ok := titleRules.First(doc); ok {
		product.Title = title
	}

	if priceText, ok := priceRules.First(doc); ok {
		value, _ := price.Normalize(priceText)
		cents, _ := centsRules.First(doc)
		product.Price = price.WithCents(value, cents)
	}

	if originalText, ok := originalPriceRules.First(doc); ok {
		if value, valid := price.Normalize(originalText); valid {
			product.OriginalPrice = value
		}
	}

	if label, ok := discountRules.First(doc); ok {
		if m := discountLabelPattern.FindStringSubmatch(label); m != nil {
			if pct, err := strconv.Atoi(m[1]); err == nil {
				product.DiscountPercent = pct
			}
		}
	}
	// No explicit label, but a crossed-out price: derive the percentage.
	if product.DiscountPercent == 0 && product.OriginalPrice > 0 && product.Price > 0 {
		product.DiscountPercent = int(math.Round((1 - product.Price/product.OriginalPrice) * 100))
	}

	if imageURL, ok := imageRules.First(doc); ok {
		product.ImageURL = upgradeImageURL(imageURL)
	}

	return product, product.Valid()
}

func upgradeImageURL(imageURL string) string {
	if strings.Contains(imageURL, "-O.jpg") {
		return imageURL
	}
	return thumbnailSizePattern.ReplaceAllString(imageURL, "-O.jpg")
}
