// Package price normalizes Brazilian locale price text ("R$ 1.234,56") into
// numeric values.
package price

import (
	"regexp"
	"strconv"
	"strings"
)

var nonPriceChars = regexp.MustCompile(`[^\d,]`)

// Normalize converts a Brazilian-formatted price string to a float. Thousand
// separators (dots, spaces, currency symbols) are stripped and the decimal
// comma becomes a dot. Returns false when the text is empty or unparsable;
// never a default of zero.
func Normalize(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}

	cleaned := nonPriceChars.ReplaceAllString(text, "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	if cleaned == "" {
		return 0, false
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}

	return value, true
}

// WithCents combines a whole price with a separately extracted cents fragment,
// common in split markup where "1.234" and "5" arrive as two nodes. The
// fragment is already-scaled cents, so "5" means 5 cents (0.05), not "50".
// A non-numeric fragment leaves the whole value unchanged.
func WithCents(whole float64, cents string) float64 {
	cents = strings.TrimSpace(cents)
	if cents == "" {
		return whole
	}

	n, err := strconv.Atoi(cents)
	if err != nil || n < 0 {
		return whole
	}

	return whole + float64(n)/100
}
