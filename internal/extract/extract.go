// Package extract implements the ordered fallback extraction used by every
// scraping source: a list of selector rules tried from most specific to most
// generic, stopping at the first that yields a valid value. The rule chain is
// generic over the document representation, so the live Playwright DOM and
// static goquery markup run the same cascade.
package extract

import "strings"

// Document is the minimal query surface a rule chain needs. Implementations
// exist for static HTML (goquery) and for a live browser page.
type Document interface {
	// Text returns the text content of the first node matching the selector,
	// or "" when nothing matches.
	Text(selector string) string
	// Attr returns the named attribute of the first node matching the
	// selector, or "" when the node or attribute is absent.
	Attr(selector, attr string) string
}

// Rule is one step of a cascade: where to look, how to read it, and how to
// judge what came back.
type Rule struct {
	Selector string
	// Attr, when set, reads this attribute instead of the text content.
	Attr string
	// Transform, when set, rewrites the raw value before validation.
	Transform func(string) string
	// Validate, when set, rejects values that match the selector but fail a
	// sanity check (too-short titles, unparsable prices).
	Validate func(string) bool
}

// Chain is an ordered list of rules, most stable selector first.
type Chain []Rule

// First evaluates the rules in order and returns the first value that is
// non-empty and passes the rule's validation.
func (c Chain) First(doc Document) (string, bool) {
	for _, r := range c {
		var value string
		if r.Attr != "" {
			value = doc.Attr(r.Selector, r.Attr)
		} else {
			value = doc.Text(r.Selector)
		}

		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if r.Transform != nil {
			value = strings.TrimSpace(r.Transform(value))
		}
		if r.Validate != nil && !r.Validate(value) {
			continue
		}
		return value, true
	}
	return "", false
}
