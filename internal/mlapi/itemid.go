package mlapi

import "regexp"

// Mercado Livre item ids appear in product URLs in two shapes: a catalog path
// segment ("/p/MLB24578456") and a listing slug ("MLB-1234567890" or
// "MLB1234567890"). The path form is canonical and takes precedence over the
// slug form when both could match.
var (
	pathPattern = regexp.MustCompile(`/p/(ML[A-Z]\d+)`)
	slugPattern = regexp.MustCompile(`(ML[A-Z])-?(\d+)`)
)

// ExtractItemID derives the canonical item identifier from a product URL.
// Returns "" when the URL carries no recognizable id.
func ExtractItemID(rawURL string) string {
	if m := pathPattern.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	if m := slugPattern.FindStringSubmatch(rawURL); m != nil {
		return m[1] + m[2]
	}
	return ""
}
