package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDocument serves canned values keyed by selector (or selector@attr).
type fakeDocument map[string]string

func (d fakeDocument) Text(selector string) string {
	return d[selector]
}

func (d fakeDocument) Attr(selector, attr string) string {
	return d[selector+"@"+attr]
}

func TestChainStopsAtFirstMatch(t *testing.T) {
	doc := fakeDocument{
		"h1.specific": "Specific Title",
		"h1":          "Generic Title",
	}

	chain := Chain{
		{Selector: "h1.specific"},
		{Selector: "h1"},
	}

	value, ok := chain.First(doc)
	require.True(t, ok)
	assert.Equal(t, "Specific Title", value)
}

func TestChainFallsThroughEmptyAndInvalid(t *testing.T) {
	doc := fakeDocument{
		"h1.specific": "x",
		"h1":          "Long Enough Title",
	}

	minLen := func(s string) bool { return len(s) > 5 }
	chain := Chain{
		{Selector: "h1.missing", Validate: minLen},
		{Selector: "h1.specific", Validate: minLen},
		{Selector: "h1", Validate: minLen},
	}

	value, ok := chain.First(doc)
	require.True(t, ok)
	assert.Equal(t, "Long Enough Title", value)
}

func TestChainReadsAttributesAndTransforms(t *testing.T) {
	doc := fakeDocument{
		"img.main@src": "https://http2.mlstatic.com/item-S.jpg",
	}

	chain := Chain{
		{
			Selector:  "img.main",
			Attr:      "src",
			Transform: func(s string) string { return strings.Replace(s, "-S.jpg", "-O.jpg", 1) },
		},
	}

	value, ok := chain.First(doc)
	require.True(t, ok)
	assert.Equal(t, "https://http2.mlstatic.com/item-O.jpg", value)
}

func TestChainNoMatch(t *testing.T) {
	_, ok := Chain{{Selector: "h1"}}.First(fakeDocument{})
	assert.False(t, ok)
}

func TestHTMLDocument(t *testing.T) {
	html := `<html><head><meta property="og:title" content="Meta Title"></head>
		<body><h1 class="ui-pdp-title"> Office Chair </h1>
		<img class="main" src="https://example.com/a.jpg"></body></html>`

	doc, err := ParseHTML(strings.NewReader(html))
	require.NoError(t, err)

	assert.Equal(t, "Office Chair", doc.Text("h1.ui-pdp-title"))
	assert.Equal(t, "Meta Title", doc.Attr(`meta[property="og:title"]`, "content"))
	assert.Equal(t, "https://example.com/a.jpg", doc.Attr("img.main", "src"))
	assert.Equal(t, "", doc.Text(".missing"))
}
