package extract

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLDocument adapts static markup to the Document interface.
type HTMLDocument struct {
	doc *goquery.Document
}

// ParseHTML builds an HTMLDocument from raw markup.
func ParseHTML(r io.Reader) (*HTMLDocument, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	return &HTMLDocument{doc: doc}, nil
}

func (d *HTMLDocument) Text(selector string) string {
	return strings.TrimSpace(d.doc.Find(selector).First().Text())
}

func (d *HTMLDocument) Attr(selector, attr string) string {
	value, _ := d.doc.Find(selector).First().Attr(attr)
	return value
}
