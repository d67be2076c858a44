// Package extractor evaluates selector maps against fetched markup.
//
// A Document is parsed once and shared by every field of a request. Each
// field is evaluated independently: a bad selector turns into an inline error
// marker for that field and never aborts its siblings.
package extractor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/scrapekit/models"
	"golang.org/x/net/html"
)

// Document is a parsed HTML tree queried by both selector dialects.
type Document struct {
	raw  string
	root *html.Node
	doc  *goquery.Document
}

// Parse parses rawHTML into a Document.
func Parse(rawHTML string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("extractor: parse html: %w", err)
	}
	return &Document{
		raw:  rawHTML,
		root: root,
		doc:  goquery.NewDocumentFromNode(root),
	}, nil
}

// Extract parses rawHTML once and evaluates every field against it.
func Extract(rawHTML string, fields *models.FieldMap, dialect models.SelectorDialect) (*models.ExtractedData, error) {
	d, err := Parse(rawHTML)
	if err != nil {
		return nil, err
	}
	return d.Fields(fields, dialect), nil
}

// Fields evaluates each selector in fields, preserving their order.
func (d *Document) Fields(fields *models.FieldMap, dialect models.SelectorDialect) *models.ExtractedData {
	if fields == nil {
		return models.NewExtractedData(0)
	}
	out := models.NewExtractedData(fields.Len())
	for pair := fields.Oldest(); pair != nil; pair = pair.Next() {
		out.Set(pair.Key, d.Field(pair.Value, dialect))
	}
	return out
}

// Field evaluates a single selector. It never panics: any failure is
// reported as an error-kind FieldValue.
func (d *Document) Field(selector string, dialect models.SelectorDialect) (fv models.FieldValue) {
	defer func() {
		if r := recover(); r != nil {
			fv = models.ErrorField(fmt.Errorf("evaluating %q: %v", selector, r))
		}
	}()

	var (
		matches []string
		err     error
	)
	switch dialect {
	case models.DialectXPath:
		matches, err = d.queryXPath(selector)
	case models.DialectCSS, "":
		matches, err = d.queryCSS(selector)
	default:
		err = fmt.Errorf("unknown selector dialect %q", dialect)
	}
	if err != nil {
		return models.ErrorField(err)
	}
	return models.FieldFromMatches(matches)
}
