package models

import (
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// SelectorDialect names the expression language used by wait_for and extract.
type SelectorDialect string

const (
	DialectCSS   SelectorDialect = "css"
	DialectXPath SelectorDialect = "xpath"
)

// Valid reports whether d is a known dialect.
func (d SelectorDialect) Valid() bool {
	return d == DialectCSS || d == DialectXPath
}

// FieldMap is an ordered mapping of field name to selector. JSON object order
// is preserved on decode.
type FieldMap = orderedmap.OrderedMap[string, string]

// NewFieldMap builds a FieldMap from alternating name, selector pairs.
func NewFieldMap(pairs ...string) *FieldMap {
	m := orderedmap.New[string, string](len(pairs) / 2)
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Set(pairs[i], pairs[i+1])
	}
	return m
}

// ScrapeRequest is the payload for POST /api/v1/scrape.
type ScrapeRequest struct {
	// URL is the target page to scrape. Required.
	URL string `json:"url" binding:"required,url"`

	// RenderJS fetches the page with the headless browser instead of plain HTTP.
	RenderJS bool `json:"render_js"`

	// SelectorType is the dialect of WaitFor and Extract.
	// Allowed: "css" (default), "xpath".
	SelectorType SelectorDialect `json:"selector_type,omitempty" binding:"omitempty,oneof=css xpath"`

	// WaitFor is a selector that must appear before content is read.
	// Only valid with RenderJS.
	WaitFor string `json:"wait_for,omitempty"`

	// Extract maps field names to selectors, in request order.
	Extract *FieldMap `json:"extract,omitempty"`

	// Screenshot captures a full-page PNG. Only valid with RenderJS.
	Screenshot bool `json:"screenshot"`

	// ScrapeImages lists the page's <img> sources.
	ScrapeImages bool `json:"scrape_images"`

	// IncludeMarkdown adds a Markdown rendition of the page.
	IncludeMarkdown bool `json:"include_markdown"`

	// UseProxy routes the fetch through a random proxy from the pool.
	UseProxy bool `json:"use_proxy"`

	// CustomHeaders are sent with the request and win over defaults.
	CustomHeaders map[string]string `json:"custom_headers,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *ScrapeRequest) Defaults() {
	if r.SelectorType == "" {
		r.SelectorType = DialectCSS
	}
}

// Validate checks the request shape. It performs no I/O.
func (r *ScrapeRequest) Validate() error {
	if r.URL == "" {
		return NewScrapeError(ErrCodeInvalidInput, "url is required", nil)
	}
	if !r.SelectorType.Valid() {
		return NewScrapeError(ErrCodeInvalidInput,
			fmt.Sprintf("unknown selector_type %q", r.SelectorType), nil)
	}
	if !r.RenderJS && (r.Screenshot || r.WaitFor != "") {
		return NewScrapeError(ErrCodeInvalidInput,
			"screenshot and wait_for require render_js=true", nil)
	}
	return nil
}

// HasExtract reports whether the request asks for field extraction.
func (r *ScrapeRequest) HasExtract() bool {
	return r.Extract != nil && r.Extract.Len() > 0
}

// ParseFieldPairs converts name=selector pairs into an ordered FieldMap. The
// selector may itself contain "=", e.g. a[href="/x"].
func ParseFieldPairs(pairs []string) (*FieldMap, error) {
	m := NewFieldMap()
	for _, p := range pairs {
		name, selector, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" || strings.TrimSpace(selector) == "" {
			return nil, fmt.Errorf("invalid field %q: want name=selector", p)
		}
		m.Set(name, selector)
	}
	return m, nil
}

// ParseHeaderLines converts "Key: Value" lines into a header map. Lines
// without a colon are ignored; nil in, nil out.
func ParseHeaderLines(lines []string) map[string]string {
	if len(lines) == 0 {
		return nil
	}
	m := make(map[string]string, len(lines))
	for _, hdr := range lines {
		parts := strings.SplitN(hdr, ":", 2)
		if len(parts) == 2 {
			m[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return m
}
