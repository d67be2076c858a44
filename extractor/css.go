package extractor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// queryCSS returns the trimmed text of every element matching selector.
//
// The selector is compiled with cascadia directly because goquery silently
// treats an invalid selector as matching nothing.
func (d *Document) queryCSS(selector string) ([]string, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid css selector %q: %w", selector, err)
	}

	var matches []string
	d.doc.FindMatcher(sel).Each(func(_ int, s *goquery.Selection) {
		matches = append(matches, strings.TrimSpace(s.Text()))
	})
	return matches, nil
}
