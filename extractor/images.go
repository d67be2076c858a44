package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/scrapekit/models"
)

// Images returns the document's image elements with absolute URLs,
// de-duplicated and in document order. data: URIs are skipped.
func (d *Document) Images(sourceURL string) []models.Image {
	images := []models.Image{}

	base, err := url.Parse(sourceURL)
	if err != nil {
		return images
	}

	seen := make(map[string]struct{})
	d.doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, exists := s.Attr("src")
		if !exists || strings.TrimSpace(src) == "" {
			return
		}

		resolved, err := base.Parse(strings.TrimSpace(src))
		if err != nil || resolved.Scheme == "data" {
			return
		}

		absURL := resolved.String()
		if _, ok := seen[absURL]; ok {
			return
		}
		seen[absURL] = struct{}{}

		alt, _ := s.Attr("alt")
		images = append(images, models.Image{
			Src: absURL,
			Alt: strings.TrimSpace(alt),
		})
	})

	return images
}
