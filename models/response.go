package models

import (
	"math"
	"strconv"
)

// Seconds is an elapsed duration in seconds, rounded to two decimals and
// always serialised with exactly two decimal places.
type Seconds float64

// NewSeconds rounds s to two decimals, clamping negatives to zero.
func NewSeconds(s float64) Seconds {
	if s < 0 || math.IsNaN(s) {
		return 0
	}
	return Seconds(math.Round(s*100) / 100)
}

func (s Seconds) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(s), 'f', 2, 64)), nil
}

// ScrapeResult is the outcome of one scrape.
type ScrapeResult struct {
	// StatusCode is the HTTP status code from the scraped page.
	StatusCode int `json:"status_code"`

	// FinalURL is the URL after following all redirects.
	FinalURL string `json:"final_url,omitempty"`

	// HTML is the raw (plain) or rendered (browser) page markup.
	HTML string `json:"html,omitempty"`

	// ExtractedData is null unless extraction ran.
	ExtractedData *ExtractedData `json:"extracted_data"`

	// Screenshot is a base64-encoded full-page PNG.
	Screenshot string `json:"screenshot,omitempty"`

	// Images lists <img> elements when requested.
	Images []Image `json:"images,omitempty"`

	// Markdown is the page converted to Markdown when requested.
	Markdown string `json:"markdown,omitempty"`

	// EngineUsed is "http" or "rod".
	EngineUsed string `json:"engine_used,omitempty"`

	// ResponseTime is the fetch duration in seconds.
	ResponseTime Seconds `json:"response_time"`
}

// Image represents an image element extracted from the page.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt,omitempty"`
}

// ScrapeResponse is the response for POST /api/v1/scrape.
type ScrapeResponse struct {
	// Success indicates whether the scrape completed without errors.
	Success bool `json:"success"`

	// URL echoes the requested URL.
	URL string `json:"url,omitempty"`

	*ScrapeResult

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status      string      `json:"status"` // "healthy"
	Service     string      `json:"service"`
	Uptime      string      `json:"uptime"`
	EngineStats EngineStats `json:"engine_stats"`
	Version     string      `json:"version"`
}

// EngineStats reports the state of the shared browser.
type EngineStats struct {
	BrowserRunning bool `json:"browser_running"`
	ActiveContexts int  `json:"active_contexts"`
	ProxyPoolSize  int  `json:"proxy_pool_size"`
}
