// Package engine implements the two fetch modes: a plain HTTP GET and a
// browser-rendered navigation on a shared, lazily started Chromium.
package engine

import (
	"context"
	"errors"
	"net"

	"github.com/use-agent/scrapekit/models"
)

// Engine names reported in FetchResult.EngineName.
const (
	NameHTTP = "http"
	NameRod  = "rod"
)

// Engine is the interface that both fetch modes implement.
type Engine interface {
	// Name returns the engine identifier ("http" or "rod").
	Name() string

	// Fetch retrieves the page for the given request.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything an engine needs to fetch a page.
type FetchRequest struct {
	URL      string
	UseProxy bool
	Headers  map[string]string

	// Render-only options. The plain engine rejects them.
	Dialect    models.SelectorDialect
	WaitFor    string
	Screenshot bool
}

// FetchResult is the output of a successful fetch.
type FetchResult struct {
	HTML       string
	StatusCode int
	Screenshot string // base64-encoded PNG, render only
	FinalURL   string
	EngineName string
}

// categorizeError wraps raw errors into typed ScrapeErrors so the API layer
// can map them to appropriate HTTP status codes.
func categorizeError(err error, msg string) *models.ScrapeError {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
