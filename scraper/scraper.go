// Package scraper ties fetching and extraction together. A Scraper validates
// a request, picks the plain or rendered engine, runs the extractor over the
// fetched markup and classifies every failure into a *models.ScrapeError.
package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/use-agent/scrapekit/config"
	"github.com/use-agent/scrapekit/engine"
	"github.com/use-agent/scrapekit/extractor"
	"github.com/use-agent/scrapekit/models"
	"github.com/use-agent/scrapekit/proxy"
)

// RenderEngine is the rendered fetch mode. It owns a heavyweight resource
// that must be released on shutdown.
type RenderEngine interface {
	engine.Engine
	Stats() (browserRunning bool, activeContexts int)
	Close() error
}

// Scraper is safe for concurrent use.
type Scraper struct {
	plain     engine.Engine
	rendered  RenderEngine
	proxies   *proxy.Selector
	startTime time.Time
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithPlainEngine replaces the plain HTTP engine.
func WithPlainEngine(e engine.Engine) Option {
	return func(s *Scraper) { s.plain = e }
}

// WithRenderEngine replaces the browser engine.
func WithRenderEngine(e RenderEngine) Option {
	return func(s *Scraper) { s.rendered = e }
}

// New builds a Scraper from cfg. The proxy pool is read once here. No
// browser is launched until the first rendered request.
func New(cfg *config.Config, opts ...Option) *Scraper {
	proxies := proxy.NewSelector(cfg.Proxy.Pool())
	s := &Scraper{
		plain:     engine.NewHTTPEngine(cfg.Scraper, cfg.Browser.UserAgent, proxies),
		rendered:  engine.NewRodEngine(cfg.Browser, cfg.Scraper, proxies),
		proxies:   proxies,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	log.Info().
		Int("proxy_pool_size", proxies.Len()).
		Msg("scraper initialised")
	return s
}

// Scrape runs one request through validate, fetch, extract and assemble.
// The returned error is always a *models.ScrapeError.
func (s *Scraper) Scrape(ctx context.Context, req *models.ScrapeRequest) (*models.ScrapeResult, error) {
	// ── 1. Validate (no I/O) ──────────────────────────────────────────
	req.Defaults()
	if err := req.Validate(); err != nil {
		return nil, classify(err)
	}
	if req.WaitFor != "" {
		if err := extractor.CheckSelector(req.WaitFor, req.SelectorType); err != nil {
			return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "invalid wait_for selector", err)
		}
	}

	// ── 2. Fetch ──────────────────────────────────────────────────────
	var eng engine.Engine = s.plain
	if req.RenderJS {
		eng = s.rendered
	}

	start := time.Now()
	fetched, err := eng.Fetch(ctx, &engine.FetchRequest{
		URL:        req.URL,
		UseProxy:   req.UseProxy,
		Headers:    req.CustomHeaders,
		Dialect:    req.SelectorType,
		WaitFor:    req.WaitFor,
		Screenshot: req.Screenshot,
	})
	elapsed := time.Since(start)

	if err != nil {
		se := classify(err)
		log.Warn().
			Str("url", req.URL).
			Str("engine", eng.Name()).
			Str("code", se.Code).
			Dur("elapsed", elapsed).
			Err(err).
			Msg("fetch failed")
		return nil, se
	}

	result := &models.ScrapeResult{
		StatusCode:   fetched.StatusCode,
		FinalURL:     fetched.FinalURL,
		HTML:         fetched.HTML,
		Screenshot:   fetched.Screenshot,
		EngineUsed:   fetched.EngineName,
		ResponseTime: models.NewSeconds(elapsed.Seconds()),
	}

	// ── 3. Extract ────────────────────────────────────────────────────
	if err := s.extract(req, fetched, result); err != nil {
		return nil, classify(err)
	}

	log.Debug().
		Str("url", req.URL).
		Str("engine", result.EngineUsed).
		Int("status", result.StatusCode).
		Dur("elapsed", elapsed).
		Msg("scrape complete")

	return result, nil
}

// extract parses the markup once and fills in the derived outputs. It does
// nothing when the page body is empty.
func (s *Scraper) extract(req *models.ScrapeRequest, fetched *engine.FetchResult, result *models.ScrapeResult) error {
	if fetched.HTML == "" {
		return nil
	}
	if !req.HasExtract() && !req.ScrapeImages && !req.IncludeMarkdown {
		return nil
	}

	doc, err := extractor.Parse(fetched.HTML)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeExtraction, "failed to parse page markup", err)
	}

	baseURL := fetched.FinalURL
	if baseURL == "" {
		baseURL = req.URL
	}

	if req.HasExtract() {
		result.ExtractedData = doc.Fields(req.Extract, req.SelectorType)
	}
	if req.ScrapeImages {
		result.Images = doc.Images(baseURL)
	}
	if req.IncludeMarkdown {
		md, err := doc.Markdown(baseURL)
		if err != nil {
			return models.NewScrapeError(models.ErrCodeExtraction, "failed to convert page to markdown", err)
		}
		result.Markdown = md
	}
	return nil
}

// Stats returns a snapshot of the engine state.
func (s *Scraper) Stats() models.EngineStats {
	running, active := s.rendered.Stats()
	return models.EngineStats{
		BrowserRunning: running,
		ActiveContexts: active,
		ProxyPoolSize:  s.proxies.Len(),
	}
}

// Uptime returns the time since the Scraper was created.
func (s *Scraper) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// Close shuts down the shared browser. It is safe to call when no browser
// was launched and safe to call more than once.
// Call this on graceful shutdown to prevent zombie Chrome processes.
func (s *Scraper) Close() error {
	log.Info().Msg("scraper shutting down: closing browser")
	if err := s.rendered.Close(); err != nil {
		log.Warn().Err(err).Msg("browser close reported an error")
		return err
	}
	log.Info().Msg("scraper shutdown complete")
	return nil
}

// classify turns any error into a *models.ScrapeError. Errors that already
// carry a code pass through; anything else is reported as an internal
// failure with the cause's description.
func classify(err error) *models.ScrapeError {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, models.ErrClosed) {
		return models.NewScrapeError(models.ErrCodeBrowserLaunch, "browser engine is shut down", err)
	}
	return models.NewScrapeError(models.ErrCodeInternal, "scraping error", err)
}
