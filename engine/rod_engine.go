package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
	"github.com/use-agent/scrapekit/config"
	"github.com/use-agent/scrapekit/models"
	"github.com/use-agent/scrapekit/proxy"
	"github.com/ysmood/gson"
)

// Viewport applied to every rendered page.
const (
	viewportWidth  = 1366
	viewportHeight = 768
)

// statusJS reads the HTTP status of the main document without CDP event
// listeners. It yields 0 when the browser does not expose it.
const statusJS = `() => {
	try {
		const entries = performance.getEntriesByType("navigation");
		if (entries.length > 0) return entries[0].responseStatus || 0;
	} catch(e) {}
	return 0;
}`

// RodEngine is the rendered fetch mode. All requests share one lazily
// launched browser; each request runs in its own browser context with its
// own cookies, viewport, proxy and headers.
type RodEngine struct {
	handle      *browserHandle
	proxies     *proxy.Selector
	userAgent   string
	navTimeout  time.Duration
	waitTimeout time.Duration
	idleWindow  time.Duration
	active      atomic.Int32
}

// RodOption configures a RodEngine.
type RodOption func(*RodEngine)

// WithLaunchFunc replaces the browser launcher.
func WithLaunchFunc(fn LaunchFunc) RodOption {
	return func(e *RodEngine) {
		e.handle = newBrowserHandle(fn)
	}
}

// NewRodEngine creates a RodEngine. No browser is started until the first
// Fetch.
func NewRodEngine(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig, proxies *proxy.Selector, opts ...RodOption) *RodEngine {
	ua := browserCfg.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	e := &RodEngine{
		handle:      newBrowserHandle(Launcher(browserCfg)),
		proxies:     proxies,
		userAgent:   ua,
		navTimeout:  scraperCfg.NavigationTimeout,
		waitTimeout: scraperCfg.WaitForTimeout,
		idleWindow:  scraperCfg.IdleWindow,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *RodEngine) Name() string { return NameRod }

// Stats reports whether the browser is up and how many browser contexts are
// in use.
func (e *RodEngine) Stats() (browserRunning bool, activeContexts int) {
	return e.handle.running(), int(e.active.Load())
}

// Close shuts the shared browser down. It is safe to call more than once and
// when no browser was ever launched. Later fetches fail with ErrClosed.
func (e *RodEngine) Close() error {
	return e.handle.close()
}

// Fetch renders the page.
//
// Lifecycle:
//
//  1. Browser          – launch on first use
//  2. Browser context  – isolated cookie jar and proxy for this request
//  3. DEFER: cleanup   – close page, dispose context (every exit path)
//  4. Emulation        – user agent, viewport, extra headers
//  5. Idle listener    – MUST be registered before Navigate
//  6. Navigate + idle  – bounded by the navigation timeout
//  7. wait_for         – bounded by the wait timeout
//  8. Extract          – HTML, status, final URL, screenshot
//
// Cleanup uses the browser and page references without the request context,
// so it succeeds even if that context has expired.
func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	// ── 1. Browser ────────────────────────────────────────────────────
	browser, err := e.handle.get()
	if err != nil {
		if errors.Is(err, models.ErrClosed) {
			return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch, "browser engine is shut down", err)
		}
		return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to launch browser", err)
	}

	e.active.Add(1)
	defer e.active.Add(-1)

	// ── 2. Browser context ────────────────────────────────────────────
	proxyServer := ""
	if req.UseProxy {
		if proxyServer, err = e.pickProxyServer(); err != nil {
			return nil, models.NewScrapeError(models.ErrCodeNavigation, "invalid proxy URI", err)
		}
	}
	bctx, err := proto.TargetCreateBrowserContext{ProxyServer: proxyServer}.Call(browser)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to create browser context", err)
	}
	defer func() {
		if err := (proto.TargetDisposeBrowserContext{BrowserContextID: bctx.BrowserContextID}).Call(browser); err != nil {
			log.Warn().Err(err).Msg("cleanup: failed to dispose browser context")
		}
	}()

	// Browser.Page always targets the default context, so the target is
	// created explicitly inside ours.
	target, err := proto.TargetCreateTarget{
		URL:              "about:blank",
		BrowserContextID: bctx.BrowserContextID,
	}.Call(browser)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to create page", err)
	}
	page, err := browser.PageFromTarget(target.TargetID)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to attach to page", err)
	}

	// ── 3. CRITICAL DEFER: release the page ───────────────────────────
	defer func() {
		if err := page.Close(); err != nil {
			log.Warn().Err(err).Msg("cleanup: failed to close page")
		}
	}()

	// ── 4. Emulation ──────────────────────────────────────────────────
	if err := e.emulate(page, req.Headers); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to configure page", err)
	}

	// ── 5. Idle listener BEFORE navigation ────────────────────────────
	navCtx, navCancel := context.WithTimeout(ctx, e.navTimeout)
	defer navCancel()
	np := page.Context(navCtx)
	waitIdle := np.WaitRequestIdle(e.idleWindow, nil, nil, nil)

	// ── 6. Navigate ───────────────────────────────────────────────────
	if err := np.Navigate(req.URL); err != nil {
		return nil, categorizeError(err, "navigation to target URL failed")
	}
	waitIdle()
	if navCtx.Err() != nil && ctx.Err() == nil {
		log.Debug().Str("url", req.URL).Msg("network did not settle before the navigation bound, proceeding")
	}
	if err := ctx.Err(); err != nil {
		return nil, categorizeError(err, "navigation to target URL failed")
	}

	// The navigation bound may have run out during the idle wait; later
	// steps use the request context.
	p := page.Context(ctx)

	// ── 7. wait_for ───────────────────────────────────────────────────
	if req.WaitFor != "" {
		if err := e.waitFor(ctx, page, req.WaitFor, req.Dialect); err != nil {
			return nil, err
		}
	}

	// ── 8. Extract ────────────────────────────────────────────────────
	rawHTML, err := p.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to read page HTML")
	}

	statusCode := http.StatusOK
	if res, err := p.Eval(statusJS); err == nil {
		if code := res.Value.Int(); code > 0 {
			statusCode = code
		}
	}

	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}

	result := &FetchResult{
		HTML:       rawHTML,
		StatusCode: statusCode,
		FinalURL:   finalURL,
		EngineName: e.Name(),
	}

	if req.Screenshot {
		buf, err := p.Screenshot(true, &proto.PageCaptureScreenshot{
			Format: proto.PageCaptureScreenshotFormatPng,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, categorizeError(err, "screenshot timed out")
			}
			return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to capture screenshot", err)
		}
		result.Screenshot = base64.StdEncoding.EncodeToString(buf)
	}

	return result, nil
}

// emulate applies the user agent, viewport and custom headers. A custom
// User-Agent header replaces the default user agent.
func (e *RodEngine) emulate(page *rod.Page, headers map[string]string) error {
	ua := e.userAgent
	extra := make(map[string]string, len(headers))
	for k, v := range headers {
		if http.CanonicalHeaderKey(k) == "User-Agent" {
			ua = v
			continue
		}
		extra[k] = v
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      ua,
		AcceptLanguage: "en-US,en;q=0.9",
	}); err != nil {
		return err
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             viewportWidth,
		Height:            viewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return err
	}

	if len(extra) > 0 {
		page.EnableDomain(&proto.NetworkEnable{})
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(extra)}).Call(page); err != nil {
			return err
		}
	}
	return nil
}

// waitFor blocks until selector matches or the wait bound elapses. Content
// present at the time of a timeout is discarded.
func (e *RodEngine) waitFor(ctx context.Context, page *rod.Page, selector string, dialect models.SelectorDialect) error {
	waitCtx, cancel := context.WithTimeout(ctx, e.waitTimeout)
	defer cancel()
	wp := page.Context(waitCtx)

	var err error
	if dialect == models.DialectXPath {
		_, err = wp.ElementX(selector)
	} else {
		_, err = wp.Element(selector)
	}
	if err == nil {
		return nil
	}

	return classifyWaitError(ctx, err, selector, e.waitTimeout)
}

// classifyWaitError maps a failed wait_for. The wait bound running out is a
// WAIT_TIMEOUT; the browser rejecting the selector (a query that throws, or
// an XPath that selects something other than an element) is bad input.
func classifyWaitError(ctx context.Context, err error, selector string, bound time.Duration) *models.ScrapeError {
	var (
		evalErr   *rod.EvalError
		expectErr *rod.ExpectElementError
	)
	switch {
	case ctx.Err() != nil:
		return categorizeError(err, "wait_for failed")
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(
			models.ErrCodeWaitTimeout,
			"wait_for target "+selector+" did not appear within "+bound.String(),
			err,
		)
	case errors.As(err, &evalErr), errors.As(err, &expectErr):
		return models.NewScrapeError(models.ErrCodeInvalidInput, "wait_for selector "+selector+" is not usable", err)
	default:
		return categorizeError(err, "wait_for failed")
	}
}

// pickProxyServer returns the proxy for a browser context in the form Chrome
// accepts, or "" when the pool is empty. Chrome's proxy setting cannot carry
// credentials, so any userinfo is dropped.
func (e *RodEngine) pickProxyServer() (string, error) {
	p := e.proxies.Pick()
	if p == "" {
		return "", nil
	}
	u, err := proxy.ParseURI(p)
	if err != nil {
		return "", err
	}
	if u.User != nil {
		log.Warn().Str("proxy", u.Redacted()).Msg("proxy credentials are not supported in render mode, dropping them")
	}
	return u.Scheme + "://" + u.Host, nil
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
