package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/use-agent/scrapekit/config"
	"github.com/use-agent/scrapekit/models"
	"github.com/use-agent/scrapekit/proxy"
	"golang.org/x/net/html/charset"
)

const maxRedirects = 10

type proxyKey struct{}

// HTTPEngine is the plain fetch mode: a single GET over net/http. It never
// executes scripts.
type HTTPEngine struct {
	client    *http.Client
	proxies   *proxy.Selector
	userAgent string
	timeout   time.Duration
	maxBody   int64
}

// NewHTTPEngine creates an HTTPEngine. The transport is shared by every
// request; the proxy picked for a request travels in its context so that
// connections are pooled per proxy.
func NewHTTPEngine(cfg config.ScraperConfig, userAgent string, proxies *proxy.Selector) *HTTPEngine {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = func(r *http.Request) (*url.URL, error) {
		u, _ := r.Context().Value(proxyKey{}).(*url.URL)
		return u, nil
	}

	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	return &HTTPEngine{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		proxies:   proxies,
		userAgent: userAgent,
		timeout:   cfg.HTTPTimeout,
		maxBody:   cfg.MaxBodyBytes,
	}
}

func (e *HTTPEngine) Name() string { return NameHTTP }

// Fetch issues the GET. Non-2xx responses are returned as results.
func (e *HTTPEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if req.WaitFor != "" || req.Screenshot {
		return nil, models.NewScrapeError(
			models.ErrCodeInvalidInput,
			"wait_for and screenshot require render_js",
			nil,
		)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	if req.UseProxy {
		if p := e.proxies.Pick(); p != "" {
			proxyURL, err := proxy.ParseURI(p)
			if err != nil {
				return nil, models.NewScrapeError(models.ErrCodeNavigation, "invalid proxy URI", err)
			}
			ctx = context.WithValue(ctx, proxyKey{}, proxyURL)
			log.Debug().Str("url", req.URL).Str("proxy", proxyURL.Redacted()).Msg("plain fetch via proxy")
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "invalid target URL", err)
	}

	// Browser-like defaults. Accept-Encoding is left to the transport so
	// gzip bodies are decoded transparently.
	httpReq.Header.Set("User-Agent", e.userAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")

	// Custom headers win on collision. Header.Set canonicalizes the key, so
	// "user-agent" replaces "User-Agent".
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, categorizeError(err, "plain fetch failed")
	}
	defer resp.Body.Close()

	reader := io.Reader(resp.Body)
	if e.maxBody > 0 {
		reader = io.LimitReader(resp.Body, e.maxBody)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, categorizeError(err, "failed to read response body")
	}

	return &FetchResult{
		HTML:       decodeBody(body, resp.Header.Get("Content-Type")),
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		EngineName: e.Name(),
	}, nil
}

// decodeBody converts body to UTF-8 using the charset from the Content-Type
// header, a BOM or a <meta> declaration. Bodies that are already valid UTF-8
// are kept as-is unless the header names another charset.
func decodeBody(body []byte, contentType string) string {
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || (!certain && utf8.Valid(trimPartialRune(body))) {
		return string(body)
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		log.Debug().Err(err).Str("charset", name).Msg("charset decode failed, keeping raw body")
		return string(body)
	}
	return string(decoded)
}

// trimPartialRune drops an incomplete UTF-8 sequence left at the end of a
// capped body.
func trimPartialRune(b []byte) []byte {
	for i := 1; i <= utf8.UTFMax && i <= len(b); i++ {
		if utf8.RuneStart(b[len(b)-i]) {
			if !utf8.FullRune(b[len(b)-i:]) {
				return b[:len(b)-i]
			}
			break
		}
	}
	return b
}
