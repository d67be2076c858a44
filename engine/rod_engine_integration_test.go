//go:build integration

package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/scrapekit/config"
	"github.com/use-agent/scrapekit/models"
)

func newIntegrationEngine(t *testing.T) *RodEngine {
	t.Helper()
	cfg := testScraperConfig()
	cfg.WaitForTimeout = 10 * time.Second
	e := NewRodEngine(config.BrowserConfig{Headless: true, NoSandbox: true}, cfg, nil)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestRodEngine_Integration(t *testing.T) {
	var (
		mu        sync.Mutex
		lastUA    string
		lastTrace string
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		lastUA = r.Header.Get("User-Agent")
		lastTrace = r.Header.Get("X-Trace")
		mu.Unlock()
		fmt.Fprint(w, `<html><body><h1>Static</h1>
<script>setTimeout(() => {
	const d = document.createElement("div");
	d.id = "late";
	d.textContent = "rendered";
	document.body.appendChild(d);
}, 200)</script></body></html>`)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "<p>gone</p>")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	e := newIntegrationEngine(t)

	t.Run("renders scripts and waits for css target", func(t *testing.T) {
		res, err := e.Fetch(context.Background(), &FetchRequest{
			URL:     srv.URL,
			Dialect: models.DialectCSS,
			WaitFor: "#late",
			Headers: map[string]string{"X-Trace": "abc"},
		})
		require.NoError(t, err)
		assert.Contains(t, res.HTML, "rendered")
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, NameRod, res.EngineName)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, config.DefaultUserAgent, lastUA)
		assert.Equal(t, "abc", lastTrace)
	})

	t.Run("waits for xpath target", func(t *testing.T) {
		res, err := e.Fetch(context.Background(), &FetchRequest{
			URL:     srv.URL,
			Dialect: models.DialectXPath,
			WaitFor: "//div[@id='late']",
		})
		require.NoError(t, err)
		assert.Contains(t, res.HTML, "rendered")
	})

	t.Run("captures a png screenshot", func(t *testing.T) {
		res, err := e.Fetch(context.Background(), &FetchRequest{URL: srv.URL, Screenshot: true})
		require.NoError(t, err)

		png, err := base64.StdEncoding.DecodeString(res.Screenshot)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
	})

	t.Run("reports non-success status", func(t *testing.T) {
		res, err := e.Fetch(context.Background(), &FetchRequest{URL: srv.URL + "/missing"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
	})

	t.Run("wait_for target that never appears times out after the bound", func(t *testing.T) {
		start := time.Now()
		_, err := e.Fetch(context.Background(), &FetchRequest{
			URL:     srv.URL,
			Dialect: models.DialectCSS,
			WaitFor: "#never",
		})
		elapsed := time.Since(start)

		require.Error(t, err)
		assert.Equal(t, models.ErrCodeWaitTimeout, models.ErrorCode(err))
		assert.GreaterOrEqual(t, elapsed, 10*time.Second)

		_, active := e.Stats()
		assert.Zero(t, active)
	})

	t.Run("concurrent requests share one browser", func(t *testing.T) {
		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := e.Fetch(context.Background(), &FetchRequest{URL: srv.URL})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		running, active := e.Stats()
		assert.True(t, running)
		assert.Zero(t, active)
	})

	t.Run("close is idempotent and rejects later fetches", func(t *testing.T) {
		require.NoError(t, e.Close())
		require.NoError(t, e.Close())

		_, err := e.Fetch(context.Background(), &FetchRequest{URL: srv.URL})
		assert.ErrorIs(t, err, models.ErrClosed)
	})
}
