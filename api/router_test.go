package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/scrapekit/config"
	"github.com/use-agent/scrapekit/models"
)

type stubScraper struct {
	result *models.ScrapeResult
	err    error
	got    *models.ScrapeRequest
}

func (s *stubScraper) Scrape(_ context.Context, req *models.ScrapeRequest) (*models.ScrapeResult, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubScraper) Stats() models.EngineStats {
	return models.EngineStats{BrowserRunning: true, ActiveContexts: 2, ProxyPoolSize: 3}
}

func (s *stubScraper) Uptime() time.Duration { return 90 * time.Second }

func testConfig() *config.Config {
	cfg := config.Load()
	cfg.Server.Mode = gin.TestMode
	return cfg
}

func do(t *testing.T, r http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	r := NewRouter(&stubScraper{}, testConfig())

	w := do(t, r, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1m30s", resp.Uptime)
	assert.Equal(t, 3, resp.EngineStats.ProxyPoolSize)
	assert.True(t, resp.EngineStats.BrowserRunning)
}

func TestRouter_Info(t *testing.T) {
	r := NewRouter(&stubScraper{}, testConfig())

	w := do(t, r, http.MethodGet, "/api/v1/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"service":"scrapekit"`)
}

func TestRouter_Scrape(t *testing.T) {
	data := models.NewExtractedData(1)
	data.Set("title", models.FieldFromMatches([]string{"Hi"}))

	sc := &stubScraper{result: &models.ScrapeResult{
		StatusCode:    http.StatusOK,
		HTML:          "<h1>Hi</h1>",
		ExtractedData: data,
		EngineUsed:    "http",
		ResponseTime:  models.NewSeconds(0.1234),
	}}
	r := NewRouter(sc, testConfig())

	w := do(t, r, http.MethodPost, "/api/v1/scrape",
		`{"url":"https://example.com","extract":{"z":"h1","a":"p"}}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.JSONEq(t, `{
		"success": true,
		"url": "https://example.com",
		"status_code": 200,
		"html": "<h1>Hi</h1>",
		"extracted_data": {"title": "Hi"},
		"engine_used": "http",
		"response_time": 0.12
	}`, w.Body.String())
	assert.Contains(t, w.Body.String(), `"response_time":0.12`)

	require.NotNil(t, sc.got)
	var keys []string
	for pair := sc.got.Extract.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	assert.Equal(t, []string{"z", "a"}, keys)
}

func TestRouter_ScrapeBindingErrors(t *testing.T) {
	r := NewRouter(&stubScraper{}, testConfig())

	for _, body := range []string{
		`{}`,
		`{"url":"not a url"}`,
		`{"url":"https://example.com","selector_type":"regex"}`,
		`{not json`,
	} {
		w := do(t, r, http.MethodPost, "/api/v1/scrape", body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Contains(t, w.Body.String(), models.ErrCodeInvalidInput, body)
	}
}

func TestRouter_ScrapeErrorStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{models.ErrCodeInvalidInput, http.StatusBadRequest},
		{models.ErrCodeNavigation, http.StatusBadGateway},
		{models.ErrCodeTimeout, http.StatusGatewayTimeout},
		{models.ErrCodeWaitTimeout, http.StatusGatewayTimeout},
		{models.ErrCodeBrowserLaunch, http.StatusServiceUnavailable},
		{models.ErrCodeBrowserCrash, http.StatusInternalServerError},
		{models.ErrCodeExtraction, http.StatusInternalServerError},
		{models.ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			sc := &stubScraper{err: models.NewScrapeError(tt.code, "boom", nil)}
			r := NewRouter(sc, testConfig())

			w := do(t, r, http.MethodPost, "/api/v1/scrape", `{"url":"https://example.com"}`, nil)
			assert.Equal(t, tt.want, w.Code)

			var resp map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, false, resp["success"])
			assert.NotContains(t, resp, "status_code")
			assert.Equal(t, tt.code, resp["error"].(map[string]any)["code"])
		})
	}
}

func TestRouter_Auth(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Enabled = true
	cfg.Auth.APIKeys = []string{"secret"}
	sc := &stubScraper{result: &models.ScrapeResult{StatusCode: http.StatusOK}}
	r := NewRouter(sc, cfg)

	body := `{"url":"https://example.com"}`

	w := do(t, r, http.MethodPost, "/api/v1/scrape", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/scrape", body, map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), models.ErrCodeUnauthorized)

	w = do(t, r, http.MethodPost, "/api/v1/scrape", body, map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/scrape", body, map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusOK, w.Code)

	// Health stays open.
	w = do(t, r, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.RequestsPerSecond = 0.01
	cfg.RateLimit.Burst = 2
	sc := &stubScraper{result: &models.ScrapeResult{StatusCode: http.StatusOK}}
	r := NewRouter(sc, cfg)

	body := `{"url":"https://example.com"}`
	for range 2 {
		w := do(t, r, http.MethodPost, "/api/v1/scrape", body, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := do(t, r, http.MethodPost, "/api/v1/scrape", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), models.ErrCodeRateLimited)

	// Health is not rate limited.
	w = do(t, r, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
