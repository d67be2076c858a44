package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultUserAgent is the desktop Chrome user agent sent by both fetch modes.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Proxy     ProxyConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8000
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the shared Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// UserAgent is the spoofed user agent for every request.
	UserAgent string
}

// ScraperConfig controls per-request bounds.
type ScraperConfig struct {
	// HTTPTimeout is the end-to-end bound for a plain fetch.
	HTTPTimeout time.Duration // default: 30s

	// NavigationTimeout bounds navigation plus the network-idle wait.
	NavigationTimeout time.Duration // default: 30s

	// WaitForTimeout bounds the wait for a wait_for selector.
	WaitForTimeout time.Duration // default: 10s

	// IdleWindow is the quiet period that counts as network idle.
	IdleWindow time.Duration // default: 500ms

	// MaxBodyBytes caps the body read by a plain fetch.
	MaxBodyBytes int64 // default: 10 MiB
}

// ProxyConfig controls proxy rotation.
type ProxyConfig struct {
	// Enabled toggles proxy rotation. When false the pool is empty.
	Enabled bool // default: false

	// List holds the configured proxy URIs.
	List []string
}

// Pool returns the proxy pool implied by the configuration: the configured
// list when rotation is enabled, nil otherwise.
func (c ProxyConfig) Pool() []string {
	if !c.Enabled {
		return nil
	}
	pool := make([]string, 0, len(c.List))
	for _, p := range c.List {
		if p = strings.TrimSpace(p); p != "" {
			pool = append(pool, p)
		}
	}
	return pool
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	APIKeys []string
}

// RateLimitConfig controls per-identity rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key or client IP.
	RequestsPerSecond float64 // default: 1 (60/minute)

	// Burst is the maximum burst size per identity.
	Burst int // default: 60
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("SCRAPEKIT_HOST", "0.0.0.0"),
			Port: envIntOr("SCRAPEKIT_PORT", 8000),
			Mode: envOr("SCRAPEKIT_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("SCRAPEKIT_HEADLESS", true),
			NoSandbox:  envBoolOr("SCRAPEKIT_NO_SANDBOX", true),
			BrowserBin: os.Getenv("SCRAPEKIT_BROWSER_BIN"),
			UserAgent:  envOr("SCRAPEKIT_USER_AGENT", DefaultUserAgent),
		},
		Scraper: ScraperConfig{
			HTTPTimeout:       envDurationOr("SCRAPEKIT_HTTP_TIMEOUT", 30*time.Second),
			NavigationTimeout: envDurationOr("SCRAPEKIT_NAV_TIMEOUT", 30*time.Second),
			WaitForTimeout:    envDurationOr("SCRAPEKIT_WAIT_FOR_TIMEOUT", 10*time.Second),
			IdleWindow:        envDurationOr("SCRAPEKIT_IDLE_WINDOW", 500*time.Millisecond),
			MaxBodyBytes:      int64(envIntOr("SCRAPEKIT_MAX_BODY_BYTES", 10<<20)),
		},
		Proxy: ProxyConfig{
			Enabled: envBoolOr("SCRAPEKIT_PROXY_ENABLED", false),
			List:    envSliceOr("SCRAPEKIT_PROXY_LIST", nil),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SCRAPEKIT_AUTH_ENABLED", false),
			APIKeys: envSliceOr("SCRAPEKIT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SCRAPEKIT_RATE_RPS", 1.0),
			Burst:             envIntOr("SCRAPEKIT_RATE_BURST", 60),
		},
		Log: LogConfig{
			Level:  envOr("SCRAPEKIT_LOG_LEVEL", "info"),
			Format: envOr("SCRAPEKIT_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
