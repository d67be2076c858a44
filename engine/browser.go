package engine

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/rs/zerolog/log"
	"github.com/use-agent/scrapekit/config"
	"github.com/use-agent/scrapekit/models"
)

// LaunchFunc starts a browser. The returned release function closes it and
// reaps the process.
type LaunchFunc func() (*rod.Browser, func() error, error)

// Launcher returns the LaunchFunc used in production: a local Chromium
// started through rod's launcher.
func Launcher(cfg config.BrowserConfig) LaunchFunc {
	return func() (*rod.Browser, func() error, error) {
		l := launcher.New().
			Headless(cfg.Headless).
			NoSandbox(cfg.NoSandbox).
			Leakless(true)

		if cfg.BrowserBin != "" {
			l = l.Bin(cfg.BrowserBin)
		}

		l.Set(flags.Flag("disable-background-timer-throttling"))
		l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
		l.Set(flags.Flag("disable-renderer-backgrounding"))
		l.Set(flags.Flag("disable-dev-shm-usage"))
		l.Set(flags.Flag("disable-extensions"))
		l.Set(flags.Flag("no-first-run"))

		controlURL, err := l.Launch()
		if err != nil {
			return nil, nil, fmt.Errorf("launching browser: %w", err)
		}

		browser := rod.New().ControlURL(controlURL)
		if err := browser.Connect(); err != nil {
			l.Kill()
			return nil, nil, fmt.Errorf("connecting to browser: %w", err)
		}
		log.Info().Str("control_url", controlURL).Msg("browser launched")

		release := func() error {
			err := browser.Close()
			l.Kill()
			return err
		}
		return browser, release, nil
	}
}

// browserHandle owns the single shared browser. It is created on first use;
// a failed launch leaves the handle empty so a later request can retry.
//
// browserHandle is safe for concurrent use.
type browserHandle struct {
	launch  LaunchFunc
	browser *rod.Browser
	release func() error
	mu      sync.Mutex
	closed  atomic.Bool
}

func newBrowserHandle(launch LaunchFunc) *browserHandle {
	return &browserHandle{launch: launch}
}

// get returns the shared browser, launching it if needed. Concurrent first
// callers serialize on mu and observe the same instance.
func (h *browserHandle) get() (*rod.Browser, error) {
	if h.closed.Load() {
		return nil, models.ErrClosed
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Close may have won the lock while we waited.
	if h.closed.Load() {
		return nil, models.ErrClosed
	}
	if h.browser != nil {
		return h.browser, nil
	}

	browser, release, err := h.launch()
	if err != nil {
		return nil, err
	}
	h.browser = browser
	h.release = release
	return browser, nil
}

// running reports whether a browser is currently up.
func (h *browserHandle) running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.browser != nil
}

// close releases the browser. Only the first call does anything, and it is
// a no-op when no browser was ever launched.
func (h *browserHandle) close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.browser == nil {
		return nil
	}
	var err error
	if h.release != nil {
		err = h.release()
	}
	h.browser = nil
	h.release = nil
	return err
}
