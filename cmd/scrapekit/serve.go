package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/use-agent/scrapekit/api"
	"github.com/use-agent/scrapekit/config"
	"github.com/use-agent/scrapekit/scraper"
)

const shutdownGrace = 5 * time.Second

func newServeCmd(getConfig func() *config.Config) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Listen host (default from SCRAPEKIT_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (default from SCRAPEKIT_PORT)")
	return cmd
}

// serve runs the API until SIGINT/SIGTERM, drains in-flight requests, then
// shuts the browser down.
func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("mode", cfg.Server.Mode).
		Bool("proxy_enabled", cfg.Proxy.Enabled).
		Msg("scrapekit starting")

	// ── 1. Scraper (browser starts lazily) ───────────────────────────
	sc := scraper.New(cfg)
	defer func() {
		if err := sc.Close(); err != nil {
			log.Error().Err(err).Msg("scraper close failed")
		}
	}()

	// ── 2. HTTP server ───────────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(sc, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// ── 3. Graceful shutdown ─────────────────────────────────────────
	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	// Give in-flight requests a few seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server forced shutdown")
	} else {
		log.Info().Msg("HTTP server drained gracefully")
	}

	// sc.Close() runs via defer and kills Chrome if it was started.
	log.Info().Msg("scrapekit stopped")
	return nil
}
