// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/use-agent/scrapekit/config"
)

// Init sets log.Logger from cfg. Output goes to stdout as JSON, or through a
// ConsoleWriter when the format is "text". Unknown levels fall back to info.
func Init(cfg config.LogConfig) {
	log.Logger = New(cfg, os.Stdout)
}

// New builds a logger writing to w.
func New(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	// Force all timestamps to be in UTC.
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	if strings.EqualFold(cfg.Format, "text") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()
}
