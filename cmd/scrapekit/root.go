package main

import (
	"github.com/spf13/cobra"
	"github.com/use-agent/scrapekit/api/handler"
	"github.com/use-agent/scrapekit/config"
	"github.com/use-agent/scrapekit/logging"
)

// newRootCmd builds the command tree. Configuration comes from SCRAPEKIT_*
// environment variables; subcommand flags override individual fields.
func newRootCmd() *cobra.Command {
	var (
		cfg      *config.Config
		logLevel string
	)

	root := &cobra.Command{
		Use:          "scrapekit",
		Short:        "Fetch web pages as plain HTTP or rendered DOM and extract fields",
		Version:      handler.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.Load()
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			logging.Init(cfg.Log)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override SCRAPEKIT_LOG_LEVEL (debug, info, warn, error)")

	getConfig := func() *config.Config { return cfg }
	root.AddCommand(newServeCmd(getConfig))
	root.AddCommand(newScrapeCmd(getConfig))
	return root
}
