// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the scholarextractor CLI: collect
// candidate papers on a research topic, select the most relevant, find and
// download their PDFs, and report on the result.
package main

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ssemerikov/scholarextractor/internal/observability"
	"github.com/ssemerikov/scholarextractor/internal/secrets"
	"github.com/ssemerikov/scholarextractor/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// logger is replaced once the configuration is loaded.
	logger = observability.NewLogger(types.DefaultLoggingConfig())

	// loadedSecrets holds credentials read from the secrets directory.
	loadedSecrets map[string]string

	// pipelineCfg is the effective configuration for the running command.
	pipelineCfg types.PipelineConfig
)

var rootCmd = &cobra.Command{
	Use:   "scholarextractor",
	Short: "Collect, select and download scholarly papers on a topic",
	Long: `scholarextractor gathers candidate papers from the Semantic Scholar API
and Scholar result pages, removes duplicates, scores relevance, ranks and
selects a target number, hunts for open-access PDFs, downloads and verifies
them, and writes JSON/CSV exports and reports.

Each stage is a subcommand; run executes them all in order.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir, logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug().Strs("keys", keys).Msg("loaded secrets")
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		pipelineCfg = cfg
		logger = observability.NewLogger(cfg.Logging)
		zerolog.DefaultContextLogger = &logger
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./scholarextractor.yaml or ~/.config/scholarextractor/scholarextractor.yaml)")
	pf.String("secrets-dir", secrets.DefaultDir, "directory of credential files")
	pf.String("data-dir", "", "root directory for exports, logs and the index (default data)")
	pf.String("log-level", "", "log level: trace, debug, info, warn, error")
	pf.String("log-format", "", "log format: console or json")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
