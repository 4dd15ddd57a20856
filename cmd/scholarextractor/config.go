// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/ssemerikov/scholarextractor/internal/secrets"
	"github.com/ssemerikov/scholarextractor/pkg/types"
)

const (
	configName = "scholarextractor"
	envPrefix  = "SCHOLAREXTRACTOR"
)

// Credentials are also read from these explicit environment variables.
var envBindings = map[string]string{
	"semantic_scholar.api_key": envPrefix + "_SEMANTIC_SCHOLAR_API_KEY",
	"hunt.core_api_key":        envPrefix + "_CORE_API_KEY",
	"hunt.email":               envPrefix + "_UNPAYWALL_EMAIL",
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", configName))
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for key, env := range envBindings {
		_ = viper.BindEnv(key, env)
	}

	if err := viper.ReadInConfig(); err == nil {
		logger.Info().Str("file", viper.ConfigFileUsed()).Msg("using config file")
	}
}

// loadConfig layers defaults, the config file and environment, then the
// secrets directory, then command flags.
func loadConfig(cmd *cobra.Command) (types.PipelineConfig, error) {
	cfg := types.DefaultPipelineConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, eris.Wrap(err, "decoding configuration")
	}
	secrets.Apply(&cfg, loadedSecrets)
	applyFlags(cmd, &cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, eris.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// applyFlags copies explicitly set flags over cfg. Only flags the command
// defines are consulted.
func applyFlags(cmd *cobra.Command, cfg *types.PipelineConfig) {
	f := cmd.Flags()
	if f.Changed("query") {
		cfg.Run.Queries, _ = f.GetStringArray("query")
	}
	if f.Changed("year-min") {
		cfg.Run.YearMin, _ = f.GetInt("year-min")
	}
	if f.Changed("year-max") {
		cfg.Run.YearMax, _ = f.GetInt("year-max")
	}
	if f.Changed("target") {
		cfg.Ranking.Target, _ = f.GetInt("target")
	}
	if f.Changed("threshold") {
		cfg.Ranking.RelevanceThreshold, _ = f.GetFloat64("threshold")
	}
	if f.Changed("reference-year") {
		cfg.Ranking.ReferenceYear, _ = f.GetInt("reference-year")
	}
	if f.Changed("limit") {
		cfg.Semantic.PapersPerQuery, _ = f.GetInt("limit")
	}
	if f.Changed("min-citations") {
		cfg.Semantic.MinCitations, _ = f.GetInt("min-citations")
	}
	if f.Changed("api-key") {
		cfg.Semantic.APIKey, _ = f.GetString("api-key")
	}
	if f.Changed("email") {
		cfg.Hunt.Email, _ = f.GetString("email")
	}
	if f.Changed("max-pages") {
		cfg.Scholar.MaxPages, _ = f.GetInt("max-pages")
	}
	if f.Changed("delay") {
		cfg.Scholar.RequestDelay, _ = f.GetDuration("delay")
	}
	if f.Changed("papers-dir") {
		cfg.Download.PapersDir, _ = f.GetString("papers-dir")
	}
	if f.Changed("strict") {
		cfg.Download.Strict, _ = f.GetBool("strict")
	}
	if f.Changed("data-dir") {
		dir, _ := f.GetString("data-dir")
		cfg.Storage = storageUnder(dir)
		if !f.Changed("papers-dir") {
			cfg.Download.PapersDir = filepath.Join(dir, "papers")
		}
	}
	if f.Changed("scholar") {
		cfg.Run.UseScholar, _ = f.GetBool("scholar")
	}
	if f.Changed("no-hunt") {
		noHunt, _ := f.GetBool("no-hunt")
		cfg.Run.Hunt = !noHunt
	}
	if f.Changed("no-download") {
		noDownload, _ := f.GetBool("no-download")
		cfg.Run.Download = !noDownload
	}
	if f.Changed("log-level") {
		cfg.Logging.Level, _ = f.GetString("log-level")
	}
	if f.Changed("log-format") {
		cfg.Logging.Format, _ = f.GetString("log-format")
	}
}

// storageUnder lays the default directory structure out below dir.
func storageUnder(dir string) types.StorageConfig {
	return types.StorageConfig{
		DataDir:     dir,
		MetadataDir: filepath.Join(dir, "metadata"),
		LogsDir:     filepath.Join(dir, "logs"),
		BaseName:    "metadata",
		IndexPath:   filepath.Join(dir, "index", "papers.db"),
	}
}

// dumpConfig renders cfg as YAML with credentials masked.
func dumpConfig(cfg types.PipelineConfig) ([]byte, error) {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	cfg.Semantic.APIKey = mask(cfg.Semantic.APIKey)
	cfg.Hunt.COREAPIKey = mask(cfg.Hunt.COREAPIKey)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, eris.Wrap(err, "encoding configuration")
	}
	return data, nil
}
