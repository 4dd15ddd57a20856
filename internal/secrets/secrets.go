// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets reads credentials from a directory of plain-text files.
// The filename is the key and the trimmed contents are the value.
package secrets

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/ssemerikov/scholarextractor/pkg/types"
)

// Recognised key files.
const (
	SemanticScholarAPIKey = "semantic-scholar-api-key"
	COREAPIKey            = "core-api-key"
	UnpaywallEmail        = "unpaywall-email"
)

// DefaultDir is where Load looks when no directory is configured.
const DefaultDir = ".secrets"

// Load reads every regular, non-hidden file in dir. A missing directory
// yields an empty map. Unreadable files are logged and skipped.
func Load(dir string, log zerolog.Logger) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, eris.Wrapf(err, "reading secrets directory %s", dir)
	}

	out := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn().Err(err).Str("secret", name).Msg("could not read secret")
			continue
		}
		if v := strings.TrimSpace(string(data)); v != "" {
			out[name] = v
		}
	}
	return out, nil
}

// Apply fills credentials that cfg does not already carry. Values set by
// flags, environment or the config file take precedence; the placeholder
// Unpaywall email counts as unset.
func Apply(cfg *types.PipelineConfig, s map[string]string) {
	if cfg.Semantic.APIKey == "" {
		cfg.Semantic.APIKey = s[SemanticScholarAPIKey]
	}
	if cfg.Hunt.COREAPIKey == "" {
		cfg.Hunt.COREAPIKey = s[COREAPIKey]
	}
	if v := s[UnpaywallEmail]; v != "" && (cfg.Hunt.Email == "" || cfg.Hunt.Email == types.DefaultHuntConfig().Email) {
		cfg.Hunt.Email = v
	}
}
