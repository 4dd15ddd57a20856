// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ssemerikov/scholarextractor/internal/download"
	"github.com/ssemerikov/scholarextractor/internal/httputil"
	"github.com/ssemerikov/scholarextractor/internal/storage"
	"github.com/ssemerikov/scholarextractor/pkg/types"
)

func openStore(cfg types.PipelineConfig) (*storage.Store, error) {
	return storage.Open(cfg.Storage, logger)
}

func newSession(cfg types.HTTPConfig) *httputil.Session {
	return httputil.NewSession(&http.Client{Timeout: cfg.Timeout}, cfg, logger)
}

// pathFlag returns the named flag's value, or fallback when it is unset.
func pathFlag(cmd *cobra.Command, name, fallback string) string {
	if v, _ := cmd.Flags().GetString(name); v != "" {
		return v
	}
	return fallback
}

// metadataPath names a file under the metadata directory.
func metadataPath(cfg types.PipelineConfig, name string) string {
	return filepath.Join(cfg.Storage.MetadataDir, name)
}

// defaultExport is the JSON export the stage commands read and write.
func defaultExport(cfg types.PipelineConfig) string {
	base := cfg.Storage.BaseName
	if base == "" {
		base = "metadata"
	}
	return metadataPath(cfg, base+".json")
}

func loadRecords(path string) ([]*types.PaperRecord, storage.QueryInfo, error) {
	exp, err := storage.LoadJSON(path)
	if err != nil {
		return nil, storage.QueryInfo{}, err
	}
	if exp.Skipped > 0 {
		logger.Warn().Int("skipped", exp.Skipped).Str("path", path).Msg("dropped records without a title")
	}
	return exp.Papers, exp.Query, nil
}

// saveRecords writes path and a CSV twin beside it.
func saveRecords(path string, recs []*types.PaperRecord, q storage.QueryInfo) error {
	if err := storage.SaveJSON(path, recs, q); err != nil {
		return err
	}
	return storage.SaveCSV(strings.TrimSuffix(path, filepath.Ext(path))+".csv", recs)
}

// indexDownloads records papers and their download outcomes in the index.
// Index failures are logged; they never fail the command.
func indexDownloads(ctx context.Context, cfg types.PipelineConfig, recs []*types.PaperRecord, entries download.Log) {
	idx, err := storage.OpenIndex(cfg.Storage.IndexPath)
	if err != nil {
		logger.Error().Err(err).Msg("opening index")
		return
	}
	defer idx.Close()

	ctx = context.WithoutCancel(ctx)
	if err := idx.UpsertAll(ctx, recs); err != nil {
		logger.Error().Err(err).Msg("indexing papers")
		return
	}
	for _, r := range recs {
		if e, ok := entries[r.ID]; ok {
			if err := idx.RecordDownload(ctx, r.ID, e); err != nil {
				logger.Error().Err(err).Str("paper_id", r.ID).Msg("indexing download")
			}
		}
	}
}
