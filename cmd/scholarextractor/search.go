// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssemerikov/scholarextractor/internal/dedup"
	"github.com/ssemerikov/scholarextractor/internal/semantic"
	"github.com/ssemerikov/scholarextractor/internal/storage"
	"github.com/ssemerikov/scholarextractor/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the Semantic Scholar API for candidate papers",
	Long: `Search runs each --query (default: the configured queries) against the
Semantic Scholar bulk search API, sorted by citation count and restricted to
the year range. Results are deduplicated across queries and written as
JSON and CSV.

Without an API key requests are limited to one per second.`,
	RunE: runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.StringArray("query", nil, "search query (repeatable)")
	f.Int("year-min", 0, "earliest publication year")
	f.Int("year-max", 0, "latest publication year")
	f.Int("limit", 0, "maximum papers per query (default 100)")
	f.Int("min-citations", 0, "minimum citation count")
	f.String("api-key", "", "Semantic Scholar API key")
	f.String("output", "", "JSON output path (default <metadata-dir>/metadata.json)")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := pipelineCfg
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	if _, err := openStore(cfg); err != nil {
		return err
	}

	client := semantic.NewClient(&http.Client{Timeout: cfg.Semantic.Timeout}, cfg.Semantic, logger)

	var all []*types.PaperRecord
	for i, q := range cfg.Run.Queries {
		recs, err := client.Search(ctx, semantic.Query{
			Text:    q,
			YearMin: cfg.Run.YearMin,
			YearMax: cfg.Run.YearMax,
			Limit:   cfg.Semantic.PapersPerQuery,
		})
		all = append(all, recs...)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Error().Err(err).Str("query", q).Msg("search failed; skipping query")
			fmt.Fprintf(w, "Query %d: %q failed\n", i+1, q)
			continue
		}
		fmt.Fprintf(w, "Query %d: %q -> %d papers\n", i+1, q, len(recs))
	}

	d := dedup.DeduplicateWithStats(all)
	fmt.Fprintf(w, "Collected %d, unique %d (doi %d, id %d, title %d)\n",
		len(all), len(d.Records), d.Dropped[dedup.ByDOI], d.Dropped[dedup.ByID], d.Dropped[dedup.ByTitle])

	path := pathFlag(cmd, "output", defaultExport(cfg))
	q := storage.QueryInfo{
		URL:         "semantic-scholar:bulk",
		Description: strings.Join(cfg.Run.Queries, " | "),
		ExecutedAt:  time.Now().UTC(),
	}
	if err := saveRecords(path, d.Records, q); err != nil {
		return err
	}
	fmt.Fprintf(w, "Saved: %s\n", path)
	return ctx.Err()
}
