// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/ssemerikov/scholarextractor/internal/download"
	"github.com/ssemerikov/scholarextractor/internal/hunter"
	"github.com/ssemerikov/scholarextractor/internal/pipeline"
	"github.com/ssemerikov/scholarextractor/internal/report"
	"github.com/ssemerikov/scholarextractor/internal/scholar"
	"github.com/ssemerikov/scholarextractor/internal/semantic"
	"github.com/ssemerikov/scholarextractor/internal/storage"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage: collect, select, hunt, download, report",
	Long: `Run collects candidates for each configured query from the Semantic
Scholar API (and Scholar result pages with --scholar), deduplicates, scores
and selects the top --target papers, hunts for missing PDFs, downloads and
verifies them, then writes the exports, statistics and a priority list for
the papers still missing a PDF.

Interrupting the run stops the network stages; everything gathered so far
is still written.`,
	RunE: runPipeline,
}

func init() {
	f := runCmd.Flags()
	f.StringArray("query", nil, "search query (repeatable; default: configured queries)")
	f.Int("year-min", 0, "earliest publication year")
	f.Int("year-max", 0, "latest publication year")
	f.Int("target", 0, "number of papers to select")
	f.Float64("threshold", 0, "relevance threshold")
	f.Bool("scholar", false, "also scrape Scholar result pages")
	f.Bool("no-hunt", false, "skip the PDF hunt")
	f.Bool("no-download", false, "skip PDF downloads")
	f.Bool("strict", false, "require downloads to parse as PDF documents")

	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg := pipelineCfg
	w := cmd.OutOrStdout()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	idx, err := storage.OpenIndex(cfg.Storage.IndexPath)
	if err != nil {
		return err
	}
	defer idx.Close()

	deps := pipeline.Deps{
		Bulk:  semantic.NewClient(&http.Client{Timeout: cfg.Semantic.Timeout}, cfg.Semantic, logger),
		Store: store,
		Index: idx,
		Out:   w,
		Log:   logger,
	}
	// Interface fields stay nil unless the stage is wired.
	if cfg.Run.UseScholar {
		deps.Pages = scholar.NewSearcher(newSession(cfg.Scholar.HTTPConfig), cfg.Scholar, store, logger)
	}
	if cfg.Run.Hunt {
		deps.Hunter = hunter.NewDefault(&http.Client{Timeout: cfg.Hunt.Timeout}, cfg.Hunt, logger)
	}
	if cfg.Run.Download {
		deps.Fetcher = download.New(newSession(cfg.Download.HTTPConfig), cfg.Download, logger)
	}

	fmt.Fprintf(w, "Run %s: %d queries, years %d-%d, target %d\n",
		store.RunID(), len(cfg.Run.Queries), cfg.Run.YearMin, cfg.Run.YearMax, cfg.Ranking.Target)

	res, runErr := pipeline.Run(cmd.Context(), cfg, deps)

	fmt.Fprintln(w, "\n=== Summary ===")
	fmt.Fprintf(w, "Collected %d, unique %d, selected %d (threshold %.1f)\n",
		res.Collected, res.Unique, res.Selected, res.Threshold)
	if res.QueryErrors > 0 {
		fmt.Fprintf(w, "Queries failed: %d\n", res.QueryErrors)
	}
	if res.Blocked {
		fmt.Fprintln(w, "Scholar pages were blocked; later queries used the API only")
	}
	if res.Shortfall {
		fmt.Fprintf(w, "Short of target by %d papers\n", res.Missing)
	}
	if cfg.Run.Hunt {
		fmt.Fprintf(w, "Hunt: %d found, %d records updated\n", res.Hunt.Found, res.HuntApplied)
	}
	if cfg.Run.Download {
		fmt.Fprintf(w, "Downloads: %d new, %d existing, %d invalid, %d failed, %d without URL\n",
			res.Download.Downloaded, res.Download.Existing, res.Download.Invalid, res.Download.Failed, res.Download.Skipped)
	}
	printStatistics(cmd, res.Statistics)
	fmt.Fprintf(w, "Validation: %d/%d checks passed\n", report.Passed(res.Checks), len(res.Checks))
	fmt.Fprintf(w, "Saved: %s\n", store.JSONPath())
	return runErr
}
