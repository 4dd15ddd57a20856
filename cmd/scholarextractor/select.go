// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssemerikov/scholarextractor/internal/dedup"
	"github.com/ssemerikov/scholarextractor/internal/rank"
	"github.com/ssemerikov/scholarextractor/internal/report"
)

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Deduplicate, score, rank and select papers from an export",
	Long: `Select reads a JSON export, removes duplicates (by DOI, then ID, then
normalized title), scores title relevance and keeps papers at or above the
relevance threshold. Survivors are ranked by citations, recency, PDF
availability and venue, and the top --target are written out.

When too few papers pass, the threshold is relaxed once to the fallback
value.`,
	RunE: runSelect,
}

func init() {
	f := selectCmd.Flags()
	f.String("input", "", "JSON export to read (default <metadata-dir>/metadata.json)")
	f.String("output", "", "JSON output path (default <metadata-dir>/selected.json)")
	f.Int("target", 0, "number of papers to select (default 64)")
	f.Float64("threshold", 0, "relevance threshold (default 0.8)")
	f.Int("reference-year", 0, "year that recency is measured from (default 2025)")

	rootCmd.AddCommand(selectCmd)
}

func runSelect(cmd *cobra.Command, args []string) error {
	cfg := pipelineCfg
	w := cmd.OutOrStdout()

	if _, err := openStore(cfg); err != nil {
		return err
	}
	recs, q, err := loadRecords(pathFlag(cmd, "input", defaultExport(cfg)))
	if err != nil {
		return err
	}

	d := dedup.DeduplicateWithStats(recs)
	fmt.Fprintf(w, "Deduplicated: %d -> %d\n", len(recs), len(d.Records))

	rank.DefaultScorer().Apply(d.Records)
	sel := rank.SelectWithFallback(d.Records, cfg.Ranking)
	if sel.Relaxed {
		fmt.Fprintf(w, "Too few papers at %.1f; relaxed to %.1f\n", cfg.Ranking.RelevanceThreshold, sel.Threshold)
	}
	fmt.Fprintf(w, "Selected: %d of %d candidates (target %d)\n", len(sel.Records), sel.Candidates, cfg.Ranking.Target)
	if len(sel.Records) > 0 {
		n := len(sel.Records)
		fmt.Fprintf(w, "  top score %.1f, median %.1f, lowest %.1f\n",
			sel.Records[0].RankScore, sel.Records[n/2].RankScore, sel.Records[n-1].RankScore)
	}

	path := pathFlag(cmd, "output", metadataPath(cfg, "selected.json"))
	if err := saveRecords(path, sel.Records, q); err != nil {
		return err
	}
	fmt.Fprintf(w, "Saved: %s\n", path)

	report.WriteChecks(w, report.Validate(sel.Records, report.CriteriaFrom(cfg, sel.Threshold)))
	return nil
}
