// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ssemerikov/scholarextractor/internal/hunter"
	"github.com/ssemerikov/scholarextractor/internal/pipeline"
)

var huntCmd = &cobra.Command{
	Use:   "hunt",
	Short: "Find open-access PDF locations for papers without one",
	Long: `Hunt asks Unpaywall, CORE and CrossRef, in that order, for a PDF of each
paper that has no PDF URL yet. The first source with an answer wins. Found
URLs are written back into the export; existing URLs are never replaced.
A JSON report of the hunt is written beside the export.

Unpaywall requires a contact email (--email or the unpaywall-email secret).`,
	RunE: runHunt,
}

func init() {
	f := huntCmd.Flags()
	f.String("input", "", "JSON export to update (default <metadata-dir>/selected.json)")
	f.String("email", "", "contact email for Unpaywall")
	f.String("report", "", "hunt report path (default <metadata-dir>/pdf_hunt_results.json)")

	rootCmd.AddCommand(huntCmd)
}

func runHunt(cmd *cobra.Command, args []string) error {
	cfg := pipelineCfg
	w := cmd.OutOrStdout()

	input := pathFlag(cmd, "input", metadataPath(cfg, "selected.json"))
	recs, q, err := loadRecords(input)
	if err != nil {
		return err
	}

	h := hunter.NewDefault(&http.Client{Timeout: cfg.Hunt.Timeout}, cfg.Hunt, logger)
	fmt.Fprintf(w, "Hunting with %s\n", strings.Join(h.Sources(), ", "))
	hits, huntErr := h.HuntBatch(cmd.Context(), recs)
	for _, hit := range hits {
		fmt.Fprintf(w, "found:   %s via %s\n", hit.PaperID, hit.Source.SourceName)
	}

	applied := hunter.Apply(recs, hits)
	if err := saveRecords(input, recs, q); err != nil {
		return err
	}

	stats := h.Stats()
	fmt.Fprintf(w, "\nHunt summary: %d found of %d searched (%.1f%%), %d records updated\n",
		stats.Found, stats.Attempted, stats.SuccessRate(), applied)
	for _, name := range stats.SourceNames() {
		fmt.Fprintf(w, "  %s: %d\n", name, stats.BySource[name])
	}

	rep := hunter.NewReport(stats, hits, 0, time.Now())
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encoding hunt report")
	}
	reportPath := pathFlag(cmd, "report", metadataPath(cfg, pipeline.HuntReportFile))
	if err := os.WriteFile(reportPath, data, 0o644); err != nil {
		return eris.Wrapf(err, "writing %s", reportPath)
	}
	fmt.Fprintf(w, "Saved: %s\n", reportPath)
	return huntErr
}
