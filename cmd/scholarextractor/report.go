// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ssemerikov/scholarextractor/internal/pipeline"
	"github.com/ssemerikov/scholarextractor/internal/report"
	"github.com/ssemerikov/scholarextractor/internal/storage"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize an export and check it against the selection criteria",
	Long: `Report prints citation, year and venue statistics for an export as
Markdown, then validates it: paper count, year range, duplicates, titles,
relevance and PDF availability. With --csl a bibliography is written for
Pandoc or a reference manager; with --export-index the paper index is
written out as YAML.`,
	RunE: runReport,
}

var prioritizeCmd = &cobra.Command{
	Use:   "prioritize",
	Short: "List papers without PDFs in manual search order",
	Long: `Prioritize scores every paper that has no PDF URL by citations, recency,
venue and DOI and writes a tiered checklist for finding the rest by hand.
The top twenty carry search links.`,
	RunE: runPrioritize,
}

func init() {
	f := reportCmd.Flags()
	f.String("input", "", "JSON export to read (default <metadata-dir>/selected.json)")
	f.String("output", "", "write the Markdown summary here instead of stdout")
	f.Float64("threshold", 0, "relevance threshold to validate against (default 0.8)")
	f.String("export-index", "", "also write the paper index as YAML to this path")
	f.String("csl", "", "also write a CSL-YAML bibliography to this path")

	pf := prioritizeCmd.Flags()
	pf.String("input", "", "JSON export to read (default <metadata-dir>/selected.json)")
	pf.String("output", "", "priority list path (default <metadata-dir>/manual_hunt_priorities.txt)")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(prioritizeCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg := pipelineCfg
	w := cmd.OutOrStdout()

	recs, _, err := loadRecords(pathFlag(cmd, "input", metadataPath(cfg, "selected.json")))
	if err != nil {
		return err
	}

	sum := report.Summarize(recs, cfg.Ranking.ReferenceYear)
	if out, _ := cmd.Flags().GetString("output"); out != "" {
		if err := writeTo(out, func(f io.Writer) error { return report.WriteMarkdown(f, sum) }); err != nil {
			return err
		}
		fmt.Fprintf(w, "Saved: %s\n", out)
	} else if err := report.WriteMarkdown(w, sum); err != nil {
		return err
	}

	fmt.Fprintln(w)
	printStatistics(cmd, storage.Stats(recs))
	fmt.Fprintln(w)
	report.WriteChecks(w, report.Validate(recs, report.CriteriaFrom(cfg, cfg.Ranking.RelevanceThreshold)))

	if path, _ := cmd.Flags().GetString("csl"); path != "" {
		if err := writeTo(path, func(f io.Writer) error { return report.WriteCSL(f, recs) }); err != nil {
			return err
		}
		fmt.Fprintf(w, "Saved: %s\n", path)
	}
	if path, _ := cmd.Flags().GetString("export-index"); path != "" {
		idx, err := storage.OpenIndex(cfg.Storage.IndexPath)
		if err != nil {
			return err
		}
		defer idx.Close()
		if err := idx.ExportYAML(cmd.Context(), path); err != nil {
			return err
		}
		fmt.Fprintf(w, "Saved: %s\n", path)
	}
	return nil
}

func runPrioritize(cmd *cobra.Command, args []string) error {
	cfg := pipelineCfg
	w := cmd.OutOrStdout()

	recs, _, err := loadRecords(pathFlag(cmd, "input", metadataPath(cfg, "selected.json")))
	if err != nil {
		return err
	}

	list := report.Prioritize(recs)
	path := pathFlag(cmd, "output", metadataPath(cfg, pipeline.PrioritiesFile))
	if err := writeTo(path, func(f io.Writer) error { return report.WritePriorityList(f, list) }); err != nil {
		return err
	}

	missing := report.Missing(list)
	fmt.Fprintf(w, "%d of %d papers have no PDF\n", len(missing), len(list))
	for i, p := range missing {
		if i == 10 {
			break
		}
		fmt.Fprintf(w, "%2d. [%d] %s (%s)\n", i+1, p.Score, p.Record.Title, p.Reason)
	}
	fmt.Fprintf(w, "Saved: %s\n", path)
	return nil
}

func printStatistics(cmd *cobra.Command, st storage.Statistics) {
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "Statistics:")
	fmt.Fprintf(w, "  Total papers:       %d\n", st.TotalPapers)
	fmt.Fprintf(w, "  With PDF URL:       %d\n", st.PapersWithPDFURL)
	fmt.Fprintf(w, "  PDFs downloaded:    %d\n", st.PapersDownloaded)
	fmt.Fprintf(w, "  With abstract:      %d\n", st.PapersWithAbstract)
	fmt.Fprintf(w, "  With DOI:           %d\n", st.PapersWithDOI)
	fmt.Fprintf(w, "  PDF success rate:   %.2f%%\n", st.PDFSuccessRate)
}

func writeTo(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "creating directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "creating %s", path)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "closing %s", path)
	}
	return nil
}
