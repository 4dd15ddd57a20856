// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ssemerikov/scholarextractor/internal/download"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download and verify the PDFs of an export",
	Long: `Download fetches the PDF of every paper that has a PDF URL. Files go to
a temporary name, are checked for the %PDF signature (and with --strict,
parsed as a PDF document), and are renamed into place only when valid.
Files already on disk are not fetched again. Outcomes are recorded in
download_log.json in the papers directory and in the paper index.`,
	RunE: runDownload,
}

func init() {
	f := downloadCmd.Flags()
	f.String("input", "", "JSON export to read and update (default <metadata-dir>/selected.json)")
	f.String("papers-dir", "", "directory for PDFs (default data/papers)")
	f.Bool("strict", false, "require files to parse as PDF documents")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg := pipelineCfg
	input := pathFlag(cmd, "input", metadataPath(cfg, "selected.json"))
	recs, q, err := loadRecords(input)
	if err != nil {
		return err
	}

	dl := download.New(newSession(cfg.Download.HTTPConfig), cfg.Download, logger)
	result, dlErr := dl.DownloadAll(cmd.Context(), recs, cmd.OutOrStdout())

	if err := saveRecords(input, recs, q); err != nil {
		return err
	}
	indexDownloads(cmd.Context(), cfg, recs, dl.Entries())

	if dlErr != nil {
		return dlErr
	}
	if result.HasFailures() {
		return eris.Errorf("%d download(s) failed; see %s", result.Failed, dl.LogPath())
	}
	return nil
}

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Retry failed and invalid downloads from the download log",
	Long: `Retry walks download_log.json and attempts every failed or invalid entry
again. 403 and 404 answers are not retried; server errors are retried with
a growing pause, up to three attempts. A response that is not a PDF is saved
beside the target with an .html extension for inspection.

With --input, recovered files are marked as downloaded in that export.`,
	RunE: runRetry,
}

func init() {
	f := retryCmd.Flags()
	f.String("input", "", "JSON export to mark recovered papers in")
	f.String("papers-dir", "", "directory for PDFs (default data/papers)")
	f.Bool("strict", false, "require files to parse as PDF documents")

	rootCmd.AddCommand(retryCmd)
}

func runRetry(cmd *cobra.Command, args []string) error {
	cfg := pipelineCfg
	w := cmd.OutOrStdout()

	dl := download.New(newSession(cfg.Download.HTTPConfig), cfg.Download, logger)
	result, retryErr := dl.Retry(cmd.Context(), w)

	stats := dl.Entries().Stats()
	fmt.Fprintf(w, "Log: %d downloaded, %d failed, %d invalid\n", stats.Success, stats.Failed, stats.Invalid)

	input, _ := cmd.Flags().GetString("input")
	if input == "" {
		if _, err := os.Stat(metadataPath(cfg, "selected.json")); err == nil {
			input = metadataPath(cfg, "selected.json")
		}
	}
	if input != "" {
		recs, q, err := loadRecords(input)
		if err != nil {
			return err
		}
		n := dl.Entries().Apply(recs, cfg.Download.PapersDir)
		if err := saveRecords(input, recs, q); err != nil {
			return err
		}
		indexDownloads(cmd.Context(), cfg, recs, dl.Entries())
		fmt.Fprintf(w, "Marked %d papers as downloaded in %s\n", n, input)
	}

	if retryErr != nil {
		return retryErr
	}
	if result.HasFailures() {
		return eris.Errorf("%d download(s) still failing", result.Failed)
	}
	return nil
}
