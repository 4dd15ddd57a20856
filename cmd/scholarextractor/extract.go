// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ssemerikov/scholarextractor/internal/scholar"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract paper metadata from Scholar result pages",
	Long: `Extract walks Scholar result pages starting from --url (or a URL built
from the first --query and the year range), parses each result into a paper
record and follows the pagination links. Requests are paced and the user
agent rotates. Progress is checkpointed; --resume continues a previous run
and skips papers already collected.

If the site serves a bot challenge, traversal stops and everything gathered
so far is saved.`,
	RunE: runExtract,
}

func init() {
	f := extractCmd.Flags()
	f.String("url", "", "search results URL to start from")
	f.StringArray("query", nil, "search query used when --url is not given")
	f.Int("year-min", 0, "earliest publication year")
	f.Int("year-max", 0, "latest publication year")
	f.Int("max-papers", 0, "stop after this many new papers (0 = no limit)")
	f.Int("max-pages", 0, "maximum result pages to follow")
	f.Duration("delay", 0, "pause between requests (default 8s)")
	f.String("description", "", "description stored with the export")
	f.Bool("resume", false, "resume from the last checkpoint")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg := pipelineCfg
	w := cmd.OutOrStdout()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	if resume, _ := cmd.Flags().GetBool("resume"); resume {
		st, found, err := store.Resume()
		if err != nil {
			return err
		}
		if found {
			fmt.Fprintf(w, "Resuming: %d papers already collected (last %s)\n", len(store.Papers()), st.LastPaperID)
		}
	}

	startURL, _ := cmd.Flags().GetString("url")
	query := startURL
	if startURL == "" {
		if len(cfg.Run.Queries) == 0 {
			return eris.New("provide --url or --query")
		}
		query = cfg.Run.Queries[0]
		startURL = scholar.BuildURL(cfg.Scholar, query, cfg.Run.YearMin, cfg.Run.YearMax)
	}
	store.SetQuery(startURL, pathFlag(cmd, "description", query))

	maxPapers, _ := cmd.Flags().GetInt("max-papers")
	searcher := scholar.NewSearcher(newSession(cfg.Scholar.HTTPConfig), cfg.Scholar, store, logger)
	out, searchErr := searcher.Search(cmd.Context(), startURL, maxPapers)

	if err := store.Save(); err != nil {
		return err
	}

	fmt.Fprintf(w, "Extracted %d new papers from %d pages (%d already known, %d unparseable)\n",
		len(out.Papers), out.Pages, out.Known, out.Skipped)
	printStatistics(cmd, store.Statistics())
	fmt.Fprintf(w, "Saved: %s\nSaved: %s\n", store.JSONPath(), store.CSVPath())

	if out.Blocked {
		fmt.Fprintln(w, "Stopped by a bot challenge. Progress is saved; wait, then rerun with --resume.")
	}
	return searchErr
}
