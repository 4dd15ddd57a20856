// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the full extraction: collect from the producers,
// deduplicate, score, select, hunt for PDFs, download, then persist and
// report.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/ssemerikov/scholarextractor/internal/dedup"
	"github.com/ssemerikov/scholarextractor/internal/download"
	"github.com/ssemerikov/scholarextractor/internal/hunter"
	"github.com/ssemerikov/scholarextractor/internal/observability"
	"github.com/ssemerikov/scholarextractor/internal/rank"
	"github.com/ssemerikov/scholarextractor/internal/report"
	"github.com/ssemerikov/scholarextractor/internal/scholar"
	"github.com/ssemerikov/scholarextractor/internal/semantic"
	"github.com/ssemerikov/scholarextractor/internal/storage"
	"github.com/ssemerikov/scholarextractor/pkg/types"
)

// Report file names written under the metadata directory.
const (
	StatisticsFile = "statistics.md"
	PrioritiesFile = "manual_hunt_priorities.txt"
	HuntReportFile = "pdf_hunt_results.json"
	ReferencesFile = "references.yaml"
)

// BulkSearcher is the API producer.
type BulkSearcher interface {
	Search(ctx context.Context, q semantic.Query) ([]*types.PaperRecord, error)
}

// PageSearcher is the result-page producer.
type PageSearcher interface {
	Search(ctx context.Context, startURL string, maxPapers int) (scholar.Outcome, error)
}

// PDFHunter finds PDF locations for records without one.
type PDFHunter interface {
	HuntBatch(ctx context.Context, papers []*types.PaperRecord) ([]hunter.Hit, error)
	Stats() hunter.Stats
}

// Fetcher downloads and verifies PDFs.
type Fetcher interface {
	DownloadAll(ctx context.Context, recs []*types.PaperRecord, w io.Writer) (download.BatchResult, error)
	Entries() download.Log
}

// Deps are the collaborators of Run. Bulk and Store are required; a nil
// Pages, Hunter, Fetcher or Index disables that stage.
type Deps struct {
	Bulk    BulkSearcher
	Pages   PageSearcher
	Hunter  PDFHunter
	Fetcher Fetcher
	Store   *storage.Store
	Index   *storage.Index

	// Out receives progress lines; nil discards them.
	Out io.Writer
	Log zerolog.Logger
}

// Result reports per-stage counts of a run.
type Result struct {
	Collected   int
	QueryErrors int
	Blocked     bool

	Unique  int
	Dropped map[dedup.Reason]int

	Candidates int
	Selected   int
	Threshold  float64
	Relaxed    bool
	Shortfall  bool
	Missing    int

	Hunt        hunter.Stats
	HuntApplied int
	Download    download.BatchResult

	Statistics storage.Statistics
	Checks     []report.Check
}

// Run executes the pipeline. Producer errors skip the failing query. On
// cancellation the network stages stop, everything gathered is still
// persisted, and the context error is returned.
func Run(ctx context.Context, cfg types.PipelineConfig, deps Deps) (Result, error) {
	if deps.Bulk == nil || deps.Store == nil {
		return Result{}, eris.New("pipeline: bulk searcher and store are required")
	}
	out := deps.Out
	if out == nil {
		out = io.Discard
	}
	log := deps.Log.With().Str("component", "pipeline").Logger()

	var res Result
	all := collect(ctx, cfg, deps, out, log, &res)

	fmt.Fprintln(out, "\n=== Processing ===")
	d := dedup.DeduplicateWithStats(all)
	res.Unique = len(d.Records)
	res.Dropped = d.Dropped
	fmt.Fprintf(out, "Deduplicated: %d -> %d (doi %d, id %d, title %d)\n",
		len(all), res.Unique, d.Dropped[dedup.ByDOI], d.Dropped[dedup.ByID], d.Dropped[dedup.ByTitle])

	scorer := rank.DefaultScorer()
	scorer.Apply(d.Records)

	sel := rank.SelectWithFallback(d.Records, cfg.Ranking)
	res.Candidates = sel.Candidates
	res.Selected = len(sel.Records)
	res.Threshold = sel.Threshold
	res.Relaxed = sel.Relaxed
	res.Shortfall = sel.Shortfall
	res.Missing = sel.Missing()
	if sel.Relaxed {
		log.Warn().Float64("threshold", sel.Threshold).Msg("relevance threshold relaxed")
	}
	if sel.Shortfall {
		log.Warn().Int("selected", res.Selected).Int("target", cfg.Ranking.Target).Msg("selection short of target")
	}
	fmt.Fprintf(out, "Selected: %d of %d candidates at relevance >= %.1f\n", res.Selected, res.Candidates, res.Threshold)

	selected := sel.Records
	var hits []hunter.Hit
	if cfg.Run.Hunt && deps.Hunter != nil && ctx.Err() == nil {
		fmt.Fprintln(out, "\n=== PDF hunt ===")
		var err error
		hits, err = deps.Hunter.HuntBatch(ctx, selected)
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("hunt failed")
		}
		res.HuntApplied = hunter.Apply(selected, hits)
		res.Hunt = deps.Hunter.Stats()
		fmt.Fprintf(out, "Hunt: %d found of %d searched (%.1f%%)\n", res.Hunt.Found, res.Hunt.Attempted, res.Hunt.SuccessRate())
	}

	if cfg.Run.Download && deps.Fetcher != nil && ctx.Err() == nil {
		fmt.Fprintln(out, "\n=== PDF download ===")
		var err error
		res.Download, err = deps.Fetcher.DownloadAll(ctx, selected, out)
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("download failed")
		}
	}

	// Persist with a context that survives cancellation so partial results land.
	flushCtx := context.WithoutCancel(ctx)
	if err := persist(flushCtx, cfg, deps, selected, hits, &res, out, log); err != nil {
		return res, err
	}
	return res, ctx.Err()
}

func collect(ctx context.Context, cfg types.PipelineConfig, deps Deps, out io.Writer, log zerolog.Logger, res *Result) []*types.PaperRecord {
	fmt.Fprintln(out, "=== Collection ===")
	useScholar := cfg.Run.UseScholar && deps.Pages != nil

	var all []*types.PaperRecord
	for i, q := range cfg.Run.Queries {
		if ctx.Err() != nil {
			break
		}
		qlog := observability.WithQuery(log, q)

		recs, err := deps.Bulk.Search(ctx, semantic.Query{Text: q, YearMin: cfg.Run.YearMin, YearMax: cfg.Run.YearMax})
		if err != nil {
			if ctx.Err() != nil {
				all = append(all, tag(recs, q)...)
				break
			}
			res.QueryErrors++
			qlog.Error().Err(err).Msg("bulk search failed; skipping query")
			fmt.Fprintf(out, "Query %d: %q failed: %v\n", i+1, q, err)
			continue
		}
		all = append(all, tag(recs, q)...)
		fmt.Fprintf(out, "Query %d: %q -> %d papers\n", i+1, q, len(recs))

		if !useScholar {
			continue
		}
		o, err := deps.Pages.Search(ctx, scholar.BuildURL(cfg.Scholar, q, cfg.Run.YearMin, cfg.Run.YearMax), cfg.Semantic.PapersPerQuery)
		all = append(all, tag(o.Papers, q)...)
		switch {
		case o.Blocked:
			res.Blocked = true
			useScholar = false
			qlog.Warn().Int("papers", len(o.Papers)).Msg("result pages blocked; continuing with the API only")
		case err != nil && ctx.Err() == nil:
			res.QueryErrors++
			qlog.Error().Err(err).Msg("result page traversal failed")
		}
		fmt.Fprintf(out, "  result pages: %d papers from %d pages\n", len(o.Papers), o.Pages)
	}
	res.Collected = len(all)
	fmt.Fprintf(out, "Total collected: %d papers\n", res.Collected)
	return all
}

func tag(recs []*types.PaperRecord, q string) []*types.PaperRecord {
	for _, r := range recs {
		if r.SourceQuery == "" {
			r.SourceQuery = q
		}
	}
	return recs
}

func persist(ctx context.Context, cfg types.PipelineConfig, deps Deps, selected []*types.PaperRecord, hits []hunter.Hit, res *Result, out io.Writer, log zerolog.Logger) error {
	fmt.Fprintln(out, "\n=== Export ===")
	store := deps.Store
	store.Replace(selected)
	store.SetQuery("", fmt.Sprintf("%d queries, %d-%d", len(cfg.Run.Queries), cfg.Run.YearMin, cfg.Run.YearMax))
	if err := store.Save(); err != nil {
		return eris.Wrap(err, "saving metadata")
	}
	if err := store.Checkpoint("run"); err != nil {
		log.Error().Err(err).Msg("checkpoint failed")
	}
	fmt.Fprintf(out, "Saved: %s\nSaved: %s\n", store.JSONPath(), store.CSVPath())

	if deps.Index != nil {
		if err := indexRun(ctx, deps, selected); err != nil {
			log.Error().Err(err).Msg("updating index failed")
		}
	}

	metaDir := filepath.Dir(store.JSONPath())
	if deps.Hunter != nil && cfg.Run.Hunt {
		rep := hunter.NewReport(res.Hunt, hits, res.Download.Downloaded, time.Now())
		if err := writeJSON(filepath.Join(metaDir, HuntReportFile), rep); err != nil {
			log.Error().Err(err).Msg("writing hunt report failed")
		}
	}

	summary := report.Summarize(selected, cfg.Ranking.ReferenceYear)
	if err := writeWith(filepath.Join(metaDir, StatisticsFile), func(w io.Writer) error {
		return report.WriteMarkdown(w, summary)
	}); err != nil {
		log.Error().Err(err).Msg("writing statistics failed")
	}
	if err := writeWith(filepath.Join(metaDir, PrioritiesFile), func(w io.Writer) error {
		return report.WritePriorityList(w, report.Prioritize(selected))
	}); err != nil {
		log.Error().Err(err).Msg("writing priority list failed")
	}
	if err := writeWith(filepath.Join(metaDir, ReferencesFile), func(w io.Writer) error {
		return report.WriteCSL(w, selected)
	}); err != nil {
		log.Error().Err(err).Msg("writing references failed")
	}

	res.Statistics = store.Statistics()
	res.Checks = report.Validate(selected, report.CriteriaFrom(cfg, res.Threshold))
	fmt.Fprintln(out, "\n=== Validation ===")
	report.WriteChecks(out, res.Checks)
	return nil
}

func indexRun(ctx context.Context, deps Deps, selected []*types.PaperRecord) error {
	if err := deps.Index.UpsertAll(ctx, selected); err != nil {
		return err
	}
	if deps.Fetcher == nil {
		return nil
	}
	entries := deps.Fetcher.Entries()
	for _, r := range selected {
		e, ok := entries[r.ID]
		if !ok {
			continue
		}
		if err := deps.Index.RecordDownload(ctx, r.ID, e); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encoding JSON")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "writing %s", path)
	}
	return nil
}

func writeWith(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "creating %s", path)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
