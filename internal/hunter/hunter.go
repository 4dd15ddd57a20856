// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package hunter

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/ssemerikov/scholarextractor/internal/httputil"
	"github.com/ssemerikov/scholarextractor/internal/observability"
	"github.com/ssemerikov/scholarextractor/pkg/types"
)

// State is the per-paper hunt state.
type State string

const (
	StateNotStarted State = "not_started"
	StateTrying     State = "trying"
	StateFound      State = "found"
	StateExhausted  State = "exhausted"
)

// Outcome records how one paper's hunt ended.
type Outcome struct {
	PaperID string
	State   State

	// Tried lists the sources consulted, in order.
	Tried []string

	// Faults counts sources that failed rather than answered.
	Faults int

	Source *types.PDFSource
}

// Hit pairs a paper with the PDF location found for it.
type Hit struct {
	PaperID string
	Source  types.PDFSource
}

// Stats accumulates per-batch counts.
type Stats struct {
	Attempted int            `json:"attempted"`
	Found     int            `json:"found"`
	NotFound  int            `json:"not_found"`
	BySource  map[string]int `json:"by_source"`
}

// SuccessRate returns found/attempted as a percentage.
func (s Stats) SuccessRate() float64 {
	if s.Attempted == 0 {
		return 0
	}
	return float64(s.Found) / float64(s.Attempted) * 100
}

// SourceNames returns the source names that produced hits, sorted.
func (s Stats) SourceNames() []string {
	names := make([]string, 0, len(s.BySource))
	for n := range s.BySource {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Hunter walks a fixed-order chain of sources.
type Hunter struct {
	sources []Source
	cfg     types.HuntConfig
	log     zerolog.Logger
	stats   Stats
}

// New creates a Hunter over the given sources, tried in order.
func New(cfg types.HuntConfig, log zerolog.Logger, sources ...Source) *Hunter {
	return &Hunter{
		sources: sources,
		cfg:     cfg,
		log:     log,
		stats:   Stats{BySource: make(map[string]int)},
	}
}

// NewDefault creates a Hunter with Unpaywall, CORE and CrossRef.
func NewDefault(client *http.Client, cfg types.HuntConfig, log zerolog.Logger) *Hunter {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return New(cfg, log,
		&UnpaywallSource{Client: client, Config: cfg},
		&CORESource{Client: client, Config: cfg},
		&CrossRefSource{Client: client, Config: cfg},
	)
}

// Sources returns the names of the configured sources in chain order.
func (h *Hunter) Sources() []string {
	names := make([]string, len(h.sources))
	for i, s := range h.sources {
		names[i] = s.Name()
	}
	return names
}

// Stats returns a copy of the accumulated statistics.
func (h *Hunter) Stats() Stats {
	out := h.stats
	out.BySource = make(map[string]int, len(h.stats.BySource))
	for k, v := range h.stats.BySource {
		out.BySource[k] = v
	}
	return out
}

// Find consults each source in order and stops at the first hit. A
// source fault is logged and treated as "not found". Only context
// cancellation is returned as an error.
func (h *Hunter) Find(ctx context.Context, paper *types.PaperRecord) (Outcome, error) {
	out := Outcome{PaperID: paper.ID, State: StateNotStarted}
	log := observability.WithPaper(h.log, paper)

	// The pause only separates requests; sources that cannot use the
	// paper are passed over without one.
	requested := false
	for _, src := range h.sources {
		if a, ok := src.(applier); ok && !a.Applies(paper) {
			continue
		}
		if requested {
			if err := httputil.Sleep(ctx, h.cfg.SourceDelay); err != nil {
				return out, err
			}
		}
		requested = true
		out.State = StateTrying
		out.Tried = append(out.Tried, src.Name())

		found, err := src.FindPDF(ctx, paper)
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		if err != nil {
			out.Faults++
			log.Debug().Err(err).Str("source", src.Name()).Msg("source failed, trying next")
			continue
		}
		if found != nil && found.URL != "" {
			out.State = StateFound
			out.Source = found
			log.Info().Str("source", found.SourceName).Str("url", found.URL).Msg("PDF found")
			return out, nil
		}
	}

	out.State = StateExhausted
	log.Debug().Strs("tried", out.Tried).Msg("no PDF found")
	return out, nil
}

// HuntBatch hunts for every paper that lacks a PDF URL. Papers that
// already carry one are skipped without consulting any source. On
// cancellation the hits gathered so far are returned with the error.
func (h *Hunter) HuntBatch(ctx context.Context, papers []*types.PaperRecord) ([]Hit, error) {
	var hits []Hit
	first := true
	for _, p := range papers {
		if p.HasPDF() {
			continue
		}
		if !first {
			if err := httputil.Sleep(ctx, h.cfg.PaperDelay); err != nil {
				return hits, err
			}
		}
		first = false

		h.stats.Attempted++
		out, err := h.Find(ctx, p)
		if err != nil {
			h.stats.Attempted--
			return hits, err
		}
		if out.State == StateFound {
			h.stats.Found++
			h.stats.BySource[out.Source.SourceName]++
			hits = append(hits, Hit{PaperID: p.ID, Source: *out.Source})
		} else {
			h.stats.NotFound++
		}
	}
	return hits, nil
}

// Apply copies hit URLs into the matching records, never overwriting an
// existing PDF URL. It returns the number of records updated.
func Apply(papers []*types.PaperRecord, hits []Hit) int {
	byID := make(map[string]*types.PaperRecord, len(papers))
	for _, p := range papers {
		byID[p.ID] = p
	}
	n := 0
	for _, hit := range hits {
		p, ok := byID[hit.PaperID]
		if !ok || p.HasPDF() {
			continue
		}
		p.PDFURL = hit.Source.URL
		n++
	}
	return n
}

// Report is the persisted summary of a hunt run.
type Report struct {
	HuntDate       string        `json:"hunt_date"`
	PapersSearched int           `json:"papers_searched"`
	PDFsFound      int           `json:"pdfs_found"`
	PDFsDownloaded int           `json:"pdfs_downloaded"`
	SourcesUsed    []string      `json:"sources_used"`
	FoundPapers    []ReportEntry `json:"found_papers"`
}

// ReportEntry is one found PDF in a Report.
type ReportEntry struct {
	PaperID      string `json:"paper_id"`
	PDFURL       string `json:"pdf_url"`
	Source       string `json:"source"`
	IsOpenAccess bool   `json:"is_open_access"`
	License      string `json:"license,omitempty"`
}

// NewReport builds a Report from batch statistics and hits.
func NewReport(stats Stats, hits []Hit, downloaded int, at time.Time) Report {
	r := Report{
		HuntDate:       at.Format("2006-01-02 15:04:05"),
		PapersSearched: stats.Attempted,
		PDFsFound:      stats.Found,
		PDFsDownloaded: downloaded,
		SourcesUsed:    stats.SourceNames(),
		FoundPapers:    make([]ReportEntry, 0, len(hits)),
	}
	for _, h := range hits {
		r.FoundPapers = append(r.FoundPapers, ReportEntry{
			PaperID:      h.PaperID,
			PDFURL:       h.Source.URL,
			Source:       h.Source.SourceName,
			IsOpenAccess: h.Source.IsOpenAccess,
			License:      h.Source.License,
		})
	}
	return r
}
