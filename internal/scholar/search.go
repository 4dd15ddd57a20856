// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scholar

import (
	"context"
	"errors"
	"net/url"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/ssemerikov/scholarextractor/internal/httputil"
	"github.com/ssemerikov/scholarextractor/internal/observability"
	"github.com/ssemerikov/scholarextractor/pkg/types"
)

// Sink receives records as pages are parsed. Known reports IDs gathered
// by an earlier run so a resumed traversal skips them.
type Sink interface {
	Known(id string) bool
	Add(rec *types.PaperRecord) bool
	Checkpoint(query string) error
}

// Outcome summarizes one traversal.
type Outcome struct {
	// Papers are the records added during this traversal.
	Papers []*types.PaperRecord

	Pages   int
	Skipped int

	// Known counts results dropped because the sink already had them.
	Known int

	// Blocked is set when the site served a challenge and traversal stopped.
	Blocked bool
}

// Searcher walks result pages through a paced session.
type Searcher struct {
	session *httputil.Session
	cfg     types.ScholarConfig
	sink    Sink
	log     zerolog.Logger
}

// NewSearcher creates a Searcher.
func NewSearcher(session *httputil.Session, cfg types.ScholarConfig, sink Sink, log zerolog.Logger) *Searcher {
	return &Searcher{session: session, cfg: cfg, sink: sink, log: log}
}

// Search follows result pages from startURL until there is no next link,
// maxPapers new records were added (0 means no cap), MaxPages pages were
// read, or the site blocks the session. A block is not an error: the
// outcome carries Blocked and whatever was gathered. The sink is
// checkpointed every SaveEvery pages and once more on return.
func (s *Searcher) Search(ctx context.Context, startURL string, maxPapers int) (Outcome, error) {
	query := queryOf(startURL)
	log := observability.WithQuery(s.log, query)

	var out Outcome
	defer func() {
		if err := s.sink.Checkpoint(query); err != nil {
			log.Error().Err(err).Msg("final checkpoint failed")
		}
	}()

	current := startURL
	for page := 1; current != ""; page++ {
		log.Info().Int("page", page).Str("url", current).Msg("fetching result page")

		resp, err := s.session.Get(ctx, current)
		if errors.Is(err, httputil.ErrBlocked) {
			log.Error().Err(err).Int("papers", len(out.Papers)).Msg("traversal stopped by bot challenge")
			out.Blocked = true
			return out, nil
		}
		if err != nil {
			return out, err
		}
		if !resp.OK() {
			return out, eris.Errorf("result page %d: HTTP %d", page, resp.StatusCode)
		}

		result, err := ParsePage(resp.Body, resp.URL)
		if err != nil {
			return out, eris.Wrapf(err, "result page %d", page)
		}
		out.Pages++
		out.Skipped += result.Skipped
		log.Debug().Int("page", page).Stringer("result", result).Msg("parsed")

		for _, rec := range result.Records {
			if maxPapers > 0 && len(out.Papers) >= maxPapers {
				break
			}
			if s.sink.Known(rec.ID) {
				out.Known++
				continue
			}
			rec.SourceQuery = query
			if s.sink.Add(rec) {
				out.Papers = append(out.Papers, rec)
			}
		}

		if s.cfg.SaveEvery > 0 && page%s.cfg.SaveEvery == 0 {
			if err := s.sink.Checkpoint(query); err != nil {
				log.Error().Err(err).Msg("checkpoint failed")
			}
		}

		if maxPapers > 0 && len(out.Papers) >= maxPapers {
			break
		}
		if s.cfg.MaxPages > 0 && page >= s.cfg.MaxPages {
			log.Warn().Int("max_pages", s.cfg.MaxPages).Msg("reached page limit")
			break
		}
		current = result.NextURL
	}

	log.Info().Int("papers", len(out.Papers)).Int("pages", out.Pages).Msg("traversal complete")
	return out, ctx.Err()
}

// queryOf returns the q parameter of a search URL, or the URL itself.
func queryOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if q := u.Query().Get("q"); q != "" {
		return q
	}
	return raw
}
