// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rank

import (
	"github.com/ssemerikov/scholarextractor/pkg/types"
)

// Selection is the top-N slice of a ranked sequence.
type Selection struct {
	Records   []*types.PaperRecord
	Requested int

	// Shortfall is set when fewer than Requested records were available.
	// It is a signal for the caller, not an error.
	Shortfall bool
}

// Missing returns how many records the selection is short by.
func (s Selection) Missing() int {
	if !s.Shortfall {
		return 0
	}
	return s.Requested - len(s.Records)
}

// Select returns the first n records of ranked. No diversity balancing is
// applied.
func Select(ranked []*types.PaperRecord, n int) Selection {
	if n < 0 {
		n = 0
	}
	sel := Selection{Requested: n}
	if len(ranked) < n {
		sel.Records = append([]*types.PaperRecord(nil), ranked...)
		sel.Shortfall = true
		return sel
	}
	sel.Records = append([]*types.PaperRecord(nil), ranked[:n]...)
	return sel
}

// Outcome reports how a relevance-filtered selection was reached.
type Outcome struct {
	Selection

	// Threshold is the relevance threshold that produced Records.
	Threshold float64

	// Relaxed is set when the fallback threshold was used.
	Relaxed bool

	// Candidates is the number of records that passed the final filter.
	Candidates int
}

// SelectWithFallback filters records at cfg.RelevanceThreshold, ranks the
// survivors and selects cfg.Target of them. When that falls short it
// retries exactly once at cfg.FallbackThreshold and accepts whatever that
// yields. Records must already carry RelevanceScore.
func SelectWithFallback(records []*types.PaperRecord, cfg types.RankingConfig) Outcome {
	candidates := FilterRelevant(records, cfg.RelevanceThreshold)
	out := Outcome{
		Selection:  Select(Rank(candidates, cfg), cfg.Target),
		Threshold:  cfg.RelevanceThreshold,
		Candidates: len(candidates),
	}
	if !out.Shortfall || cfg.FallbackThreshold >= cfg.RelevanceThreshold {
		return out
	}

	candidates = FilterRelevant(records, cfg.FallbackThreshold)
	return Outcome{
		Selection:  Select(Rank(candidates, cfg), cfg.Target),
		Threshold:  cfg.FallbackThreshold,
		Relaxed:    true,
		Candidates: len(candidates),
	}
}
