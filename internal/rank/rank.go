// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rank

import (
	"math"
	"sort"
	"strings"

	"github.com/ssemerikov/scholarextractor/pkg/types"
)

// Weights of the composite score. The theoretical maximum is about 100.
const (
	maxCitationScore = 50.0
	citationScale    = 10.0
	recencyWindow    = 30
	pdfBonus         = 10.0
	venueBonus       = 10.0
)

// Score returns the composite rank score of a record. Higher is better;
// the value has no meaning beyond ordering.
func Score(rec *types.PaperRecord, cfg types.RankingConfig) float64 {
	score := 0.0

	if rec.Citations > 0 {
		score += math.Min(math.Log10(float64(rec.Citations)+1)*citationScale, maxCitationScore)
	}

	if rec.Year > 0 {
		score += math.Max(0, float64(recencyWindow-(cfg.ReferenceYear-rec.Year)))
	}

	if rec.HasPDF() {
		score += pdfBonus
	}

	if IsQualityVenue(rec.Venue, cfg.QualityVenues) {
		score += venueBonus
	}

	return score
}

// IsQualityVenue reports whether venue contains any allow-listed fragment,
// ignoring case.
func IsQualityVenue(venue string, allow []string) bool {
	if venue == "" {
		return false
	}
	lower := strings.ToLower(venue)
	for _, v := range allow {
		if v != "" && strings.Contains(lower, strings.ToLower(v)) {
			return true
		}
	}
	return false
}

// Rank sets RankScore on every record and returns a new slice ordered by
// descending score. Records with equal scores keep their input order.
func Rank(records []*types.PaperRecord, cfg types.RankingConfig) []*types.PaperRecord {
	ranked := make([]*types.PaperRecord, len(records))
	copy(ranked, records)
	for _, r := range ranked {
		r.RankScore = Score(r, cfg)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RankScore > ranked[j].RankScore
	})
	return ranked
}
