// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"fmt"
	"io"

	"github.com/ssemerikov/scholarextractor/internal/dedup"
	"github.com/ssemerikov/scholarextractor/pkg/types"
)

// Check is the result of one validation check.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Criteria are the targets a final selection is checked against.
type Criteria struct {
	Target    int
	YearMin   int
	YearMax   int
	Threshold float64

	// MinPDFShare is the fraction of records expected to carry a PDF URL.
	MinPDFShare float64
}

// CriteriaFrom derives Criteria from the pipeline configuration.
// threshold is the relevance threshold the selection actually used.
func CriteriaFrom(cfg types.PipelineConfig, threshold float64) Criteria {
	return Criteria{
		Target:      cfg.Ranking.Target,
		YearMin:     cfg.Run.YearMin,
		YearMax:     cfg.Run.YearMax,
		Threshold:   threshold,
		MinPDFShare: 0.2,
	}
}

// Validate runs the post-selection checks over recs.
func Validate(recs []*types.PaperRecord, c Criteria) []Check {
	n := len(recs)
	checks := []Check{{
		Name:   "count",
		Passed: n == c.Target,
		Detail: fmt.Sprintf("%d papers (target %d)", n, c.Target),
	}}

	lo, hi := 0, 0
	for _, r := range recs {
		if r.Year == 0 {
			continue
		}
		if lo == 0 || r.Year < lo {
			lo = r.Year
		}
		if r.Year > hi {
			hi = r.Year
		}
	}
	inRange := lo > 0 && (c.YearMin == 0 || lo >= c.YearMin) && (c.YearMax == 0 || hi <= c.YearMax)
	yearDetail := "no years"
	if lo > 0 {
		yearDetail = fmt.Sprintf("%d-%d", lo, hi)
	}
	checks = append(checks, Check{Name: "year range", Passed: inRange, Detail: yearDetail})

	ids, dois, titles := duplicates(recs)
	checks = append(checks, Check{
		Name:   "duplicates",
		Passed: ids+dois+titles == 0,
		Detail: fmt.Sprintf("%d by id, %d by doi, %d by title", ids, dois, titles),
	})

	untitled := 0
	belowThreshold := 0
	withPDF := 0
	for _, r := range recs {
		if r.Title == "" {
			untitled++
		}
		if r.RelevanceScore < c.Threshold {
			belowThreshold++
		}
		if r.HasPDF() {
			withPDF++
		}
	}
	checks = append(checks,
		Check{Name: "titles", Passed: untitled == 0, Detail: fmt.Sprintf("%d without title", untitled)},
		Check{
			Name:   "relevance",
			Passed: belowThreshold == 0,
			Detail: fmt.Sprintf("%d below threshold %.1f", belowThreshold, c.Threshold),
		},
		Check{
			Name:   "pdf availability",
			Passed: n > 0 && float64(withPDF)/float64(n) >= c.MinPDFShare,
			Detail: fmt.Sprintf("%d/%d (%.1f%%)", withPDF, n, percent(withPDF, n)),
		},
	)
	return checks
}

func duplicates(recs []*types.PaperRecord) (ids, dois, titles int) {
	seenID := map[string]bool{}
	seenDOI := map[string]bool{}
	seenTitle := map[string]bool{}
	for _, r := range recs {
		if r.ID != "" {
			if seenID[r.ID] {
				ids++
			}
			seenID[r.ID] = true
		}
		if r.DOI != "" {
			if seenDOI[r.DOI] {
				dois++
			}
			seenDOI[r.DOI] = true
		}
		t := dedup.NormalizeTitle(r.Title)
		if seenTitle[t] {
			titles++
		}
		seenTitle[t] = true
	}
	return ids, dois, titles
}

// Passed counts the passing checks.
func Passed(checks []Check) int {
	n := 0
	for _, c := range checks {
		if c.Passed {
			n++
		}
	}
	return n
}

// WriteChecks prints one line per check and a pass count.
func WriteChecks(w io.Writer, checks []Check) {
	for _, c := range checks {
		mark := "ok  "
		if !c.Passed {
			mark = "WARN"
		}
		fmt.Fprintf(w, "  [%s] %s: %s\n", mark, c.Name, c.Detail)
	}
	fmt.Fprintf(w, "Validation: %d/%d checks passed\n", Passed(checks), len(checks))
}
