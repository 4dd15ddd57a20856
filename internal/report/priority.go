// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/ssemerikov/scholarextractor/internal/rank"
	"github.com/ssemerikov/scholarextractor/pkg/types"
)

// HuntVenues are the venue fragments that raise manual-hunt priority.
var HuntVenues = []string{
	"Computers & Education",
	"Computers and Education",
	"IEEE",
	"ACM",
	"SIGCSE",
	"Journal of Educational Technology",
	"Educational Technology & Society",
	"British Journal of Educational Technology",
}

const (
	topTier    = 20
	secondTier = 20
)

// Priority is a record scored for manual PDF acquisition.
type Priority struct {
	Record *types.PaperRecord
	Score  int
	Reason string
}

// PriorityScore scores one record out of 100.
func PriorityScore(r *types.PaperRecord) (int, string) {
	var score int
	var reasons []string

	switch c := r.Citations; {
	case c > 100:
		score += 40
		reasons = append(reasons, fmt.Sprintf("highly cited (%d)", c))
	case c > 50:
		score += 30
		reasons = append(reasons, fmt.Sprintf("well cited (%d)", c))
	case c > 10:
		score += 20
	default:
		score += 10
	}

	switch y := r.Year; {
	case y >= 2023:
		score += 30
		reasons = append(reasons, "recent paper")
	case y >= 2020:
		score += 25
	case y >= 2015:
		score += 15
	case y >= 2010:
		score += 10
	default:
		score += 5
	}

	if rank.IsQualityVenue(r.Venue, HuntVenues) {
		score += 20
		reasons = append(reasons, "quality venue")
	} else if r.Venue != "" {
		score += 10
	}

	if r.HasDOI() {
		score += 10
		reasons = append(reasons, "has DOI")
	}

	if len(reasons) == 0 {
		return score, "low priority"
	}
	return score, strings.Join(reasons, ", ")
}

// Prioritize scores recs and sorts them by descending priority. Ties keep
// input order.
func Prioritize(recs []*types.PaperRecord) []Priority {
	out := make([]Priority, len(recs))
	for i, r := range recs {
		score, reason := PriorityScore(r)
		out[i] = Priority{Record: r, Score: score, Reason: reason}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Missing keeps the priorities whose record has no PDF URL.
func Missing(list []Priority) []Priority {
	var out []Priority
	for _, p := range list {
		if !p.Record.HasPDF() {
			out = append(out, p)
		}
	}
	return out
}

// WritePriorityList writes the manual hunt checklist for the records in
// list that still lack a PDF URL: the top 20 in detail with search links,
// the next 20 in brief, then the remainder one per line.
func WritePriorityList(w io.Writer, list []Priority) error {
	missing := Missing(list)
	rule := strings.Repeat("=", 80)
	var b strings.Builder

	fmt.Fprintf(&b, "%s\nMANUAL PDF HUNT - PRIORITY CHECKLIST\n%s\n\n", rule, rule)
	fmt.Fprintf(&b, "Papers without PDFs: %d\n", len(missing))
	fmt.Fprintf(&b, "Papers with PDFs: %d\n\n", len(list)-len(missing))

	fmt.Fprintf(&b, "%s\nTOP %d HIGH-PRIORITY PAPERS\n%s\n\n", rule, topTier, rule)
	for i, p := range missing[:min(topTier, len(missing))] {
		writeDetailed(&b, i+1, p)
	}

	if len(missing) > topTier {
		fmt.Fprintf(&b, "%s\nNEXT %d MEDIUM-PRIORITY PAPERS\n%s\n\n", rule, secondTier, rule)
		end := min(topTier+secondTier, len(missing))
		for i, p := range missing[topTier:end] {
			r := p.Record
			fmt.Fprintf(&b, "[%2d] %s\n", topTier+i+1, clip(r.Title, 70))
			fmt.Fprintf(&b, "     Score: %d | Year: %s | Citations: %d\n", p.Score, yearString(r.Year), r.Citations)
			if r.HasDOI() {
				fmt.Fprintf(&b, "     DOI: https://doi.org/%s\n", r.DOI)
			}
			b.WriteString("     [ ] Found\n\n")
		}
	}

	if rest := len(missing) - topTier - secondTier; rest > 0 {
		fmt.Fprintf(&b, "%s\nREMAINING %d LOW-PRIORITY PAPERS\n%s\n\n", rule, rest, rule)
		for i, p := range missing[topTier+secondTier:] {
			fmt.Fprintf(&b, "[%2d] %s (Score: %d)\n", topTier+secondTier+i+1, clip(p.Record.Title, 60), p.Score)
		}
		b.WriteString("\n")
	}

	writeDistribution(&b, missing)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeDetailed(b *strings.Builder, n int, p Priority) {
	r := p.Record
	fmt.Fprintf(b, "[%2d] Priority Score: %d/100 (%s)\n", n, p.Score, p.Reason)
	fmt.Fprintf(b, "     Title: %s\n", r.Title)

	authors := strings.Join(r.Authors[:min(3, len(r.Authors))], ", ")
	if len(r.Authors) > 3 {
		authors += fmt.Sprintf(" et al. (%d total)", len(r.Authors))
	}
	fmt.Fprintf(b, "     Authors: %s\n", authors)
	fmt.Fprintf(b, "     Year: %s | Citations: %d\n", yearString(r.Year), r.Citations)
	fmt.Fprintf(b, "     Venue: %s\n", r.Venue)
	if r.HasDOI() {
		fmt.Fprintf(b, "     DOI: https://doi.org/%s\n", r.DOI)
	}
	if r.URL != "" {
		fmt.Fprintf(b, "     Landing page: %s\n", r.URL)
	}

	q := url.QueryEscape(r.Title)
	b.WriteString("     Search:\n")
	fmt.Fprintf(b, "     - https://scholar.google.com/scholar?q=%s\n", q)
	fmt.Fprintf(b, "     - https://www.researchgate.net/search/publication?q=%s\n", q)
	if a := r.FirstAuthor(); a != "" {
		fmt.Fprintf(b, "     - https://scholar.google.com/scholar?q=%s\n", url.QueryEscape(a))
	}
	b.WriteString("     [ ] Found PDF\n     [ ] Downloaded\n\n")
}

func writeDistribution(b *strings.Builder, missing []Priority) {
	var high, medium, low, withDOI int
	years := map[int]int{}
	for _, p := range missing {
		switch {
		case p.Score >= 70:
			high++
		case p.Score >= 50:
			medium++
		default:
			low++
		}
		if p.Record.HasDOI() {
			withDOI++
		}
		if p.Record.Year > 0 {
			years[p.Record.Year]++
		}
	}

	b.WriteString("STATISTICS\n")
	fmt.Fprintf(b, "  High (>=70):    %d papers\n", high)
	fmt.Fprintf(b, "  Medium (50-69): %d papers\n", medium)
	fmt.Fprintf(b, "  Low (<50):      %d papers\n", low)
	fmt.Fprintf(b, "  With DOI: %d/%d (%.1f%%)\n", withDOI, len(missing), percent(withDOI, len(missing)))

	ys := make([]int, 0, len(years))
	for y := range years {
		ys = append(ys, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ys)))
	for _, y := range ys {
		fmt.Fprintf(b, "  %d: %d papers\n", y, years[y])
	}
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
