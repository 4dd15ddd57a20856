// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders run summaries, validation checks and the manual
// PDF hunt priority list.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ssemerikov/scholarextractor/pkg/types"
)

const (
	topVenues = 10
	topCited  = 10
)

// CitationStats describes the citation counts of a working set. Mean,
// Median, Min and Max are taken over records with at least one citation.
type CitationStats struct {
	Total     int     `json:"total"`
	Mean      float64 `json:"mean"`
	Median    int     `json:"median"`
	Min       int     `json:"min"`
	Max       int     `json:"max"`
	ZeroCited int     `json:"zero_cited"`
	Unknown   int     `json:"unknown"`
}

// YearCount is one bucket of the year distribution.
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// VenueCount is one bucket of the venue distribution.
type VenueCount struct {
	Venue string `json:"venue"`
	Count int    `json:"count"`
}

// RelevanceCount is one bucket of the relevance distribution.
type RelevanceCount struct {
	Score float64 `json:"score"`
	Count int     `json:"count"`
}

// Summary is the statistics report for a working set.
type Summary struct {
	GeneratedAt   time.Time            `json:"generated_at"`
	ReferenceYear int                  `json:"reference_year"`
	TotalPapers   int                  `json:"total_papers"`
	Citations     CitationStats        `json:"citations"`
	Years         []YearCount          `json:"years"`
	MeanAge       float64              `json:"mean_age"`
	TopVenues     []VenueCount         `json:"top_venues"`
	UniqueVenues  int                  `json:"unique_venues"`
	WithPDFURL    int                  `json:"with_pdf_url"`
	Downloaded    int                  `json:"downloaded"`
	TopCited      []*types.PaperRecord `json:"top_cited"`
	Relevance     []RelevanceCount     `json:"relevance"`
}

// PDFShare returns the percentage of records with a PDF URL.
func (s Summary) PDFShare() float64 {
	return percent(s.WithPDFURL, s.TotalPapers)
}

// Summarize computes the statistics report. refYear anchors MeanAge.
func Summarize(recs []*types.PaperRecord, refYear int) Summary {
	s := Summary{
		GeneratedAt:   time.Now().UTC(),
		ReferenceYear: refYear,
		TotalPapers:   len(recs),
	}

	var cites []int
	years := map[int]int{}
	venues := map[string]int{}
	relevance := map[float64]int{}
	ageSum, aged := 0, 0

	for _, r := range recs {
		switch {
		case !r.CitationsKnown:
			s.Citations.Unknown++
		case r.Citations == 0:
			s.Citations.ZeroCited++
		default:
			cites = append(cites, r.Citations)
		}
		if r.Year > 0 {
			years[r.Year]++
			ageSum += refYear - r.Year
			aged++
		}
		if r.Venue != "" {
			venues[r.Venue]++
		}
		if r.HasPDF() {
			s.WithPDFURL++
		}
		if r.PDFDownloaded {
			s.Downloaded++
		}
		relevance[r.RelevanceScore]++
	}

	if len(cites) > 0 {
		sort.Ints(cites)
		for _, c := range cites {
			s.Citations.Total += c
		}
		s.Citations.Mean = float64(s.Citations.Total) / float64(len(cites))
		s.Citations.Median = cites[len(cites)/2]
		s.Citations.Min = cites[0]
		s.Citations.Max = cites[len(cites)-1]
	}
	if aged > 0 {
		s.MeanAge = float64(ageSum) / float64(aged)
	}

	for y, n := range years {
		s.Years = append(s.Years, YearCount{Year: y, Count: n})
	}
	sort.Slice(s.Years, func(i, j int) bool { return s.Years[i].Year < s.Years[j].Year })

	s.UniqueVenues = len(venues)
	for v, n := range venues {
		s.TopVenues = append(s.TopVenues, VenueCount{Venue: v, Count: n})
	}
	sort.Slice(s.TopVenues, func(i, j int) bool {
		if s.TopVenues[i].Count != s.TopVenues[j].Count {
			return s.TopVenues[i].Count > s.TopVenues[j].Count
		}
		return s.TopVenues[i].Venue < s.TopVenues[j].Venue
	})
	if len(s.TopVenues) > topVenues {
		s.TopVenues = s.TopVenues[:topVenues]
	}

	for score, n := range relevance {
		s.Relevance = append(s.Relevance, RelevanceCount{Score: score, Count: n})
	}
	sort.Slice(s.Relevance, func(i, j int) bool { return s.Relevance[i].Score > s.Relevance[j].Score })

	byCites := append([]*types.PaperRecord(nil), recs...)
	sort.SliceStable(byCites, func(i, j int) bool { return byCites[i].Citations > byCites[j].Citations })
	if len(byCites) > topCited {
		byCites = byCites[:topCited]
	}
	s.TopCited = byCites

	return s
}

// WriteMarkdown renders s as a Markdown document.
func WriteMarkdown(w io.Writer, s Summary) error {
	var b strings.Builder

	b.WriteString("# Extraction statistics\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", s.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Total papers: %d\n\n", s.TotalPapers)

	b.WriteString("## Citations\n\n")
	c := s.Citations
	fmt.Fprintf(&b, "| Total | Mean | Median | Min | Max | Zero | Unknown |\n")
	fmt.Fprintf(&b, "|---|---|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %.1f | %d | %d | %d | %d | %d |\n\n", c.Total, c.Mean, c.Median, c.Min, c.Max, c.ZeroCited, c.Unknown)

	if len(s.Years) > 0 {
		b.WriteString("## Years\n\n")
		for _, y := range s.Years {
			fmt.Fprintf(&b, "- %d: %d papers\n", y.Year, y.Count)
		}
		fmt.Fprintf(&b, "\nMean age (relative to %d): %.1f years\n\n", s.ReferenceYear, s.MeanAge)
	}

	if len(s.TopVenues) > 0 {
		fmt.Fprintf(&b, "## Top %d venues\n\n", len(s.TopVenues))
		for _, v := range s.TopVenues {
			fmt.Fprintf(&b, "- %dx %s\n", v.Count, v.Venue)
		}
		fmt.Fprintf(&b, "\nTotal unique venues: %d\n\n", s.UniqueVenues)
	}

	b.WriteString("## PDF availability\n\n")
	fmt.Fprintf(&b, "- With PDF URL: %d/%d (%.1f%%)\n", s.WithPDFURL, s.TotalPapers, s.PDFShare())
	fmt.Fprintf(&b, "- Downloaded: %d\n\n", s.Downloaded)

	if len(s.Relevance) > 0 {
		b.WriteString("## Relevance\n\n")
		for _, r := range s.Relevance {
			fmt.Fprintf(&b, "- %.1f: %d papers\n", r.Score, r.Count)
		}
		b.WriteString("\n")
	}

	if len(s.TopCited) > 0 {
		b.WriteString("## Most cited\n\n")
		for i, p := range s.TopCited {
			fmt.Fprintf(&b, "%d. %s (%s, %d citations)\n", i+1, p.Title, yearString(p.Year), p.Citations)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func yearString(y int) string {
	if y == 0 {
		return "n.d."
	}
	return fmt.Sprint(y)
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
