// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

// ErrMissingTitle is returned when a record is built without a title.
var ErrMissingTitle = eris.New("paper record: title is required")

// PaperRecord is the canonical in-memory representation of one candidate
// paper. Producers create it with no scores set; the scorer, ranker and
// downloader mutate it in place.
type PaperRecord struct {
	// ID is source-assigned (Semantic Scholar paperId) or derived from the
	// title hash for scraped results.
	ID string `json:"id" yaml:"id"`

	// Title drives deduplication and relevance scoring.
	Title string `json:"title" yaml:"title" validate:"required"`

	// Authors lists display names in source order. The first entry is the
	// primary author.
	Authors []string `json:"authors" yaml:"authors"`

	// Year is the 4-digit publication year, 0 when unknown.
	Year int `json:"year,omitempty" yaml:"year,omitempty" validate:"omitempty,min=1000,max=9999"`

	Venue    string `json:"venue" yaml:"venue"`
	Abstract string `json:"abstract" yaml:"abstract"`

	// Citations is never negative. Absent citation data is stored as 0 and
	// CitationsKnown stays false, so exports keep the two apart.
	Citations      int  `json:"citations" yaml:"citations" validate:"min=0"`
	CitationsKnown bool `json:"citations_known" yaml:"citations_known"`

	// URL is the landing page.
	URL string `json:"url" yaml:"url"`

	// DOI is lowercase with no resolver prefix.
	DOI string `json:"doi" yaml:"doi"`

	// PDFURL is the PDF-availability signal.
	PDFURL string `json:"pdf_url" yaml:"pdf_url"`

	// PDFDownloaded implies PDFPath names a verified PDF on disk.
	PDFDownloaded bool   `json:"pdf_downloaded" yaml:"pdf_downloaded"`
	PDFPath       string `json:"pdf_path" yaml:"pdf_path"`

	// RelevanceScore and RankScore are derived and recomputed on demand.
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`
	RankScore      float64 `json:"rank_score" yaml:"rank_score"`

	// SourceQuery tags which query produced the record.
	SourceQuery string `json:"source_query,omitempty" yaml:"source_query,omitempty"`

	ExtractedAt time.Time `json:"extracted_at" yaml:"extracted_at"`
}

// NewPaperRecord returns a record with the documented defaults applied.
func NewPaperRecord(title string) *PaperRecord {
	return &PaperRecord{
		Title:       strings.TrimSpace(title),
		Authors:     []string{},
		ExtractedAt: time.Now().UTC(),
	}
}

// HasPDF reports whether the record carries a PDF lead.
func (p *PaperRecord) HasPDF() bool {
	return p.PDFURL != ""
}

// HasDOI reports whether the record carries a DOI.
func (p *PaperRecord) HasDOI() bool {
	return p.DOI != ""
}

// FirstAuthor returns the primary author or "".
func (p *PaperRecord) FirstAuthor() string {
	if len(p.Authors) == 0 {
		return ""
	}
	return p.Authors[0]
}

// SetCitations stores a citation count, clamping negatives to zero.
func (p *PaperRecord) SetCitations(n int) {
	if n < 0 {
		n = 0
	}
	p.Citations = n
	p.CitationsKnown = true
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the structural invariants of the record.
func (p *PaperRecord) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return ErrMissingTitle
	}
	if err := recordValidator().Struct(p); err != nil {
		return eris.Wrapf(err, "paper record %q", p.ID)
	}
	return nil
}

// NormalizeDOI lowercases a DOI and strips resolver prefixes.
func NormalizeDOI(doi string) string {
	d := strings.ToLower(strings.TrimSpace(doi))
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		d = strings.TrimPrefix(d, prefix)
	}
	return strings.TrimSpace(d)
}

// PaperFromMap converts an untyped mapping (for example a decoded JSON
// object) into a PaperRecord. A missing title is an error; every other
// field falls back to its default. Unknown keys are ignored.
func PaperFromMap(m map[string]any) (*PaperRecord, error) {
	title, _ := m["title"].(string)
	if strings.TrimSpace(title) == "" {
		return nil, ErrMissingTitle
	}

	p := NewPaperRecord(title)
	p.ID = stringField(m, "id")
	p.Venue = stringField(m, "venue")
	p.Abstract = stringField(m, "abstract")
	p.URL = stringField(m, "url")
	p.DOI = NormalizeDOI(stringField(m, "doi"))
	p.PDFURL = stringField(m, "pdf_url")
	p.PDFPath = stringField(m, "pdf_path")
	p.SourceQuery = stringField(m, "source_query")

	if v, ok := m["pdf_downloaded"].(bool); ok {
		p.PDFDownloaded = v
	}
	if year, ok := intField(m, "year"); ok {
		p.Year = year
	}
	if c, ok := intField(m, "citations"); ok {
		p.SetCitations(c)
		// Older exports carry no flag; a count on its own is taken as known.
		if known, ok := m["citations_known"].(bool); ok {
			p.CitationsKnown = known
		}
	}
	if v, ok := m["relevance_score"].(float64); ok {
		p.RelevanceScore = v
	}
	if v, ok := m["rank_score"].(float64); ok {
		p.RankScore = v
	}
	if raw, ok := m["extracted_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			p.ExtractedAt = t
		}
	}

	switch authors := m["authors"].(type) {
	case []any:
		for _, a := range authors {
			if s, ok := a.(string); ok && s != "" {
				p.Authors = append(p.Authors, s)
			}
		}
	case []string:
		p.Authors = append(p.Authors, authors...)
	case string:
		for _, a := range strings.Split(authors, ";") {
			if a = strings.TrimSpace(a); a != "" {
				p.Authors = append(p.Authors, a)
			}
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// intField accepts JSON numbers and numeric strings.
func intField(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// PDFSource is a PDF location found by one of the hunter sources. It is
// consumed immediately: on success its URL is copied into the record.
type PDFSource struct {
	URL          string `json:"url" yaml:"url"`
	SourceName   string `json:"source_name" yaml:"source_name"`
	IsOpenAccess bool   `json:"is_open_access" yaml:"is_open_access"`
	License      string `json:"license,omitempty" yaml:"license,omitempty"`
}

// DownloadStatus is the outcome of one fetch-and-verify attempt.
type DownloadStatus string

const (
	DownloadSuccess DownloadStatus = "success"
	DownloadInvalid DownloadStatus = "invalid"
	DownloadFailed  DownloadStatus = "failed"
	DownloadSkipped DownloadStatus = "skipped"
)

// DownloadEntry is one line of the download log.
type DownloadEntry struct {
	Status     DownloadStatus `json:"status" yaml:"status"`
	Filename   string         `json:"filename,omitempty" yaml:"filename,omitempty"`
	URL        string         `json:"url" yaml:"url"`
	Error      string         `json:"error,omitempty" yaml:"error,omitempty"`
	StatusCode int            `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Title      string         `json:"title,omitempty" yaml:"title,omitempty"`
}
