// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package storage persists the paper working set: JSON and CSV exports,
// resumable state checkpoints and a SQLite index of download status.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/ssemerikov/scholarextractor/pkg/types"
)

// QueryInfo describes the search that produced an export.
type QueryInfo struct {
	URL         string    `json:"url"`
	Description string    `json:"description"`
	ExecutedAt  time.Time `json:"executed_at"`
}

// Export is the JSON export document.
type Export struct {
	Papers      []*types.PaperRecord `json:"papers"`
	Query       QueryInfo            `json:"query"`
	TotalPapers int                  `json:"total_papers"`
	SavedAt     time.Time            `json:"saved_at"`
	RunID       string               `json:"run_id,omitempty"`

	// Skipped counts records dropped on load because they failed validation.
	Skipped int `json:"-"`
}

// SaveJSON writes recs with their query description to path.
func SaveJSON(path string, recs []*types.PaperRecord, q QueryInfo) error {
	return saveExport(path, Export{Papers: recs, Query: q}, "")
}

func saveExport(path string, exp Export, runID string) error {
	if exp.Papers == nil {
		exp.Papers = []*types.PaperRecord{}
	}
	exp.TotalPapers = len(exp.Papers)
	exp.SavedAt = time.Now().UTC()
	exp.RunID = runID

	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encoding export")
	}
	return writeFileAtomic(path, data)
}

// LoadJSON reads an export written by SaveJSON. Each record passes through
// types.PaperFromMap; records without a title are counted in Skipped.
func LoadJSON(path string) (*Export, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reading %s", path)
	}

	var raw struct {
		Papers  []map[string]any `json:"papers"`
		Query   QueryInfo        `json:"query"`
		SavedAt time.Time        `json:"saved_at"`
		RunID   string           `json:"run_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrapf(err, "parsing %s", path)
	}

	exp := &Export{Query: raw.Query, SavedAt: raw.SavedAt, RunID: raw.RunID, Papers: make([]*types.PaperRecord, 0, len(raw.Papers))}
	for _, m := range raw.Papers {
		rec, err := types.PaperFromMap(m)
		if err != nil {
			exp.Skipped++
			continue
		}
		exp.Papers = append(exp.Papers, rec)
	}
	exp.TotalPapers = len(exp.Papers)
	return exp, nil
}

// csvRow is the flat CSV shape of a record.
type csvRow struct {
	ID             string  `csv:"id"`
	Title          string  `csv:"title"`
	Authors        string  `csv:"authors"`
	Year           int     `csv:"year,omitempty"`
	Venue          string  `csv:"venue"`
	Abstract       string  `csv:"abstract"`
	Citations      int     `csv:"citations"`
	CitationsKnown bool    `csv:"citations_known"`
	URL            string  `csv:"url"`
	DOI            string  `csv:"doi"`
	PDFURL         string  `csv:"pdf_url"`
	PDFDownloaded  bool    `csv:"pdf_downloaded"`
	PDFPath        string  `csv:"pdf_path"`
	RelevanceScore float64 `csv:"relevance_score"`
	RankScore      float64 `csv:"rank_score"`
	SourceQuery    string  `csv:"source_query"`
	ExtractedAt    string  `csv:"extracted_at"`
}

// SaveCSV writes recs as CSV with authors joined by "; ".
func SaveCSV(path string, recs []*types.PaperRecord) error {
	rows := make([]csvRow, len(recs))
	for i, r := range recs {
		rows[i] = csvRow{
			ID:             r.ID,
			Title:          r.Title,
			Authors:        strings.Join(r.Authors, "; "),
			Year:           r.Year,
			Venue:          r.Venue,
			Abstract:       r.Abstract,
			Citations:      r.Citations,
			CitationsKnown: r.CitationsKnown,
			URL:            r.URL,
			DOI:            r.DOI,
			PDFURL:         r.PDFURL,
			PDFDownloaded:  r.PDFDownloaded,
			PDFPath:        r.PDFPath,
			RelevanceScore: r.RelevanceScore,
			RankScore:      r.RankScore,
			SourceQuery:    r.SourceQuery,
			ExtractedAt:    r.ExtractedAt.Format(time.RFC3339),
		}
	}

	data, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "encoding CSV")
	}
	return writeFileAtomic(path, data)
}

// writeFileAtomic writes data to a sibling temp file and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "creating %s", filepath.Dir(path))
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return eris.Wrap(err, "creating temp file")
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return eris.Wrapf(writeErr, "writing %s", path)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return eris.Wrapf(closeErr, "closing %s", path)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return eris.Wrapf(err, "renaming to %s", path)
	}
	return nil
}
