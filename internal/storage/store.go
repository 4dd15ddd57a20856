// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package storage

import (
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/ssemerikov/scholarextractor/pkg/types"
)

const stateFile = "extraction_state.json"

// Statistics summarises the working set.
type Statistics struct {
	TotalPapers        int     `json:"total_papers"`
	PapersWithPDFURL   int     `json:"papers_with_pdf_url"`
	PapersDownloaded   int     `json:"papers_with_pdf"`
	PapersWithAbstract int     `json:"papers_with_abstract"`
	PapersWithDOI      int     `json:"papers_with_doi"`
	PDFSuccessRate     float64 `json:"pdf_success_rate"`
}

// Store holds the working set of records in insertion order and writes it
// under the metadata directory.
type Store struct {
	cfg    types.StorageConfig
	log    zerolog.Logger
	runID  string
	query  QueryInfo
	papers []*types.PaperRecord
	byID   map[string]*types.PaperRecord
}

// Open creates the data directories and returns an empty store.
func Open(cfg types.StorageConfig, log zerolog.Logger) (*Store, error) {
	for _, dir := range []string{cfg.DataDir, cfg.MetadataDir, cfg.LogsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "creating %s", dir)
		}
	}
	return &Store{
		cfg:   cfg,
		log:   log.With().Str("component", "storage").Logger(),
		runID: uuid.NewString(),
		byID:  make(map[string]*types.PaperRecord),
	}, nil
}

// RunID identifies this process's writes in exports and checkpoints.
func (s *Store) RunID() string { return s.runID }

// JSONPath returns the path of the JSON export.
func (s *Store) JSONPath() string {
	return filepath.Join(s.cfg.MetadataDir, s.baseName()+".json")
}

// CSVPath returns the path of the CSV export.
func (s *Store) CSVPath() string {
	return filepath.Join(s.cfg.MetadataDir, s.baseName()+".csv")
}

// StatePath returns the path of the resume checkpoint.
func (s *Store) StatePath() string {
	return filepath.Join(s.cfg.MetadataDir, stateFile)
}

func (s *Store) baseName() string {
	if s.cfg.BaseName == "" {
		return "metadata"
	}
	return s.cfg.BaseName
}

// SetQuery records the query the working set came from.
func (s *Store) SetQuery(url, description string) {
	s.query = QueryInfo{URL: url, Description: description, ExecutedAt: time.Now().UTC()}
}

// Known reports whether a record with id is already held.
func (s *Store) Known(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Add appends rec unless its ID is already held. Records without an ID are
// always appended.
func (s *Store) Add(rec *types.PaperRecord) bool {
	if rec == nil {
		return false
	}
	if rec.ID != "" {
		if s.Known(rec.ID) {
			return false
		}
		s.byID[rec.ID] = rec
	}
	s.papers = append(s.papers, rec)
	return true
}

// AddAll adds recs and returns how many were new.
func (s *Store) AddAll(recs []*types.PaperRecord) int {
	n := 0
	for _, r := range recs {
		if s.Add(r) {
			n++
		}
	}
	return n
}

// Replace swaps the working set for recs, for example after selection.
func (s *Store) Replace(recs []*types.PaperRecord) {
	s.papers = nil
	s.byID = make(map[string]*types.PaperRecord, len(recs))
	s.AddAll(recs)
}

// Papers returns the working set in insertion order.
func (s *Store) Papers() []*types.PaperRecord {
	return s.papers
}

// Get returns the record with id, or nil.
func (s *Store) Get(id string) *types.PaperRecord {
	return s.byID[id]
}

// KnownIDs returns the held IDs, sorted.
func (s *Store) KnownIDs() []string {
	ids := make([]string, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// WithoutPDF returns records that have a PDF URL but no downloaded file.
func (s *Store) WithoutPDF() []*types.PaperRecord {
	var out []*types.PaperRecord
	for _, p := range s.papers {
		if p.HasPDF() && !p.PDFDownloaded {
			out = append(out, p)
		}
	}
	return out
}

// Load reads a previous JSON export into the store. A missing export leaves
// the store empty and returns nil.
func (s *Store) Load() (int, error) {
	path := s.JSONPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return 0, nil
	}
	exp, err := LoadJSON(path)
	if err != nil {
		return 0, err
	}
	if exp.Skipped > 0 {
		s.log.Warn().Int("skipped", exp.Skipped).Str("path", path).Msg("dropped invalid records")
	}
	if s.query.URL == "" {
		s.query = exp.Query
	}
	return s.AddAll(exp.Papers), nil
}

// Save writes the JSON and CSV exports.
func (s *Store) Save() error {
	if err := saveExport(s.JSONPath(), Export{Papers: s.papers, Query: s.query}, s.runID); err != nil {
		return err
	}
	if err := SaveCSV(s.CSVPath(), s.papers); err != nil {
		return err
	}
	s.log.Info().Int("papers", len(s.papers)).Str("json", s.JSONPath()).Str("csv", s.CSVPath()).Msg("saved metadata")
	return nil
}

// Checkpoint writes the JSON export and the resume state for query.
func (s *Store) Checkpoint(query string) error {
	if err := saveExport(s.JSONPath(), Export{Papers: s.papers, Query: s.query}, s.runID); err != nil {
		return err
	}
	st := State{
		PapersProcessed: len(s.papers),
		Query:           s.query,
		Timestamp:       time.Now().UTC(),
		RunID:           s.runID,
		CustomState:     map[string]any{"query": query},
	}
	if st.Query.Description == "" {
		st.Query.Description = query
	}
	if n := len(s.papers); n > 0 {
		st.LastPaperID = s.papers[n-1].ID
	}
	if err := SaveState(s.StatePath(), st); err != nil {
		return err
	}
	s.log.Debug().Int("papers", st.PapersProcessed).Str("query", query).Msg("checkpoint")
	return nil
}

// Resume loads the previous export when a checkpoint exists and returns the
// checkpoint.
func (s *Store) Resume() (State, bool, error) {
	st, found, err := LoadState(s.StatePath())
	if err != nil || !found {
		return st, found, err
	}
	n, err := s.Load()
	if err != nil {
		return st, true, err
	}
	s.log.Info().Int("papers", n).Str("last_paper_id", st.LastPaperID).Msg("resuming from checkpoint")
	return st, true, nil
}

// Statistics computes counts over the working set.
func (s *Store) Statistics() Statistics {
	return Stats(s.papers)
}

// Stats computes counts over recs. The success rate is the share of records
// with a PDF URL whose file was downloaded, as a percentage.
func Stats(recs []*types.PaperRecord) Statistics {
	st := Statistics{TotalPapers: len(recs)}
	for _, p := range recs {
		if p.HasPDF() {
			st.PapersWithPDFURL++
		}
		if p.PDFDownloaded {
			st.PapersDownloaded++
		}
		if p.Abstract != "" {
			st.PapersWithAbstract++
		}
		if p.HasDOI() {
			st.PapersWithDOI++
		}
	}
	if st.PapersWithPDFURL > 0 {
		rate := float64(st.PapersDownloaded) / float64(st.PapersWithPDFURL) * 100
		st.PDFSuccessRate = math.Round(rate*100) / 100
	}
	return st
}
