// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
	"go.yaml.in/yaml/v3"

	"github.com/ssemerikov/scholarextractor/pkg/types"
)

// ErrNotIndexed is returned by Lookup for an unknown paper.
var ErrNotIndexed = eris.New("paper not in index")

// Index is a SQLite mapping from paper identity to the file on disk and its
// download status.
type Index struct {
	db *sql.DB
}

// IndexEntry is one row of the papers table joined with its download row.
type IndexEntry struct {
	ID         string               `json:"id" yaml:"id"`
	Title      string               `json:"title" yaml:"title"`
	Authors    []string             `json:"authors" yaml:"authors"`
	Year       int                  `json:"year,omitempty" yaml:"year,omitempty"`
	DOI        string               `json:"doi,omitempty" yaml:"doi,omitempty"`
	PDFURL     string               `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`
	RankScore  float64              `json:"rank_score" yaml:"rank_score"`
	Status     types.DownloadStatus `json:"status,omitempty" yaml:"status,omitempty"`
	Filename   string               `json:"filename,omitempty" yaml:"filename,omitempty"`
	StatusCode int                  `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Error      string               `json:"error,omitempty" yaml:"error,omitempty"`
	UpdatedAt  string               `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// OpenIndex opens or creates the index database at path.
func OpenIndex(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrap(err, "creating index directory")
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, eris.Wrap(err, "opening index database")
	}

	idx := &Index{db: db}
	if err := idx.createSchema(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "creating index schema")
	}
	return idx, nil
}

// Close releases the database connection.
func (x *Index) Close() error {
	return x.db.Close()
}

func (x *Index) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			authors TEXT,
			year INTEGER,
			venue TEXT,
			doi TEXT,
			url TEXT,
			pdf_url TEXT,
			citations INTEGER,
			relevance REAL,
			rank_score REAL,
			source_query TEXT,
			extracted_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_doi ON papers(doi)`,
		`CREATE TABLE IF NOT EXISTS downloads (
			paper_id TEXT PRIMARY KEY REFERENCES papers(id),
			status TEXT NOT NULL,
			filename TEXT,
			url TEXT,
			status_code INTEGER,
			error TEXT,
			updated_at TEXT
		)`,
	}

	for _, stmt := range statements {
		if _, err := x.db.Exec(stmt); err != nil {
			return eris.Wrap(err, "executing schema statement")
		}
	}
	return nil
}

const upsertPaper = `INSERT INTO papers (id, title, authors, year, venue, doi, url, pdf_url, citations, relevance, rank_score, source_query, extracted_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title=excluded.title, authors=excluded.authors, year=excluded.year,
		venue=excluded.venue, doi=excluded.doi, url=excluded.url,
		pdf_url=excluded.pdf_url, citations=excluded.citations,
		relevance=excluded.relevance, rank_score=excluded.rank_score,
		source_query=excluded.source_query, extracted_at=excluded.extracted_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, rec *types.PaperRecord) error {
	if rec.ID == "" {
		return eris.Errorf("paper %q has no id", rec.Title)
	}
	authors, err := json.Marshal(rec.Authors)
	if err != nil {
		return eris.Wrap(err, "encoding authors")
	}
	_, err = db.ExecContext(ctx, upsertPaper,
		rec.ID, rec.Title, string(authors), rec.Year, rec.Venue, rec.DOI, rec.URL,
		rec.PDFURL, rec.Citations, rec.RelevanceScore, rec.RankScore, rec.SourceQuery,
		rec.ExtractedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return eris.Wrapf(err, "upserting paper %s", rec.ID)
	}
	return nil
}

// Upsert inserts or replaces one paper.
func (x *Index) Upsert(ctx context.Context, rec *types.PaperRecord) error {
	return upsert(ctx, x.db, rec)
}

// UpsertAll writes recs in a single transaction.
func (x *Index) UpsertAll(ctx context.Context, recs []*types.PaperRecord) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback()

	for _, rec := range recs {
		if err := upsert(ctx, tx, rec); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "committing papers")
	}
	return nil
}

// RecordDownload stores the latest download outcome for paper id. The paper
// must already be indexed.
func (x *Index) RecordDownload(ctx context.Context, id string, e types.DownloadEntry) error {
	_, err := x.db.ExecContext(ctx,
		`INSERT INTO downloads (paper_id, status, filename, url, status_code, error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(paper_id) DO UPDATE SET
			status=excluded.status, filename=excluded.filename, url=excluded.url,
			status_code=excluded.status_code, error=excluded.error, updated_at=excluded.updated_at`,
		id, string(e.Status), e.Filename, e.URL, e.StatusCode, e.Error,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return eris.Wrapf(err, "recording download for %s", id)
	}
	return nil
}

const selectEntries = `SELECT p.id, p.title, p.authors, p.year, p.doi, p.pdf_url, p.rank_score,
		COALESCE(d.status, ''), COALESCE(d.filename, ''), COALESCE(d.status_code, 0),
		COALESCE(d.error, ''), COALESCE(d.updated_at, '')
	FROM papers p LEFT JOIN downloads d ON d.paper_id = p.id`

// Lookup returns the entry for id, or ErrNotIndexed.
func (x *Index) Lookup(ctx context.Context, id string) (IndexEntry, error) {
	row := x.db.QueryRowContext(ctx, selectEntries+` WHERE p.id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return IndexEntry{}, eris.Wrapf(ErrNotIndexed, "paper %s", id)
	}
	return e, err
}

// Missing returns papers without a verified file, highest rank first.
func (x *Index) Missing(ctx context.Context) ([]IndexEntry, error) {
	return x.query(ctx, selectEntries+` WHERE d.status IS NULL OR d.status != 'success' ORDER BY p.rank_score DESC, p.id`)
}

// All returns every indexed paper, highest rank first.
func (x *Index) All(ctx context.Context) ([]IndexEntry, error) {
	return x.query(ctx, selectEntries+` ORDER BY p.rank_score DESC, p.id`)
}

func (x *Index) query(ctx context.Context, q string) ([]IndexEntry, error) {
	rows, err := x.db.QueryContext(ctx, q)
	if err != nil {
		return nil, eris.Wrap(err, "querying index")
	}
	defer rows.Close()

	var out []IndexEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "iterating index rows")
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (IndexEntry, error) {
	var (
		e       IndexEntry
		authors sql.NullString
		year    sql.NullInt64
		doi     sql.NullString
		pdfURL  sql.NullString
		rank    sql.NullFloat64
		status  string
	)
	err := s.Scan(&e.ID, &e.Title, &authors, &year, &doi, &pdfURL, &rank,
		&status, &e.Filename, &e.StatusCode, &e.Error, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return e, err
	}
	if err != nil {
		return e, eris.Wrap(err, "scanning index row")
	}
	e.Year = int(year.Int64)
	e.DOI = doi.String
	e.PDFURL = pdfURL.String
	e.RankScore = rank.Float64
	e.Status = types.DownloadStatus(status)
	e.Authors = []string{}
	if authors.Valid && authors.String != "" {
		if err := json.Unmarshal([]byte(authors.String), &e.Authors); err != nil {
			return e, eris.Wrapf(err, "decoding authors of %s", e.ID)
		}
	}
	return e, nil
}

// ExportYAML writes every indexed paper with its download status to path.
func (x *Index) ExportYAML(ctx context.Context, path string) error {
	entries, err := x.All(ctx)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []IndexEntry{}
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return eris.Wrap(err, "encoding YAML")
	}
	return writeFileAtomic(path, data)
}
