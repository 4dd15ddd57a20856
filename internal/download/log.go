// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/ssemerikov/scholarextractor/pkg/types"
)

// LogFile is the download log's name inside PapersDir.
const LogFile = "download_log.json"

// Log records the last download outcome per paper ID.
type Log map[string]types.DownloadEntry

// LogStats totals a Log by status.
type LogStats struct {
	Success int `json:"total_downloaded"`
	Failed  int `json:"total_failed"`
	Invalid int `json:"total_invalid"`
}

// LoadLog reads a download log. A missing file yields an empty log.
func LoadLog(path string) (Log, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Log{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "reading %s", path)
	}
	l := Log{}
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, eris.Wrapf(err, "parsing %s", path)
	}
	return l, nil
}

// Save writes the log as indented JSON through a temp file.
func (l Log) Save(path string) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encoding download log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "creating %s", filepath.Dir(path))
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrapf(err, "writing %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return eris.Wrapf(err, "renaming %s", tmp)
	}
	return nil
}

// Stats counts entries per status.
func (l Log) Stats() LogStats {
	var s LogStats
	for _, e := range l {
		switch e.Status {
		case types.DownloadSuccess:
			s.Success++
		case types.DownloadFailed:
			s.Failed++
		case types.DownloadInvalid:
			s.Invalid++
		}
	}
	return s
}

// Pending returns the IDs of failed and invalid entries, sorted.
func (l Log) Pending() []string {
	var ids []string
	for id, e := range l {
		if e.Status == types.DownloadFailed || e.Status == types.DownloadInvalid {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Apply marks records whose log entry is a success and whose file is
// present in dir as downloaded. It returns the number of records marked.
func (l Log) Apply(recs []*types.PaperRecord, dir string) int {
	n := 0
	for _, rec := range recs {
		e, ok := l[rec.ID]
		if !ok || e.Status != types.DownloadSuccess || e.Filename == "" {
			continue
		}
		path := filepath.Join(dir, e.Filename)
		if info, err := os.Stat(path); err != nil || info.Size() == 0 {
			continue
		}
		if !rec.PDFDownloaded || rec.PDFPath != path {
			rec.PDFDownloaded = true
			rec.PDFPath = path
			n++
		}
	}
	return n
}
