// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package storage

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/rotisserie/eris"
)

// State is the resumable checkpoint.
type State struct {
	PapersProcessed int            `json:"papers_processed"`
	LastPaperID     string         `json:"last_paper_id,omitempty"`
	Query           QueryInfo      `json:"query"`
	Timestamp       time.Time      `json:"timestamp"`
	RunID           string         `json:"run_id,omitempty"`
	CustomState     map[string]any `json:"custom_state,omitempty"`
}

// SaveState writes st to path.
func SaveState(path string, st State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encoding state")
	}
	return writeFileAtomic(path, data)
}

// LoadState reads a checkpoint. A missing file yields the zero State and
// found=false.
func LoadState(path string) (st State, found bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, eris.Wrapf(err, "reading %s", path)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, false, eris.Wrapf(err, "parsing %s", path)
	}
	return st, true, nil
}
