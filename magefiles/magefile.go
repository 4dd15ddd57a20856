//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main contains Mage build targets for scholarextractor developer tooling.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"

	"github.com/ssemerikov/scholarextractor/internal/download"
	"github.com/ssemerikov/scholarextractor/internal/storage"
	"github.com/ssemerikov/scholarextractor/pkg/types"
)

const (
	binDir  = "bin"
	binName = "scholarextractor"
	cmdPkg  = "./cmd/scholarextractor"
)

// Init creates the data directories the pipeline writes into.
func Init() error {
	st := types.DefaultStorageConfig()
	dirs := []string{
		st.MetadataDir,
		st.LogsDir,
		filepath.Dir(st.IndexPath),
		types.DefaultDownloadConfig().PapersDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	fmt.Println("Data directories initialized.")
	return nil
}

// Build compiles the CLI binary into bin/, stamping the git version when available.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	version, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil || version == "" {
		version = "dev"
	}
	out := filepath.Join(binDir, binName)
	if err := sh.RunV("go", "build", "-ldflags", "-X main.version="+version, "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s (%s)\n", out, version)
	return nil
}

// Test runs the unit tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Stats summarizes the current selection and the download log.
func Stats() error {
	st := types.DefaultStorageConfig()
	path := filepath.Join(st.MetadataDir, "selected.json")
	exp, err := storage.LoadJSON(path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	s := storage.Stats(exp.Papers)
	fmt.Printf("Papers:            %d\n", s.TotalPapers)
	fmt.Printf("With PDF URL:      %d\n", s.PapersWithPDFURL)
	fmt.Printf("Downloaded:        %d (%.2f%%)\n", s.PapersDownloaded, s.PDFSuccessRate)
	fmt.Printf("With DOI:          %d\n", s.PapersWithDOI)

	papersDir := types.DefaultDownloadConfig().PapersDir
	log, err := download.LoadLog(filepath.Join(papersDir, download.LogFile))
	if err != nil {
		return err
	}
	ls := log.Stats()
	fmt.Printf("Download log:      %d ok, %d failed, %d invalid\n", ls.Success, ls.Failed, ls.Invalid)
	return nil
}

// Run builds the binary and runs the whole pipeline with the configured queries.
func Run() error {
	mg.Deps(Init, Build)
	return sh.RunV(filepath.Join(binDir, binName), "run")
}
