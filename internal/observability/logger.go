// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package observability builds the structured logger shared by all stages.
package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ssemerikov/scholarextractor/pkg/types"
)

// NewLogger creates a zerolog logger from configuration. Console format is
// meant for interactive runs; json suits log collection.
func NewLogger(cfg types.LoggingConfig) zerolog.Logger {
	return NewLoggerTo(cfg, outputFor(cfg.Output))
}

// NewLoggerTo is NewLogger with an explicit destination.
func NewLoggerTo(cfg types.LoggingConfig, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	out := w
	if f := strings.ToLower(cfg.Format); f == "console" || f == "pretty" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	return zerolog.New(out).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
}

func outputFor(name string) io.Writer {
	if strings.ToLower(name) == "stdout" {
		return os.Stdout
	}
	return os.Stderr
}

// ParseLevel converts a level name to zerolog.Level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithPaper adds paper identity fields to a logger.
func WithPaper(logger zerolog.Logger, p *types.PaperRecord) zerolog.Logger {
	ctx := logger.With().Str("paper_id", p.ID)
	if p.DOI != "" {
		ctx = ctx.Str("doi", p.DOI)
	}
	return ctx.Logger()
}

// WithSource tags a logger with the external service it talks to.
func WithSource(logger zerolog.Logger, source string) zerolog.Logger {
	return logger.With().Str("source", source).Logger()
}

// WithQuery tags a logger with the search query being processed.
func WithQuery(logger zerolog.Logger, query string) zerolog.Logger {
	return logger.With().Str("query", query).Logger()
}
