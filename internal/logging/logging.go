// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the zerolog logger used for md2bib diagnostics.
// Diagnostics always go to stderr or a log file, never to the output stream
// that carries the bibliography.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultLogFile is the file used by --log-to-file.
const DefaultLogFile = "md2bib.log"

// Config holds logger configuration options.
type Config struct {
	// Level is the minimum level to output (trace, debug, info, warn, error).
	Level string

	// Output is "stderr", "discard", or a file path. Files are truncated.
	Output string

	// JSON selects structured JSON lines instead of the console format.
	// Log files are always JSON.
	JSON bool

	// NoColor disables color in console output.
	NoColor bool
}

// LevelFromVerbosity maps a count of -V flags to a level name: warnings
// and errors by default, then info, debug and trace.
func LevelFromVerbosity(n int) string {
	switch {
	case n <= 0:
		return "warn"
	case n == 1:
		return "info"
	case n == 2:
		return "debug"
	}
	return "trace"
}

// ParseLevel parses a level name, defaulting to warn for unknown input.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "", "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "none", "off":
		return zerolog.Disabled
	}
	if l, err := zerolog.ParseLevel(level); err == nil {
		return l
	}
	return zerolog.WarnLevel
}

// New creates a logger from cfg. The returned closer releases the log file
// when Output names one; it is a no-op otherwise.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	level := ParseLevel(cfg.Level)

	var (
		out    io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
		json             = cfg.JSON
	)
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
	case "discard", "none":
		out = io.Discard
	default:
		f, err := os.Create(cfg.Output)
		if err != nil {
			return zerolog.Nop(), closer, err
		}
		out, closer, json = f, f, true
	}

	if !json {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
			NoColor:    cfg.NoColor || os.Getenv("NO_COLOR") != "",
		}
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	return ctx.Logger(), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
