// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package subset implements the md2bib pipeline: load a bibliography,
// collect the requested citation keys, filter, and emit.
package subset

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/pdiddy/md2bib/internal/bibliography"
	"github.com/pdiddy/md2bib/internal/citekeys"
	"github.com/pdiddy/md2bib/pkg/types"
)

// ErrNoKeys is returned when neither a markdown file nor explicit keys
// were supplied.
var ErrNoKeys = errors.New("no keys given: provide a markdown file or --keys")

// Summary holds counts from a subset run.
type Summary struct {
	Requested int
	Emitted   int
	Missing   []string
}

// HasMissing reports whether any requested key had no entry.
func (s Summary) HasMissing() bool {
	return len(s.Missing) > 0
}

// Result is a filtered bibliography ready to be written.
type Result struct {
	Subset  *bibliography.Bibliography
	Summary Summary
	// Err joins one *bibliography.KeyNotFoundError per missing key. It is
	// reported after the subset is written and does not prevent output.
	Err error
}

// Build loads the bibliography, gathers keys and filters. Parse and IO
// failures are returned as the error; missing keys are logged one by one
// and recorded in Result.Err.
func Build(cfg types.SubsetConfig, log zerolog.Logger) (*Result, error) {
	format, err := bibliography.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	bib, err := bibliography.Load(cfg.BibFile, format)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("path", cfg.BibFile).
		Str("format", string(bib.Format)).
		Int("entries", bib.Len()).
		Msg("bibliography loaded")

	keys, cited, err := requestedKeys(cfg, log)
	if err != nil {
		return nil, err
	}

	sub, missingErr := bib.Subset(keys)
	missing := bibliography.MissingKeys(missingErr)
	for _, key := range missing {
		ev := log.Error().Str("key", key)
		if c, ok := cited[key]; ok {
			ev = ev.Str("file", cfg.MarkdownFile).Int("line", c.Line).Str("context", c.Context)
		}
		ev.Msg("citation key not found in bibliography")
	}

	res := &Result{
		Subset: sub,
		Summary: Summary{
			Requested: len(keys),
			Emitted:   sub.Len(),
			Missing:   missing,
		},
	}
	if missingErr != nil {
		res.Err = fmt.Errorf("%d citation key(s) not found: %w", len(missing), missingErr)
	}
	log.Info().
		Int("requested", res.Summary.Requested).
		Int("emitted", res.Summary.Emitted).
		Int("missing", len(missing)).
		Msg("subset built")
	return res, nil
}

// Run builds the subset and writes it to w. The error is the fatal error
// from Build, a write error, or the missing-keys error after output.
func Run(cfg types.SubsetConfig, w io.Writer, log zerolog.Logger) (Summary, error) {
	res, err := Build(cfg, log)
	if err != nil {
		return Summary{}, err
	}
	if err := res.Subset.Write(w); err != nil {
		return res.Summary, fmt.Errorf("writing subset: %w", err)
	}
	return res.Summary, res.Err
}

// requestedKeys returns the keys to keep, plus the first citation of each
// key when they came from a markdown file.
func requestedKeys(cfg types.SubsetConfig, log zerolog.Logger) ([]string, map[string]citekeys.Citation, error) {
	if cfg.MarkdownFile == "" {
		keys := citekeys.ParseKeyList(cfg.Keys)
		if len(keys) == 0 {
			return nil, nil, ErrNoKeys
		}
		log.Debug().Strs("keys", keys).Msg("using explicit keys")
		return keys, nil, nil
	}

	citations, err := citekeys.ExtractFile(cfg.MarkdownFile, citekeys.Options{SkipCode: cfg.SkipCode})
	if err != nil {
		return nil, nil, err
	}
	cited := make(map[string]citekeys.Citation, len(citations))
	for _, c := range citations {
		cited[c.Key] = c
	}
	keys := citekeys.Keys(citations)
	log.Debug().
		Str("file", cfg.MarkdownFile).
		Strs("keys", keys).
		Bool("skip_code", cfg.SkipCode).
		Msg("extracted citation keys")
	return keys, cited, nil
}
