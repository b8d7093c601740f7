// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package link rewrites pandoc citations in markdown as inline hyperlinks,
// for documents such as slides that are rendered without a bibliography.
package link

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/pdiddy/md2bib/internal/bibliography"
	"github.com/pdiddy/md2bib/pkg/types"
)

var (
	// bracketRe matches a bracketed citation group such as [see @a2020, p. 3].
	bracketRe = regexp.MustCompile(`\[[^\]]*[-#\\]?@[^\]]+\]`)

	// keyRe matches one citation, with an optional leading minus that
	// suppresses the author.
	keyRe = regexp.MustCompile(`-?@[\p{L}\p{N}_\-]+`)

	// yearRe splits a key into author, year and disambiguation suffix.
	yearRe = regexp.MustCompile(`\p{Nd}{4}`)
)

// Stats counts what Rewrite changed.
type Stats struct {
	Lines     int
	Citations int
	Linked    int
	Unknown   int
}

// Linker rewrites citations using entries from Bib.
type Linker struct {
	Bib *bibliography.Bibliography
	Log zerolog.Logger
}

// New returns a Linker over bib.
func New(bib *bibliography.Bibliography, log zerolog.Logger) *Linker {
	return &Linker{Bib: bib, Log: log}
}

// Load reads the bibliography named by cfg and returns a Linker over it.
func Load(cfg types.LinkConfig, log zerolog.Logger) (*Linker, error) {
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
	return New(bib, log), nil
}

// Line rewrites the citations in a single line.
func (l *Linker) Line(line string) string {
	var st Stats
	return l.line(line, &st)
}

// Rewrite copies r to w line by line, rewriting citations. Line endings
// are preserved.
func (l *Linker) Rewrite(r io.Reader, w io.Writer) (Stats, error) {
	var st Stats
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)
	for {
		text, err := br.ReadString('\n')
		if len(text) > 0 {
			st.Lines++
			if _, werr := bw.WriteString(l.line(text, &st)); werr != nil {
				return st, fmt.Errorf("writing output: %w", werr)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return st, fmt.Errorf("reading markdown: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return st, fmt.Errorf("writing output: %w", err)
	}
	l.Log.Info().
		Int("lines", st.Lines).
		Int("citations", st.Citations).
		Int("linked", st.Linked).
		Int("unknown", st.Unknown).
		Msg("citations rewritten")
	return st, nil
}

func (l *Linker) line(line string, st *Stats) string {
	if !strings.Contains(line, "@") {
		return line
	}
	line = bracketRe.ReplaceAllStringFunc(line, func(group string) string {
		return "(" + group[1:len(group)-1] + ")"
	})

	var b strings.Builder
	last := 0
	for _, m := range keyRe.FindAllStringIndex(line, -1) {
		start, end := m[0], m[1]
		at := start
		if line[at] == '-' {
			at++
		}
		if escapedOrEmbedded(line, start, at) {
			continue
		}
		st.Citations++
		b.WriteString(line[last:start])
		b.WriteString(l.render(line[at+1:end], at != start, st))
		last = end
	}
	b.WriteString(line[last:])
	return b.String()
}

// escapedOrEmbedded reports whether the match is \@key or part of a word
// such as an e-mail address.
func escapedOrEmbedded(line string, start, at int) bool {
	if at == 0 {
		return false
	}
	prev, _ := utf8.DecodeLastRuneInString(line[:at])
	if prev == '\\' {
		return true
	}
	if at == start {
		return unicode.IsLetter(prev) || unicode.IsDigit(prev)
	}
	return false
}

func (l *Linker) render(key string, suppressAuthor bool, st *Stats) string {
	entry, ok := l.Bib.Lookup(key)
	if !ok {
		st.Unknown++
		l.Log.Warn().Str("key", key).Msg("citation key not found")
		return key
	}
	st.Linked++

	text := label(key, entry, suppressAuthor)
	if url, ok := entry.Field("URL", "url"); ok && url != "" {
		return "[" + text + "](" + url + ")"
	}
	if title, ok := entry.Field("title-short", "shorttitle"); ok && title != "" {
		title = strings.NewReplacer("{", "", "}", "").Replace(title)
		return text + `, "` + title + `"`
	}
	return text
}

// label renders "Author Year" from the key, e.g. smithEtal2020ab becomes
// "smith et al. 2020". With the author suppressed only the year and its
// suffix remain, e.g. "2020ab".
func label(key string, entry *bibliography.Entry, suppressAuthor bool) string {
	loc := yearRe.FindStringIndex(key)
	if loc == nil {
		return key
	}
	author, year := key[:loc[0]], key[loc[0]:loc[1]]
	if suppressAuthor {
		return key[loc[0]:]
	}
	if base, ok := strings.CutSuffix(author, "Etal"); ok {
		author = base + " et al."
	}
	if orig, ok := entry.Field("original-date.year", "original-date.date-parts.0.0", "origdate", "original-date"); ok && orig != "" {
		year = orig + "/" + year
	}
	return author + " " + year
}
