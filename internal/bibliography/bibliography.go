// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bibliography reads BibTeX and pandoc YAML bibliographies, keeps
// each entry's original text, and writes key-filtered subsets of them.
//
// Parsing recovers only what is needed to identify entries (key, type,
// fields); output always reuses the raw source spans so retained entries are
// reproduced byte for byte.
package bibliography

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Format identifies a bibliography serialization.
type Format string

const (
	FormatAuto   Format = ""
	FormatBibTeX Format = "bibtex"
	FormatYAML   Format = "yaml"
)

// ParseFormat maps a user-supplied format name to a Format. The empty
// string and "auto" select detection.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "bib", "bibtex", "biblatex":
		return FormatBibTeX, nil
	case "yaml", "yml", "csl-yaml":
		return FormatYAML, nil
	}
	return FormatAuto, fmt.Errorf("unsupported bibliography format %q: use bibtex or yaml", s)
}

// FormatForPath returns the format implied by a file extension, or
// FormatAuto when the extension is not recognized.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bib", ".bibtex":
		return FormatBibTeX
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatAuto
}

// sniffFormat guesses the format from content: BibTeX files start their
// first significant line with '@' (after % comments), anything else is YAML.
func sniffFormat(data []byte) Format {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		line = strings.TrimPrefix(line, "\ufeff")
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		if strings.HasPrefix(line, "@") {
			return FormatBibTeX
		}
		return FormatYAML
	}
	return FormatYAML
}

// Field is one name/value pair of an entry, in source order.
type Field struct {
	Name  string
	Value string
}

// Entry is a single bibliographic record.
type Entry struct {
	// Key is the citation key, unique within its bibliography.
	Key string
	// Type is the BibTeX entry type (lowercased), or the CSL "type" field
	// for YAML items when present.
	Type string
	// Fields holds the entry's fields in source order.
	Fields []Field
	// Raw is the exact source text of the entry.
	Raw string
	// Line is the 1-based line where the entry starts.
	Line int
}

var fold = cases.Fold()

// Field returns the value of the first field whose name matches one of
// names, compared case-insensitively.
func (e *Entry) Field(names ...string) (string, bool) {
	for _, name := range names {
		want := fold.String(name)
		for _, f := range e.Fields {
			if fold.String(f.Name) == want {
				return f.Value, true
			}
		}
	}
	return "", false
}

// Bibliography is an ordered collection of entries parsed from one source.
type Bibliography struct {
	Format  Format
	Path    string
	Entries []*Entry
	// Preamble holds BibTeX @string and @preamble blocks. They are written
	// ahead of the entries so macros used by retained entries still resolve.
	Preamble []string

	index map[string]int
}

// Load reads and parses the bibliography at path. When format is
// FormatAuto the format is taken from the extension, then from content.
func Load(path string, format Format) (*Bibliography, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bibliography: %w", err)
	}
	if format == FormatAuto {
		format = FormatForPath(path)
	}
	return parse(data, path, format)
}

// Parse reads a bibliography from r.
func Parse(r io.Reader, format Format) (*Bibliography, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading bibliography: %w", err)
	}
	return parse(data, "", format)
}

func parse(data []byte, path string, format Format) (*Bibliography, error) {
	if format == FormatAuto {
		format = sniffFormat(data)
	}
	switch format {
	case FormatBibTeX:
		return parseBibTeX(data, path)
	case FormatYAML:
		return parseYAML(data, path)
	}
	return nil, fmt.Errorf("unsupported bibliography format %q", format)
}

func newBibliography(format Format, path string) *Bibliography {
	return &Bibliography{
		Format: format,
		Path:   path,
		index:  make(map[string]int),
	}
}

// add appends e, rejecting duplicate keys.
func (b *Bibliography) add(e *Entry) error {
	k := normKey(e.Key)
	if prev, dup := b.index[k]; dup {
		return &ParseError{
			Path: b.Path,
			Line: e.Line,
			Key:  e.Key,
			Msg:  fmt.Sprintf("duplicate key (first defined on line %d)", b.Entries[prev].Line),
		}
	}
	b.index[k] = len(b.Entries)
	b.Entries = append(b.Entries, e)
	return nil
}

func normKey(key string) string {
	return norm.NFC.String(key)
}

// Len returns the number of entries.
func (b *Bibliography) Len() int { return len(b.Entries) }

// Keys returns every entry key in bibliography order.
func (b *Bibliography) Keys() []string {
	keys := make([]string, len(b.Entries))
	for i, e := range b.Entries {
		keys[i] = e.Key
	}
	return keys
}

// Lookup returns the entry for key. Keys compare after NFC normalization,
// so composed and decomposed accents match.
func (b *Bibliography) Lookup(key string) (*Entry, bool) {
	i, ok := b.index[normKey(key)]
	if !ok {
		return nil, false
	}
	return b.Entries[i], true
}

// Subset returns a bibliography holding only the entries named in keys, in
// the order they appear in b. Repeated keys are ignored. Every key without
// an entry produces a *KeyNotFoundError; they are joined into the returned
// error, and the subset is returned regardless.
func (b *Bibliography) Subset(keys []string) (*Bibliography, error) {
	want := make(map[int]bool, len(keys))
	seen := make(map[string]bool, len(keys))
	var errs []error
	for _, key := range keys {
		k := normKey(key)
		if seen[k] {
			continue
		}
		seen[k] = true
		i, ok := b.index[k]
		if !ok {
			errs = append(errs, &KeyNotFoundError{Key: key})
			continue
		}
		want[i] = true
	}

	out := newBibliography(b.Format, b.Path)
	out.Preamble = append(out.Preamble, b.Preamble...)
	for i, e := range b.Entries {
		if want[i] {
			out.index[normKey(e.Key)] = len(out.Entries)
			out.Entries = append(out.Entries, e)
		}
	}
	return out, joinErrors(errs)
}

func joinErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return errors.Join(errs...)
}

// Write emits the bibliography in its own format using the raw entry text.
func (b *Bibliography) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	switch b.Format {
	case FormatYAML:
		writeYAML(bw, b)
	default:
		writeBibTeX(bw, b)
	}
	return bw.Flush()
}

// String renders the bibliography as Write would.
func (b *Bibliography) String() string {
	var buf bytes.Buffer
	_ = b.Write(&buf)
	return buf.String()
}
