// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package citekeys finds pandoc citation keys in markdown text.
//
// The scan is a single regular-expression pass over the raw text. It has no
// knowledge of markdown structure: a key inside a code span or fenced block
// is reported like any other unless Options.SkipCode masks code first.
package citekeys

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"
)

// citeRe matches @key and @{key}, with or without surrounding [...]
// decoration. A key is word characters or hyphens, an optional minus and
// digits (the year, possibly BCE), then a 2-4 character suffix; it must be
// followed by punctuation, whitespace, or the end of the text. Requiring
// digits keeps e-mail addresses and handles out.
var citeRe = regexp.MustCompile(`@\{?([\p{L}\p{N}_\-]+-?\p{N}+[\p{L}\p{N}_]{2,4})(?:[.,:;\]}\s]|$)`)

// Citation is one distinct key found in a document.
type Citation struct {
	// Key is the citation key without the @ sign or decoration.
	Key string
	// Line is the 1-based line of the first occurrence.
	Line int
	// Context is the text surrounding the first occurrence.
	Context string
}

// Options adjusts extraction from markdown sources.
type Options struct {
	// SkipCode masks code spans and code blocks before scanning.
	SkipCode bool
}

// Extract scans text for citation keys, returning each key once in order of
// first appearance.
func Extract(text string) []Citation {
	seen := make(map[string]bool)
	var citations []Citation

	line, lineOffset := 1, 0
	for _, match := range citeRe.FindAllStringSubmatchIndex(text, -1) {
		key := text[match[2]:match[3]]
		line += strings.Count(text[lineOffset:match[0]], "\n")
		lineOffset = match[0]
		if seen[key] {
			continue
		}
		seen[key] = true
		citations = append(citations, Citation{
			Key:     key,
			Line:    line,
			Context: extractContext(text, match[0], match[3]),
		})
	}
	return citations
}

// ExtractMarkdown scans a markdown source, applying opts.
func ExtractMarkdown(src []byte, opts Options) []Citation {
	if opts.SkipCode {
		src = maskCode(src)
	}
	return Extract(string(src))
}

// ExtractFile reads the markdown file at path and extracts its keys.
func ExtractFile(path string, opts Options) ([]Citation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading markdown: %w", err)
	}
	return ExtractMarkdown(data, opts), nil
}

// Keys returns the keys of citations in order.
func Keys(citations []Citation) []string {
	keys := make([]string, len(citations))
	for i, c := range citations {
		keys[i] = c.Key
	}
	return keys
}

// ParseKeyList splits explicitly supplied keys. Each value may hold several
// keys separated by commas, whitespace or newlines; a leading @ is dropped.
func ParseKeyList(values []string) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, v := range values {
		for _, k := range strings.FieldsFunc(v, isKeySeparator) {
			k = strings.TrimPrefix(k, "@")
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

func isKeySeparator(r rune) bool {
	return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// extractContext returns a snippet of surrounding text around a citation.
// It takes up to 30 characters before and after the match boundaries and
// collapses line breaks.
func extractContext(text string, start, end int) string {
	const window = 30
	ctxStart := max(start-window, 0)
	ctxEnd := min(end+window, len(text))
	for ctxStart > 0 && !utf8.RuneStart(text[ctxStart]) {
		ctxStart--
	}
	for ctxEnd < len(text) && !utf8.RuneStart(text[ctxEnd]) {
		ctxEnd++
	}
	snippet := text[ctxStart:ctxEnd]
	if ctxStart > 0 {
		if i := strings.IndexAny(snippet, " \n"); i >= 0 && i < window {
			snippet = snippet[i+1:]
		}
	}
	if ctxEnd < len(text) {
		if i := strings.LastIndexAny(snippet, " \n"); i >= 0 && i > len(snippet)-window {
			snippet = snippet[:i]
		}
	}
	return strings.Join(strings.Fields(snippet), " ")
}
