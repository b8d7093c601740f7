// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bibliography

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
)

var (
	errUnbalancedBraces  = errors.New("unbalanced braces")
	errUnterminatedQuote = errors.New("unterminated quoted value")
)

// parseBibTeX scans data for @type{key, field = value, ...} entries. Text
// between entries is ignored, as BibTeX itself does. @comment blocks are
// dropped; @string and @preamble blocks are kept for output.
func parseBibTeX(data []byte, path string) (*Bibliography, error) {
	src := string(data)
	b := newBibliography(FormatBibTeX, path)

	pos := 0
	lines := lineCounter{src: src, line: 1}
	for {
		at := strings.IndexByte(src[pos:], '@')
		if at < 0 {
			break
		}
		start := pos + at
		if commentedOut(src, start) {
			// A % line comment, possibly holding a disabled entry.
			nl := strings.IndexByte(src[start:], '\n')
			if nl < 0 {
				break
			}
			pos = start + nl + 1
			continue
		}

		typeEnd := start + 1
		for typeEnd < len(src) && isTypeChar(src[typeEnd]) {
			typeEnd++
		}
		entryType := strings.ToLower(src[start+1 : typeEnd])
		open := skipSpace(src, typeEnd)
		if entryType == "" || open >= len(src) || (src[open] != '{' && src[open] != '(') {
			// A stray '@' outside any entry, e.g. an address in a comment.
			pos = start + 1
			continue
		}

		closer := byte('}')
		if src[open] == '(' {
			closer = ')'
		}
		line := lines.at(start)

		end, err := matchClose(src, open, closer)
		if entryType == "comment" {
			if err != nil {
				pos = open + 1
			} else {
				pos = end + 1
			}
			continue
		}
		if err != nil {
			return nil, &ParseError{Path: path, Line: line, Key: guessKey(src[open+1:]), Msg: "malformed entry", Err: err}
		}

		raw := src[start : end+1]
		pos = end + 1

		if entryType == "string" || entryType == "preamble" {
			b.Preamble = append(b.Preamble, raw)
			continue
		}

		body := src[open+1 : end]
		key, rest, _ := strings.Cut(body, ",")
		key = strings.TrimSpace(key)
		if !validBibKey(key) {
			return nil, &ParseError{Path: path, Line: line, Key: key, Msg: "missing or invalid citation key"}
		}

		fields, err := parseFields(rest)
		if err != nil {
			return nil, &ParseError{Path: path, Line: line, Key: key, Msg: "malformed field", Err: err}
		}

		entry := &Entry{
			Key:    key,
			Type:   entryType,
			Fields: fields,
			Raw:    raw,
			Line:   line,
		}
		if err := b.add(entry); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// matchClose returns the index of the delimiter closing the entry opened at
// src[open]. Quotes delimit values only at the top level of the entry body;
// inside braces they are literal characters.
func matchClose(src string, open int, closer byte) (int, error) {
	depth := 0
	inQuote := false
	for i := open + 1; i < len(src); i++ {
		switch c := src[i]; {
		case c == '{':
			depth++
		case c == '}':
			if depth == 0 {
				if closer == '}' && !inQuote {
					return i, nil
				}
				return -1, errUnbalancedBraces
			}
			depth--
		case c == '"' && depth == 0:
			inQuote = !inQuote
		case c == closer && depth == 0 && !inQuote:
			return i, nil
		}
	}
	if inQuote {
		return -1, errUnterminatedQuote
	}
	return -1, errUnbalancedBraces
}

// parseFields splits an entry body (after the key) into fields. Commas
// separate fields only at brace depth zero and outside quotes.
func parseFields(body string) ([]Field, error) {
	var fields []Field
	for _, part := range splitTopLevel(body, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" || strings.ContainsAny(name, " \t\r\n{}\"") {
			return nil, fmt.Errorf("expected name = value, got %q", abbreviate(part, 40))
		}
		fields = append(fields, Field{
			Name:  strings.ToLower(name),
			Value: unwrapValue(strings.TrimSpace(value)),
		})
	}
	return fields, nil
}

func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	inQuote := false
	last := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '{':
			depth++
		case c == '}':
			depth--
		case c == '"' && depth == 0:
			inQuote = !inQuote
		case c == sep && depth == 0 && !inQuote:
			parts = append(parts, s[last:i])
			last = i + 1
		}
	}
	return append(parts, s[last:])
}

// unwrapValue strips one pair of enclosing braces or quotes when they wrap
// the whole value. Concatenations such as {a} # var are left as written.
func unwrapValue(v string) string {
	if len(v) < 2 {
		return v
	}
	switch v[0] {
	case '{':
		if end, err := matchClose(v, 0, '}'); err == nil && end == len(v)-1 {
			return v[1 : len(v)-1]
		}
	case '"':
		if len(splitTopLevel(v, '#')) == 1 && v[len(v)-1] == '"' {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// commentedOut reports whether the line holding src[at] starts with %.
func commentedOut(src string, at int) bool {
	lineStart := strings.LastIndexByte(src[:at], '\n') + 1
	return strings.HasPrefix(strings.TrimLeft(src[lineStart:at], " \t"), "%")
}

func validBibKey(key string) bool {
	return key != "" && !strings.ContainsAny(key, " \t\r\n\"#%'(),={}")
}

// guessKey recovers a key from an entry body for error messages.
func guessKey(body string) string {
	key, _, found := strings.Cut(body, ",")
	if !found || strings.ContainsAny(key, "\n{}") {
		return ""
	}
	return strings.TrimSpace(key)
}

func isTypeChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-'
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\r' || s[i] == '\n') {
		i++
	}
	return i
}

// lineCounter maps increasing byte offsets to 1-based line numbers.
type lineCounter struct {
	src    string
	offset int
	line   int
}

func (lc *lineCounter) at(offset int) int {
	lc.line += strings.Count(lc.src[lc.offset:offset], "\n")
	lc.offset = offset
	return lc.line
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// writeBibTeX emits preamble blocks, then entries, separated by blank lines.
func writeBibTeX(w *bufio.Writer, b *Bibliography) {
	blocks := make([]string, 0, len(b.Preamble)+len(b.Entries))
	blocks = append(blocks, b.Preamble...)
	for _, e := range b.Entries {
		blocks = append(blocks, e.Raw)
	}
	for i, block := range blocks {
		if i > 0 {
			w.WriteString("\n\n")
		}
		w.WriteString(block)
	}
	if len(blocks) > 0 {
		w.WriteString("\n")
	}
}
