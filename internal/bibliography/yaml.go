// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bibliography

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"
)

// referencesKey is the top-level key of a pandoc YAML bibliography.
const referencesKey = "references"

// parseYAML reads a pandoc YAML bibliography (a mapping with a references
// list) or a bare CSL-YAML list. Items must be mappings carrying an id.
func parseYAML(data []byte, path string) (*Bibliography, error) {
	b := newBibliography(FormatYAML, path)

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Path: path, Msg: "malformed YAML", Err: err}
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return b, nil
	}

	seq, err := referenceList(doc.Content[0], path)
	if err != nil {
		return nil, err
	}
	if seq == nil {
		return b, nil
	}

	lines := strings.Split(string(data), "\n")
	for _, item := range seq.Content {
		if item.Kind != yaml.MappingNode {
			return nil, &ParseError{Path: path, Line: item.Line, Msg: "reference is not a mapping"}
		}
		key := scalarValue(item, "id")
		if key == "" {
			key = scalarValue(item, "key")
		}
		if key == "" {
			return nil, &ParseError{Path: path, Line: item.Line, Msg: "reference has no id"}
		}

		raw, err := itemRaw(lines, seq, item)
		if err != nil {
			return nil, &ParseError{Path: path, Line: item.Line, Key: key, Msg: "re-encoding reference", Err: err}
		}

		var fields []Field
		flatten(&fields, "", item)
		entry := &Entry{
			Key:    key,
			Type:   scalarValue(item, "type"),
			Fields: fields,
			Raw:    raw,
			Line:   item.Line,
		}
		if err := b.add(entry); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// referenceList locates the sequence of references under root. A nil
// sequence with a nil error means the list is present but empty.
func referenceList(root *yaml.Node, path string) (*yaml.Node, error) {
	switch root.Kind {
	case yaml.SequenceNode:
		return root, nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(root.Content); i += 2 {
			if root.Content[i].Value != referencesKey {
				continue
			}
			v := root.Content[i+1]
			switch {
			case v.Kind == yaml.SequenceNode:
				return v, nil
			case v.Kind == yaml.ScalarNode && v.Tag == "!!null":
				return nil, nil
			}
			return nil, &ParseError{Path: path, Line: v.Line, Msg: "references is not a list"}
		}
		return nil, &ParseError{Path: path, Line: root.Line, Msg: "no references list found"}
	case yaml.ScalarNode:
		if root.Tag == "!!null" {
			return nil, nil
		}
	}
	return nil, &ParseError{Path: path, Line: root.Line, Msg: "expected a list of references"}
}

// scalarValue returns the scalar value stored under name in mapping m.
func scalarValue(m *yaml.Node, name string) string {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == name && m.Content[i+1].Kind == yaml.ScalarNode {
			return strings.TrimSpace(m.Content[i+1].Value)
		}
	}
	return ""
}

// flatten appends the leaves under n as fields. Nested names are joined
// with dots and sequence positions are written as indexes.
func flatten(fields *[]Field, prefix string, n *yaml.Node) {
	join := func(name string) string {
		if prefix == "" {
			return name
		}
		return prefix + "." + name
	}
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			flatten(fields, join(n.Content[i].Value), n.Content[i+1])
		}
	case yaml.SequenceNode:
		for i, c := range n.Content {
			flatten(fields, join(strconv.Itoa(i)), c)
		}
	case yaml.AliasNode:
		*fields = append(*fields, Field{Name: prefix, Value: "*" + n.Value})
	default:
		*fields = append(*fields, Field{Name: prefix, Value: n.Value})
	}
}

// itemRaw returns the source text of a block sequence item: from its first
// line through every following line that is blank or indented at least as
// far as the item's keys. Flow-style items are re-encoded as block items.
func itemRaw(lines []string, seq, item *yaml.Node) (string, error) {
	if seq.Style&yaml.FlowStyle != 0 || item.Style&yaml.FlowStyle != 0 {
		return encodeItem(item)
	}

	start := item.Line - 1
	if start > 0 && strings.TrimSpace(lines[start-1]) == "-" {
		start--
	}
	indent := item.Column - 1

	end := item.Line
	for end < len(lines) {
		l := lines[end]
		if strings.TrimSpace(l) == "" || leadingSpaces(l) >= indent {
			end++
			continue
		}
		break
	}
	for end > item.Line && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n"), nil
}

func leadingSpaces(s string) int {
	return len(s) - len(strings.TrimLeft(s, " "))
}

// encodeItem renders a single item as a block sequence entry.
func encodeItem(item *yaml.Node) (string, error) {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Content: []*yaml.Node{blockStyle(item)}}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(seq); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func blockStyle(n *yaml.Node) *yaml.Node {
	c := *n
	c.Style &^= yaml.FlowStyle
	c.Content = make([]*yaml.Node, len(n.Content))
	for i, child := range n.Content {
		c.Content[i] = blockStyle(child)
	}
	return &c
}

// writeYAML emits the pandoc bibliography envelope around the raw items.
func writeYAML(w *bufio.Writer, b *Bibliography) {
	w.WriteString("---\n")
	if len(b.Entries) == 0 {
		w.WriteString(referencesKey + ": []\n")
	} else {
		w.WriteString(referencesKey + ":\n")
		for _, e := range b.Entries {
			w.WriteString(e.Raw)
			w.WriteString("\n")
		}
	}
	w.WriteString("...\n")
}
