package stanza

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

// Parse reads an INI-style hierarchical configuration document.
// Section headers use bracket nesting: [Station], [[Services]],
// [[[Rule]]]. Full-line comments, inline comments, blank lines and the
// original formatting of every untouched line survive a round trip.
func Parse(r io.Reader) (*Document, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseBytes(b)
}

func parseBytes(b []byte) (*Document, error) {
	doc := NewDocument()
	doc.finalNewline = len(b) == 0 || b[len(b)-1] == '\n'
	r := bytes.NewReader(b)

	// open[i] is the currently open section at level i+1
	open := []*Section{}
	current := func() *Section {
		if len(open) == 0 {
			return doc.root
		}
		return open[len(open)-1]
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		trimmed := strings.TrimSpace(raw)

		switch {
		case trimmed == "" || strings.HasPrefix(trimmed, "#"):
			cur := current()
			cur.items = append(cur.items, &item{kind: itemComment, raw: raw})

		case strings.HasPrefix(trimmed, "["):
			name, level, err := parseHeader(trimmed)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if level > len(open)+1 {
				return nil, fmt.Errorf("line %d: section %q jumps from depth %d to %d", lineNo, name, len(open), level)
			}
			open = open[:level-1]
			sec := &Section{Name: name, level: level, raw: raw}
			parent := current()
			parent.items = append(parent.items, &item{kind: itemSection, section: sec})
			open = append(open, sec)

		default:
			sc, err := parseScalar(raw)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			cur := current()
			cur.items = append(cur.items, &item{kind: itemScalar, scalar: sc})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return doc, nil
}

// ParseBytes parses a document from a byte slice.
func ParseBytes(b []byte) (*Document, error) {
	return parseBytes(b)
}

// ParseString parses a document from a string.
func ParseString(s string) (*Document, error) {
	return parseBytes([]byte(s))
}

// ParseFile parses a document from a file on disk.
func ParseFile(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := parseBytes(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// parseHeader decodes "[[Name]]" into a name and nesting level.
func parseHeader(s string) (string, int, error) {
	level := 0
	for level < len(s) && s[level] == '[' {
		level++
	}
	rest := s[level:]
	closing := strings.Repeat("]", level)
	idx := strings.Index(rest, closing)
	if idx < 0 {
		return "", 0, fmt.Errorf("malformed section header %q", s)
	}
	name := strings.TrimSpace(rest[:idx])
	if name == "" {
		return "", 0, fmt.Errorf("empty section name in %q", s)
	}
	tail := strings.TrimSpace(rest[idx+level:])
	if tail != "" && !strings.HasPrefix(tail, "#") {
		return "", 0, fmt.Errorf("trailing characters after section header %q", s)
	}
	return name, level, nil
}

// parseScalar decodes a "key = value" line, keeping the raw text so the
// line can be written back unchanged.
func parseScalar(raw string) (*Scalar, error) {
	indent := raw[:len(raw)-len(strings.TrimLeft(raw, " \t"))]
	body := strings.TrimSpace(raw)

	eq := strings.Index(body, "=")
	if eq < 0 {
		return nil, fmt.Errorf("expected key = value, got %q", body)
	}
	key := strings.TrimSpace(body[:eq])
	if key == "" {
		return nil, fmt.Errorf("empty key in %q", body)
	}
	rest := body[eq+1:]

	value, inline := splitInlineComment(rest)
	return &Scalar{
		Key:    key,
		values: splitValues(value),
		raw:    raw,
		indent: indent,
		inline: inline,
	}, nil
}

// splitInlineComment splits the value part from a trailing comment,
// honoring quoted strings.
func splitInlineComment(s string) (string, string) {
	inQuote := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			}
		case c == '"' || c == '\'':
			inQuote = c
		case c == '#':
			return strings.TrimSpace(s[:i]), strings.TrimRight(s[i:], " \t")
		}
	}
	return strings.TrimSpace(s), ""
}

// splitValues splits a comma-separated value list outside quotes and
// unquotes the elements. A value without commas yields one element.
func splitValues(s string) []string {
	if s == "" {
		return []string{""}
	}
	var out []string
	var cur strings.Builder
	inQuote := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			} else {
				cur.WriteByte(c)
			}
		case c == '"' || c == '\'':
			inQuote = c
		case c == ',':
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(out, strings.TrimSpace(cur.String()))
}
