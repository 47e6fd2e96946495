package stanza

import (
	"bytes"
	"io"
	"os"
	"strings"
)

// Write serializes the document. Untouched lines are emitted verbatim;
// only lines whose value changed, and sections created in memory, are
// re-rendered.
func (d *Document) Write(w io.Writer) error {
	bw := &errWriter{w: w}
	writeSection(bw, d.root)
	if bw.wrote && d.finalNewline && bw.err == nil {
		_, bw.err = io.WriteString(w, "\n")
	}
	return bw.err
}

// Bytes returns the serialized document.
func (d *Document) Bytes() []byte {
	var buf bytes.Buffer
	_ = d.Write(&buf)
	return buf.Bytes()
}

// String returns the serialized document as a string.
func (d *Document) String() string {
	return string(d.Bytes())
}

// WriteFile writes the document atomically: serialize to a sibling temp
// file, then rename over the target.
func (d *Document) WriteFile(path string) error {
	tmp, err := os.CreateTemp(dirOf(path), ".stanza-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if err := d.Write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func dirOf(path string) string {
	idx := strings.LastIndexByte(path, os.PathSeparator)
	if idx <= 0 {
		return "."
	}
	return path[:idx]
}

// errWriter emits lines separated by newlines; whether the last line
// also ends with one is the document's call.
type errWriter struct {
	w     io.Writer
	err   error
	wrote bool
}

func (e *errWriter) line(s string) {
	if e.err != nil {
		return
	}
	if e.wrote {
		if _, e.err = io.WriteString(e.w, "\n"); e.err != nil {
			return
		}
	}
	_, e.err = io.WriteString(e.w, s)
	e.wrote = true
}

func writeSection(w *errWriter, s *Section) {
	if s.level > 0 {
		if s.raw != "" {
			w.line(s.raw)
		} else {
			pad := indentFor(s.level - 1)
			brackets := strings.Repeat("[", s.level)
			closing := strings.Repeat("]", s.level)
			w.line(pad + brackets + s.Name + closing)
		}
	}
	for _, it := range s.items {
		switch it.kind {
		case itemComment:
			w.line(it.raw)
		case itemScalar:
			w.line(renderScalar(it.scalar))
		case itemSection:
			writeSection(w, it.section)
		}
	}
}

// renderScalar re-renders a dirty scalar line, keeping the original
// indentation and inline comment.
func renderScalar(sc *Scalar) string {
	if sc.raw != "" {
		return sc.raw
	}
	line := sc.indent + sc.Key + " = " + joinValues(sc.values)
	if sc.inline != "" {
		line += "    " + sc.inline
	}
	return line
}

// joinValues renders a value list back into comma-separated form,
// quoting elements that would otherwise re-split.
func joinValues(values []string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = quoteIfNeeded(v)
	}
	return strings.Join(parts, ", ")
}

func quoteIfNeeded(v string) string {
	if strings.ContainsAny(v, ",#") || v != strings.TrimSpace(v) {
		return "\"" + v + "\""
	}
	return v
}
