package stanza

import (
	"errors"
	"fmt"
)

var (
	// ErrStanzaExists is returned when a merge would overwrite an existing stanza
	ErrStanzaExists = errors.New("stanza already exists")
	// ErrKeyNotFound is returned when a scalar lookup misses
	ErrKeyNotFound = errors.New("key not found")
	// ErrSectionNotFound is returned when a section lookup misses
	ErrSectionNotFound = errors.New("section not found")
)

// itemKind discriminates the ordered children of a section
type itemKind int

const (
	itemComment itemKind = iota // blank line or full-line comment
	itemScalar
	itemSection
)

// item is one ordered child of a section. Exactly one of the payload
// fields is populated, according to kind.
type item struct {
	kind    itemKind
	raw     string // verbatim line for comments and blank lines
	scalar  *Scalar
	section *Section
}

// Scalar is a single key = value line. The raw line is kept so an
// untouched document serializes byte-for-byte; it is invalidated when
// the value changes.
type Scalar struct {
	Key    string
	values []string // one element for plain scalars, n for list values
	raw    string   // original line, empty once dirty
	indent string
	inline string // inline comment including leading #, may be empty
}

// Value returns the scalar value. List values are joined back into
// their comma-separated form.
func (s *Scalar) Value() string {
	return joinValues(s.values)
}

// List returns the value split on commas.
func (s *Scalar) List() []string {
	out := make([]string, len(s.values))
	copy(out, s.values)
	return out
}

// Section is a named stanza holding scalars and nested sub-sections in
// document order. The document root is a level-zero section with an
// empty name.
type Section struct {
	Name  string
	level int // 0 for root, 1 for [Name], 2 for [[Name]], ...
	raw   string
	items []*item
}

// NewSection creates a detached section for fragment building.
func NewSection(name string) *Section {
	return &Section{Name: name, level: 1}
}

// Level returns the nesting depth of the section header.
func (s *Section) Level() int {
	return s.level
}

// Scalar returns the value of a key in this section.
func (s *Section) Scalar(key string) (string, bool) {
	for _, it := range s.items {
		if it.kind == itemScalar && it.scalar.Key == key {
			return it.scalar.Value(), true
		}
	}
	return "", false
}

// List returns the list value of a key in this section.
func (s *Section) List(key string) ([]string, bool) {
	for _, it := range s.items {
		if it.kind == itemScalar && it.scalar.Key == key {
			return it.scalar.List(), true
		}
	}
	return nil, false
}

// HasKey reports whether the section contains the key.
func (s *Section) HasKey(key string) bool {
	_, ok := s.Scalar(key)
	return ok
}

// SetScalar updates a key in place or appends it after the last scalar.
// An update only invalidates the one affected line; everything else in
// the document keeps its original bytes.
func (s *Section) SetScalar(key, value string) {
	s.setValues(key, []string{value})
}

// SetList updates or appends a comma-separated list value.
func (s *Section) SetList(key string, values []string) {
	s.setValues(key, append([]string(nil), values...))
}

func (s *Section) setValues(key string, values []string) {
	for _, it := range s.items {
		if it.kind == itemScalar && it.scalar.Key == key {
			if equalValues(it.scalar.values, values) {
				return // no-op writes keep the original line intact
			}
			it.scalar.values = values
			it.scalar.raw = ""
			return
		}
	}
	sc := &Scalar{Key: key, values: values, indent: s.childIndent()}
	s.items = append(s.items, &item{kind: itemScalar, scalar: sc})
}

// RemoveKey deletes a key from the section.
func (s *Section) RemoveKey(key string) bool {
	for i, it := range s.items {
		if it.kind == itemScalar && it.scalar.Key == key {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// Sub returns the named direct sub-section.
func (s *Section) Sub(name string) (*Section, bool) {
	for _, it := range s.items {
		if it.kind == itemSection && it.section.Name == name {
			return it.section, true
		}
	}
	return nil, false
}

// HasSection reports whether a direct sub-section exists.
func (s *Section) HasSection(name string) bool {
	_, ok := s.Sub(name)
	return ok
}

// Sections returns the direct sub-sections in document order.
func (s *Section) Sections() []*Section {
	var out []*Section
	for _, it := range s.items {
		if it.kind == itemSection {
			out = append(out, it.section)
		}
	}
	return out
}

// Keys returns the scalar keys in document order.
func (s *Section) Keys() []string {
	var out []string
	for _, it := range s.items {
		if it.kind == itemScalar {
			out = append(out, it.scalar.Key)
		}
	}
	return out
}

// AppendSection attaches child as the last item of s, renumbering the
// child's nesting levels to fit.
func (s *Section) AppendSection(child *Section) {
	child.reparent(s.level + 1)
	s.items = append(s.items, &item{kind: itemSection, section: child})
}

// RemoveSection deletes a direct sub-section, along with any comment
// lines immediately preceding it.
func (s *Section) RemoveSection(name string) bool {
	for i, it := range s.items {
		if it.kind == itemSection && it.section.Name == name {
			start := i
			for start > 0 && s.items[start-1].kind == itemComment && s.items[start-1].raw != "" {
				start--
			}
			s.items = append(s.items[:start], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// reparent rewrites the nesting level of a section tree rooted here.
func (s *Section) reparent(level int) {
	s.level = level
	s.raw = ""
	for _, it := range s.items {
		if it.kind == itemSection {
			it.section.reparent(level + 1)
		}
		if it.kind == itemScalar {
			it.scalar.raw = ""
			it.scalar.indent = indentFor(level)
		}
	}
}

// childIndent returns the indentation used for new scalars in s.
func (s *Section) childIndent() string {
	return indentFor(s.level)
}

func indentFor(level int) string {
	out := ""
	for i := 0; i < level; i++ {
		out += "    "
	}
	return out
}

// Equal reports whether two sections carry the same keys, values and
// sub-sections, ignoring comments and formatting. Used for idempotent
// re-install detection.
func (s *Section) Equal(other *Section) bool {
	if s.Name != other.Name {
		return false
	}
	ak, bk := s.Keys(), other.Keys()
	if len(ak) != len(bk) {
		return false
	}
	for i := range ak {
		if ak[i] != bk[i] {
			return false
		}
		av, _ := s.Scalar(ak[i])
		bv, _ := other.Scalar(bk[i])
		if av != bv {
			return false
		}
	}
	as, bs := s.Sections(), other.Sections()
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if !as[i].Equal(bs[i]) {
			return false
		}
	}
	return true
}

// Document is a parsed configuration file. Top-level scalars and
// stanzas hang off the root section.
type Document struct {
	root *Section
	// finalNewline records whether the source ended with a newline,
	// so a rewrite reproduces the file's last byte as well.
	finalNewline bool
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	return &Document{root: &Section{level: 0}, finalNewline: true}
}

// Root returns the root section holding top-level keys and stanzas.
func (d *Document) Root() *Section {
	return d.root
}

// Section resolves a dotted path such as "StdReport.SeasonsReport".
func (d *Document) Section(path string) (*Section, error) {
	cur := d.root
	for _, part := range splitPath(path) {
		next, ok := cur.Sub(part)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrSectionNotFound, path)
		}
		cur = next
	}
	return cur, nil
}

// Scalar resolves a dotted path ending in a key, e.g. "Station.station_type".
func (d *Document) Scalar(path string) (string, error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: empty path", ErrKeyNotFound)
	}
	cur := d.root
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur.Sub(part)
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrSectionNotFound, path)
		}
		cur = next
	}
	v, ok := cur.Scalar(parts[len(parts)-1])
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, path)
	}
	return v, nil
}

// SetScalar sets a scalar at a dotted path. Intermediate sections must
// already exist; only the one affected line is rewritten.
func (d *Document) SetScalar(path, value string) error {
	parts := splitPath(path)
	if len(parts) < 1 {
		return fmt.Errorf("%w: empty path", ErrKeyNotFound)
	}
	cur := d.root
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur.Sub(part)
		if !ok {
			return fmt.Errorf("%w: %s", ErrSectionNotFound, path)
		}
		cur = next
	}
	cur.SetScalar(parts[len(parts)-1], value)
	return nil
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	var parts []string
	cur := ""
	for _, r := range path {
		if r == '.' {
			parts = append(parts, cur)
			cur = ""
			continue
		}
		cur += string(r)
	}
	return append(parts, cur)
}

func equalValues(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
