package stanza

import (
	"fmt"
)

// MergeResult reports what a fragment merge did per stanza.
type MergeResult struct {
	Added     []string // stanzas appended to the document
	Unchanged []string // stanzas already present with identical content
}

// Merge appends the fragment's top-level stanzas to the document. A
// stanza whose name is already present is only accepted when its
// content is identical, which makes re-running an install a no-op;
// a name collision with different content fails with ErrStanzaExists
// so an unrelated stanza is never overwritten silently.
func (d *Document) Merge(fragment *Document) (*MergeResult, error) {
	res := &MergeResult{}

	// Validate everything before touching the document, so a failed
	// merge leaves it untouched.
	for _, sec := range fragment.root.Sections() {
		existing, ok := d.root.Sub(sec.Name)
		if !ok {
			continue
		}
		if !existing.Equal(sec) {
			return nil, fmt.Errorf("%w: [%s]", ErrStanzaExists, sec.Name)
		}
	}

	for _, sec := range fragment.root.Sections() {
		if d.root.HasSection(sec.Name) {
			res.Unchanged = append(res.Unchanged, sec.Name)
			continue
		}
		d.root.appendBlank()
		d.root.AppendSection(cloneSection(sec))
		res.Added = append(res.Added, sec.Name)
	}
	return res, nil
}

// appendBlank keeps a blank separator line before an appended stanza.
func (s *Section) appendBlank() {
	s.items = append(s.items, &item{kind: itemComment, raw: ""})
}

// cloneSection deep-copies a section tree so a merged fragment does not
// alias the source document.
func cloneSection(s *Section) *Section {
	out := &Section{Name: s.Name, level: s.level, raw: s.raw}
	for _, it := range s.items {
		switch it.kind {
		case itemComment:
			out.items = append(out.items, &item{kind: itemComment, raw: it.raw})
		case itemScalar:
			sc := *it.scalar
			sc.values = append([]string(nil), it.scalar.values...)
			out.items = append(out.items, &item{kind: itemScalar, scalar: &sc})
		case itemSection:
			out.items = append(out.items, &item{kind: itemSection, section: cloneSection(it.section)})
		}
	}
	return out
}
