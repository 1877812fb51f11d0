package jsx

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// maxIDAttempts bounds collision re-draws from a misbehaving IDSource.
const maxIDAttempts = 100

// ErrIDSourceExhausted is returned when the IDSource cannot produce a fresh
// identifier within the attempt budget.
var ErrIDSourceExhausted = errors.New("jsx: id source exhausted")

// IDSource produces marker values for Stamp. Tests swap in a deterministic
// source.
type IDSource func() EID

// NewIDSource returns the default source: the first eight hex characters of
// a random UUID, short enough to keep stamped source readable.
func NewIDSource() IDSource {
	return func() EID {
		return EID(uuid.New().String()[:8])
	}
}

// Stamper injects identity markers into parsed documents. Stamping happens
// once per document; every later mutation carries the markers through
// unchanged.
type Stamper struct {
	source IDSource
}

// StamperOption configures a Stamper.
type StamperOption func(*Stamper)

// WithIDSource overrides the marker generator.
func WithIDSource(src IDSource) StamperOption {
	return func(s *Stamper) {
		s.source = src
	}
}

// NewStamper creates a Stamper with the given options.
func NewStamper(opts ...StamperOption) *Stamper {
	s := &Stamper{source: NewIDSource()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stamp returns a document in which every element carries a unique marker
// attribute, plus the number of markers written. Elements already stamped
// keep their marker, so a second pass writes nothing and returns the input
// document itself. Duplicate markers (typically from copy-pasted source)
// are repaired: the first occurrence wins, later ones are re-drawn.
func (s *Stamper) Stamp(doc *Document) (*Document, int, error) {
	if doc == nil || doc.Root == nil {
		return doc, 0, nil
	}

	type edit struct {
		start, end int
		text       string
	}

	used := make(map[EID]bool)
	var edits []edit

	draw := func() (EID, error) {
		for i := 0; i < maxIDAttempts; i++ {
			id := s.source()
			if id != "" && !used[id] {
				used[id] = true
				return id, nil
			}
		}
		return "", ErrIDSourceExhausted
	}

	var walkErr error
	doc.Walk(func(e *Element) bool {
		if e.Fragment {
			// Fragments render no DOM node of their own; nothing to select.
			return true
		}
		if id := e.EID(); id != "" && !used[id] {
			used[id] = true
			return true
		}
		id, err := draw()
		if err != nil {
			walkErr = err
			return false
		}
		if a := e.Attr(MarkerAttr); a != nil {
			if a.Kind == AttrString {
				// Duplicate marker: overwrite the value in place.
				edits = append(edits, edit{start: a.ValStart, end: a.ValEnd, text: string(id)})
			} else {
				// Marker written as an expression or bare attribute is
				// unreadable; replace the whole attribute.
				edits = append(edits, edit{start: a.Start, end: a.End, text: fmt.Sprintf(`%s=%q`, MarkerAttr, id)})
			}
			return true
		}
		text := fmt.Sprintf(`%s=%q`, MarkerAttr, id)
		if e.AttrsEnd > 0 && !isSpace(doc.Source[e.AttrsEnd-1]) {
			text = " " + text
		}
		edits = append(edits, edit{start: e.AttrsEnd, end: e.AttrsEnd, text: text})
		return true
	})
	if walkErr != nil {
		return doc, 0, walkErr
	}
	if len(edits) == 0 {
		return doc, 0, nil
	}

	// Edits come out of the walk in document order with disjoint spans, so
	// applying them back to front keeps every earlier offset valid.
	source := doc.Source
	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		source = source[:e.start] + e.text + source[e.end:]
	}

	stamped, err := Parse(source)
	if err != nil {
		// The inserted attributes are well formed; a reparse failure means
		// the input tree and its source disagree.
		return doc, 0, fmt.Errorf("jsx: reparse after stamp: %w", err)
	}
	return stamped, len(edits), nil
}

// Stamp injects markers using a default UUID-backed Stamper.
func Stamp(doc *Document) (*Document, int, error) {
	return NewStamper().Stamp(doc)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
