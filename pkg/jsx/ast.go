// Package jsx implements parsing, identity stamping and source-preserving
// edits for the JSX subset the component editor handles. Every node carries
// byte offsets into the original text, so edits splice the source rather
// than re-print it: untouched regions survive byte-for-byte.
package jsx

import "strings"

// MarkerAttr is the attribute injected by Stamp to give each element a
// stable identity across renders and edits.
const MarkerAttr = "data-eid"

// EID is the stable identifier of one element construct, independent of its
// rendered DOM instance.
type EID string

// Node is one construct in the parsed tree.
type Node interface {
	// Span returns the node's byte range [start, end) in the source.
	Span() (start, end int)
}

// AttrKind describes how an attribute value was written.
type AttrKind uint8

const (
	// AttrBare is an attribute with no value, like `disabled`.
	AttrBare AttrKind = iota
	// AttrString is a quoted string value, like `class="card"`.
	AttrString
	// AttrExpr is a braced expression value, like `style={{color:'red'}}`.
	AttrExpr
	// AttrSpread is a spread attribute, like `{...props}`.
	AttrSpread
)

// Attr is a single attribute of an element.
type Attr struct {
	// Name is the attribute name; empty for spread attributes.
	Name string
	// Value is the decoded string for AttrString, the raw expression text
	// (braces excluded) for AttrExpr and AttrSpread, empty for AttrBare.
	Value string
	Kind  AttrKind

	// Start and End delimit the whole attribute in the source.
	Start, End int
	// ValStart and ValEnd delimit the value: inside the quotes for
	// AttrString, inside the braces for AttrExpr. Zero for AttrBare.
	ValStart, ValEnd int
}

// Element is a JSX element or fragment.
type Element struct {
	// Tag is the element name; empty when Fragment is set.
	Tag      string
	Fragment bool
	Attrs    []Attr
	Children []Node
	// SelfClose marks `<img />` style elements.
	SelfClose bool

	// Start and End delimit the whole element.
	Start, End int
	// AttrsEnd is the offset where an injected attribute would be placed,
	// immediately before the `>` or `/>` of the opening tag.
	AttrsEnd int
	// OpenEnd is the offset just past the `>` of the opening tag.
	OpenEnd int
	// CloseStart is the offset of `<` in the closing tag; for self-closing
	// elements it equals End.
	CloseStart int
}

// Text is a run of literal text between tags. Value is the raw source
// slice, whitespace included.
type Text struct {
	Value      string
	Start, End int
}

// Expr is a braced child expression, like `{count}` or a `{/* comment */}`.
// Raw excludes the braces; the span includes them.
type Expr struct {
	Raw        string
	Start, End int
}

func (e *Element) Span() (int, int) { return e.Start, e.End }
func (t *Text) Span() (int, int)    { return t.Start, t.End }
func (x *Expr) Span() (int, int)    { return x.Start, x.End }

// Attr returns the attribute with the given name, or nil.
func (e *Element) Attr(name string) *Attr {
	for i := range e.Attrs {
		if e.Attrs[i].Name == name {
			return &e.Attrs[i]
		}
	}
	return nil
}

// EID returns the element's stable identifier, or "" if it has not been
// stamped.
func (e *Element) EID() EID {
	if a := e.Attr(MarkerAttr); a != nil && a.Kind == AttrString {
		return EID(a.Value)
	}
	return ""
}

// Document is an immutable parse result: the source text plus its tree.
// Mutations produce a new Document; nothing edits one in place.
type Document struct {
	// Source is the complete original text, including any non-JSX prefix
	// (imports, a component wrapper) and suffix around the root element.
	Source string
	// Root is the outermost element construct.
	Root *Element
}

// String returns the source text.
func (d *Document) String() string { return d.Source }

// Splice returns new source text with [start, end) replaced. The document
// itself is not modified; callers reparse the result.
func (d *Document) Splice(start, end int, replacement string) string {
	var b strings.Builder
	b.Grow(len(d.Source) - (end - start) + len(replacement))
	b.WriteString(d.Source[:start])
	b.WriteString(replacement)
	b.WriteString(d.Source[end:])
	return b.String()
}

// FindByEID returns the element carrying the given marker, or nil.
func (d *Document) FindByEID(id EID) *Element {
	if d.Root == nil || id == "" {
		return nil
	}
	return findByEID(d.Root, id)
}

func findByEID(e *Element, id EID) *Element {
	if e.EID() == id {
		return e
	}
	for _, child := range e.Children {
		if el, ok := child.(*Element); ok {
			if found := findByEID(el, id); found != nil {
				return found
			}
		}
	}
	return nil
}

// Elements returns every element in the tree in document order.
func (d *Document) Elements() []*Element {
	if d.Root == nil {
		return nil
	}
	var out []*Element
	collectElements(d.Root, &out)
	return out
}

func collectElements(e *Element, out *[]*Element) {
	*out = append(*out, e)
	for _, child := range e.Children {
		if el, ok := child.(*Element); ok {
			collectElements(el, out)
		}
	}
}

// Walk calls fn for every element in document order, stopping early if fn
// returns false.
func (d *Document) Walk(fn func(*Element) bool) {
	if d.Root == nil {
		return
	}
	walkElement(d.Root, fn)
}

func walkElement(e *Element, fn func(*Element) bool) bool {
	if !fn(e) {
		return false
	}
	for _, child := range e.Children {
		if el, ok := child.(*Element); ok {
			if !walkElement(el, fn) {
				return false
			}
		}
	}
	return true
}

// TextChildren returns the element's non-whitespace text children.
func (e *Element) TextChildren() []*Text {
	var out []*Text
	for _, child := range e.Children {
		if t, ok := child.(*Text); ok && strings.TrimSpace(t.Value) != "" {
			out = append(out, t)
		}
	}
	return out
}

// ElementChildren returns the element's child elements.
func (e *Element) ElementChildren() []*Element {
	var out []*Element
	for _, child := range e.Children {
		if el, ok := child.(*Element); ok {
			out = append(out, el)
		}
	}
	return out
}
