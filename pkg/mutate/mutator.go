// Package mutate rewrites JSX source in response to property edits. Every
// rewrite is an offset splice of the targeted construct's bytes: unrelated
// constructs, whitespace and markers round-trip byte-for-byte, and the same
// edit applied twice produces the same document as applying it once.
package mutate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/jsx"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/style"
)

// Kind classifies what part of the element an edit touches.
type Kind uint8

const (
	// KindStyle sets one entry of the style object, creating the
	// attribute when missing.
	KindStyle Kind = iota
	// KindText replaces the element's text child.
	KindText
	// KindAttr sets one attribute.
	KindAttr
)

func (k Kind) String() string {
	switch k {
	case KindStyle:
		return "style"
	case KindText:
		return "text"
	case KindAttr:
		return "attribute"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// ParseKind maps a wire kind name to its Kind. The second return is false
// for names no edit path handles.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "style":
		return KindStyle, true
	case "text":
		return KindText, true
	case "attribute", "attr":
		return KindAttr, true
	default:
		return 0, false
	}
}

// Edit is one property change against a stamped document.
type Edit struct {
	EID      jsx.EID
	Property string
	Value    string
	Kind     Kind
}

// Apply rewrites the element carrying id. The boolean reports whether the
// document changed: an unknown id is a no-op, not an error, because the id
// may reference an element from a stale snapshot mid-debounce; callers log
// and continue. A non-nil error means the splice produced source that no
// longer parses, which indicates a bug, never bad user input.
func Apply(doc *jsx.Document, id jsx.EID, property, value string, kind Kind) (*jsx.Document, bool, error) {
	if doc == nil || doc.Root == nil {
		return doc, false, nil
	}
	target := doc.FindByEID(id)
	if target == nil {
		return doc, false, nil
	}

	var source string
	var ok bool
	switch kind {
	case KindStyle:
		source, ok = spliceStyle(doc, target, property, value)
	case KindText:
		source, ok = spliceText(doc, target, value)
	case KindAttr:
		source, ok = spliceAttr(doc, target, property, value)
	default:
		return doc, false, nil
	}
	if !ok {
		return doc, false, nil
	}
	if source == doc.Source {
		// The edit matched what is already written.
		return doc, false, nil
	}

	next, err := jsx.Parse(source)
	if err != nil {
		return doc, false, fmt.Errorf("mutate: reparse after %s edit of %s: %w", kind, id, err)
	}
	if next.FindByEID(id) == nil {
		return doc, false, fmt.Errorf("mutate: %s edit of %s lost the marker", kind, id)
	}
	return next, true, nil
}

// ApplyAll applies edits in order against successive documents, returning
// the final document and how many edits changed it. The first splice error
// stops the batch.
func ApplyAll(doc *jsx.Document, edits []Edit) (*jsx.Document, int, error) {
	applied := 0
	for _, e := range edits {
		next, changed, err := Apply(doc, e.EID, e.Property, e.Value, e.Kind)
		if err != nil {
			return doc, applied, err
		}
		doc = next
		if changed {
			applied++
		}
	}
	return doc, applied, nil
}

// spliceStyle upserts one style object entry. The value is canonicalized
// through the formatter so source and DOM always agree on units.
func spliceStyle(doc *jsx.Document, e *jsx.Element, property, value string) (string, bool) {
	key := property
	if strings.Contains(key, "-") {
		key = style.CSSNameToPropertyKey(key)
	}
	literal := quoteJS(style.Format(key, value))

	attr := e.Attr("style")
	if attr == nil {
		// No style attribute: create one before the tag close.
		text := fmt.Sprintf("style={{%s: %s}}", key, literal)
		if e.AttrsEnd > 0 && !isSpaceByte(doc.Source[e.AttrsEnd-1]) {
			text = " " + text
		}
		return doc.Splice(e.AttrsEnd, e.AttrsEnd, text), true
	}

	if attr.Kind == jsx.AttrString {
		// Pasted HTML carries string styles; convert the whole attribute
		// to an object literal with the edit folded in.
		styles, err := style.ParseInline(attr.Value)
		if err != nil {
			return "", false
		}
		styles[key] = style.Format(key, value)
		return doc.Splice(attr.Start, attr.End, "style="+styleObjectText(styles)), true
	}

	obj := jsx.ParseStyleAttr(doc, e)
	if obj == nil {
		// style={styles.card} or similar: rewriting would destroy the
		// expression, so leave the document alone.
		return "", false
	}

	if entry := obj.Entry(key); entry != nil {
		return doc.Splice(entry.ValStart, entry.ValEnd, literal), true
	}

	// Append a new entry before the closing brace.
	insert := fmt.Sprintf("%s: %s", key, literal)
	if len(obj.Entries) > 0 {
		last := obj.Entries[len(obj.Entries)-1]
		// Reuse the object's own separator position: place the new entry
		// right after the last value so trailing formatting stays put.
		return doc.Splice(last.ValEnd, last.ValEnd, ", "+insert), true
	}
	return doc.Splice(obj.OpenBrace+1, obj.OpenBrace+1, insert), true
}

// spliceText replaces the element's text child. Nested element children
// survive: only the first significant text run is replaced, or the text is
// inserted after the opening tag when the element has none.
func spliceText(doc *jsx.Document, e *jsx.Element, value string) (string, bool) {
	if e.SelfClose {
		return "", false
	}
	text := jsxText(value)

	if runs := e.TextChildren(); len(runs) > 0 {
		first := runs[0]
		start, end := trimSpan(doc.Source, first.Start, first.End)
		return doc.Splice(start, end, text), true
	}
	if len(e.ElementChildren()) > 0 {
		return doc.Splice(e.OpenEnd, e.OpenEnd, text), true
	}
	// Empty or expression-only body: replace the whole body.
	return doc.Splice(e.OpenEnd, e.CloseStart, text), true
}

// spliceAttr sets one attribute. The identity marker is off limits.
func spliceAttr(doc *jsx.Document, e *jsx.Element, name, value string) (string, bool) {
	if name == jsx.MarkerAttr || name == "" {
		return "", false
	}

	attr := e.Attr(name)
	if attr == nil {
		text := name + `="` + escapeDouble(value) + `"`
		if e.AttrsEnd > 0 && !isSpaceByte(doc.Source[e.AttrsEnd-1]) {
			text = " " + text
		}
		return doc.Splice(e.AttrsEnd, e.AttrsEnd, text), true
	}
	if attr.Kind == jsx.AttrString {
		quote := doc.Source[attr.ValStart-1]
		return doc.Splice(attr.ValStart, attr.ValEnd, escapeQuote(value, quote)), true
	}
	// Bare or expression attribute: rewrite the whole attribute.
	return doc.Splice(attr.Start, attr.End, name+`="`+escapeDouble(value)+`"`), true
}

// styleObjectText renders a style map as a JSX object literal with sorted
// keys.
func styleObjectText(styles map[string]string) string {
	keys := make([]string, 0, len(styles))
	for k := range styles {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("{{")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(quoteJS(styles[k]))
	}
	b.WriteString("}}")
	return b.String()
}

// jsxText renders a text value safely for a JSX body. Plain text is
// inserted verbatim; text containing JSX-significant characters is wrapped
// in a string literal expression.
func jsxText(value string) string {
	if strings.ContainsAny(value, "<>{}") {
		return "{" + quoteJS(value) + "}"
	}
	return value
}

// trimSpan shrinks [start, end) to exclude surrounding whitespace so the
// replacement keeps the original indentation.
func trimSpan(src string, start, end int) (int, int) {
	for start < end && isSpaceByte(src[start]) {
		start++
	}
	for end > start && isSpaceByte(src[end-1]) {
		end--
	}
	return start, end
}

// quoteJS writes a single-quoted JS string literal.
func quoteJS(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'', '\\':
			b.WriteByte('\\')
			b.WriteByte(s[i])
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteByte(s[i])
		}
	}
	b.WriteByte('\'')
	return b.String()
}

func escapeDouble(s string) string {
	return escapeQuote(s, '"')
}

// escapeQuote makes s safe inside the given quote character. JSX attribute
// strings have no escape sequences, so the quote becomes its HTML entity.
func escapeQuote(s string, quote byte) string {
	entity := "&quot;"
	if quote == '\'' {
		entity = "&#39;"
	}
	return strings.ReplaceAll(s, string(quote), entity)
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
