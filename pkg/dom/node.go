// Package dom models the rendered tree the editor serves to browsers: a
// server-side DOM built from stamped JSX source. Browsers mirror this tree;
// every patch the editor emits is derived from it, so the server copy is
// authoritative.
package dom

import (
	"errors"
	"strings"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/jsx"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/style"
)

// TextTag marks text nodes.
const TextTag = "#text"

// ErrEmptyDocument is returned when building from a document with no root.
var ErrEmptyDocument = errors.New("dom: empty document")

// Node is one node of the rendered tree. Element nodes carry Tag, Attrs,
// Style and Children; text nodes carry TextTag and Text.
type Node struct {
	Tag string
	// EID is the stable identity carried over from the stamped source.
	// Empty for text nodes and transparent fragment wrappers.
	EID jsx.EID
	// Attrs holds HTML attribute names and values, marker excluded.
	Attrs map[string]string
	// Style holds inline style declarations keyed by camelCase property.
	Style    map[string]string
	Children []*Node
	Text     string
}

// IsText reports whether the node is a text node.
func (n *Node) IsText() bool { return n.Tag == TextTag }

// NewText creates a text node.
func NewText(text string) *Node {
	return &Node{Tag: TextTag, Text: text}
}

// Build converts a stamped document into a rendered tree. Expression
// children that cannot be evaluated server-side ({count}, comments) render
// as nothing; string and number literal expressions render as text.
// Fragments become transparent wrappers that serialize to their children.
func Build(doc *jsx.Document) (*Node, error) {
	if doc == nil || doc.Root == nil {
		return nil, ErrEmptyDocument
	}
	return buildElement(doc, doc.Root), nil
}

func buildElement(doc *jsx.Document, e *jsx.Element) *Node {
	n := &Node{
		Tag: e.Tag,
		EID: e.EID(),
	}
	if e.Fragment {
		n.Tag = ""
	}

	for _, a := range e.Attrs {
		switch a.Kind {
		case jsx.AttrString:
			if a.Name == jsx.MarkerAttr {
				continue
			}
			n.setAttr(htmlAttrName(a.Name), a.Value)
		case jsx.AttrBare:
			n.setAttr(htmlAttrName(a.Name), "")
		case jsx.AttrExpr:
			if a.Name == "style" {
				n.Style = buildStyle(doc, e)
				continue
			}
			// Event handlers never reach the mirror; other expression
			// values are opaque server-side.
			if strings.HasPrefix(a.Name, "on") {
				continue
			}
			if v, ok := literalValue(a.Value); ok {
				n.setAttr(htmlAttrName(a.Name), v)
			}
		}
	}

	for _, child := range e.Children {
		switch c := child.(type) {
		case *jsx.Element:
			n.Children = append(n.Children, buildElement(doc, c))
		case *jsx.Text:
			if text := collapseSpace(c.Value); text != "" {
				n.Children = append(n.Children, NewText(text))
			}
		case *jsx.Expr:
			if v, ok := literalValue(c.Raw); ok && v != "" {
				n.Children = append(n.Children, NewText(v))
			}
		}
	}
	return n
}

func (n *Node) setAttr(name, value string) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[name] = value
}

// buildStyle reads the element's style object into a formatted style map.
// Entries whose value is not a literal (a variable, a call) are skipped.
func buildStyle(doc *jsx.Document, e *jsx.Element) map[string]string {
	obj := jsx.ParseStyleAttr(doc, e)
	if obj == nil || len(obj.Entries) == 0 {
		return nil
	}
	out := make(map[string]string, len(obj.Entries))
	for _, entry := range obj.Entries {
		v, ok := entry.StringValue()
		if !ok {
			continue
		}
		key := entry.Key
		if strings.Contains(key, "-") {
			key = style.CSSNameToPropertyKey(key)
		}
		out[key] = style.Format(key, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// literalValue interprets a JSX expression as a literal: quoted strings are
// unquoted, bare numbers pass through, true/false for boolean attributes.
func literalValue(raw string) (string, bool) {
	entry := jsx.StyleEntry{RawValue: strings.TrimSpace(raw)}
	if v, ok := entry.StringValue(); ok {
		return v, true
	}
	switch strings.TrimSpace(raw) {
	case "true":
		return "", true
	case "false", "null", "undefined":
		return "", false
	}
	return "", false
}

// htmlAttrName maps JSX attribute spellings to their HTML names.
func htmlAttrName(name string) string {
	switch name {
	case "className":
		return "class"
	case "htmlFor":
		return "for"
	}
	return name
}

// collapseSpace trims a text run and collapses internal whitespace runs to
// a single space, matching how browsers lay out JSX text.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Identify returns the node's stable identity, or "" for text nodes and
// unstamped elements.
func Identify(n *Node) jsx.EID {
	if n == nil {
		return ""
	}
	return n.EID
}

// Resolve finds the node carrying the given identity in the tree rooted at
// root. Returns nil, never an error, when the identity is absent: a missed
// lookup is an expected outcome after source edits.
func Resolve(root *Node, id jsx.EID) *Node {
	if root == nil || id == "" {
		return nil
	}
	if root.EID == id {
		return root
	}
	for _, child := range root.Children {
		if found := Resolve(child, id); found != nil {
			return found
		}
	}
	return nil
}

// Walk visits every node depth-first, stopping early if fn returns false.
func Walk(root *Node, fn func(*Node) bool) {
	if root == nil {
		return
	}
	walk(root, fn)
}

func walk(n *Node, fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, child := range n.Children {
		if !walk(child, fn) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the tree. The compile cache hands out
// clones so each session mutates a private mount while the cached entry
// stays pristine.
func Clone(n *Node) *Node {
	if n == nil {
		return nil
	}
	out := &Node{Tag: n.Tag, EID: n.EID, Text: n.Text}
	if n.Attrs != nil {
		out.Attrs = make(map[string]string, len(n.Attrs))
		for k, v := range n.Attrs {
			out.Attrs[k] = v
		}
	}
	if n.Style != nil {
		out.Style = make(map[string]string, len(n.Style))
		for k, v := range n.Style {
			out.Style[k] = v
		}
	}
	if len(n.Children) > 0 {
		out.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			out.Children[i] = Clone(child)
		}
	}
	return out
}

// TextContent returns the concatenated text of the node's descendants,
// single-space separated.
func TextContent(n *Node) string {
	if n == nil {
		return ""
	}
	var parts []string
	Walk(n, func(c *Node) bool {
		if c.IsText() && c.Text != "" {
			parts = append(parts, c.Text)
		}
		return true
	})
	return strings.Join(parts, " ")
}
