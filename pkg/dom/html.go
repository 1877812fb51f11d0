package dom

import (
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/tdewolff/minify/v2"
	mhtml "github.com/tdewolff/minify/v2/html"
	"golang.org/x/net/html"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/jsx"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/style"
)

// voidTags never take children or a closing tag.
var voidTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// WriteHTML serializes the tree with escaped text and attribute values.
// Output is deterministic: the identity marker first, remaining attributes
// sorted, inline style last.
func WriteHTML(w io.Writer, n *Node) error {
	ew := &errWriter{w: w}
	writeNode(ew, n)
	return ew.err
}

// String serializes the tree to a string.
func String(n *Node) string {
	var b strings.Builder
	WriteHTML(&b, n)
	return b.String()
}

func writeNode(ew *errWriter, n *Node) {
	if n == nil {
		return
	}
	if n.IsText() {
		ew.WriteString(html.EscapeString(n.Text))
		return
	}
	if n.Tag == "" {
		// Transparent fragment wrapper.
		for _, child := range n.Children {
			writeNode(ew, child)
		}
		return
	}

	ew.WriteString("<")
	ew.WriteString(n.Tag)
	if n.EID != "" {
		ew.WriteString(` ` + jsx.MarkerAttr + `="`)
		ew.WriteString(html.EscapeString(string(n.EID)))
		ew.WriteString(`"`)
	}
	for _, name := range sortedAttrNames(n.Attrs) {
		ew.WriteString(" ")
		ew.WriteString(name)
		if v := n.Attrs[name]; v != "" {
			ew.WriteString(`="`)
			ew.WriteString(html.EscapeString(v))
			ew.WriteString(`"`)
		}
	}
	if len(n.Style) > 0 {
		ew.WriteString(` style="`)
		ew.WriteString(html.EscapeString(style.WriteInline(n.Style)))
		ew.WriteString(`"`)
	}
	ew.WriteString(">")

	if voidTags[n.Tag] {
		return
	}
	for _, child := range n.Children {
		writeNode(ew, child)
	}
	ew.WriteString("</")
	ew.WriteString(n.Tag)
	ew.WriteString(">")
}

func sortedAttrNames(attrs map[string]string) []string {
	if len(attrs) == 0 {
		return nil
	}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// errWriter sinks writes after the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) WriteString(s string) {
	if ew.err == nil {
		_, ew.err = io.WriteString(ew.w, s)
	}
}

// Minifier state, initialized once on first use.
var (
	minifierOnce sync.Once
	minifier     *minify.M
)

func getMinifier() *minify.M {
	minifierOnce.Do(func() {
		minifier = minify.New()
		minifier.AddFunc("text/html", mhtml.Minify)
	})
	return minifier
}

// Minified serializes the tree and minifies the result. Used for the
// full-document frames where payload size matters; patches stay unminified.
func Minified(n *Node) (string, error) {
	return getMinifier().String("text/html", String(n))
}
