package dom

import (
	"testing"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/jsx"
)

func mustBuild(t *testing.T, src string) *Node {
	t.Helper()
	doc, err := jsx.Parse(src)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	root, err := Build(doc)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return root
}

func TestBuild_Basic(t *testing.T) {
	root := mustBuild(t, `<div data-eid="d1" className="card"><h1 data-eid="h1">Hi</h1></div>`)

	if root.Tag != "div" {
		t.Errorf("expected tag 'div', got %q", root.Tag)
	}
	if root.EID != "d1" {
		t.Errorf("expected EID 'd1', got %q", root.EID)
	}
	if root.Attrs["class"] != "card" {
		t.Errorf("expected className mapped to class, got %v", root.Attrs)
	}
	if _, ok := root.Attrs[jsx.MarkerAttr]; ok {
		t.Error("expected marker excluded from Attrs")
	}

	if len(root.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(root.Children))
	}
	h1 := root.Children[0]
	if h1.Tag != "h1" || h1.EID != "h1" {
		t.Errorf("expected h1 child, got %+v", h1)
	}
	if len(h1.Children) != 1 || !h1.Children[0].IsText() || h1.Children[0].Text != "Hi" {
		t.Errorf("expected text child 'Hi', got %+v", h1.Children)
	}
}

func TestBuild_StyleFormatting(t *testing.T) {
	root := mustBuild(t, `<h1 data-eid="h1" style={{color: '#333', fontSize: 16, width: size()}}>Hi</h1>`)

	if root.Style["color"] != "#333" {
		t.Errorf("expected color '#333', got %q", root.Style["color"])
	}
	if root.Style["fontSize"] != "16px" {
		t.Errorf("expected bare number formatted to '16px', got %q", root.Style["fontSize"])
	}
	if _, ok := root.Style["width"]; ok {
		t.Error("expected non-literal entry skipped")
	}
}

func TestBuild_ExpressionChildren(t *testing.T) {
	root := mustBuild(t, `<div data-eid="d1"><span data-eid="s1">{'lit'}</span><span data-eid="s2">{count}</span></div>`)

	lit := root.Children[0]
	if len(lit.Children) != 1 || lit.Children[0].Text != "lit" {
		t.Errorf("expected string literal rendered as text, got %+v", lit.Children)
	}
	dyn := root.Children[1]
	if len(dyn.Children) != 0 {
		t.Errorf("expected dynamic expression rendered as nothing, got %+v", dyn.Children)
	}
}

func TestBuild_EventHandlersDropped(t *testing.T) {
	root := mustBuild(t, `<button data-eid="b1" onClick={handle} disabled>go</button>`)

	if _, ok := root.Attrs["onClick"]; ok {
		t.Error("expected event handler dropped")
	}
	if _, ok := root.Attrs["disabled"]; !ok {
		t.Error("expected bare attribute kept")
	}
}

func TestBuild_WhitespaceCollapsed(t *testing.T) {
	root := mustBuild(t, "<p data-eid=\"p1\">\n   hello   world \n</p>")
	if len(root.Children) != 1 || root.Children[0].Text != "hello world" {
		t.Errorf("expected collapsed text, got %+v", root.Children)
	}
}

func TestBuild_Fragment(t *testing.T) {
	root := mustBuild(t, `<><p data-eid="p1">a</p><p data-eid="p2">b</p></>`)
	if root.Tag != "" {
		t.Errorf("expected transparent wrapper, got tag %q", root.Tag)
	}
	if len(root.Children) != 2 {
		t.Errorf("expected 2 children, got %d", len(root.Children))
	}
}

func TestBuild_EmptyDocument(t *testing.T) {
	if _, err := Build(nil); err != ErrEmptyDocument {
		t.Errorf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	root := mustBuild(t, `<div data-eid="d1"><h1 data-eid="h1">Hi</h1><p data-eid="p1">x</p></div>`)

	if n := Resolve(root, "h1"); n == nil || n.Tag != "h1" {
		t.Errorf("expected to resolve h1, got %+v", n)
	}
	if n := Resolve(root, "d1"); n != root {
		t.Error("expected to resolve root itself")
	}
	if n := Resolve(root, "gone"); n != nil {
		t.Errorf("expected nil for unknown identity, got %+v", n)
	}
	if n := Resolve(root, ""); n != nil {
		t.Error("expected nil for empty identity")
	}
	if n := Resolve(nil, "h1"); n != nil {
		t.Error("expected nil for nil root")
	}
}

func TestIdentify(t *testing.T) {
	root := mustBuild(t, `<div data-eid="d1">x</div>`)
	if id := Identify(root); id != "d1" {
		t.Errorf("expected 'd1', got %q", id)
	}
	if id := Identify(root.Children[0]); id != "" {
		t.Errorf("expected empty identity for text node, got %q", id)
	}
	if id := Identify(nil); id != "" {
		t.Errorf("expected empty identity for nil, got %q", id)
	}
}

func TestResolveIdentifyRoundTrip(t *testing.T) {
	root := mustBuild(t, `<div data-eid="d1"><a data-eid="a1">1</a><a data-eid="a2">2</a></div>`)
	Walk(root, func(n *Node) bool {
		if n.IsText() || n.EID == "" {
			return true
		}
		if got := Resolve(root, Identify(n)); got != n {
			t.Errorf("expected resolve(identify(%q)) to return the same node", n.EID)
		}
		return true
	})
}

func TestClone_Independent(t *testing.T) {
	root := mustBuild(t, `<div data-eid="d1" style={{color:'red'}}><p data-eid="p1">x</p></div>`)
	clone := Clone(root)

	clone.Style["color"] = "blue"
	clone.Children[0].Children[0].Text = "changed"

	if root.Style["color"] != "red" {
		t.Error("expected original style untouched after clone mutation")
	}
	if root.Children[0].Children[0].Text != "x" {
		t.Error("expected original text untouched after clone mutation")
	}
}

func TestTextContent(t *testing.T) {
	root := mustBuild(t, `<div data-eid="d1">Hello <b data-eid="b1">bold</b> world</div>`)
	if got := TextContent(root); got != "Hello bold world" {
		t.Errorf("expected concatenated descendant text, got %q", got)
	}
}
