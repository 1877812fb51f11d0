package dom

import (
	"strings"
	"testing"
)

func TestString_Deterministic(t *testing.T) {
	root := mustBuild(t, `<div data-eid="d1" id="a" className="card" style={{color:'red', fontSize: 14}}>Hi</div>`)

	first := String(root)
	for i := 0; i < 10; i++ {
		if got := String(root); got != first {
			t.Fatalf("expected stable serialization, got %q then %q", first, got)
		}
	}

	want := `<div data-eid="d1" class="card" id="a" style="color: red; font-size: 14px">Hi</div>`
	if first != want {
		t.Errorf("expected %q, got %q", want, first)
	}
}

func TestString_EscapesText(t *testing.T) {
	root := mustBuild(t, `<p data-eid="p1">a &lt;b&gt;</p>`)
	root.Children[0].Text = `<script>alert("x")</script>`

	got := String(root)
	if strings.Contains(got, "<script>") {
		t.Errorf("expected text escaped, got %q", got)
	}
	if !strings.Contains(got, "&lt;script&gt;") {
		t.Errorf("expected entities, got %q", got)
	}
}

func TestString_EscapesAttrValues(t *testing.T) {
	root := mustBuild(t, `<a data-eid="a1" title='x'>go</a>`)
	root.Attrs["title"] = `"><img src=x>`

	got := String(root)
	if strings.Contains(got, `"><img`) {
		t.Errorf("expected attribute value escaped, got %q", got)
	}
}

func TestString_VoidElements(t *testing.T) {
	root := mustBuild(t, `<div data-eid="d1"><img data-eid="i1" src="a.png"/><br data-eid="b1"/></div>`)

	got := String(root)
	if strings.Contains(got, "</img>") || strings.Contains(got, "</br>") {
		t.Errorf("expected no closing tags for void elements, got %q", got)
	}
	if !strings.Contains(got, `<img data-eid="i1" src="a.png">`) {
		t.Errorf("expected img serialized, got %q", got)
	}
}

func TestString_FragmentTransparent(t *testing.T) {
	root := mustBuild(t, `<><p data-eid="p1">a</p><p data-eid="p2">b</p></>`)
	got := String(root)
	want := `<p data-eid="p1">a</p><p data-eid="p2">b</p>`
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestString_BareAttr(t *testing.T) {
	root := mustBuild(t, `<button data-eid="b1" disabled>go</button>`)
	if got := String(root); !strings.Contains(got, "<button data-eid=\"b1\" disabled>") {
		t.Errorf("expected bare attribute without value, got %q", got)
	}
}

func TestMinified(t *testing.T) {
	root := mustBuild(t, `<div data-eid="d1"><p data-eid="p1">hello</p></div>`)
	got, err := Minified(root)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(got, "hello") {
		t.Errorf("expected content preserved, got %q", got)
	}
	if !strings.Contains(got, "data-eid") {
		t.Errorf("expected markers to survive minification, got %q", got)
	}
}

func TestPatchKind_String(t *testing.T) {
	tests := []struct {
		kind PatchKind
		want string
	}{
		{PatchSetText, "set_text"},
		{PatchSetAttr, "set_attr"},
		{PatchRemoveAttr, "remove_attr"},
		{PatchSetStyle, "set_style"},
		{PatchReplaceNode, "replace_node"},
		{PatchInsertNode, "insert_node"},
		{PatchRemoveNode, "remove_node"},
		{PatchKind(99), "unknown(99)"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestPatchBuilders(t *testing.T) {
	op := SetStyle("e1", "color", "#00ff00")
	if op.Kind != PatchSetStyle || op.EID != "e1" || op.Name != "color" || op.Value != "#00ff00" {
		t.Errorf("unexpected op %+v", op)
	}

	n := mustBuild(t, `<span data-eid="s1">x</span>`)
	rep := ReplaceNode("s1", n)
	if rep.Kind != PatchReplaceNode || !strings.Contains(rep.HTML, "<span") {
		t.Errorf("unexpected op %+v", rep)
	}

	ins := InsertNode("d1", 2, n)
	if ins.Kind != PatchInsertNode || ins.EID != "d1" || ins.Index != 2 {
		t.Errorf("unexpected op %+v", ins)
	}
}
