package diff

import (
	"testing"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/dom"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/jsx"
)

func build(t *testing.T, src string) *dom.Node {
	t.Helper()
	doc, err := jsx.Parse(src)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	root, err := dom.Build(doc)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return root
}

func TestTree_Identical(t *testing.T) {
	src := `<div data-eid="d1" style={{color:'red'}}><p data-eid="p1">x</p></div>`
	ops := Tree(build(t, src), build(t, src))
	if len(ops) != 0 {
		t.Errorf("expected no ops for identical trees, got %+v", ops)
	}
}

func TestTree_StyleChange(t *testing.T) {
	before := build(t, `<h1 data-eid="h1" style={{color:'#333'}}>Hi</h1>`)
	after := build(t, `<h1 data-eid="h1" style={{color:'#00ff00'}}>Hi</h1>`)

	ops := Tree(before, after)
	if len(ops) != 1 {
		t.Fatalf("expected 1 op, got %+v", ops)
	}
	op := ops[0]
	if op.Kind != dom.PatchSetStyle || op.EID != "h1" || op.Name != "color" || op.Value != "#00ff00" {
		t.Errorf("unexpected op %+v", op)
	}
}

func TestTree_StyleRemoved(t *testing.T) {
	before := build(t, `<p data-eid="p1" style={{color:'red', padding: 4}}>x</p>`)
	after := build(t, `<p data-eid="p1" style={{color:'red'}}>x</p>`)

	ops := Tree(before, after)
	if len(ops) != 1 {
		t.Fatalf("expected 1 op, got %+v", ops)
	}
	if ops[0].Kind != dom.PatchSetStyle || ops[0].Name != "padding" || ops[0].Value != "" {
		t.Errorf("expected clearing style op, got %+v", ops[0])
	}
}

func TestTree_TextChange(t *testing.T) {
	before := build(t, `<h1 data-eid="h1">Hi</h1>`)
	after := build(t, `<h1 data-eid="h1">Hello</h1>`)

	ops := Tree(before, after)
	if len(ops) != 1 {
		t.Fatalf("expected 1 op, got %+v", ops)
	}
	if ops[0].Kind != dom.PatchSetText || ops[0].Value != "Hello" {
		t.Errorf("unexpected op %+v", ops[0])
	}
}

func TestTree_AttrChanges(t *testing.T) {
	before := build(t, `<a data-eid="a1" href="/old" title="t">go</a>`)
	after := build(t, `<a data-eid="a1" href="/new">go</a>`)

	ops := Tree(before, after)
	if len(ops) != 2 {
		t.Fatalf("expected 2 ops, got %+v", ops)
	}
	var set, removed bool
	for _, op := range ops {
		switch op.Kind {
		case dom.PatchSetAttr:
			set = op.Name == "href" && op.Value == "/new"
		case dom.PatchRemoveAttr:
			removed = op.Name == "title"
		}
	}
	if !set || !removed {
		t.Errorf("expected set href and remove title, got %+v", ops)
	}
}

func TestTree_UnrelatedSiblingsUntouched(t *testing.T) {
	before := build(t, `<div data-eid="d1"><h1 data-eid="h1" style={{color:'#333'}}>Hi</h1><p data-eid="p1">Body</p></div>`)
	after := build(t, `<div data-eid="d1"><h1 data-eid="h1" style={{color:'#00ff00'}}>Hi</h1><p data-eid="p1">Body</p></div>`)

	ops := Tree(before, after)
	if len(ops) != 1 {
		t.Fatalf("expected 1 op, got %+v", ops)
	}
	for _, op := range ops {
		if op.EID == "p1" || op.EID == "d1" {
			t.Errorf("expected no ops against unrelated nodes, got %+v", op)
		}
	}
}

func TestTree_InsertChild(t *testing.T) {
	before := build(t, `<div data-eid="d1"><p data-eid="p1">a</p></div>`)
	after := build(t, `<div data-eid="d1"><p data-eid="p1">a</p><span data-eid="s1">new</span></div>`)

	ops := Tree(before, after)
	if len(ops) != 1 {
		t.Fatalf("expected 1 op, got %+v", ops)
	}
	op := ops[0]
	if op.Kind != dom.PatchInsertNode || op.EID != "d1" || op.Index != 1 {
		t.Errorf("unexpected op %+v", op)
	}
	if op.HTML == "" {
		t.Error("expected serialized subtree in op")
	}
}

func TestTree_RemoveChild(t *testing.T) {
	before := build(t, `<div data-eid="d1"><p data-eid="p1">a</p><p data-eid="p2">b</p></div>`)
	after := build(t, `<div data-eid="d1"><p data-eid="p1">a</p></div>`)

	ops := Tree(before, after)
	if len(ops) != 1 {
		t.Fatalf("expected 1 op, got %+v", ops)
	}
	if ops[0].Kind != dom.PatchRemoveNode || ops[0].EID != "p2" {
		t.Errorf("unexpected op %+v", ops[0])
	}
}

func TestTree_ReorderReplacesParent(t *testing.T) {
	before := build(t, `<div data-eid="d1"><p data-eid="p1">a</p><p data-eid="p2">b</p></div>`)
	after := build(t, `<div data-eid="d1"><p data-eid="p2">b</p><p data-eid="p1">a</p></div>`)

	ops := Tree(before, after)
	if len(ops) != 1 {
		t.Fatalf("expected 1 op, got %+v", ops)
	}
	if ops[0].Kind != dom.PatchReplaceNode || ops[0].EID != "d1" {
		t.Errorf("expected parent replacement on reorder, got %+v", ops[0])
	}
}

func TestTree_TagChangeReplaces(t *testing.T) {
	before := build(t, `<div data-eid="d1"><span data-eid="x1">a</span></div>`)
	after := build(t, `<div data-eid="d1"><em data-eid="x1">a</em></div>`)

	ops := Tree(before, after)
	if len(ops) != 1 {
		t.Fatalf("expected 1 op, got %+v", ops)
	}
	if ops[0].Kind != dom.PatchReplaceNode || ops[0].EID != "x1" {
		t.Errorf("expected node replacement on tag change, got %+v", ops[0])
	}
}

func TestTree_NestedChange(t *testing.T) {
	before := build(t, `<div data-eid="d1"><section data-eid="s1"><p data-eid="p1">deep</p></section></div>`)
	after := build(t, `<div data-eid="d1"><section data-eid="s1"><p data-eid="p1">deeper</p></section></div>`)

	ops := Tree(before, after)
	if len(ops) != 1 {
		t.Fatalf("expected 1 op, got %+v", ops)
	}
	if ops[0].Kind != dom.PatchSetText || ops[0].EID != "p1" || ops[0].Value != "deeper" {
		t.Errorf("unexpected op %+v", ops[0])
	}
}

func TestTree_MixedTextChangeReplacesParent(t *testing.T) {
	before := build(t, `<div data-eid="d1">before <b data-eid="b1">x</b></div>`)
	after := build(t, `<div data-eid="d1">after <b data-eid="b1">x</b></div>`)

	ops := Tree(before, after)
	if len(ops) != 1 {
		t.Fatalf("expected 1 op, got %+v", ops)
	}
	if ops[0].Kind != dom.PatchReplaceNode || ops[0].EID != "d1" {
		t.Errorf("expected parent replacement, got %+v", ops[0])
	}
}

func TestTree_NilOld(t *testing.T) {
	after := build(t, `<p data-eid="p1">x</p>`)
	ops := Tree(nil, after)
	if len(ops) != 1 || ops[0].Kind != dom.PatchReplaceNode || ops[0].EID != "" {
		t.Errorf("expected container replacement, got %+v", ops)
	}
}

func TestTree_NilNew(t *testing.T) {
	before := build(t, `<p data-eid="p1">x</p>`)
	ops := Tree(before, nil)
	if len(ops) != 1 || ops[0].Kind != dom.PatchRemoveNode {
		t.Errorf("expected removal, got %+v", ops)
	}
}

func TestStatistics(t *testing.T) {
	count := Statistics().Diffs.Load()
	Tree(build(t, `<p data-eid="p1">x</p>`), build(t, `<p data-eid="p1">y</p>`))
	if Statistics().Diffs.Load() != count+1 {
		t.Error("expected diff counter incremented")
	}
}
