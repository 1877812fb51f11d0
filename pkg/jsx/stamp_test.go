package jsx

import (
	"fmt"
	"strings"
	"testing"
)

// seqIDSource returns a deterministic IDSource: e1, e2, e3, ...
func seqIDSource() IDSource {
	n := 0
	return func() EID {
		n++
		return EID(fmt.Sprintf("e%d", n))
	}
}

func TestStamp_InjectsMarkers(t *testing.T) {
	doc, err := Parse(`<div><h1>Hi</h1><p>Body</p></div>`)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	stamper := NewStamper(WithIDSource(seqIDSource()))
	stamped, n, err := stamper.Stamp(doc)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 markers injected, got %d", n)
	}

	want := `<div data-eid="e1"><h1 data-eid="e2">Hi</h1><p data-eid="e3">Body</p></div>`
	if stamped.Source != want {
		t.Errorf("expected %q, got %q", want, stamped.Source)
	}

	for _, e := range stamped.Elements() {
		if e.EID() == "" {
			t.Errorf("expected element <%s> to carry a marker", e.Tag)
		}
	}
}

func TestStamp_Idempotent(t *testing.T) {
	doc, err := Parse(`<div><span>x</span></div>`)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	stamper := NewStamper(WithIDSource(seqIDSource()))
	once, n1, err := stamper.Stamp(doc)
	if err != nil || n1 != 2 {
		t.Fatalf("expected 2 markers, got %d (%v)", n1, err)
	}

	twice, n2, err := stamper.Stamp(once)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n2 != 0 {
		t.Errorf("expected second stamp to inject 0, got %d", n2)
	}
	if twice != once {
		t.Error("expected already-stamped document returned as-is")
	}
}

func TestStamp_SelfClosing(t *testing.T) {
	doc, err := Parse(`<div><img src="a.png"/><br /></div>`)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	stamped, n, err := NewStamper(WithIDSource(seqIDSource())).Stamp(doc)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 markers, got %d", n)
	}
	if !strings.Contains(stamped.Source, `<img src="a.png" data-eid="e2"/>`) {
		t.Errorf("expected marker before '/>', got %q", stamped.Source)
	}
	// `<br />` already has a space before the slash; no double space.
	if !strings.Contains(stamped.Source, `<br data-eid="e3"/>`) {
		t.Errorf("expected single space before marker, got %q", stamped.Source)
	}
}

func TestStamp_SkipsFragments(t *testing.T) {
	doc, err := Parse(`<><p>a</p></>`)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	stamped, n, err := NewStamper(WithIDSource(seqIDSource())).Stamp(doc)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 1 {
		t.Errorf("expected only the p stamped, got %d", n)
	}
	if strings.Contains(stamped.Source, `< data-eid`) {
		t.Errorf("fragment must not be stamped: %q", stamped.Source)
	}
}

func TestStamp_PreservesExistingMarkers(t *testing.T) {
	doc, err := Parse(`<div data-eid="keep"><p>x</p></div>`)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	stamped, n, err := NewStamper(WithIDSource(seqIDSource())).Stamp(doc)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 new marker, got %d", n)
	}
	if stamped.Root.EID() != "keep" {
		t.Errorf("expected existing marker preserved, got %q", stamped.Root.EID())
	}
}

func TestStamp_RepairsDuplicates(t *testing.T) {
	doc, err := Parse(`<div data-eid="dup"><p data-eid="dup">x</p></div>`)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	stamped, n, err := NewStamper(WithIDSource(seqIDSource())).Stamp(doc)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 repair, got %d", n)
	}
	if stamped.Root.EID() != "dup" {
		t.Errorf("expected first occurrence kept, got %q", stamped.Root.EID())
	}
	p := stamped.Root.ElementChildren()[0]
	if p.EID() == "dup" || p.EID() == "" {
		t.Errorf("expected duplicate re-drawn, got %q", p.EID())
	}
}

func TestStamp_CollisionRedraw(t *testing.T) {
	// A source that repeats "taken" once before producing fresh ids.
	drawn := 0
	src := func() EID {
		drawn++
		if drawn == 1 {
			return "taken"
		}
		return EID(fmt.Sprintf("fresh%d", drawn))
	}

	doc, err := Parse(`<div data-eid="taken"><p>x</p></div>`)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	stamped, n, err := NewStamper(WithIDSource(src)).Stamp(doc)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 marker, got %d", n)
	}
	p := stamped.Root.ElementChildren()[0]
	if p.EID() != "fresh2" {
		t.Errorf("expected collision re-draw, got %q", p.EID())
	}
}

func TestStamp_ExhaustedSource(t *testing.T) {
	stuck := func() EID { return "same" }

	doc, err := Parse(`<div><p>x</p></div>`)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	_, _, err = NewStamper(WithIDSource(stuck)).Stamp(doc)
	if err != ErrIDSourceExhausted {
		t.Errorf("expected ErrIDSourceExhausted, got %v", err)
	}
}

func TestStamp_FindByEID(t *testing.T) {
	doc, err := Parse(`<div><h1>Hi</h1><p>Body</p></div>`)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	stamped, _, err := NewStamper(WithIDSource(seqIDSource())).Stamp(doc)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	h1 := stamped.FindByEID("e2")
	if h1 == nil || h1.Tag != "h1" {
		t.Fatalf("expected to find h1 by marker, got %+v", h1)
	}
	if stamped.FindByEID("nope") != nil {
		t.Error("expected nil for unknown marker")
	}
	if stamped.FindByEID("") != nil {
		t.Error("expected nil for empty marker")
	}
}

func TestStamp_SurvivesUnrelatedSiblingInsert(t *testing.T) {
	doc, err := Parse(`<div><h1>Hi</h1></div>`)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	stamped, _, err := NewStamper(WithIDSource(seqIDSource())).Stamp(doc)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	h1ID := stamped.Root.ElementChildren()[0].EID()

	// Simulate the user adding a sibling before the h1 in raw text.
	edited := strings.Replace(stamped.Source, "<h1", "<span>new</span><h1", 1)
	redoc, err := Parse(edited)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if found := redoc.FindByEID(h1ID); found == nil || found.Tag != "h1" {
		t.Errorf("expected marker to survive sibling insertion, got %+v", found)
	}
}

func TestStamp_DefaultSourceFormat(t *testing.T) {
	id := NewIDSource()()
	if len(id) != 8 {
		t.Errorf("expected 8-character marker, got %q", id)
	}
	for _, c := range string(id) {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Errorf("expected hex characters, got %q", id)
		}
	}
}
