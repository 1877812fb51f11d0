package dom

import "testing"

func TestComputeProperties_Defaults(t *testing.T) {
	root := mustBuild(t, `<p data-eid="p1">hello</p>`)
	snap := ComputeProperties(root, root)

	if snap.Color != DefaultColor {
		t.Errorf("expected default color, got %q", snap.Color)
	}
	if snap.FontSize != DefaultFontSize {
		t.Errorf("expected default font size, got %q", snap.FontSize)
	}
	if snap.BackgroundColor != "" || snap.Padding != "" {
		t.Errorf("expected box properties empty, got %+v", snap)
	}
	if snap.TextContent != "hello" {
		t.Errorf("expected text 'hello', got %q", snap.TextContent)
	}
	if snap.Tag != "p" || snap.EID != "p1" {
		t.Errorf("expected tag and identity carried, got %+v", snap)
	}
}

func TestComputeProperties_OwnStyle(t *testing.T) {
	root := mustBuild(t, `<div data-eid="d1" style={{color:'#333', backgroundColor:'#fff', padding: 8, borderRadius: 4, margin: '1em', gap: 12, fontSize: 20}}>x</div>`)
	snap := ComputeProperties(root, root)

	if snap.Color != "#333" {
		t.Errorf("expected '#333', got %q", snap.Color)
	}
	if snap.BackgroundColor != "#fff" {
		t.Errorf("expected '#fff', got %q", snap.BackgroundColor)
	}
	if snap.Padding != "8px" {
		t.Errorf("expected '8px', got %q", snap.Padding)
	}
	if snap.BorderRadius != "4px" {
		t.Errorf("expected '4px', got %q", snap.BorderRadius)
	}
	if snap.Margin != "1em" {
		t.Errorf("expected '1em', got %q", snap.Margin)
	}
	if snap.Gap != "12px" {
		t.Errorf("expected '12px', got %q", snap.Gap)
	}
	if snap.FontSize != "20px" {
		t.Errorf("expected '20px', got %q", snap.FontSize)
	}
}

func TestComputeProperties_Inheritance(t *testing.T) {
	root := mustBuild(t, `<div data-eid="d1" style={{color:'#111', fontSize: 18, padding: 4}}><p data-eid="p1">x</p></div>`)
	p := Resolve(root, "p1")
	snap := ComputeProperties(root, p)

	if snap.Color != "#111" {
		t.Errorf("expected inherited color '#111', got %q", snap.Color)
	}
	if snap.FontSize != "18px" {
		t.Errorf("expected inherited font size '18px', got %q", snap.FontSize)
	}
	// Box properties do not inherit.
	if snap.Padding != "" {
		t.Errorf("expected padding empty on child, got %q", snap.Padding)
	}
}

func TestComputeProperties_NearestAncestorWins(t *testing.T) {
	root := mustBuild(t, `<div data-eid="d1" style={{color:'#111'}}><section data-eid="s1" style={{color:'#222'}}><p data-eid="p1">x</p></section></div>`)
	p := Resolve(root, "p1")
	snap := ComputeProperties(root, p)

	if snap.Color != "#222" {
		t.Errorf("expected nearest ancestor color '#222', got %q", snap.Color)
	}
}

func TestPropertySnapshot_PropertyAccess(t *testing.T) {
	snap := PropertySnapshot{Color: "#333", TextContent: "hi"}

	if got := snap.Property("color"); got != "#333" {
		t.Errorf("expected '#333', got %q", got)
	}
	if got := snap.Property("textContent"); got != "hi" {
		t.Errorf("expected 'hi', got %q", got)
	}
	if got := snap.Property("unknown"); got != "" {
		t.Errorf("expected empty for unknown property, got %q", got)
	}

	if !snap.SetProperty("backgroundColor", "#fff") {
		t.Error("expected known property settable")
	}
	if snap.BackgroundColor != "#fff" {
		t.Errorf("expected '#fff', got %q", snap.BackgroundColor)
	}
	if snap.SetProperty("nope", "x") {
		t.Error("expected unknown property rejected")
	}
}
