package a11y

import (
	"strings"
	"testing"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/dom"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/jsx"
)

func el(tag string, eid string, children ...*dom.Node) *dom.Node {
	return &dom.Node{Tag: tag, EID: jsx.EID(eid), Children: children}
}

func text(s string) *dom.Node {
	return dom.NewText(s)
}

func issuesFor(issues []Issue, rule string) []Issue {
	var out []Issue
	for _, issue := range issues {
		if issue.Rule == rule {
			out = append(out, issue)
		}
	}
	return out
}

func TestImgAltRule(t *testing.T) {
	missing := el("img", "aaaa1111")
	decorative := el("img", "bbbb2222")
	decorative.Attrs = map[string]string{"alt": ""}
	labeled := el("img", "cccc3333")
	labeled.Attrs = map[string]string{"alt": "team photo"}

	root := el("div", "dddd4444", missing, decorative, labeled)

	issues := ImgAltRule{}.Check(root)
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(issues))
	}
	if issues[0].EID != "aaaa1111" {
		t.Errorf("expected issue on aaaa1111, got %s", issues[0].EID)
	}
	if issues[0].Severity != SeverityError {
		t.Errorf("expected error severity, got %s", issues[0].Severity)
	}
}

func TestControlNameRule(t *testing.T) {
	empty := el("button", "aaaa1111")
	withText := el("button", "bbbb2222", text("Save"))
	withLabel := el("a", "cccc3333")
	withLabel.Attrs = map[string]string{"aria-label": "close dialog"}

	iconImg := el("img", "eeee5555")
	iconImg.Attrs = map[string]string{"alt": "settings"}
	iconButton := el("button", "dddd4444", iconImg)

	emptyLink := el("a", "ffff6666")

	root := el("div", "00000000", empty, withText, withLabel, iconButton, emptyLink)

	issues := ControlNameRule{}.Check(root)
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %d: %v", len(issues), issues)
	}
	if issues[0].EID != "aaaa1111" || issues[1].EID != "ffff6666" {
		t.Errorf("expected issues on aaaa1111 and ffff6666, got %s and %s",
			issues[0].EID, issues[1].EID)
	}
}

func TestHeadingOrderRule(t *testing.T) {
	ordered := el("div", "00000000",
		el("h1", "aaaa1111", text("Title")),
		el("h2", "bbbb2222", text("Section")),
		el("h3", "cccc3333", text("Subsection")),
	)
	if issues := (HeadingOrderRule{}).Check(ordered); len(issues) != 0 {
		t.Fatalf("expected no issues for ordered headings, got %v", issues)
	}

	skipped := el("div", "00000000",
		el("h2", "aaaa1111", text("Section")),
		el("h4", "bbbb2222", text("Detail")),
	)
	issues := HeadingOrderRule{}.Check(skipped)
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(issues))
	}
	if !strings.Contains(issues[0].Detail, "h2 to h4") {
		t.Errorf("expected detail to name the skip, got %q", issues[0].Detail)
	}

	// The first heading sets the baseline wherever it starts.
	deepStart := el("div", "00000000",
		el("h3", "aaaa1111", text("Fragment")),
	)
	if issues := (HeadingOrderRule{}).Check(deepStart); len(issues) != 0 {
		t.Fatalf("expected no issues for a lone h3, got %v", issues)
	}
}

func TestContrastRule(t *testing.T) {
	invisible := el("p", "aaaa1111", text("ghost"))
	invisible.Style = map[string]string{"color": "#ffffff"}

	readable := el("p", "bbbb2222", text("body"))
	readable.Style = map[string]string{"color": "#333333"}

	root := el("div", "00000000", invisible, readable)

	issues := ContrastRule{}.Check(root)
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d: %v", len(issues), issues)
	}
	if issues[0].EID != "aaaa1111" {
		t.Errorf("expected issue on aaaa1111, got %s", issues[0].EID)
	}
}

func TestContrastRule_InheritsBackground(t *testing.T) {
	label := el("span", "bbbb2222", text("label"))
	label.Style = map[string]string{"color": "#222222"}

	card := el("div", "aaaa1111", label)
	card.Style = map[string]string{"backgroundColor": "#111111"}

	issues := ContrastRule{}.Check(card)
	if len(issues) != 1 {
		t.Fatalf("expected dark-on-dark issue, got %d: %v", len(issues), issues)
	}
	if issues[0].EID != "bbbb2222" {
		t.Errorf("expected issue on the text element, got %s", issues[0].EID)
	}
}

func TestContrastRule_LargeTextThreshold(t *testing.T) {
	// #777777 on white is about 4.48:1, failing normal text but
	// passing large text.
	small := el("p", "aaaa1111", text("fine print"))
	small.Style = map[string]string{"color": "#777777"}

	large := el("h1", "bbbb2222", text("Banner"))
	large.Style = map[string]string{"color": "#777777", "fontSize": "24px"}

	root := el("div", "00000000", small, large)

	issues := ContrastRule{}.Check(root)
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d: %v", len(issues), issues)
	}
	if issues[0].EID != "aaaa1111" {
		t.Errorf("expected issue on the small text only, got %s", issues[0].EID)
	}
}

func TestContrastRule_SkipsUnparseableColors(t *testing.T) {
	themed := el("p", "aaaa1111", text("themed"))
	themed.Style = map[string]string{"color": "var(--brand)"}

	if issues := (ContrastRule{}).Check(themed); len(issues) != 0 {
		t.Fatalf("expected unparseable color to be skipped, got %v", issues)
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		input string
		want  rgb
		ok    bool
	}{
		{"#fff", rgb{r: 255, g: 255, b: 255}, true},
		{"#1a2B3c", rgb{r: 26, g: 43, b: 60}, true},
		{"rgb(10, 20, 30)", rgb{r: 10, g: 20, b: 30}, true},
		{"white", rgb{r: 255, g: 255, b: 255}, true},
		{"  Black ", rgb{r: 0, g: 0, b: 0}, true},
		{"rgba(0, 0, 0, 0.5)", rgb{}, false},
		{"#12345", rgb{}, false},
		{"chartreuse-ish", rgb{}, false},
		{"", rgb{}, false},
	}

	for _, tt := range tests {
		got, ok := parseColor(tt.input)
		if ok != tt.ok {
			t.Errorf("parseColor(%q): expected ok=%v, got %v", tt.input, tt.ok, ok)
			continue
		}
		if ok && (got.r != tt.want.r || got.g != tt.want.g || got.b != tt.want.b) {
			t.Errorf("parseColor(%q): expected %v, got %v", tt.input, tt.want, got)
		}
	}
}

func TestContrastRatio(t *testing.T) {
	white := rgb{r: 255, g: 255, b: 255}
	black := rgb{r: 0, g: 0, b: 0}

	ratio := contrastRatio(white, black)
	if ratio < 20.9 || ratio > 21.1 {
		t.Errorf("expected black on white near 21:1, got %.2f", ratio)
	}
	if same := contrastRatio(white, white); same != 1 {
		t.Errorf("expected identical colors to measure 1:1, got %.2f", same)
	}
	// Order must not matter.
	if a, b := contrastRatio(white, black), contrastRatio(black, white); a != b {
		t.Errorf("expected symmetric ratio, got %.2f and %.2f", a, b)
	}
}

func TestLinter_Lint(t *testing.T) {
	if issues := NewLinter().Lint(nil); issues != nil {
		t.Errorf("expected nil issues for nil root, got %v", issues)
	}

	clean := el("div", "00000000",
		el("h1", "aaaa1111", text("Gallery")),
		el("button", "bbbb2222", text("Upload")),
	)
	if issues := Lint(clean); len(issues) != 0 {
		t.Errorf("expected clean tree, got %v", issues)
	}

	broken := el("div", "00000000",
		el("img", "aaaa1111"),
		el("button", "bbbb2222"),
	)
	issues := Lint(broken)
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %d: %v", len(issues), issues)
	}
}
