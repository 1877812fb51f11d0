// Package a11y lints the rendered tree for common accessibility
// problems. Sessions run the linter after every successful mount and
// push the findings to the browser as a lint message, where the
// playground surfaces them next to the property panel.
package a11y

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/dom"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/jsx"
)

// Severity ranks an issue. Errors break assistive technology outright;
// warnings degrade it.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding against one element.
type Issue struct {
	// Rule names the check that fired.
	Rule string `json:"rule" msgpack:"r"`

	// Severity ranks the finding.
	Severity Severity `json:"severity" msgpack:"s"`

	// EID identifies the offending element so the playground can
	// outline it. Empty for elements outside the instrumented tree.
	EID jsx.EID `json:"eid,omitempty" msgpack:"e,omitempty"`

	// Tag is the offending element's tag name.
	Tag string `json:"tag" msgpack:"g"`

	// Detail is a human-readable description of the problem.
	Detail string `json:"detail" msgpack:"d"`
}

// Rule checks one accessibility concern across the whole tree.
type Rule interface {
	Name() string
	Check(root *dom.Node) []Issue
}

// Linter runs a fixed set of rules over a rendered tree.
type Linter struct {
	rules []Rule
}

// NewLinter creates a linter. With no rules it runs DefaultRules.
func NewLinter(rules ...Rule) *Linter {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Linter{rules: rules}
}

// DefaultRules returns the checks every preview gets: image alt text,
// accessible names on interactive controls, heading level order and
// text contrast.
func DefaultRules() []Rule {
	return []Rule{
		ImgAltRule{},
		ControlNameRule{},
		HeadingOrderRule{},
		ContrastRule{},
	}
}

// Lint runs every rule against the tree. A nil root lints clean.
func (l *Linter) Lint(root *dom.Node) []Issue {
	if root == nil {
		return nil
	}
	var issues []Issue
	for _, rule := range l.rules {
		issues = append(issues, rule.Check(root)...)
	}
	return issues
}

// Lint runs the default rules against a tree.
func Lint(root *dom.Node) []Issue {
	return NewLinter().Lint(root)
}

// ImgAltRule requires an alt attribute on every img. An empty alt is
// allowed: it marks the image as decorative.
type ImgAltRule struct{}

func (ImgAltRule) Name() string { return "img-alt" }

func (r ImgAltRule) Check(root *dom.Node) []Issue {
	var issues []Issue
	dom.Walk(root, func(n *dom.Node) bool {
		if n.Tag == "img" {
			if _, ok := n.Attrs["alt"]; !ok {
				issues = append(issues, Issue{
					Rule:     r.Name(),
					Severity: SeverityError,
					EID:      n.EID,
					Tag:      n.Tag,
					Detail:   "img has no alt attribute; use alt=\"\" for decorative images",
				})
			}
		}
		return true
	})
	return issues
}

// ControlNameRule requires buttons and links to expose an accessible
// name: visible text, aria-label, aria-labelledby or title.
type ControlNameRule struct{}

func (ControlNameRule) Name() string { return "control-name" }

func (r ControlNameRule) Check(root *dom.Node) []Issue {
	var issues []Issue
	dom.Walk(root, func(n *dom.Node) bool {
		if n.Tag != "button" && n.Tag != "a" {
			return true
		}
		if accessibleName(n) == "" {
			issues = append(issues, Issue{
				Rule:     r.Name(),
				Severity: SeverityError,
				EID:      n.EID,
				Tag:      n.Tag,
				Detail:   fmt.Sprintf("%s has no accessible name: add text content or an aria-label", n.Tag),
			})
		}
		return true
	})
	return issues
}

func accessibleName(n *dom.Node) string {
	if text := strings.TrimSpace(dom.TextContent(n)); text != "" {
		return text
	}
	for _, attr := range [...]string{"aria-label", "aria-labelledby", "title"} {
		if v := strings.TrimSpace(n.Attrs[attr]); v != "" {
			return v
		}
	}
	// An image with alt text names the control wrapping it.
	var alt string
	dom.Walk(n, func(c *dom.Node) bool {
		if c.Tag == "img" {
			if v := strings.TrimSpace(c.Attrs["alt"]); v != "" {
				alt = v
				return false
			}
		}
		return true
	})
	return alt
}

// HeadingOrderRule flags heading levels that skip, like an h4 directly
// after an h2. Screen reader users navigate by heading outline and a
// skipped level reads as a missing section.
type HeadingOrderRule struct{}

func (HeadingOrderRule) Name() string { return "heading-order" }

func (r HeadingOrderRule) Check(root *dom.Node) []Issue {
	var issues []Issue
	previous := 0
	dom.Walk(root, func(n *dom.Node) bool {
		level := headingLevel(n.Tag)
		if level == 0 {
			return true
		}
		if previous > 0 && level > previous+1 {
			issues = append(issues, Issue{
				Rule:     r.Name(),
				Severity: SeverityWarning,
				EID:      n.EID,
				Tag:      n.Tag,
				Detail:   fmt.Sprintf("heading level skips from h%d to h%d", previous, level),
			})
		}
		previous = level
		return true
	})
	return issues
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

// ContrastRule checks WCAG AA contrast on elements that carry their own
// text and an explicit inline color. The effective background walks up
// from the element, defaulting to white. Colors the rule cannot parse
// are skipped rather than guessed at.
type ContrastRule struct{}

func (ContrastRule) Name() string { return "contrast" }

// WCAG AA thresholds. Large text is 24px, or 18.66px when bold.
const (
	minContrastNormal = 4.5
	minContrastLarge  = 3.0
)

func (r ContrastRule) Check(root *dom.Node) []Issue {
	var issues []Issue
	r.check(root, nil, &issues)
	return issues
}

func (r ContrastRule) check(n *dom.Node, ancestors []*dom.Node, issues *[]Issue) {
	if n.IsText() {
		return
	}
	if ownText(n) && n.Style["color"] != "" {
		fg, fgOK := parseColor(n.Style["color"])
		bg, bgOK := effectiveBackground(n, ancestors)
		if fgOK && bgOK {
			ratio := contrastRatio(fg, bg)
			min := minContrastNormal
			if isLargeText(n, ancestors) {
				min = minContrastLarge
			}
			if ratio < min {
				*issues = append(*issues, Issue{
					Rule:     r.Name(),
					Severity: SeverityWarning,
					EID:      n.EID,
					Tag:      n.Tag,
					Detail: fmt.Sprintf("contrast ratio %.2f is below %.1f for %s on %s",
						ratio, min, n.Style["color"], bg.source),
				})
			}
		}
	}

	ancestors = append(ancestors, n)
	for _, child := range n.Children {
		r.check(child, ancestors, issues)
	}
}

// ownText reports whether the element has a direct text child, as
// opposed to text nested in descendants that carry their own styles.
func ownText(n *dom.Node) bool {
	for _, child := range n.Children {
		if child.IsText() && strings.TrimSpace(child.Text) != "" {
			return true
		}
	}
	return false
}

func effectiveBackground(n *dom.Node, ancestors []*dom.Node) (rgb, bool) {
	if v := n.Style["backgroundColor"]; v != "" {
		c, ok := parseColor(v)
		return c, ok
	}
	for i := len(ancestors) - 1; i >= 0; i-- {
		if v := ancestors[i].Style["backgroundColor"]; v != "" {
			c, ok := parseColor(v)
			return c, ok
		}
	}
	white := rgb{r: 255, g: 255, b: 255, source: "white"}
	return white, true
}

func isLargeText(n *dom.Node, ancestors []*dom.Node) bool {
	size := fontSizePx(n, ancestors)
	if size >= 24 {
		return true
	}
	weight := inheritedStyle(n, ancestors, "fontWeight")
	bold := weight == "bold" || weight == "700" || weight == "800" || weight == "900"
	return bold && size >= 18.66
}

// browser default sizes for elements that scale their text.
var defaultFontSizes = map[string]float64{
	"h1": 32, "h2": 24, "h3": 18.72, "h4": 16, "h5": 13.28, "h6": 10.72,
	"small": 13.33,
}

func fontSizePx(n *dom.Node, ancestors []*dom.Node) float64 {
	fallback := 16.0
	if size, ok := defaultFontSizes[n.Tag]; ok {
		fallback = size
	}
	v := inheritedStyle(n, ancestors, "fontSize")
	if v == "" {
		return fallback
	}
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	size, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return size
}

func inheritedStyle(n *dom.Node, ancestors []*dom.Node, property string) string {
	if v := n.Style[property]; v != "" {
		return v
	}
	for i := len(ancestors) - 1; i >= 0; i-- {
		if v := ancestors[i].Style[property]; v != "" {
			return v
		}
	}
	return ""
}

type rgb struct {
	r, g, b float64
	source  string
}

var namedColors = map[string]rgb{
	"white":  {r: 255, g: 255, b: 255},
	"black":  {r: 0, g: 0, b: 0},
	"red":    {r: 255, g: 0, b: 0},
	"green":  {r: 0, g: 128, b: 0},
	"blue":   {r: 0, g: 0, b: 255},
	"yellow": {r: 255, g: 255, b: 0},
	"orange": {r: 255, g: 165, b: 0},
	"purple": {r: 128, g: 0, b: 128},
	"gray":   {r: 128, g: 128, b: 128},
	"grey":   {r: 128, g: 128, b: 128},
	"silver": {r: 192, g: 192, b: 192},
	"navy":   {r: 0, g: 0, b: 128},
	"teal":   {r: 0, g: 128, b: 128},
}

// parseColor understands #rgb, #rrggbb, rgb(r, g, b) and a small set of
// named colors. Anything else, including translucent rgba, reports not
// ok so the contrast rule stays quiet instead of guessing.
func parseColor(value string) (rgb, bool) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return rgb{}, false
	}

	if c, ok := namedColors[value]; ok {
		c.source = value
		return c, true
	}

	if strings.HasPrefix(value, "#") {
		return parseHex(value)
	}

	if strings.HasPrefix(value, "rgb(") && strings.HasSuffix(value, ")") {
		parts := strings.Split(value[4:len(value)-1], ",")
		if len(parts) != 3 {
			return rgb{}, false
		}
		var ch [3]float64
		for i, part := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil || v < 0 || v > 255 {
				return rgb{}, false
			}
			ch[i] = v
		}
		return rgb{r: ch[0], g: ch[1], b: ch[2], source: value}, true
	}

	return rgb{}, false
}

func parseHex(value string) (rgb, bool) {
	hex := value[1:]
	switch len(hex) {
	case 3:
		var ch [3]float64
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseUint(string([]byte{hex[i], hex[i]}), 16, 8)
			if err != nil {
				return rgb{}, false
			}
			ch[i] = float64(v)
		}
		return rgb{r: ch[0], g: ch[1], b: ch[2], source: value}, true
	case 6:
		var ch [3]float64
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
			if err != nil {
				return rgb{}, false
			}
			ch[i] = float64(v)
		}
		return rgb{r: ch[0], g: ch[1], b: ch[2], source: value}, true
	}
	return rgb{}, false
}

// contrastRatio computes the WCAG relative luminance ratio, always >= 1.
func contrastRatio(a, b rgb) float64 {
	la := luminance(a)
	lb := luminance(b)
	if la < lb {
		la, lb = lb, la
	}
	return (la + 0.05) / (lb + 0.05)
}

func luminance(c rgb) float64 {
	lin := func(v float64) float64 {
		v /= 255
		if v <= 0.03928 {
			return v / 12.92
		}
		return math.Pow((v+0.055)/1.055, 2.4)
	}
	return 0.2126*lin(c.r) + 0.7152*lin(c.g) + 0.0722*lin(c.b)
}
