// Package security screens user-pasted component source before it reaches a
// shared preview. The sanitizer operates on the built element tree rather
// than on raw text, so removals are exact: whole subtrees for blocked tags,
// single attributes for inline handlers and dangerous URL schemes.
package security

import (
	"strings"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/dom"
)

// Sanitizer removes executable content from preview trees.
type Sanitizer struct {
	blockedTags    map[string]bool
	blockedSchemes []string
	allowEvents    bool
}

// SanitizerConfig configures the sanitizer.
type SanitizerConfig struct {
	// BlockedTags are element types removed outright, subtree included.
	BlockedTags []string

	// BlockedSchemes are URL schemes cleared from link-bearing attributes.
	BlockedSchemes []string

	// AllowEventAttrs keeps on* attributes instead of stripping them.
	AllowEventAttrs bool
}

// DefaultSanitizerConfig returns the policy applied to every preview mount.
func DefaultSanitizerConfig() SanitizerConfig {
	return SanitizerConfig{
		BlockedTags: []string{
			"script", "iframe", "object", "embed",
			"base", "link", "meta", "form",
		},
		BlockedSchemes: []string{"javascript:", "data:", "vbscript:"},
	}
}

// NewSanitizer creates a sanitizer from the given configuration.
func NewSanitizer(config SanitizerConfig) *Sanitizer {
	blocked := make(map[string]bool, len(config.BlockedTags))
	for _, tag := range config.BlockedTags {
		blocked[strings.ToLower(tag)] = true
	}

	schemes := make([]string, len(config.BlockedSchemes))
	for i, scheme := range config.BlockedSchemes {
		schemes[i] = strings.ToLower(scheme)
	}

	return &Sanitizer{
		blockedTags:    blocked,
		blockedSchemes: schemes,
		allowEvents:    config.AllowEventAttrs,
	}
}

// urlAttrs are the attributes whose values can carry a URL scheme.
var urlAttrs = map[string]bool{
	"href":       true,
	"src":        true,
	"action":     true,
	"formaction": true,
	"poster":     true,
}

// Report describes what a sanitizer pass removed.
type Report struct {
	RemovedNodes  int `json:"removed_nodes"`
	RemovedAttrs  int `json:"removed_attrs"`
	RewrittenURLs int `json:"rewritten_urls"`
}

// Clean returns true when the pass removed nothing.
func (r Report) Clean() bool {
	return r == Report{}
}

// SanitizeTree scrubs the tree in place and reports what was removed.
// Children of a blocked element are removed with it, never re-parented.
func (s *Sanitizer) SanitizeTree(root *dom.Node) Report {
	var report Report
	if root == nil {
		return report
	}
	s.scrub(root, &report)
	return report
}

func (s *Sanitizer) scrub(n *dom.Node, report *Report) {
	for name, value := range n.Attrs {
		lower := strings.ToLower(name)
		if !s.allowEvents && strings.HasPrefix(lower, "on") && len(lower) > 2 {
			delete(n.Attrs, name)
			report.RemovedAttrs++
			continue
		}
		if urlAttrs[lower] && !s.safeURL(value) {
			n.Attrs[name] = ""
			report.RewrittenURLs++
		}
	}

	kept := n.Children[:0]
	for _, child := range n.Children {
		if !child.IsText() && s.blockedTags[strings.ToLower(child.Tag)] {
			report.RemovedNodes += nodeCount(child)
			continue
		}
		if !child.IsText() {
			s.scrub(child, report)
		}
		kept = append(kept, child)
	}
	n.Children = kept
}

// Blocked reports whether an element type is removed outright. Callers use
// it to reject documents whose root element cannot be scrubbed in place.
func (s *Sanitizer) Blocked(tag string) bool {
	return s.blockedTags[strings.ToLower(tag)]
}

// safeURL reports whether a URL value is free of blocked schemes.
func (s *Sanitizer) safeURL(url string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(url))
	for _, scheme := range s.blockedSchemes {
		if strings.HasPrefix(trimmed, scheme) {
			return false
		}
	}
	return true
}

func nodeCount(n *dom.Node) int {
	count := 1
	for _, child := range n.Children {
		if !child.IsText() {
			count += nodeCount(child)
		}
	}
	return count
}

// EscapeJS escapes a string for safe embedding inside a script block.
func EscapeJS(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString("\\\\")
		case '"':
			b.WriteString("\\\"")
		case '\'':
			b.WriteString("\\'")
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\t':
			b.WriteString("\\t")
		case '<':
			b.WriteString("\\u003c")
		case '>':
			b.WriteString("\\u003e")
		case '&':
			b.WriteString("\\u0026")
		case ' ':
			b.WriteString("\\u2028")
		case ' ':
			b.WriteString("\\u2029")
		default:
			if r < 32 {
				b.WriteString(unicodeEscape(r))
			} else {
				b.WriteRune(r)
			}
		}
	}

	return b.String()
}

func unicodeEscape(r rune) string {
	return "\\u" + string([]rune{
		hexDigit(int(r) >> 12 & 0xF),
		hexDigit(int(r) >> 8 & 0xF),
		hexDigit(int(r) >> 4 & 0xF),
		hexDigit(int(r) & 0xF),
	})
}

func hexDigit(n int) rune {
	if n < 10 {
		return rune('0' + n)
	}
	return rune('a' + n - 10)
}
