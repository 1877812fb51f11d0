// Package style normalizes CSS property names and values for the component
// editor. The same canonical form is used for the live preview tree and for
// values written back into JSX source, so both sides always agree.
package style

import (
	"sort"
	"strings"
)

// lengthProperties are the properties that take a bare numeric value as
// pixels. A raw value like "16" is canonicalized to "16px"; values that
// already carry a unit pass through untouched.
var lengthProperties = map[string]bool{
	"fontSize":     true,
	"padding":      true,
	"margin":       true,
	"borderRadius": true,
	"gap":          true,
}

// Format normalizes a raw user value for the given property. It is a pure
// function with no failure mode: unrecognized properties and non-numeric
// values come back unchanged (modulo surrounding whitespace).
func Format(property, rawValue string) string {
	value := strings.TrimSpace(rawValue)
	if lengthProperties[property] && isNumeric(value) {
		return value + "px"
	}
	return value
}

// IsLengthProperty reports whether the property belongs to the fixed set
// that receives a px suffix for bare numeric values.
func IsLengthProperty(property string) bool {
	return lengthProperties[property]
}

// isNumeric reports whether s is a plain number: optional leading minus,
// digits, at most one decimal point. Anything else (units, keywords,
// percentages) is not numeric.
func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '-' {
		s = s[1:]
		if s == "" {
			return false
		}
	}
	dot := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '.' {
			if dot {
				return false
			}
			dot = true
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != "."
}

// CSSNameToPropertyKey converts a kebab-case CSS name into the camelCase
// property key used by the in-memory style representation and by JSX style
// objects ("font-size" becomes "fontSize"). A leading dash, as in vendor
// prefixes, capitalizes the first segment.
func CSSNameToPropertyKey(name string) string {
	if !strings.Contains(name, "-") {
		return name
	}
	parts := strings.Split(name, "-")
	var b strings.Builder
	first := true
	for i, part := range parts {
		if part == "" {
			continue
		}
		if first && i == 0 {
			b.WriteString(part)
			first = false
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
		first = false
	}
	return b.String()
}

// PropertyKeyToCSSName converts a camelCase property key back into the
// kebab-case CSS name ("backgroundColor" becomes "background-color").
func PropertyKeyToCSSName(key string) string {
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c >= 'A' && c <= 'Z' {
			b.WriteByte('-')
			b.WriteByte(c - 'A' + 'a')
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// WriteInline renders a style map as inline CSS declaration text with keys
// converted to kebab-case and sorted, so output is deterministic.
func WriteInline(styles map[string]string) string {
	if len(styles) == 0 {
		return ""
	}
	keys := make([]string, 0, len(styles))
	for k := range styles {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(PropertyKeyToCSSName(k))
		b.WriteString(": ")
		b.WriteString(styles[k])
	}
	return b.String()
}
