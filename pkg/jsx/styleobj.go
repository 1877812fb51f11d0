package jsx

import (
	"strconv"
	"strings"
)

// StyleEntry is one declaration inside a style object literal, like
// `color: '#333'`. Offsets are absolute positions in the document source so
// a single value can be overwritten without touching its neighbors.
type StyleEntry struct {
	// Key is the property name, unquoted.
	Key string
	// RawValue is the value text exactly as written, trailing space trimmed.
	RawValue string
	// ValStart and ValEnd delimit RawValue in the document source.
	ValStart, ValEnd int
}

// StringValue interprets the entry's value: quoted string literals are
// unquoted, bare numbers pass through, anything else (a variable, a call)
// reports false.
func (e StyleEntry) StringValue() (string, bool) {
	v := e.RawValue
	if len(v) >= 2 {
		switch v[0] {
		case '\'', '"', '`':
			if v[len(v)-1] == v[0] {
				return unescapeJS(v[1 : len(v)-1]), true
			}
			return "", false
		}
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return v, true
	}
	return "", false
}

// StyleObject is the parsed form of a `style={{...}}` attribute value. The
// brace offsets point at the inner object literal.
type StyleObject struct {
	OpenBrace, CloseBrace int
	Entries               []StyleEntry
}

// Entry returns the entry with the given key, or nil.
func (o *StyleObject) Entry(key string) *StyleEntry {
	for i := range o.Entries {
		if o.Entries[i].Key == key {
			return &o.Entries[i]
		}
	}
	return nil
}

// ParseStyleAttr parses an element's style attribute into a StyleObject.
// Returns nil when the element has no style attribute or its value is not a
// plain object literal (a variable reference, a ternary, a call).
func ParseStyleAttr(doc *Document, e *Element) *StyleObject {
	if e == nil {
		return nil
	}
	attr := e.Attr("style")
	if attr == nil || attr.Kind != AttrExpr {
		return nil
	}
	return parseStyleObject(doc.Source, attr.ValStart, attr.ValEnd)
}

// parseStyleObject parses the object literal inside [start, end) of src.
// The region is the style attribute's expression text, typically
// `{color: '#333', fontSize: 16}` including the inner braces.
func parseStyleObject(src string, start, end int) *StyleObject {
	i := skipSpace(src, start)
	if i >= end || src[i] != '{' {
		return nil
	}
	obj := &StyleObject{OpenBrace: i}
	i++

	for {
		i = skipSpace(src, i)
		if i >= end {
			return nil
		}
		if src[i] == '}' {
			obj.CloseBrace = i
			return obj
		}

		key, next, ok := scanStyleKey(src, i, end)
		if !ok {
			return nil
		}
		i = skipSpace(src, next)
		if i >= end || src[i] != ':' {
			return nil
		}
		i = skipSpace(src, i+1)

		valStart := i
		valEnd, ok := scanStyleValue(src, i, end)
		if !ok {
			return nil
		}
		i = valEnd
		// Trim trailing space from the recorded span so an overwrite does
		// not eat formatting between the value and the comma.
		for valEnd > valStart && isSpace(src[valEnd-1]) {
			valEnd--
		}
		obj.Entries = append(obj.Entries, StyleEntry{
			Key:      key,
			RawValue: src[valStart:valEnd],
			ValStart: valStart,
			ValEnd:   valEnd,
		})

		i = skipSpace(src, i)
		if i < end && src[i] == ',' {
			i++
		}
	}
}

// scanStyleKey reads a property key: an identifier or a quoted string.
func scanStyleKey(src string, i, end int) (key string, next int, ok bool) {
	if i >= end {
		return "", 0, false
	}
	if src[i] == '\'' || src[i] == '"' {
		quote := src[i]
		j := i + 1
		for j < end && src[j] != quote {
			j++
		}
		if j >= end {
			return "", 0, false
		}
		return src[i+1 : j], j + 1, true
	}
	j := i
	for j < end && isStyleKeyChar(src[j]) {
		j++
	}
	if j == i {
		return "", 0, false
	}
	return src[i:j], j, true
}

// scanStyleValue reads a value up to the next comma or closing brace at
// depth zero, skipping over nested braces, brackets, parens and strings.
func scanStyleValue(src string, i, end int) (int, bool) {
	depth := 0
	for i < end {
		switch src[i] {
		case '\'', '"', '`':
			quote := src[i]
			i++
			for i < end {
				if src[i] == '\\' {
					i += 2
					continue
				}
				if src[i] == quote {
					break
				}
				i++
			}
			if i >= end {
				return 0, false
			}
		case '{', '(', '[':
			depth++
		case '}', ')', ']':
			if depth == 0 {
				return i, src[i] == '}'
			}
			depth--
		case ',':
			if depth == 0 {
				return i, true
			}
		}
		i++
	}
	return 0, false
}

func isStyleKeyChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '$' || c == '-'
}

// unescapeJS resolves the escape sequences that matter inside a style value
// string literal.
func unescapeJS(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
