package jsx

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxDepth bounds element nesting so hostile input cannot exhaust the stack.
const maxDepth = 500

// ParseError describes a syntax error with its position in the source.
type ParseError struct {
	Offset int
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("jsx: %d:%d: %s", e.Line, e.Column, e.Msg)
}

// Parse parses JSX source into a Document. The source may be a bare element
// or a component body (imports, `export default function ... return (...)`);
// everything outside the root element is preserved verbatim and carried
// through edits untouched. Parse never panics; malformed input returns a
// *ParseError.
func Parse(source string) (*Document, error) {
	rootStart, err := findRoot(source)
	if err != nil {
		return nil, err
	}

	p := &parser{src: source, pos: rootStart}
	root, err := p.parseElement(0)
	if err != nil {
		return nil, err
	}

	// A second top-level element is invalid JSX; catch it here rather than
	// leaving it to rot silently in the suffix.
	rest := strings.TrimLeft(source[root.End:], " \t\r\n")
	if strings.HasPrefix(rest, "<") && len(rest) > 1 && isNameStart(rune(rest[1])) {
		return nil, p.errorAt(root.End, "adjacent elements must be wrapped in an enclosing tag")
	}

	return &Document{Source: source, Root: root}, nil
}

// findRoot locates the offset of the root element's `<`. A document that
// starts with an element uses it directly; otherwise the element after the
// first `return` keyword is the root.
func findRoot(source string) (int, error) {
	i := skipSpace(source, 0)
	if i < len(source) && source[i] == '<' {
		return i, nil
	}

	for from := 0; ; {
		idx := strings.Index(source[from:], "return")
		if idx < 0 {
			break
		}
		at := from + idx
		from = at + len("return")
		if !isWordBoundary(source, at, len("return")) {
			continue
		}
		j := skipSpace(source, at+len("return"))
		if j < len(source) && source[j] == '(' {
			j = skipSpace(source, j+1)
		}
		if j < len(source) && source[j] == '<' {
			return j, nil
		}
	}

	line, col := lineCol(source, i)
	return 0, &ParseError{Offset: i, Line: line, Column: col, Msg: "no JSX element found"}
}

type parser struct {
	src string
	pos int
}

func (p *parser) parseElement(depth int) (*Element, error) {
	if depth > maxDepth {
		return nil, p.errorAt(p.pos, "element nesting too deep")
	}

	start := p.pos
	if !p.consume('<') {
		return nil, p.errorAt(p.pos, "expected '<'")
	}

	elem := &Element{Start: start}

	// Fragment: <> ... </>
	if p.peek() == '>' {
		elem.Fragment = true
		elem.AttrsEnd = p.pos
		p.pos++
		elem.OpenEnd = p.pos
		return p.parseChildren(elem, depth)
	}

	tag, err := p.parseName("tag name")
	if err != nil {
		return nil, err
	}
	elem.Tag = tag

	for {
		p.skipSpace()
		switch {
		case p.eof():
			return nil, p.errorAt(p.pos, fmt.Sprintf("unterminated opening tag <%s", tag))
		case p.peek() == '>':
			elem.AttrsEnd = p.pos
			p.pos++
			elem.OpenEnd = p.pos
			return p.parseChildren(elem, depth)
		case p.peek() == '/':
			if p.peekAt(1) != '>' {
				return nil, p.errorAt(p.pos, "expected '/>'")
			}
			elem.AttrsEnd = p.pos
			p.pos += 2
			elem.SelfClose = true
			elem.OpenEnd = p.pos
			elem.CloseStart = p.pos
			elem.End = p.pos
			return elem, nil
		default:
			attr, err := p.parseAttr()
			if err != nil {
				return nil, err
			}
			elem.Attrs = append(elem.Attrs, attr)
		}
	}
}

func (p *parser) parseAttr() (Attr, error) {
	attr := Attr{Start: p.pos}

	// Spread: {...props}
	if p.peek() == '{' {
		raw, _, _, end, err := p.scanExpr()
		if err != nil {
			return attr, err
		}
		value := strings.TrimSpace(raw)
		if !strings.HasPrefix(value, "...") {
			return attr, p.errorAt(attr.Start, "expected spread attribute")
		}
		attr.Kind = AttrSpread
		attr.Value = strings.TrimSpace(strings.TrimPrefix(value, "..."))
		attr.End = end
		return attr, nil
	}

	name, err := p.parseName("attribute name")
	if err != nil {
		return attr, err
	}
	attr.Name = name
	attr.End = p.pos

	save := p.pos
	p.skipSpace()
	if !p.consume('=') {
		// Bare attribute like `disabled`.
		p.pos = save
		attr.Kind = AttrBare
		return attr, nil
	}
	p.skipSpace()

	switch {
	case p.peek() == '"' || p.peek() == '\'':
		quote := p.peek()
		p.pos++
		attr.ValStart = p.pos
		idx := strings.IndexByte(p.src[p.pos:], quote)
		if idx < 0 {
			return attr, p.errorAt(attr.Start, fmt.Sprintf("unterminated value for attribute %q", name))
		}
		attr.ValEnd = p.pos + idx
		attr.Value = p.src[attr.ValStart:attr.ValEnd]
		attr.Kind = AttrString
		p.pos = attr.ValEnd + 1
		attr.End = p.pos
		return attr, nil
	case p.peek() == '{':
		raw, valStart, valEnd, end, err := p.scanExpr()
		if err != nil {
			return attr, err
		}
		attr.Kind = AttrExpr
		attr.Value = raw
		attr.ValStart = valStart
		attr.ValEnd = valEnd
		attr.End = end
		return attr, nil
	default:
		return attr, p.errorAt(p.pos, fmt.Sprintf("expected value for attribute %q", name))
	}
}

func (p *parser) parseChildren(elem *Element, depth int) (*Element, error) {
	textStart := p.pos
	flushText := func(end int) {
		if end > textStart {
			elem.Children = append(elem.Children, &Text{
				Value: p.src[textStart:end],
				Start: textStart,
				End:   end,
			})
		}
	}

	for {
		switch {
		case p.eof():
			name := elem.Tag
			if elem.Fragment {
				name = "<>"
			}
			return nil, p.errorAt(elem.Start, fmt.Sprintf("unclosed element %s", name))

		case p.peek() == '<' && p.peekAt(1) == '/':
			flushText(p.pos)
			elem.CloseStart = p.pos
			p.pos += 2
			p.skipSpace()
			if elem.Fragment {
				if !p.consume('>') {
					return nil, p.errorAt(p.pos, "expected '</>' to close fragment")
				}
				elem.End = p.pos
				return elem, nil
			}
			name, err := p.parseName("closing tag name")
			if err != nil {
				return nil, err
			}
			if name != elem.Tag {
				return nil, p.errorAt(elem.CloseStart,
					fmt.Sprintf("mismatched closing tag: expected </%s>, got </%s>", elem.Tag, name))
			}
			p.skipSpace()
			if !p.consume('>') {
				return nil, p.errorAt(p.pos, "expected '>' in closing tag")
			}
			elem.End = p.pos
			return elem, nil

		case p.peek() == '<':
			flushText(p.pos)
			child, err := p.parseElement(depth + 1)
			if err != nil {
				return nil, err
			}
			elem.Children = append(elem.Children, child)
			textStart = p.pos

		case p.peek() == '{':
			flushText(p.pos)
			start := p.pos
			raw, _, _, end, err := p.scanExpr()
			if err != nil {
				return nil, err
			}
			elem.Children = append(elem.Children, &Expr{Raw: raw, Start: start, End: end})
			textStart = p.pos

		default:
			p.pos++
		}
	}
}

// scanExpr consumes a brace-balanced expression starting at `{`. It tracks
// string literals, template literals and JS comments so braces inside them
// do not affect nesting. Returns the raw content (braces excluded), its
// span, and the offset just past the closing brace.
func (p *parser) scanExpr() (raw string, valStart, valEnd, end int, err error) {
	exprStart := p.pos
	if !p.consume('{') {
		return "", 0, 0, 0, p.errorAt(p.pos, "expected '{'")
	}
	valStart = p.pos

	braceDepth := 1
	for !p.eof() {
		c := p.peek()
		switch c {
		case '\'', '"', '`':
			if err := p.skipString(c); err != nil {
				return "", 0, 0, 0, err
			}
			continue
		case '/':
			if p.peekAt(1) == '/' {
				p.skipLineComment()
				continue
			}
			if p.peekAt(1) == '*' {
				if err := p.skipBlockComment(); err != nil {
					return "", 0, 0, 0, err
				}
				continue
			}
		case '{':
			braceDepth++
		case '}':
			braceDepth--
			if braceDepth == 0 {
				valEnd = p.pos
				p.pos++
				return p.src[valStart:valEnd], valStart, valEnd, p.pos, nil
			}
		}
		p.pos++
	}
	return "", 0, 0, 0, p.errorAt(exprStart, "unterminated expression")
}

func (p *parser) skipString(quote byte) error {
	start := p.pos
	p.pos++ // opening quote
	for !p.eof() {
		c := p.peek()
		if c == '\\' {
			p.pos += 2
			continue
		}
		if c == quote {
			p.pos++
			return nil
		}
		p.pos++
	}
	return p.errorAt(start, "unterminated string literal")
}

func (p *parser) skipLineComment() {
	for !p.eof() && p.peek() != '\n' {
		p.pos++
	}
}

func (p *parser) skipBlockComment() error {
	start := p.pos
	p.pos += 2
	for p.pos+1 < len(p.src) {
		if p.src[p.pos] == '*' && p.src[p.pos+1] == '/' {
			p.pos += 2
			return nil
		}
		p.pos++
	}
	return p.errorAt(start, "unterminated comment")
}

func (p *parser) parseName(what string) (string, error) {
	start := p.pos
	r, size := utf8.DecodeRuneInString(p.src[p.pos:])
	if size == 0 || !isNameStart(r) {
		return "", p.errorAt(p.pos, "expected "+what)
	}
	p.pos += size
	for !p.eof() {
		r, size = utf8.DecodeRuneInString(p.src[p.pos:])
		if !isNameChar(r) {
			break
		}
		p.pos += size
	}
	return p.src[start:p.pos], nil
}

func isNameStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isNameChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' || r == ':'
}

func (p *parser) errorAt(offset int, msg string) *ParseError {
	line, col := lineCol(p.src, offset)
	return &ParseError{Offset: offset, Line: line, Column: col, Msg: msg}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) peekAt(n int) byte {
	if p.pos+n >= len(p.src) {
		return 0
	}
	return p.src[p.pos+n]
}

func (p *parser) consume(c byte) bool {
	if !p.eof() && p.peek() == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) skipSpace() {
	p.pos = skipSpace(p.src, p.pos)
}

func skipSpace(s string, i int) int {
	for i < len(s) {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			i++
		default:
			return i
		}
	}
	return i
}

func isWordBoundary(s string, at, length int) bool {
	if at > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:at])
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return false
		}
	}
	if at+length < len(s) {
		r, _ := utf8.DecodeRuneInString(s[at+length:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return false
		}
	}
	return true
}

// lineCol converts a byte offset to a 1-based line and column.
func lineCol(s string, offset int) (line, col int) {
	if offset > len(s) {
		offset = len(s)
	}
	line = 1
	col = 1
	for i := 0; i < offset; i++ {
		if s[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
