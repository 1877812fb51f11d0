package style

import (
	"fmt"
	"unicode"
)

// ParseInline parses inline CSS declaration text ("color: red; font-size:
// 16px") into a property map keyed by camelCase property keys. Values keep
// their raw spelling. Quoted strings and parenthesized values may contain
// semicolons, as in url("a;b.png").
func ParseInline(input string) (map[string]string, error) {
	p := &inlineParser{input: input, length: len(input)}
	return p.parse()
}

type inlineParser struct {
	input      string
	pos        int
	length     int
	inQuote    bool
	quoteChar  byte
	openParens int
}

func (p *inlineParser) parse() (map[string]string, error) {
	result := make(map[string]string)
	for {
		p.skipWhitespace()
		if p.eof() {
			break
		}
		name, err := p.parseName()
		if err != nil {
			return nil, err
		}
		p.skipWhitespace()
		value, err := p.parseValue(name)
		if err != nil {
			return nil, err
		}
		result[CSSNameToPropertyKey(name)] = value
		p.skipWhitespace()
		if p.eof() {
			break
		}
		if !p.expect(';') {
			break
		}
	}
	p.skipWhitespace()
	if !p.eof() {
		return nil, fmt.Errorf("style: unexpected character %q at offset %d", p.input[p.pos], p.pos)
	}
	return result, nil
}

func (p *inlineParser) parseName() (string, error) {
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if c == '-' || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c)) {
			p.pos++
			continue
		}
		break
	}
	name := p.input[start:p.pos]
	p.skipWhitespace()
	if name == "" {
		return "", fmt.Errorf("style: missing property name at offset %d", p.pos)
	}
	if !p.expect(':') {
		return "", fmt.Errorf("style: expected colon after %q at offset %d", name, p.pos)
	}
	return name, nil
}

func (p *inlineParser) parseValue(name string) (string, error) {
	p.skipWhitespace()
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if p.inQuote {
			if c == p.quoteChar {
				p.inQuote = false
			} else if c == '\\' {
				p.pos++
			}
		} else {
			switch c {
			case '"', '\'':
				p.inQuote = true
				p.quoteChar = c
			case '(':
				p.openParens++
			case ')':
				if p.openParens == 0 {
					return "", fmt.Errorf("style: unmatched ')' at offset %d", p.pos)
				}
				p.openParens--
			case ';':
				if p.openParens == 0 {
					return trimTrailingSpace(p.input[start:p.pos]), nil
				}
			}
		}
		p.pos++
	}
	if p.inQuote {
		return "", fmt.Errorf("style: unterminated quote in value of %q", name)
	}
	if p.openParens > 0 {
		return "", fmt.Errorf("style: unmatched '(' in value of %q", name)
	}
	return trimTrailingSpace(p.input[start:p.pos]), nil
}

func trimTrailingSpace(s string) string {
	end := len(s)
	for end > 0 && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\n' || s[end-1] == '\r') {
		end--
	}
	return s[:end]
}

func (p *inlineParser) skipWhitespace() {
	for !p.eof() && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *inlineParser) expect(c byte) bool {
	if !p.eof() && p.peek() == c {
		p.pos++
		return true
	}
	return false
}

func (p *inlineParser) peek() byte {
	if p.pos >= p.length {
		return 0
	}
	return p.input[p.pos]
}

func (p *inlineParser) eof() bool {
	return p.pos >= p.length
}
