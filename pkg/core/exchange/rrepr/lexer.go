package rrepr

import (
	"strings"

	"github.com/polyglotlab/sosr/pkg/common/code"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokLBracket
	tokRBracket
	tokLParen
	tokRParen
	tokComma
	tokDot
)

type token struct {
	kind tokenKind
	text string
}

type lexer struct {
	src string
	pos int
}

func newLexer(src string) *lexer {
	return &lexer{src: src}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF}, nil
	}

	c := l.src[l.pos]
	switch {
	case c == '[':
		l.pos++
		return token{kind: tokLBracket, text: "["}, nil
	case c == ']':
		l.pos++
		return token{kind: tokRBracket, text: "]"}, nil
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "("}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")"}, nil
	case c == ',':
		l.pos++
		return token{kind: tokComma, text: ","}, nil
	case c == '\'' || c == '"':
		return l.lexString(string(c))
	case c == 'r' && l.pos+1 < len(l.src) && (l.src[l.pos+1] == '"' || l.src[l.pos+1] == '\''):
		l.pos++
		return l.lexRawString()
	case isDigit(c) || c == '-' || c == '+':
		return l.lexNumber()
	case isIdentStart(c):
		return l.lexIdent()
	case c == '.':
		l.pos++
		return token{kind: tokDot, text: "."}, nil
	}
	return token{}, code.DecodeReprErr.WithMsgf("unexpected character %q at %d", c, l.pos)
}

func (l *lexer) lexIdent() (token, error) {
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
		l.pos++
	}
	return token{kind: tokIdent, text: l.src[start:l.pos]}, nil
}

func (l *lexer) lexNumber() (token, error) {
	start := l.pos
	if l.src[l.pos] == '-' || l.src[l.pos] == '+' {
		l.pos++
		// R prints negative infinity inside vectors as -Inf
		if strings.HasPrefix(l.src[l.pos:], "Inf") {
			l.pos += 3
			return token{kind: tokNumber, text: l.src[start:l.pos]}, nil
		}
	}
	seenExp := false
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if isDigit(c) || c == '.' {
			l.pos++
			continue
		}
		if (c == 'e' || c == 'E') && !seenExp {
			seenExp = true
			l.pos++
			if l.pos < len(l.src) && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
				l.pos++
			}
			continue
		}
		break
	}
	return token{kind: tokNumber, text: l.src[start:l.pos]}, nil
}

// lexRawString handles the r-prefixed literals the prelude emits:
// r"""...""" for character values, r'...' for file paths.
func (l *lexer) lexRawString() (token, error) {
	if strings.HasPrefix(l.src[l.pos:], `"""`) {
		end := strings.Index(l.src[l.pos+3:], `"""`)
		if end < 0 {
			return token{}, code.DecodeReprErr.WithMsg("unterminated raw string")
		}
		text := l.src[l.pos+3 : l.pos+3+end]
		l.pos += end + 6
		return token{kind: tokString, text: text}, nil
	}

	quote := l.src[l.pos]
	end := strings.IndexByte(l.src[l.pos+1:], quote)
	if end < 0 {
		return token{}, code.DecodeReprErr.WithMsg("unterminated raw string")
	}
	text := l.src[l.pos+1 : l.pos+1+end]
	l.pos += end + 2
	return token{kind: tokString, text: text}, nil
}

func (l *lexer) lexString(quote string) (token, error) {
	var b strings.Builder
	l.pos++ // opening quote
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if string(c) == quote {
			l.pos++
			return token{kind: tokString, text: b.String()}, nil
		}
		if c == '\\' && l.pos+1 < len(l.src) {
			l.pos++
			switch l.src[l.pos] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(l.src[l.pos])
			}
			l.pos++
			continue
		}
		b.WriteByte(c)
		l.pos++
	}
	return token{}, code.DecodeReprErr.WithMsg("unterminated string")
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '.'
}
