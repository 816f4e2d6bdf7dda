// Package lexer tokenizes HTML sources and validates tag structure and attributes.
package lexer

import (
	"fmt"
	"strings"

	"github.com/htmllex/analyzer/internal/models"
)

// Lexer is a single-use scanner over one HTML source.
// Positions reported in errors are character (rune) offsets.
type Lexer struct {
	src    []rune
	pos    int
	tokens []models.Token
	errors []string
}

// New creates a lexer for the given source text.
func New(input string) *Lexer {
	return &Lexer{
		src:    []rune(input),
		tokens: make([]models.Token, 0),
		errors: make([]string, 0),
	}
}

// Tokenize scans the whole input and returns the recognized tokens.
// Comments, declarations (<!DOCTYPE ...>) and whitespace-only text are consumed
// without producing tokens.
func (l *Lexer) Tokenize() []models.Token {
	for l.pos < len(l.src) {
		if l.src[l.pos] != '<' {
			l.lexText()
			continue
		}

		switch {
		case l.hasPrefix("<!--"):
			l.lexComment()
		case l.hasPrefix("<!"):
			l.lexDeclaration()
		case l.peek(1) == '/' && isTagNameStart(l.peek(2)):
			l.lexEndTag()
		case isTagNameStart(l.peek(1)):
			l.lexStartTag()
		default:
			l.unknown(l.pos)
			l.pos++
		}
	}
	return l.tokens
}

// Errors returns the lexical errors found by Tokenize.
func (l *Lexer) Errors() []string {
	return l.errors
}

func (l *Lexer) lexText() {
	start := l.pos
	for l.pos < len(l.src) && l.src[l.pos] != '<' {
		l.pos++
	}
	text := strings.TrimSpace(string(l.src[start:l.pos]))
	if text != "" {
		l.emit(models.TokenText, text)
	}
}

func (l *Lexer) lexComment() {
	start := l.pos
	end := l.indexFrom(l.pos+4, "-->")
	if end < 0 {
		l.errorf("Lexical error: unterminated comment starting at position %d.", start)
		l.pos = len(l.src)
		return
	}
	l.pos = end + 3
}

func (l *Lexer) lexDeclaration() {
	start := l.pos
	end := l.indexFrom(l.pos+2, ">")
	if end < 0 {
		l.errorf("Lexical error: unterminated declaration starting at position %d.", start)
		l.pos = len(l.src)
		return
	}
	l.pos = end + 1
}

// lexEndTag scans </name> with optional whitespace before '>'. Anything else
// makes the '<' an unknown character; the rest is rescanned as text.
func (l *Lexer) lexEndTag() {
	start := l.pos
	l.pos += 2
	l.readWhile(isTagNameChar)
	l.readWhile(isSpace)
	if l.pos < len(l.src) && l.src[l.pos] == '>' {
		l.pos++
		l.emit(models.TokenTagClose, string(l.src[start:l.pos]))
		return
	}
	l.pos = start
	l.unknown(start)
	l.pos++
}

// lexStartTag scans <name attr="value" ...> or <name ... />. The tag token
// carries the full tag text and is followed by one ATTRIBUTE token per attribute.
func (l *Lexer) lexStartTag() {
	start := l.pos
	l.pos++
	name := l.readWhile(isTagNameChar)

	var attrs []string
	var unknowns []int
	kind := models.TokenTagOpen

scan:
	for {
		l.readWhile(isSpace)
		if l.pos >= len(l.src) {
			l.errorf("Lexical error: unterminated tag <%s> starting at position %d.", name, start)
			break
		}

		c := l.src[l.pos]
		switch {
		case c == '>':
			l.pos++
			break scan
		case l.atSelfClose():
			l.pos += 2
			kind = models.TokenSelfClosingTag
			break scan
		case c == '<':
			// A new tag starts before this one was closed.
			l.errorf("Lexical error: unterminated tag <%s> starting at position %d.", name, start)
			break scan
		case isAttrNameStart(c):
			attrs = append(attrs, l.lexAttribute())
		default:
			unknowns = append(unknowns, l.pos)
			l.pos++
		}
	}

	l.emit(kind, string(l.src[start:l.pos]))
	for _, attr := range attrs {
		l.emit(models.TokenAttribute, attr)
	}
	for _, at := range unknowns {
		l.unknown(at)
	}
}

// lexAttribute scans name, name="value" or name='value', allowing whitespace
// around '='. The returned token value is name=value without that whitespace.
func (l *Lexer) lexAttribute() string {
	name := l.readWhile(isAttrNameChar)
	afterName := l.pos
	l.readWhile(isSpace)
	if l.pos >= len(l.src) || l.src[l.pos] != '=' {
		l.pos = afterName
		return name
	}
	l.pos++
	l.readWhile(isSpace)

	if l.pos >= len(l.src) || l.src[l.pos] == '>' || l.atSelfClose() {
		l.errorf("Lexical error: missing attribute value at position %d.", l.pos)
		return name + "="
	}

	quote := l.src[l.pos]
	if quote != '"' && quote != '\'' {
		at := l.pos
		for l.pos < len(l.src) {
			c := l.src[l.pos]
			if isSpace(c) || c == '>' || c == '<' || l.atSelfClose() {
				break
			}
			l.pos++
		}
		l.errorf("Lexical error: unquoted attribute value at position %d.", at)
		return name + "=" + string(l.src[at:l.pos])
	}

	start := l.pos
	end := l.indexFrom(l.pos+1, string(quote))
	if end < 0 {
		l.errorf("Lexical error: unterminated attribute value starting at position %d.", start)
		l.pos = len(l.src)
		return name + "=" + string(l.src[start:])
	}
	l.pos = end + 1
	return name + "=" + string(l.src[start:l.pos])
}

func (l *Lexer) emit(label, value string) {
	l.tokens = append(l.tokens, models.Token{Label: label, Value: value})
}

func (l *Lexer) unknown(at int) {
	c := l.src[at]
	l.emit(models.TokenUnknown, string(c))
	l.errorf("Lexical error: unrecognized character at position %d: '%c'", at, c)
}

func (l *Lexer) errorf(format string, args ...interface{}) {
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

func (l *Lexer) peek(offset int) rune {
	i := l.pos + offset
	if i >= len(l.src) {
		return 0
	}
	return l.src[i]
}

func (l *Lexer) atSelfClose() bool {
	return l.peek(0) == '/' && l.peek(1) == '>'
}

func (l *Lexer) hasPrefix(prefix string) bool {
	return l.matchAt(l.pos, []rune(prefix))
}

func (l *Lexer) matchAt(i int, needle []rune) bool {
	if i+len(needle) > len(l.src) {
		return false
	}
	for j, r := range needle {
		if l.src[i+j] != r {
			return false
		}
	}
	return true
}

// indexFrom returns the rune index of needle at or after from, or -1.
func (l *Lexer) indexFrom(from int, needle string) int {
	n := []rune(needle)
	for i := from; i+len(n) <= len(l.src); i++ {
		if l.src[i] == n[0] && l.matchAt(i, n) {
			return i
		}
	}
	return -1
}

func (l *Lexer) readWhile(pred func(rune) bool) string {
	start := l.pos
	for l.pos < len(l.src) && pred(l.src[l.pos]) {
		l.pos++
	}
	return string(l.src[start:l.pos])
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isTagNameStart(r rune) bool { return isLetter(r) }

func isTagNameChar(r rune) bool { return isLetter(r) || isDigit(r) }

func isAttrNameStart(r rune) bool { return isLetter(r) || r == '_' }

func isAttrNameChar(r rune) bool {
	return isLetter(r) || isDigit(r) || r == '_' || r == '-' || r == ':'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f'
}
