package lexer

import (
	"strings"
	"testing"
	"time"

	"github.com/htmllex/analyzer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tok(label, value string) models.Token {
	return models.Token{Label: label, Value: value}
}

func TestLexer_Tokenize(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantTokens []models.Token
		wantErrors []string
	}{
		{
			name:  "element with attribute and text",
			input: `<div class="a">hi</div>`,
			wantTokens: []models.Token{
				tok(models.TokenTagOpen, `<div class="a">`),
				tok(models.TokenAttribute, `class="a"`),
				tok(models.TokenText, "hi"),
				tok(models.TokenTagClose, "</div>"),
			},
		},
		{
			name:       "self-closing tag",
			input:      `<br />`,
			wantTokens: []models.Token{tok(models.TokenSelfClosingTag, "<br />")},
		},
		{
			name:  "comments and whitespace are skipped",
			input: "<!-- note -->\n  <div>\n</div>\n",
			wantTokens: []models.Token{
				tok(models.TokenTagOpen, "<div>"),
				tok(models.TokenTagClose, "</div>"),
			},
		},
		{
			name:       "doctype declaration is skipped",
			input:      "<!DOCTYPE html>",
			wantTokens: []models.Token{},
		},
		{
			name:  "stray less-than sign",
			input: "a < b",
			wantTokens: []models.Token{
				tok(models.TokenText, "a"),
				tok(models.TokenUnknown, "<"),
				tok(models.TokenText, "b"),
			},
			wantErrors: []string{"Lexical error: unrecognized character at position 2: '<'"},
		},
		{
			name:       "unterminated tag",
			input:      "<div",
			wantTokens: []models.Token{tok(models.TokenTagOpen, "<div")},
			wantErrors: []string{"Lexical error: unterminated tag <div> starting at position 0."},
		},
		{
			name:  "unquoted attribute value",
			input: "<div id=x></div>",
			wantTokens: []models.Token{
				tok(models.TokenTagOpen, "<div id=x>"),
				tok(models.TokenAttribute, "id=x"),
				tok(models.TokenTagClose, "</div>"),
			},
			wantErrors: []string{"Lexical error: unquoted attribute value at position 8."},
		},
		{
			name:       "unterminated comment",
			input:      "<!-- never ends",
			wantTokens: []models.Token{},
			wantErrors: []string{"Lexical error: unterminated comment starting at position 0."},
		},
		{
			name:       "unterminated declaration",
			input:      "<!DOCTYPE html",
			wantTokens: []models.Token{},
			wantErrors: []string{"Lexical error: unterminated declaration starting at position 0."},
		},
		{
			name:  "whitespace around equals sign",
			input: `<div class = "x"></div>`,
			wantTokens: []models.Token{
				tok(models.TokenTagOpen, `<div class = "x">`),
				tok(models.TokenAttribute, `class="x"`),
				tok(models.TokenTagClose, "</div>"),
			},
		},
		{
			name:  "whitespace before end tag bracket",
			input: "<div></div >",
			wantTokens: []models.Token{
				tok(models.TokenTagOpen, "<div>"),
				tok(models.TokenTagClose, "</div >"),
			},
		},
		{
			name:  "missing attribute value before bracket",
			input: "<div class=></div>",
			wantTokens: []models.Token{
				tok(models.TokenTagOpen, "<div class=>"),
				tok(models.TokenAttribute, "class="),
				tok(models.TokenTagClose, "</div>"),
			},
			wantErrors: []string{"Lexical error: missing attribute value at position 11."},
		},
		{
			name:  "missing attribute value before self-close",
			input: "<br class= />",
			wantTokens: []models.Token{
				tok(models.TokenSelfClosingTag, "<br class= />"),
				tok(models.TokenAttribute, "class="),
			},
			wantErrors: []string{"Lexical error: missing attribute value at position 11."},
		},
		{
			name:  "missing attribute value at end of input",
			input: "<div class=",
			wantTokens: []models.Token{
				tok(models.TokenTagOpen, "<div class="),
				tok(models.TokenAttribute, "class="),
			},
			wantErrors: []string{
				"Lexical error: missing attribute value at position 11.",
				"Lexical error: unterminated tag <div> starting at position 0.",
			},
		},
		{
			name:  "unquoted value stops before self-close",
			input: "<img src=a.png/>",
			wantTokens: []models.Token{
				tok(models.TokenSelfClosingTag, "<img src=a.png/>"),
				tok(models.TokenAttribute, "src=a.png"),
			},
			wantErrors: []string{"Lexical error: unquoted attribute value at position 9."},
		},
		{
			name:  "unterminated attribute value",
			input: `<div class="x>`,
			wantTokens: []models.Token{
				tok(models.TokenTagOpen, `<div class="x>`),
				tok(models.TokenAttribute, `class="x>`),
			},
			wantErrors: []string{
				"Lexical error: unterminated attribute value starting at position 11.",
				"Lexical error: unterminated tag <div> starting at position 0.",
			},
		},
		{
			name:  "positions count characters not bytes",
			input: "é <",
			wantTokens: []models.Token{
				tok(models.TokenText, "é"),
				tok(models.TokenUnknown, "<"),
			},
			wantErrors: []string{"Lexical error: unrecognized character at position 2: '<'"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lx := New(tt.input)
			tokens := lx.Tokenize()

			assert.Equal(t, tt.wantTokens, tokens)
			if tt.wantErrors == nil {
				assert.Empty(t, lx.Errors())
			} else {
				assert.Equal(t, tt.wantErrors, lx.Errors())
			}
		})
	}
}

func TestLexer_Tokenize_LinearTime(t *testing.T) {
	const attrs = 110000
	src := "<div " + strings.Repeat(`class="x" `, attrs) + "></div>"
	require.Greater(t, len(src), 1<<20)

	start := time.Now()
	result := Analyze("big.html", src, nil)
	elapsed := time.Since(start)

	assert.Len(t, result.Tokens, attrs+2)
	assert.Empty(t, result.Errors)
	assert.Less(t, elapsed, 5*time.Second)
}

func TestValidateStructure(t *testing.T) {
	rs := DefaultRuleset()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "balanced",
			input: "<div><span>x</span></div>",
			want:  []string{},
		},
		{
			name:  "void tags are not pushed",
			input: `<div><img src="a.png"><br/></div>`,
			want:  []string{},
		},
		{
			name:  "closing without opening",
			input: "</div>",
			want:  []string{"Structure error: closing tag </div> has no matching opening tag."},
		},
		{
			name:  "mismatch leaves stack intact",
			input: "<div><span></div>",
			want: []string{
				"Structure error: closing tag </div> does not match opening tag <span>.",
				"Structure error: tag <div> was never closed.",
				"Structure error: tag <span> was never closed.",
			},
		},
		{
			name:  "non-void tag used self-closed",
			input: "<p/>",
			want:  []string{"Structure error: tag <p> is not self-closing but was used as such."},
		},
		{
			name:  "tag names compare case-insensitively",
			input: "<DIV></div>",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := New(tt.input).Tokenize()
			assert.Equal(t, tt.want, ValidateStructure(tokens, rs))
		})
	}
}

func TestValidateAttributes(t *testing.T) {
	rs := DefaultRuleset()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "allowed attributes",
			input: `<img src="a.png" alt="b"><div class="c" id="d"></div>`,
			want:  []string{},
		},
		{
			name:  "disallowed attribute",
			input: `<div onclick="x()"></div>`,
			want:  []string{"Attribute error: attribute 'onclick' is not allowed on tag <div>."},
		},
		{
			name:  "unknown tag allows nothing",
			input: `<p class="x"></p>`,
			want:  []string{"Attribute error: attribute 'class' is not allowed on tag <p>."},
		},
		{
			name:  "boolean attribute",
			input: `<input disabled>`,
			want:  []string{"Attribute error: attribute 'disabled' is not allowed on tag <input>."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := New(tt.input).Tokenize()
			assert.Equal(t, tt.want, ValidateAttributes(tokens, rs))
		})
	}
}

func TestAnalyze(t *testing.T) {
	t.Run("valid document", func(t *testing.T) {
		result := Analyze("a.html", `<div class="x"><br/>text</div>`, nil)

		assert.Equal(t, "a.html", result.FilePath)
		assert.True(t, result.Valid())
		assert.Len(t, result.Tokens, 5)
	})

	t.Run("errors are ordered lexical, structure, attribute", func(t *testing.T) {
		result := Analyze("b.html", `<div onclick="go()"> < </span>`, nil)

		assert.Equal(t, []string{
			"Lexical error: unrecognized character at position 21: '<'",
			"Structure error: closing tag </span> does not match opening tag <div>.",
			"Structure error: tag <div> was never closed.",
			"Attribute error: attribute 'onclick' is not allowed on tag <div>.",
		}, result.Errors)
	})

	t.Run("empty source", func(t *testing.T) {
		result := Analyze("empty.html", "", nil)

		assert.NotNil(t, result.Errors)
		assert.NotNil(t, result.Tokens)
		assert.True(t, result.Valid())
	})
}
