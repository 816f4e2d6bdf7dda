// Package render formats analysis results for a terminal.
package render

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/htmllex/analyzer/internal/models"
)

// Fixed labels shown in every result block.
const (
	ErrorsHeading = "Errors found:"
	ValidNotice   = "The file is valid."
	TokensHeading = "Recognized tokens:"
)

// Styles holds the lipgloss styles of a colored rendering.
type Styles struct {
	File       lipgloss.Style
	Heading    lipgloss.Style
	Error      lipgloss.Style
	Valid      lipgloss.Style
	TokenLabel lipgloss.Style
	TokenValue lipgloss.Style
}

// DefaultStyles returns the colored styles.
func DefaultStyles() Styles {
	return Styles{
		File: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true),
		Heading: lipgloss.NewStyle().
			Bold(true),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")),
		Valid: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true),
		TokenLabel: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8B5CF6")).
			Bold(true),
		TokenValue: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#D1D5DB")),
	}
}

// Renderer turns a result collection into text.
type Renderer struct {
	styles Styles
	plain  bool
}

// New returns a Renderer. Color is dropped when color is false or NO_COLOR is set.
func New(color bool) *Renderer {
	return &Renderer{
		styles: DefaultStyles(),
		plain:  !color || IsColorDisabled(),
	}
}

// Plain renders results without styling.
func Plain(results []models.AnalysisResult) string {
	return New(false).Render(results)
}

// IsColorDisabled checks the NO_COLOR convention.
func IsColorDisabled() bool {
	return os.Getenv("NO_COLOR") != ""
}

// Render writes one block per result, in order. A block lists the errors
// under ErrorsHeading, or shows ValidNotice when there are none, and then
// lists every token as "LABEL: value".
func (r *Renderer) Render(results []models.AnalysisResult) string {
	var b strings.Builder

	for i := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		r.writeBlock(&b, &results[i])
	}

	return b.String()
}

func (r *Renderer) writeBlock(b *strings.Builder, res *models.AnalysisResult) {
	r.line(b, "", r.styles.File, "== "+res.FilePath+" ==")

	if len(res.Errors) > 0 {
		r.line(b, "", r.styles.Heading, ErrorsHeading)
		for _, msg := range res.Errors {
			r.line(b, "  - ", r.styles.Error, msg)
		}
	} else {
		r.line(b, "", r.styles.Valid, ValidNotice)
	}

	r.line(b, "", r.styles.Heading, TokensHeading)
	for _, tok := range res.Tokens {
		b.WriteString("  ")
		b.WriteString(r.render(r.styles.TokenLabel, tok.Label+":"))
		b.WriteString(" ")
		b.WriteString(r.render(r.styles.TokenValue, tok.Value))
		b.WriteString("\n")
	}
}

func (r *Renderer) line(b *strings.Builder, prefix string, style lipgloss.Style, text string) {
	b.WriteString(prefix)
	b.WriteString(r.render(style, text))
	b.WriteString("\n")
}

func (r *Renderer) render(style lipgloss.Style, text string) string {
	if r.plain {
		return text
	}
	return style.Render(text)
}

// Summary returns a one-line count of analyzed files and of files with errors.
func Summary(results []models.AnalysisResult) string {
	invalid := 0
	for i := range results {
		if !results[i].Valid() {
			invalid++
		}
	}
	return fmt.Sprintf("%s analyzed, %d with errors", pluralize(len(results), "file"), invalid)
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
