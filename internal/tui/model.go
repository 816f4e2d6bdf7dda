// Package tui is an interactive terminal front-end over client.Controller.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/htmllex/analyzer/internal/client"
	"github.com/htmllex/analyzer/internal/render"
)

const (
	submitLabel     = "Analyze"
	processingLabel = "Processing..."
)

type submitDoneMsg struct {
	outcome client.Outcome
}

// Model shows the selection, a submit button and the latest results.
type Model struct {
	ctrl     *client.Controller
	ctx      context.Context
	renderer *render.Renderer

	width    int
	height   int
	offset   int
	pending  bool
	last     *client.Outcome
	quitting bool

	styles styles
}

type styles struct {
	title    lipgloss.Style
	button   lipgloss.Style
	disabled lipgloss.Style
	muted    lipgloss.Style
	failure  lipgloss.Style
}

// New creates a model. ctx bounds every submission.
func New(ctx context.Context, ctrl *client.Controller, color bool) *Model {
	return &Model{
		ctrl:     ctrl,
		ctx:      ctx,
		renderer: render.New(color),
		styles: styles{
			title: lipgloss.NewStyle().
				Foreground(lipgloss.Color("#3B82F6")).
				Bold(true),
			button: lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#3B82F6")).
				Padding(0, 1),
			disabled: lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#6B7280")).
				Foreground(lipgloss.Color("#6B7280")).
				Padding(0, 1),
			muted: lipgloss.NewStyle().
				Foreground(lipgloss.Color("#6B7280")),
			failure: lipgloss.NewStyle().
				Foreground(lipgloss.Color("#EF4444")).
				Bold(true),
		},
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Busy reports whether a submission started from this model is outstanding.
func (m *Model) Busy() bool {
	return m.pending || m.ctrl.Busy()
}

func (m *Model) canSubmit() bool {
	return !m.Busy() && len(m.ctrl.Files()) > 0
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "enter", "s":
			return m, m.submit()
		case "up", "k":
			if m.offset > 0 {
				m.offset--
			}
		case "down", "j":
			m.offset++
		case "home", "g":
			m.offset = 0
		}

	case submitDoneMsg:
		m.pending = false
		outcome := msg.outcome
		m.last = &outcome
		if outcome.Kind == client.Succeeded {
			m.offset = 0
		}
	}

	return m, nil
}

func (m *Model) submit() tea.Cmd {
	if !m.canSubmit() {
		return nil
	}
	m.pending = true
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return submitDoneMsg{outcome: ctrl.Submit(ctx)}
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.title.Render("HTML Lexical Analyzer"))
	b.WriteString("  ")
	b.WriteString(m.styles.muted.Render(m.ctrl.Endpoint()))
	b.WriteString("\n\n")

	files := m.ctrl.Files()
	if len(files) == 0 {
		b.WriteString(m.styles.muted.Render("No files selected."))
		b.WriteString("\n")
	} else {
		b.WriteString("Selected files:\n")
		for _, f := range files {
			b.WriteString("  " + f.Name + "\n")
		}
	}
	b.WriteString("\n")

	label := submitLabel
	if m.Busy() {
		label = processingLabel
	}
	if m.canSubmit() {
		b.WriteString(m.styles.button.Render(label))
	} else {
		b.WriteString(m.styles.disabled.Render(label))
	}
	b.WriteString("\n")

	if m.last != nil && m.last.Kind == client.Failed {
		b.WriteString(m.styles.failure.Render(fmt.Sprintf("Request failed: %v", m.last.Err)))
		b.WriteString("\n")
	}

	results := m.ctrl.Results()
	if len(results) > 0 {
		b.WriteString("\n")
		b.WriteString(m.styles.muted.Render(render.Summary(results)))
		b.WriteString("\n\n")
		b.WriteString(m.scroll(m.renderer.Render(results)))
	}

	b.WriteString("\n")
	b.WriteString(m.styles.muted.Render("enter: analyze • ↑/↓: scroll • q: quit"))
	return b.String()
}

// scroll trims the rendered results to the window, starting at offset.
func (m *Model) scroll(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if m.offset >= len(lines) {
		m.offset = len(lines) - 1
	}
	lines = lines[m.offset:]

	if m.height > 0 {
		// Room for the header, selection, button and help line.
		avail := m.height - 10 - len(m.ctrl.Files())
		if avail < 3 {
			avail = 3
		}
		if len(lines) > avail {
			lines = lines[:avail]
		}
	}
	return strings.Join(lines, "\n") + "\n"
}

// Run starts the interactive program and blocks until the user quits.
func Run(ctx context.Context, ctrl *client.Controller, color bool) error {
	p := tea.NewProgram(New(ctx, ctrl, color), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
