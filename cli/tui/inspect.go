package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/prism/cli/view"
)

// SessionModel is a Bubble Tea model for inspecting a persisted session.
type SessionModel struct {
	session  *view.SessionView
	bar      progress.Model
	width    int
	height   int
	quitting bool
}

// NewSessionModel creates a session inspect model.
func NewSessionModel(session *view.SessionView) SessionModel {
	return SessionModel{
		session: session,
		bar:     progress.New(progress.WithDefaultGradient()),
	}
}

// Init implements tea.Model.
func (m SessionModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m SessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m SessionModel) View() string {
	if m.quitting {
		return ""
	}

	s := m.session
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Transfer Session"))
	b.WriteString("\n\n")

	rows := [][2]string{
		{"File", s.FileName},
		{"Total Parts", fmt.Sprintf("%d", s.TotalParts)},
		{"Received", fmt.Sprintf("%d", s.Received)},
		{"Missing", fmt.Sprintf("%d", len(s.Missing))},
		{"Draft Bytes", fmt.Sprintf("%d", s.DraftBytes)},
		{"Manifest", s.ManifestPath},
	}
	for _, row := range rows {
		label := LabelStyle.Render(row[0] + ":")
		value := ValueStyle.Render(row[1])
		if row[0] == "Received" {
			value = ProgressStyle(s.Received, s.TotalParts).Render(row[1])
		}
		b.WriteString(fmt.Sprintf("%s %s\n", label, value))
	}

	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(s.Percent()))
	b.WriteString("\n")

	if len(s.Missing) > 0 {
		b.WriteString("\n")
		b.WriteString(LabelStyle.Render("Missing Parts:"))
		b.WriteString("\n")
		b.WriteString(WarningStyle.Render("  " + partList(s.Missing)))
		b.WriteString("\n")
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return BoxStyle.Render(b.String()) + "\n" + help
}

// partList wraps part numbers at a readable width.
func partList(parts []int) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			if i%16 == 0 {
				b.WriteString("\n  ")
			} else {
				b.WriteString(" ")
			}
		}
		fmt.Fprintf(&b, "%d", p)
	}
	return b.String()
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunSessionTUI runs the session inspect TUI.
func RunSessionTUI(session *view.SessionView) error {
	p := tea.NewProgram(NewSessionModel(session), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderSessionStatic renders the session view without a running program,
// for fallback and tests.
func RenderSessionStatic(session *view.SessionView) string {
	m := NewSessionModel(session)
	m.width = 80
	m.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(m.View())
}
