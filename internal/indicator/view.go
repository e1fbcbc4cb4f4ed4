package indicator

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Padding(0, 1)

	menuStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			PaddingLeft(2)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			PaddingLeft(2)

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			PaddingLeft(2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1).
			PaddingLeft(1)
)

// View renders the indicator.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	title := m.current.Title
	if m.refreshing {
		title += " " + m.spin.View()
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	if len(m.current.Menu) == 0 {
		b.WriteString(dimStyle.Render("waiting for first poll..."))
		b.WriteString("\n")
	}
	for _, item := range m.current.Menu {
		b.WriteString(menuStyle.Render(item.Label))
		b.WriteString("\n")
	}

	if m.lastErr != nil {
		b.WriteString(errStyle.Render("refresh failed: " + m.lastErr.Error()))
		b.WriteString("\n")
	}
	if !m.lastApply.IsZero() {
		b.WriteString(dimStyle.Render("updated " + m.lastApply.Format("15:04:05")))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("r refresh · q quit"))
	b.WriteString("\n")
	return b.String()
}

func init() {
	// Plain terminals get plain output rather than garbled escapes.
	if termenv.EnvColorProfile() == termenv.Ascii {
		plain := lipgloss.NewStyle()
		titleStyle = plain.Bold(true).Padding(0, 1)
		menuStyle = plain.PaddingLeft(2)
		dimStyle = plain.PaddingLeft(2)
		errStyle = plain.PaddingLeft(2)
		helpStyle = plain.MarginTop(1).PaddingLeft(1)
	}
}
