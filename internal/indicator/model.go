// Package indicator renders the glanceable status view in the terminal.
// It is the stand-in for a menu-bar applet: a compact title plus a detail
// menu, refreshed from the bridge on a fixed tick. All widget state is
// owned by the Bubble Tea loop; the poll loop only ever talks to the
// bridge.
package indicator

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/simwatch/simwatch/internal/bridge"
)

// tickInterval is how often the queue is drained. Updates arrive at most
// once per poll cycle, so a short tick keeps the view fresh without
// burning cycles.
const tickInterval = 2 * time.Second

// tickMsg signals a periodic queue drain.
type tickMsg time.Time

// refreshDoneMsg signals that an on-demand poll finished.
type refreshDoneMsg struct{ err error }

// Refresher triggers an immediate poll cycle.
type Refresher func() error

// Model is the Bubble Tea model for the indicator.
type Model struct {
	bridge     *bridge.Bridge
	refresh    Refresher
	spin       spinner.Model
	current    bridge.Update
	refreshing bool
	lastErr    error
	lastApply  time.Time
	width      int
	quitting   bool
}

// NewModel creates an indicator fed by the given bridge.
func NewModel(b *bridge.Bridge, refresh Refresher) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"◐", "◓", "◑", "◒"},
		FPS:    time.Second / 10,
	}
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	return Model{
		bridge:  b,
		refresh: refresh,
		spin:    sp,
		current: bridge.Update{Title: "idle"},
	}
}

// Init starts the drain tick.
func (m Model) Init() tea.Cmd {
	return m.tickCmd()
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			if m.refreshing || m.refresh == nil {
				return m, nil
			}
			m.refreshing = true
			return m, tea.Batch(m.refreshCmd(), m.spin.Tick)
		}

	case spinner.TickMsg:
		if !m.refreshing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		// Drain to the newest update; intermediate ones are stale.
		if u, ok := m.bridge.Latest(); ok {
			m.current = u
			m.lastApply = time.Time(msg)
		}
		return m, m.tickCmd()

	case refreshDoneMsg:
		m.refreshing = false
		m.lastErr = msg.err
	}

	return m, nil
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) refreshCmd() tea.Cmd {
	refresh := m.refresh
	return func() tea.Msg {
		return refreshDoneMsg{err: refresh()}
	}
}

// Run starts the indicator loop and blocks until the user quits.
func Run(b *bridge.Bridge, refresh Refresher) error {
	p := tea.NewProgram(NewModel(b, refresh))
	_, err := p.Run()
	return err
}
