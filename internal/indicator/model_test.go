package indicator

import (
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simwatch/simwatch/internal/bridge"
)

func TestTickAppliesNewestUpdate(t *testing.T) {
	b := bridge.New()
	b.Publish(bridge.Update{Title: "MD 10%"})
	b.Publish(bridge.Update{Title: "MD 11%"})
	b.Publish(bridge.Update{Title: "MD 12%", Menu: []bridge.MenuItem{{Label: "tet5-vc  12.0%  [running]"}}})

	m := NewModel(b, nil)
	updated, cmd := m.Update(tickMsg(time.Now()))
	require.NotNil(t, cmd)

	model := updated.(Model)
	assert.Equal(t, "MD 12%", model.current.Title)
	assert.Len(t, model.current.Menu, 1)
	// The skipped intermediates count as dropped, not applied.
	assert.Equal(t, 2, b.Dropped())
	assert.Zero(t, b.Pending())
}

func TestTickWithEmptyQueueKeepsState(t *testing.T) {
	b := bridge.New()
	m := NewModel(b, nil)
	m.current = bridge.Update{Title: "MD 50%"}

	updated, _ := m.Update(tickMsg(time.Now()))
	assert.Equal(t, "MD 50%", updated.(Model).current.Title)
}

func TestQuitKeys(t *testing.T) {
	for _, key := range []string{"q", "ctrl+c"} {
		t.Run(key, func(t *testing.T) {
			m := NewModel(bridge.New(), nil)
			var msg tea.KeyMsg
			if key == "ctrl+c" {
				msg = tea.KeyMsg{Type: tea.KeyCtrlC}
			} else {
				msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
			}
			updated, cmd := m.Update(msg)
			assert.True(t, updated.(Model).quitting)
			require.NotNil(t, cmd)
		})
	}
}

func TestRefreshKey(t *testing.T) {
	called := false
	m := NewModel(bridge.New(), func() error {
		called = true
		return nil
	})

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	model := updated.(Model)
	assert.True(t, model.refreshing)
	require.NotNil(t, cmd)

	msg := model.refreshCmd()()
	assert.True(t, called)
	done, ok := msg.(refreshDoneMsg)
	require.True(t, ok)
	assert.NoError(t, done.err)

	updated, _ = model.Update(done)
	assert.False(t, updated.(Model).refreshing)
}

func TestRefreshErrorShownInView(t *testing.T) {
	m := NewModel(bridge.New(), nil)
	updated, _ := m.Update(refreshDoneMsg{err: fmt.Errorf("host unreachable")})
	view := updated.(Model).View()
	assert.Contains(t, view, "refresh failed")
	assert.Contains(t, view, "host unreachable")
}

func TestViewShowsMenu(t *testing.T) {
	m := NewModel(bridge.New(), nil)
	m.current = bridge.Update{
		Title: "MD 82%",
		Menu:  []bridge.MenuItem{{Label: "tet5-vc  82.2%  328 ns/day  [running]"}},
	}
	view := m.View()
	assert.Contains(t, view, "MD 82%")
	assert.Contains(t, view, "tet5-vc")
	assert.Contains(t, view, "328 ns/day")
}
