package watch

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/cadence/internal/engine"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	m := New(Options{Deterministic: true})
	t.Cleanup(m.eng.Stop)
	m.width = 100
	m.height = 30
	return m
}

func typeRunes(t *testing.T, m Model, s string) Model {
	t.Helper()
	upd, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return upd.(Model)
}

// tick sends n render ticks; in deterministic mode each advances the engine
// clock by the tick interval.
func tick(m Model, n int) Model {
	for i := 0; i < n; i++ {
		upd, _ := m.Update(tickMsg(time.Now()))
		m = upd.(Model)
	}
	return m
}

func TestTypingReachesEngineAndField(t *testing.T) {
	m := newTestModel(t)

	m = typeRunes(t, m, "hello world drafting")

	assert.Equal(t, "hello world drafting", m.field.Value())
	assert.Equal(t, "hello world drafting", m.feed.snapshot())

	// Classification is a sampled decision; five 100ms ticks reach the
	// first 500ms sample.
	m = tick(m, 5)
	assert.Equal(t, engine.Flow, m.eng.State())
}

func TestForceKeyFiresTrigger(t *testing.T) {
	m := newTestModel(t)
	m = typeRunes(t, m, "a quick draft.")

	upd, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlF})
	m = upd.(Model)
	assert.Nil(t, cmd)

	stats := m.eng.Stats()
	require.EqualValues(t, 1, stats.TriggersFired)
	assert.Equal(t, "a quick draft.", m.feed.Preview())
}

func TestForceKeyKeepsManualFloor(t *testing.T) {
	m := newTestModel(t)
	m = typeRunes(t, m, "short")

	upd, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlF})
	m = upd.(Model)

	stats := m.eng.Stats()
	assert.EqualValues(t, 0, stats.TriggersFired)
	assert.EqualValues(t, 1, stats.TriggersRejected)
}

func TestQuitStopsEngine(t *testing.T) {
	m := newTestModel(t)

	upd, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = upd.(Model)

	require.NotNil(t, cmd)
	_, isQuit := cmd().(tea.QuitMsg)
	assert.True(t, isQuit, "esc should produce tea.Quit")
	assert.False(t, m.eng.Active())
}

func TestDeterministicTickDrivesTrigger(t *testing.T) {
	m := newTestModel(t)
	m = typeRunes(t, m, "Refactor the cache layer to evict by LRU.")

	// All keystrokes land on one manual-clock instant. Stop is confirmed at
	// the 1s sample, grace runs to 2.5s, and the terminal mark selects the
	// 6s wait: the trigger fires 8.5s in. 100 ticks of 100ms cover that.
	m = tick(m, 100)

	stats := m.eng.Stats()
	assert.EqualValues(t, 1, stats.TriggersFired)
	assert.Equal(t, engine.Stopped, stats.State)
	assert.Equal(t, "Refactor the cache layer to evict by LRU.", m.feed.Preview())
}

func TestInactivityDisarmAndRearm(t *testing.T) {
	m := newTestModel(t)
	m = typeRunes(t, m, "some activity first")

	// The guard disarms after 15 idle minutes: 9000 ticks of 100ms.
	m = tick(m, 9001)
	require.False(t, m.eng.Active(), "engine should disarm after the idle timeout")

	upd, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	m = upd.(Model)
	assert.True(t, m.eng.Active())
}

func TestViewRendersStatusPane(t *testing.T) {
	m := newTestModel(t)
	m = typeRunes(t, m, "writing along at speed")
	m = tick(m, 5)

	view := m.View()
	assert.Contains(t, view, "cadence watch")
	assert.Contains(t, view, "FLOW")
	assert.Contains(t, view, "feedback")
	assert.Contains(t, view, "countdown")
	assert.Contains(t, view, "last sent")
	assert.Contains(t, view, "cps")
}

func TestViewShowsLastTrigger(t *testing.T) {
	m := newTestModel(t)
	m = typeRunes(t, m, "a quick draft.")

	upd, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlF})
	m = upd.(Model)

	view := m.View()
	assert.Contains(t, view, "#1")
	assert.Contains(t, view, "14 chars")
	assert.Contains(t, view, "a quick draft.")
}

func TestViewShowsDisarmedBadge(t *testing.T) {
	m := newTestModel(t)
	m = typeRunes(t, m, "some activity first")
	m = tick(m, 9001)

	assert.Contains(t, m.View(), "DISARMED")
}

func TestWindowResize(t *testing.T) {
	m := newTestModel(t)

	upd, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = upd.(Model)

	assert.Equal(t, 120, m.width)
	assert.NotPanics(t, func() { _ = m.View() })
}

func TestMeter(t *testing.T) {
	assert.Equal(t, strings.Repeat("░", 10), meter(0, 10))
	assert.Equal(t, strings.Repeat("█", 10), meter(1, 10))
	assert.Equal(t, strings.Repeat("█", 10), meter(2.5, 10))
	assert.Equal(t, "█████░░░░░", meter(0.5, 10))
	assert.Equal(t, strings.Repeat("░", 10), meter(-1, 10))
}

func TestInit(t *testing.T) {
	m := newTestModel(t)
	assert.NotNil(t, m.Init())
}
