// Package watch implements the live monitor TUI: a text field wired to an
// in-process trigger engine, beside a status pane showing the classifier
// state, velocity, feedback intensity, countdown progress, and the last
// trigger. It is the reference feedback consumer: everything the engine
// reports to a host is on screen.
package watch

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/runger/cadence/internal/engine"
)

// defaultTick is the status refresh cadence.
const defaultTick = 100 * time.Millisecond

// velocityFullScale is the chars/sec that fills the velocity meter.
const velocityFullScale = 10.0

// tickMsg drives the status refresh and, in deterministic mode, the engine
// clock.
type tickMsg time.Time

// Options configures the watch program.
type Options struct {
	// Config holds the engine thresholds; zero fields take engine defaults.
	Config engine.Config

	// Logger receives the engine's own logging. Nil discards it.
	Logger *slog.Logger

	// Tick is the refresh cadence. Zero means 100ms.
	Tick time.Duration

	// Deterministic runs the engine on a manual clock advanced one Tick per
	// render tick, instead of the wall clock. Timing then depends only on
	// the message sequence, which is what tests want.
	Deterministic bool
}

// feed is shared between the engine's callbacks and the render loop. Under
// the wall clock the callbacks arrive on timer goroutines, so access is
// locked. It also holds the field snapshot the engine pulls as its text
// source: the textarea lives inside the model value, out of the engine's
// reach.
type feed struct {
	mu       sync.Mutex
	text     string
	feedback float64
	preview  string // first line of the last forwarded draft
}

func (f *feed) setText(s string) {
	f.mu.Lock()
	f.text = s
	f.mu.Unlock()
}

func (f *feed) snapshot() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text
}

func (f *feed) setFeedback(v float64) {
	f.mu.Lock()
	f.feedback = v
	f.mu.Unlock()
}

func (f *feed) Feedback() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.feedback
}

func (f *feed) setPreview(text string) {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	f.mu.Lock()
	f.preview = text
	f.mu.Unlock()
}

func (f *feed) Preview() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.preview
}

// Model is the Bubble Tea model for the watch TUI.
type Model struct {
	field  textarea.Model
	eng    *engine.Engine
	manual *engine.ManualClock // non-nil in deterministic mode
	feed   *feed
	tick   time.Duration

	width  int
	height int
}

// New creates the watch model with an activated engine behind it.
func New(opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = defaultTick
	}

	deps := engine.Deps{Logger: logger}
	var manual *engine.ManualClock
	if opts.Deterministic {
		manual = engine.NewManualClock(time.Now())
		deps.Clock = manual
	}

	fd := &feed{feedback: engine.Stopped.Feedback()}
	eng := engine.New(opts.Config, deps)
	eng.OnTrigger(fd.setPreview)
	eng.OnStateChange(func(s engine.State, feedback float64) {
		fd.setFeedback(feedback)
	})
	eng.Activate(fd.snapshot)

	ta := textarea.New()
	ta.Placeholder = "Start typing; the engine decides when the draft is worth analyzing."
	ta.Prompt = "│ "
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(6)
	ta.Focus()

	return Model{
		field:  ta,
		eng:    eng,
		manual: manual,
		feed:   fd,
		tick:   tick,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.tickCmd())
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.tick, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEsc, tea.KeyCtrlC:
			m.eng.Stop()
			return m, tea.Quit
		case tea.KeyCtrlF:
			m.eng.ForceTrigger()
			return m, nil
		case tea.KeyCtrlR:
			m.eng.Activate(m.feed.snapshot)
			return m, nil
		}
		m.ingestKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		w := msg.Width - 4
		if w > 0 {
			m.field.SetWidth(w)
		}

	case tickMsg:
		if m.manual != nil {
			m.manual.Advance(m.tick)
		}
		return m, m.tickCmd()
	}

	var cmd tea.Cmd
	m.field, cmd = m.field.Update(msg)
	m.feed.setText(m.field.Value())
	return m, cmd
}

// ingestKey counts produced characters toward velocity. Edit keys are not
// character production: backspace and cursor movement never count.
func (m Model) ingestKey(msg tea.KeyMsg) {
	switch msg.Type {
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			m.eng.Ingest(r)
		}
	case tea.KeySpace:
		m.eng.Ingest(' ')
	case tea.KeyEnter:
		m.eng.Ingest('\n')
	}
}

func (m Model) now() time.Time {
	if m.manual != nil {
		return m.manual.Now()
	}
	return time.Now()
}

// --- View rendering ---

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	paneStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	badgeStyles = map[engine.State]lipgloss.Style{
		engine.Flow:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("34")),
		engine.Editing:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("16")).Background(lipgloss.Color("178")),
		engine.Reviewing: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62")),
		engine.Stopped:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("240")),
	}
	disarmedBadge = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("88"))
)

// View implements tea.Model.
func (m Model) View() string {
	stats := m.eng.Stats()

	var b strings.Builder
	b.WriteString(titleStyle.Render("cadence watch"))
	b.WriteString("\n\n")
	b.WriteString(m.field.View())
	b.WriteString("\n\n")
	b.WriteString(paneStyle.Render(m.viewStatus(stats)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("ctrl+f force trigger · ctrl+r re-arm · esc quit"))
	return b.String()
}

// viewStatus renders the status pane body.
func (m Model) viewStatus(stats engine.Stats) string {
	var lines []string

	badge := badgeStyles[stats.State].Render(" " + stats.State.String() + " ")
	if !stats.Active {
		badge = disarmedBadge.Render(" DISARMED ")
	}
	velocity := fmt.Sprintf("%s %4.1f cps", meter(stats.Velocity/velocityFullScale, 10), stats.Velocity)
	lines = append(lines, badge+"  "+valueStyle.Render(velocity))

	feedback := m.feed.Feedback()
	lines = append(lines, labelStyle.Render("feedback  ")+
		valueStyle.Render(fmt.Sprintf("%s %.2f", meter(feedback, 10), feedback)))

	lines = append(lines, m.viewCountdown(stats))
	lines = append(lines, m.viewLastTrigger(stats))

	return strings.Join(lines, "\n")
}

// viewCountdown renders countdown progress while one is armed.
func (m Model) viewCountdown(stats engine.Stats) string {
	label := labelStyle.Render("countdown ")
	if !stats.CountdownArmed || stats.CountdownTotal <= 0 {
		return label + dimStyle.Render("idle")
	}
	remaining := stats.CountdownEndsAt.Sub(m.now())
	if remaining < 0 {
		remaining = 0
	}
	progress := 1 - float64(remaining)/float64(stats.CountdownTotal)
	return label + valueStyle.Render(fmt.Sprintf("%s %.1fs", meter(progress, 10), remaining.Seconds()))
}

// viewLastTrigger renders the last forwarded draft, if any.
func (m Model) viewLastTrigger(stats engine.Stats) string {
	label := labelStyle.Render("last sent ")
	if stats.LastSentAt.IsZero() {
		return label + dimStyle.Render("none")
	}

	preview := m.feed.Preview()
	maxw := m.width - 30
	if maxw < 16 {
		maxw = 16
	}
	preview = runewidth.Truncate(preview, maxw, "…")

	detail := fmt.Sprintf("#%d · %d chars · %q", stats.TriggersFired, stats.LastSentChars, preview)
	return label + valueStyle.Render(detail)
}

// meter renders a 0..1 fraction as a fixed-width bar.
func meter(frac float64, width int) string {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(frac*float64(width) + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Run starts the watch TUI on the terminal and blocks until exit.
func Run(opts Options) error {
	p := tea.NewProgram(New(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
