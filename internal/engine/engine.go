// Package engine implements the velocity-driven trigger engine: it watches
// keystroke arrival times, classifies the typing cadence into composition
// states, and decides the moment a draft is worth forwarding to an expensive
// analysis call, with no submit action required.
//
// The engine is pure decision logic. It performs no I/O of its own; the host
// wires three collaborators instead:
//
//   - a TextSource pulling the monitored field's current text on demand,
//   - an OnTrigger observer receiving each accepted candidate exactly once,
//   - an OnStateChange observer receiving confirmed state changes and
//     advisory feedback ticks for display.
//
// All waiting is scheduled on a Clock, so every temporal behavior can be
// driven deterministically with a ManualClock. Entry points and timer
// callbacks serialize on one mutex: events are processed as discrete,
// non-overlapping steps on a single logical timeline. One engine instance
// monitors one field; hosts run one engine per session.
package engine

import (
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"
)

// TextSource returns the current full text of the monitored field. The
// engine invokes it only at countdown expiry, at countdown arming (to pick
// the wait duration), and at manual trigger, never on keystrokes.
type TextSource func() string

// Engine is the velocity-driven trigger engine. Safe for concurrent use.
type Engine struct {
	mu     sync.Mutex
	cfg    Config
	clock  Clock
	logger *slog.Logger
	gate   gate

	active    bool
	composing bool
	state     State
	hist      history

	source    TextSource
	onTrigger func(text string)
	onState   func(state State, feedback float64)
	onReject  func(reason RejectReason, chars int)

	lastSentText  string
	lastSentAt    time.Time
	lastCountdown time.Duration // countdown behind the last fire; 0 for manual

	// Owned timer handles. Starting a timer in a slot always replaces the
	// prior one; generation counters invalidate callbacks that already left
	// the clock but lost the race against a cancellation.
	sampleTimer     Timer
	graceTimer      Timer
	countdownTimer  Timer
	midpointTimer   Timer
	inactivityTimer Timer

	sampleGen     uint64
	armGen        uint64
	inactivityGen uint64

	countdownEndsAt time.Time
	countdownTotal  time.Duration

	firedTotal    int64
	rejectedTotal int64
	lastReject    RejectReason
}

// Deps supplies the engine's runtime collaborators. Zero fields get defaults
// (system clock, slog default logger).
type Deps struct {
	Clock  Clock
	Logger *slog.Logger
}

// New creates an engine with the given config. Zero-valued config fields are
// replaced with defaults. The engine starts deactivated; call Activate to arm
// ingestion and classification.
func New(cfg Config, deps Deps) *Engine {
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.applyDefaults()
	return &Engine{
		cfg:    cfg,
		clock:  clock,
		logger: logger,
		gate:   gate{cfg: cfg},
		state:  Stopped,
		hist:   newHistory(cfg.MaxHistory),
	}
}

// OnTrigger registers the trigger consumer. It is called exactly once per
// accepted countdown or manual trigger, with the engine lock released.
func (e *Engine) OnTrigger(fn func(text string)) {
	e.mu.Lock()
	e.onTrigger = fn
	e.mu.Unlock()
}

// OnStateChange registers the feedback consumer. It is called on every
// confirmed classifier state change, at the countdown midpoint tick, and when
// the inactivity guard disarms the engine. The lock is always released first,
// so the observer may call back into the engine.
func (e *Engine) OnStateChange(fn func(state State, feedback float64)) {
	e.mu.Lock()
	e.onState = fn
	e.mu.Unlock()
}

// OnReject registers an optional diagnostics observer, called with the lock
// released whenever the eligibility gate turns down a candidate. chars is the
// candidate length in runes.
func (e *Engine) OnReject(fn func(reason RejectReason, chars int)) {
	e.mu.Lock()
	e.onReject = fn
	e.mu.Unlock()
}

// Activate arms ingestion and classification and (re)starts the inactivity
// guard. Idempotent: re-activating replaces the text source and resets the
// guard without disturbing an in-flight countdown. The source may be nil; a
// trigger decision without one is a logged no-op.
func (e *Engine) Activate(source TextSource) {
	e.mu.Lock()
	e.source = source
	wasActive := e.active
	e.active = true
	e.resetInactivityLocked()
	if !wasActive {
		e.startSamplingLocked()
	}
	e.mu.Unlock()
	if !wasActive {
		e.logger.Debug("engine activated")
	}
}

// Ingest records a character arrival. Dropped silently while the engine is
// inactive or an IME composition is open: provisional characters from a
// multi-stage input method must not count toward velocity.
func (e *Engine) Ingest(r rune) {
	e.mu.Lock()
	if !e.active || e.composing {
		e.mu.Unlock()
		return
	}
	e.hist.append(r, e.clock.Now())
	e.resetInactivityLocked()
	e.mu.Unlock()
}

// SetComposing marks an IME composition sequence as open or closed. While
// open, Ingest calls are no-ops.
func (e *Engine) SetComposing(open bool) {
	e.mu.Lock()
	e.composing = open
	e.mu.Unlock()
}

// Velocity returns the instantaneous rate in characters per second over the
// trailing lookback window.
func (e *Engine) Velocity() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rateLocked(e.clock.Now())
}

// State returns the current composition state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Active reports whether the engine is armed.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// ForceTrigger attempts a manual trigger immediately, with no countdown. The
// manual path bypasses the cooldown and change-distance checks but keeps a
// lower length floor and the placeholder denylist.
func (e *Engine) ForceTrigger() {
	e.mu.Lock()
	if !e.active {
		e.logger.Debug("manual trigger ignored", "reason", RejectInactive.String())
		e.mu.Unlock()
		return
	}
	src := e.source
	e.mu.Unlock()

	if src == nil {
		e.logger.Warn("manual trigger with no text source wired")
		return
	}
	text := src()

	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	if reason := e.gate.evaluateManual(text); reason != RejectNone {
		e.rejectedTotal++
		e.lastReject = reason
		rfn := e.onReject
		e.logger.Debug("trigger rejected", "source", "manual", "reason", reason.String())
		e.mu.Unlock()
		if rfn != nil {
			rfn(reason, utf8.RuneCountInString(text))
		}
		return
	}
	e.lastCountdown = 0
	e.recordSendLocked(text)
	fn := e.onTrigger
	e.mu.Unlock()

	e.logger.Info("trigger fired", "source", "manual", "chars", utf8.RuneCountInString(text))
	if fn != nil {
		fn(text)
	}
}

// Stop deactivates the engine and cancels all pending timers. No further
// events are processed until Activate is called again.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.deactivateLocked()
	e.mu.Unlock()
	e.logger.Debug("engine stopped")
}

// recordSendLocked updates the last-sent pair. It must be called in the same
// critical section that commits the decision to forward, so the cooldown and
// change-distance checks always see both fields or neither.
func (e *Engine) recordSendLocked(text string) {
	e.lastSentText = text
	e.lastSentAt = e.clock.Now()
	e.firedTotal++
}

// deactivateLocked tears down every timer slot and freezes classification.
func (e *Engine) deactivateLocked() {
	e.active = false
	e.cancelCountdownLocked()
	e.stopSamplingLocked()
	e.stopInactivityLocked()
	e.state = Stopped
}

// Stats is a point-in-time snapshot of the engine, for status surfaces.
type Stats struct {
	Active           bool
	Composing        bool
	State            State
	Velocity         float64
	BufferLen        int
	CountdownArmed   bool
	CountdownEndsAt  time.Time
	CountdownTotal   time.Duration
	LastSentAt       time.Time
	LastSentChars    int
	LastCountdown    time.Duration
	TriggersFired    int64
	TriggersRejected int64
	LastReject       RejectReason
}

// Stats returns a snapshot of the engine's observable state.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Active:           e.active,
		Composing:        e.composing,
		State:            e.state,
		Velocity:         e.rateLocked(e.clock.Now()),
		BufferLen:        e.hist.len(),
		CountdownArmed:   !e.countdownEndsAt.IsZero(),
		CountdownEndsAt:  e.countdownEndsAt,
		CountdownTotal:   e.countdownTotal,
		LastSentAt:       e.lastSentAt,
		LastSentChars:    utf8.RuneCountInString(e.lastSentText),
		LastCountdown:    e.lastCountdown,
		TriggersFired:    e.firedTotal,
		TriggersRejected: e.rejectedTotal,
		LastReject:       e.lastReject,
	}
}

func (e *Engine) ms(v int64) time.Duration {
	return time.Duration(v) * time.Millisecond
}
