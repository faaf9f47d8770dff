package engine

import (
	"strings"
	"time"
	"unicode/utf8"
)

// The scheduler converts "the user stopped" into a timed decision. Arming is
// two-phase: a grace period absorbs mechanical IME pauses, then a countdown
// whose duration depends on whether the text looks finished. Any exit from
// STOPPED cancels the whole chain. Expiry callbacks re-check state and
// generation before acting, so a callback that lost a race against
// cancellation does nothing.

// terminalMarks are the sentence-terminal runes that select the short wait:
// a draft ending on one reads as a natural completion rather than a planning
// pause. ASCII plus the full-width equivalents.
const terminalMarks = ".!?。！？"

// endsWithTerminalMark reports whether the text, ignoring trailing
// whitespace, ends with a sentence-terminal mark.
func endsWithTerminalMark(text string) bool {
	trimmed := strings.TrimRightFunc(text, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '　'
	})
	if trimmed == "" {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(trimmed)
	return strings.ContainsRune(terminalMarks, last)
}

// transitionLocked applies the scheduler's reaction to a confirmed state
// change. Entering STOPPED arms the grace period; leaving it cancels any
// pending grace check, countdown, and midpoint tick.
func (e *Engine) transitionLocked(prev, next State) {
	if next == Stopped {
		e.armGraceLocked()
		return
	}
	if prev == Stopped {
		e.cancelCountdownLocked()
	}
}

// armGraceLocked starts the grace period, replacing any prior chain.
func (e *Engine) armGraceLocked() {
	e.cancelCountdownLocked()
	gen := e.armGen
	e.graceTimer = e.clock.AfterFunc(e.ms(e.cfg.GraceMs), func() {
		e.graceExpired(gen)
	})
}

// cancelCountdownLocked tears down the grace/countdown/midpoint chain and
// invalidates any of its callbacks still in flight.
func (e *Engine) cancelCountdownLocked() {
	e.armGen++
	if e.graceTimer != nil {
		e.graceTimer.Stop()
		e.graceTimer = nil
	}
	if e.countdownTimer != nil {
		e.countdownTimer.Stop()
		e.countdownTimer = nil
	}
	if e.midpointTimer != nil {
		e.midpointTimer.Stop()
		e.midpointTimer = nil
	}
	e.countdownEndsAt = time.Time{}
	e.countdownTotal = 0
}

// armValidLocked reports whether a grace/countdown/midpoint callback from the
// given generation may still act: the engine is active, nothing cancelled or
// re-armed the chain, and the state is still STOPPED. State is the source of
// truth, not timer identity.
func (e *Engine) armValidLocked(gen uint64) bool {
	return e.active && gen == e.armGen && e.state == Stopped
}

// graceExpired confirms the pause outlived the grace period and arms the
// countdown. The wait is chosen from the candidate text present at arming
// time: a terminal mark selects the short wait, anything else the long one.
func (e *Engine) graceExpired(gen uint64) {
	e.mu.Lock()
	if !e.armValidLocked(gen) {
		e.mu.Unlock()
		return
	}
	src := e.source
	e.mu.Unlock()

	text := ""
	if src == nil {
		e.logger.Warn("no text source wired; arming long countdown")
	} else {
		text = src()
	}

	e.mu.Lock()
	if !e.armValidLocked(gen) {
		e.mu.Unlock()
		return
	}
	wait := e.ms(e.cfg.LongWaitMs)
	terminal := endsWithTerminalMark(text)
	if terminal {
		wait = e.ms(e.cfg.ShortWaitMs)
	}
	e.countdownEndsAt = e.clock.Now().Add(wait)
	e.countdownTotal = wait
	e.countdownTimer = e.clock.AfterFunc(wait, func() {
		e.countdownExpired(gen)
	})
	e.midpointTimer = e.clock.AfterFunc(e.ms(e.cfg.MidpointMs), func() {
		e.midpointTick(gen)
	})
	e.logger.Debug("countdown armed",
		"wait_ms", wait.Milliseconds(),
		"terminal_mark", terminal,
	)
	e.mu.Unlock()
}

// midpointTick emits the advisory mid-countdown feedback pulse. It never
// affects whether the trigger fires.
func (e *Engine) midpointTick(gen uint64) {
	e.mu.Lock()
	if !e.armValidLocked(gen) {
		e.mu.Unlock()
		return
	}
	fn := e.onState
	e.mu.Unlock()

	if fn != nil {
		fn(Stopped, feedbackPending)
	}
}

// countdownExpired fetches the live candidate text and runs the eligibility
// gate. A rejection ends the countdown with no trigger and no reschedule: a
// new countdown requires a fresh STOPPED transition.
func (e *Engine) countdownExpired(gen uint64) {
	e.mu.Lock()
	if !e.armValidLocked(gen) {
		e.mu.Unlock()
		return
	}
	src := e.source
	if src == nil {
		e.cancelCountdownLocked()
		e.logger.Warn("countdown expired with no text source wired")
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	text := src()

	e.mu.Lock()
	if !e.armValidLocked(gen) {
		e.mu.Unlock()
		return
	}
	total := e.countdownTotal
	e.cancelCountdownLocked()
	reason := e.gate.evaluate(text, e.lastSentText, e.lastSentAt, e.clock.Now())
	if reason != RejectNone {
		e.rejectedTotal++
		e.lastReject = reason
		rfn := e.onReject
		e.logger.Debug("trigger rejected",
			"source", "auto",
			"reason", reason.String(),
			"chars", utf8.RuneCountInString(text),
		)
		e.mu.Unlock()
		if rfn != nil {
			rfn(reason, utf8.RuneCountInString(text))
		}
		return
	}
	e.lastCountdown = total
	e.recordSendLocked(text)
	fn := e.onTrigger
	e.mu.Unlock()

	e.logger.Info("trigger fired", "source", "auto", "chars", utf8.RuneCountInString(text))
	if fn != nil {
		fn(text)
	}
}
