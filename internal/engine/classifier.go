package engine

import "time"

// The classifier is a discrete polling loop, not an edge-triggered one: every
// sample re-derives the state from the buffer unconditionally, so a state is
// only "entered" once a sample confirms it. The one-second window smooths
// single-character jitter; the cadence stays an explicit config value so
// tests and simulations can drive it tick by tick.

// startSamplingLocked begins (or restarts) the classifier cadence.
func (e *Engine) startSamplingLocked() {
	e.sampleGen++
	gen := e.sampleGen
	if e.sampleTimer != nil {
		e.sampleTimer.Stop()
	}
	e.sampleTimer = e.clock.AfterFunc(e.ms(e.cfg.SampleIntervalMs), func() {
		e.sampleTick(gen)
	})
}

// stopSamplingLocked halts the cadence and invalidates in-flight ticks.
func (e *Engine) stopSamplingLocked() {
	e.sampleGen++
	if e.sampleTimer != nil {
		e.sampleTimer.Stop()
		e.sampleTimer = nil
	}
}

// sampleTick is one classifier sample. It reschedules itself first so the
// cadence holds steady regardless of what the sample decides.
func (e *Engine) sampleTick(gen uint64) {
	e.mu.Lock()
	if !e.active || gen != e.sampleGen {
		e.mu.Unlock()
		return
	}
	e.sampleTimer = e.clock.AfterFunc(e.ms(e.cfg.SampleIntervalMs), func() {
		e.sampleTick(gen)
	})
	notify := e.classifyLocked(e.clock.Now())
	e.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// classifyLocked re-derives the composition state from the buffer. On a
// confirmed change it updates the scheduler and returns the observer
// notification to run once the lock is released; otherwise nil.
func (e *Engine) classifyLocked(now time.Time) func() {
	cutoff := now.Add(-e.ms(e.cfg.WindowMs))
	e.hist.prune(cutoff)

	rate := e.rateLocked(now)
	next := e.classifyRate(rate)
	if next == e.state {
		return nil
	}

	prev := e.state
	e.state = next
	e.logger.Debug("state change",
		"from", prev.String(),
		"to", next.String(),
		"rate", rate,
	)
	e.transitionLocked(prev, next)

	fn := e.onState
	if fn == nil {
		return nil
	}
	feedback := next.Feedback()
	return func() { fn(next, feedback) }
}

// rateLocked computes characters per second over the trailing window.
func (e *Engine) rateLocked(now time.Time) float64 {
	window := e.ms(e.cfg.WindowMs)
	count := e.hist.countSince(now.Add(-window))
	return float64(count) / window.Seconds()
}

// classifyRate maps a rate to a state, thresholds evaluated high to low.
func (e *Engine) classifyRate(rate float64) State {
	switch {
	case rate >= e.cfg.FlowThreshold:
		return Flow
	case rate >= e.cfg.EditingThreshold:
		return Editing
	case rate >= e.cfg.ReviewingThreshold:
		return Reviewing
	default:
		return Stopped
	}
}
