package engine

// The inactivity guard bounds resource and cost exposure: a field left alone
// long enough stops being monitored entirely. It watches the same ingestion
// stream as the classifier, but from the side: every accepted keystroke
// resets one timer, and if that timer ever fires the whole engine disarms.
// Only an explicit Activate call re-arms it.

// resetInactivityLocked (re)starts the guard timer, replacing the prior one.
func (e *Engine) resetInactivityLocked() {
	if e.inactivityTimer != nil {
		e.inactivityTimer.Stop()
	}
	e.inactivityGen++
	gen := e.inactivityGen
	e.inactivityTimer = e.clock.AfterFunc(e.ms(e.cfg.InactivityTimeoutMs), func() {
		e.inactivityExpired(gen)
	})
}

// stopInactivityLocked halts the guard without disarming anything else.
func (e *Engine) stopInactivityLocked() {
	e.inactivityGen++
	if e.inactivityTimer != nil {
		e.inactivityTimer.Stop()
		e.inactivityTimer = nil
	}
}

// inactivityExpired disarms the engine after the configured idle span and
// tells the feedback consumer that tracking has ceased.
func (e *Engine) inactivityExpired(gen uint64) {
	e.mu.Lock()
	if !e.active || gen != e.inactivityGen {
		e.mu.Unlock()
		return
	}
	idle := e.ms(e.cfg.InactivityTimeoutMs)
	e.deactivateLocked()
	fn := e.onState
	e.mu.Unlock()

	e.logger.Info("engine disarmed by inactivity", "idle_minutes", idle.Minutes())
	if fn != nil {
		fn(Stopped, feedbackCeased)
	}
}
