package engine

import (
	"sync"
	"time"
)

// Clock abstracts time for the engine. All waiting inside the engine is
// expressed as scheduled callbacks on a Clock, never as blocking sleeps, so
// the whole temporal surface (sampling cadence, grace period, countdown,
// midpoint tick, inactivity guard) can be driven deterministically by a
// ManualClock in tests and simulations.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// AfterFunc schedules fn to run once after d. The returned Timer's Stop
	// reports whether the callback was cancelled before running.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a handle to a scheduled callback.
type Timer interface {
	Stop() bool
}

// SystemClock returns a Clock backed by the runtime's wall clock.
func SystemClock() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return systemTimer{time.AfterFunc(d, fn)}
}

type systemTimer struct {
	t *time.Timer
}

func (st systemTimer) Stop() bool {
	return st.t.Stop()
}

// ManualClock is a Clock whose time only moves when Advance is called.
// Scheduled callbacks fire synchronously on the advancing goroutine, in
// deadline order (FIFO among equal deadlines), with the clock's time set to
// each callback's deadline while it runs. Callbacks may schedule or stop
// timers; they must not call Advance.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	clock   *ManualClock
	when    time.Time
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

// NewManualClock creates a ManualClock starting at the given instant.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the clock's current time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules fn to run when the clock has advanced by d.
func (c *ManualClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &manualTimer{clock: c, when: c.now.Add(d), seq: c.seq, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward by d, firing every due callback in
// deadline order before settling on the target time.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		t := c.popDueLocked(target)
		if t == nil {
			break
		}
		if t.when.After(c.now) {
			c.now = t.when
		}
		t.fired = true
		// Run with the clock unlocked so the callback can reschedule.
		c.mu.Unlock()
		t.fn()
		c.mu.Lock()
	}
	c.now = target
	c.compactLocked()
	c.mu.Unlock()
}

// popDueLocked removes and returns the earliest pending timer due at or
// before target, or nil if none remain.
func (c *ManualClock) popDueLocked(target time.Time) *manualTimer {
	best := -1
	for i, t := range c.timers {
		if t.stopped || t.fired || t.when.After(target) {
			continue
		}
		if best < 0 || t.when.Before(c.timers[best].when) ||
			(t.when.Equal(c.timers[best].when) && t.seq < c.timers[best].seq) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	t := c.timers[best]
	c.timers = append(c.timers[:best], c.timers[best+1:]...)
	return t
}

func (c *ManualClock) compactLocked() {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	c.timers = live
}

// Pending returns the number of scheduled, not-yet-fired callbacks.
// Useful for asserting that cancellation left nothing behind.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}
