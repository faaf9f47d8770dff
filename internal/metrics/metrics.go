// Package metrics provides atomic counters for daemon observability.
// Counters are lock-free (sync/atomic) and safe for concurrent use across
// daemon goroutines.
package metrics

import (
	"sync/atomic"
)

// Counters holds atomic observability counters for the trigger daemon.
// All fields use sync/atomic for lock-free concurrent access.
type Counters struct {
	EventsIngested  atomic.Int64 // wire events accepted off the ingest socket
	EventsDropped   atomic.Int64 // events dropped by the bounded queue
	EventsInvalid   atomic.Int64 // lines that failed parsing or validation
	TriggersAuto    atomic.Int64 // countdown-path triggers forwarded
	TriggersManual  atomic.Int64 // manual-path triggers forwarded
	SessionsStarted atomic.Int64 // engines created for new session ids
	SessionsReaped  atomic.Int64 // idle sessions removed by the reaper
	JournalWrites   atomic.Int64 // rows written to the trigger journal
	JournalErrors   atomic.Int64 // journal writes that failed

	// Gate rejections, one counter per reason so tuning sessions can see
	// which filter is doing the work.
	RejectTooShort    atomic.Int64
	RejectCooldown    atomic.Int64
	RejectUnchanged   atomic.Int64
	RejectPlaceholder atomic.Int64
	RejectNoSource    atomic.Int64
	RejectInactive    atomic.Int64
	RejectOther       atomic.Int64
}

// Global is the process-wide metrics singleton.
var Global = &Counters{}

// RecordReject bumps the counter matching a gate rejection reason's
// diagnostic name. Unknown names land in reject_other rather than being
// silently lost.
func (c *Counters) RecordReject(reason string) {
	switch reason {
	case "too_short":
		c.RejectTooShort.Add(1)
	case "cooldown":
		c.RejectCooldown.Add(1)
	case "unchanged":
		c.RejectUnchanged.Add(1)
	case "placeholder":
		c.RejectPlaceholder.Add(1)
	case "no_source":
		c.RejectNoSource.Add(1)
	case "inactive":
		c.RejectInactive.Add(1)
	default:
		c.RejectOther.Add(1)
	}
}

// TriggersTotal returns the combined count of forwarded triggers.
func (c *Counters) TriggersTotal() int64 {
	return c.TriggersAuto.Load() + c.TriggersManual.Load()
}

// RejectsTotal returns the combined count of gate rejections.
func (c *Counters) RejectsTotal() int64 {
	return c.RejectTooShort.Load() +
		c.RejectCooldown.Load() +
		c.RejectUnchanged.Load() +
		c.RejectPlaceholder.Load() +
		c.RejectNoSource.Load() +
		c.RejectInactive.Load() +
		c.RejectOther.Load()
}

// Snapshot returns a point-in-time copy of all counters as a string-keyed map.
// The snapshot is consistent per-field but not transactionally consistent
// across fields (acceptable for observability).
func (c *Counters) Snapshot() map[string]int64 {
	return map[string]int64{
		"events_ingested":    c.EventsIngested.Load(),
		"events_dropped":     c.EventsDropped.Load(),
		"events_invalid":     c.EventsInvalid.Load(),
		"triggers_auto":      c.TriggersAuto.Load(),
		"triggers_manual":    c.TriggersManual.Load(),
		"sessions_started":   c.SessionsStarted.Load(),
		"sessions_reaped":    c.SessionsReaped.Load(),
		"journal_writes":     c.JournalWrites.Load(),
		"journal_errors":     c.JournalErrors.Load(),
		"reject_too_short":   c.RejectTooShort.Load(),
		"reject_cooldown":    c.RejectCooldown.Load(),
		"reject_unchanged":   c.RejectUnchanged.Load(),
		"reject_placeholder": c.RejectPlaceholder.Load(),
		"reject_no_source":   c.RejectNoSource.Load(),
		"reject_inactive":    c.RejectInactive.Load(),
		"reject_other":       c.RejectOther.Load(),
	}
}

// Reset zeroes all counters. Useful for test isolation and periodic reporting.
func (c *Counters) Reset() {
	c.EventsIngested.Store(0)
	c.EventsDropped.Store(0)
	c.EventsInvalid.Store(0)
	c.TriggersAuto.Store(0)
	c.TriggersManual.Store(0)
	c.SessionsStarted.Store(0)
	c.SessionsReaped.Store(0)
	c.JournalWrites.Store(0)
	c.JournalErrors.Store(0)
	c.RejectTooShort.Store(0)
	c.RejectCooldown.Store(0)
	c.RejectUnchanged.Store(0)
	c.RejectPlaceholder.Store(0)
	c.RejectNoSource.Store(0)
	c.RejectInactive.Store(0)
	c.RejectOther.Store(0)
}
