package engine

import "time"

// keystroke is one accepted character arrival.
type keystroke struct {
	r  rune
	at time.Time
}

// history is the recent-history buffer: an ordered, time-bounded record of
// accepted keystrokes. It is bounded two ways: entries older than the
// velocity window are pruned at each sample, and the total length is capped
// so a burst cannot grow it without bound. Not safe for concurrent use; the
// engine's mutex serializes access.
type history struct {
	entries []keystroke
	max     int
}

func newHistory(max int) history {
	return history{entries: make([]keystroke, 0, max), max: max}
}

// append records a keystroke, dropping the oldest entries if the buffer is
// at capacity.
func (h *history) append(r rune, at time.Time) {
	h.entries = append(h.entries, keystroke{r: r, at: at})
	if over := len(h.entries) - h.max; over > 0 {
		h.entries = h.entries[over:]
	}
}

// prune removes entries at or older than the cutoff.
func (h *history) prune(cutoff time.Time) {
	idx := 0
	for idx < len(h.entries) && !h.entries[idx].at.After(cutoff) {
		idx++
	}
	if idx > 0 {
		h.entries = h.entries[idx:]
	}
}

// countSince returns how many entries are strictly newer than the cutoff.
// Entries are appended in arrival order, so the suffix after the first
// qualifying entry is the answer.
func (h *history) countSince(cutoff time.Time) int {
	n := 0
	for i := len(h.entries) - 1; i >= 0; i-- {
		if !h.entries[i].at.After(cutoff) {
			break
		}
		n++
	}
	return n
}

func (h *history) len() int {
	return len(h.entries)
}

func (h *history) clear() {
	h.entries = h.entries[:0]
}
