package engine

// Config holds the tunable thresholds and delays for a trigger engine.
// All durations are in milliseconds so the values round-trip cleanly through
// the YAML config layer and the control API.
type Config struct {
	// SampleIntervalMs is the classifier cadence: how often the recent-history
	// buffer is re-evaluated into a composition state.
	// Default: 500ms.
	SampleIntervalMs int64

	// WindowMs is the velocity lookback window. Only keystrokes younger than
	// this count toward the rate.
	// Default: 1000ms.
	WindowMs int64

	// MaxHistory caps the recent-history buffer length; the oldest entries are
	// dropped on overflow.
	// Default: 10.
	MaxHistory int

	// FlowThreshold is the minimum chars/sec classified as FLOW.
	// Default: 2.0.
	FlowThreshold float64

	// EditingThreshold is the minimum chars/sec classified as EDITING.
	// Default: 0.5.
	EditingThreshold float64

	// ReviewingThreshold is the minimum chars/sec classified as REVIEWING.
	// Anything below it is STOPPED.
	// Default: 0.1 (any nonzero rate).
	ReviewingThreshold float64

	// GraceMs is the confirmation delay after entering STOPPED before a
	// countdown is armed. Chosen to exceed typical IME candidate-selection
	// latency so a conversion pause is not read as task completion.
	// Default: 1500ms.
	GraceMs int64

	// ShortWaitMs is the countdown used when the text ends with a
	// sentence-terminal mark ("natural completion").
	// Default: 6000ms.
	ShortWaitMs int64

	// LongWaitMs is the countdown used otherwise ("planning pause").
	// Default: 8000ms.
	LongWaitMs int64

	// MidpointMs is when the advisory midpoint feedback tick fires after
	// arming, independent of the countdown's total duration.
	// Default: 3000ms.
	MidpointMs int64

	// MinLength is the minimum candidate length (in runes) for an automatic
	// trigger.
	// Default: 15.
	MinLength int

	// CooldownMs is the minimum interval between two automatic triggers.
	// Default: 30000ms.
	CooldownMs int64

	// MinChangeFraction is the minimum normalized change distance between the
	// candidate and the last sent text for an automatic trigger.
	// Default: 0.2.
	MinChangeFraction float64

	// ManualMinLength is the minimum candidate length (in runes) for a manual
	// trigger. Intentionally lower than MinLength: an explicit request is the
	// user directly weighing in.
	// Default: 10.
	ManualMinLength int

	// InactivityTimeoutMs disarms the whole engine after this long without an
	// accepted keystroke. Reactivation requires an explicit Activate call.
	// Default: 900000ms (15 minutes).
	InactivityTimeoutMs int64
}

// DefaultConfig returns a Config with the stock thresholds.
func DefaultConfig() Config {
	return Config{
		SampleIntervalMs:    500,
		WindowMs:            1000,
		MaxHistory:          10,
		FlowThreshold:       2.0,
		EditingThreshold:    0.5,
		ReviewingThreshold:  0.1,
		GraceMs:             1500,
		ShortWaitMs:         6000,
		LongWaitMs:          8000,
		MidpointMs:          3000,
		MinLength:           15,
		CooldownMs:          30000,
		MinChangeFraction:   0.2,
		ManualMinLength:     10,
		InactivityTimeoutMs: 15 * 60 * 1000,
	}
}

// applyDefaults fills in zero-valued fields with defaults.
func (c Config) applyDefaults() Config {
	d := DefaultConfig()
	if c.SampleIntervalMs <= 0 {
		c.SampleIntervalMs = d.SampleIntervalMs
	}
	if c.WindowMs <= 0 {
		c.WindowMs = d.WindowMs
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = d.MaxHistory
	}
	if c.FlowThreshold <= 0 {
		c.FlowThreshold = d.FlowThreshold
	}
	if c.EditingThreshold <= 0 {
		c.EditingThreshold = d.EditingThreshold
	}
	if c.ReviewingThreshold <= 0 {
		c.ReviewingThreshold = d.ReviewingThreshold
	}
	if c.GraceMs <= 0 {
		c.GraceMs = d.GraceMs
	}
	if c.ShortWaitMs <= 0 {
		c.ShortWaitMs = d.ShortWaitMs
	}
	if c.LongWaitMs <= 0 {
		c.LongWaitMs = d.LongWaitMs
	}
	if c.MidpointMs <= 0 {
		c.MidpointMs = d.MidpointMs
	}
	if c.MinLength <= 0 {
		c.MinLength = d.MinLength
	}
	if c.CooldownMs <= 0 {
		c.CooldownMs = d.CooldownMs
	}
	if c.MinChangeFraction <= 0 {
		c.MinChangeFraction = d.MinChangeFraction
	}
	if c.ManualMinLength <= 0 {
		c.ManualMinLength = d.ManualMinLength
	}
	if c.InactivityTimeoutMs <= 0 {
		c.InactivityTimeoutMs = d.InactivityTimeoutMs
	}
	return c
}
