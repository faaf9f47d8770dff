package engine

// State classifies the instantaneous typing velocity into one of four
// composition states, ordered by decreasing rate. Stopped is the only state
// from which a trigger countdown may start.
type State int

const (
	// Flow means sustained rapid typing. The user is mid-thought.
	Flow State = iota
	// Editing means moderate activity: insertions, corrections, rewording.
	Editing
	// Reviewing means sparse activity: the user is re-reading, touching a
	// character here and there.
	Reviewing
	// Stopped means no recent activity inside the sampling window.
	Stopped
)

// String returns the wire/display name of the state.
func (s State) String() string {
	switch s {
	case Flow:
		return "FLOW"
	case Editing:
		return "EDITING"
	case Reviewing:
		return "REVIEWING"
	case Stopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Feedback intensity values handed to the state-change observer. These map
// states to a display liveness value; the pending value is emitted by the
// countdown midpoint tick and the ceased value when the inactivity guard
// disarms the engine.
const (
	feedbackFlow      = 1.0
	feedbackEditing   = 0.7
	feedbackReviewing = 0.4
	feedbackStopped   = 0.15
	feedbackPending   = 0.6
	feedbackCeased    = 0.0
)

// Feedback returns the display intensity associated with the state.
func (s State) Feedback() float64 {
	switch s {
	case Flow:
		return feedbackFlow
	case Editing:
		return feedbackEditing
	case Reviewing:
		return feedbackReviewing
	default:
		return feedbackStopped
	}
}
