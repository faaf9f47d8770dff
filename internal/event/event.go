// Package event defines the versioned NDJSON wire protocol between cadence
// hooks and the daemon: one JSON object per line, routed to a per-session
// engine by the session field.
package event

import "time"

// Version is the protocol identifier carried in every event's `v` field.
// Readers reject anything else; the format only evolves behind a new string.
const Version = "cadence/v1"

// MaxLineBytes caps a single NDJSON line on the ingest socket. Full-field
// text snapshots dominate line size; 64 KiB leaves room for several pages of
// prose plus the JSON envelope.
const MaxLineBytes = 64 * 1024

// Event types.
const (
	// TypeKey reports one committed character arrival.
	TypeKey = "key"

	// TypeCompose opens or closes an IME composition sequence.
	TypeCompose = "compose"

	// TypeText replaces the session's current field snapshot.
	TypeText = "text"

	// TypeActivate arms the session's engine.
	TypeActivate = "activate"

	// TypeDeactivate disarms the session's engine.
	TypeDeactivate = "deactivate"

	// TypeForce requests an immediate manual trigger for the session.
	TypeForce = "force"
)

// ValidType reports whether t names a recognized event type.
func ValidType(t string) bool {
	switch t {
	case TypeKey, TypeCompose, TypeText, TypeActivate, TypeDeactivate, TypeForce:
		return true
	default:
		return false
	}
}

// Event is one wire event. Every type shares the envelope (v, type, ts,
// session); the remaining fields are type-specific and omitted elsewhere.
// Unknown JSON fields are ignored on decode, so hooks may attach extra
// metadata without breaking older daemons.
type Event struct {
	Version string `json:"v"`
	Type    string `json:"type"`
	TS      int64  `json:"ts"` // unix milliseconds
	Session string `json:"session"`

	// Rune is the committed character for key events, encoded as a
	// one-rune string.
	Rune string `json:"rune,omitempty"`

	// Composing marks a key that arrived inside an open composition, for
	// editors that report per-key composition state instead of sending
	// compose boundary events. Such keys do not count toward velocity.
	Composing bool `json:"composing,omitempty"`

	// Open distinguishes compose open (true) from compose close.
	Open bool `json:"open,omitempty"`

	// Text is the full field snapshot for text events. An absent field
	// decodes as the empty string, which is a legitimate snapshot: the
	// field was cleared.
	Text string `json:"text,omitempty"`
}

// newEvent builds the shared envelope. Constructors stamp the protocol
// version and the sender's wall clock so callers never have to.
func newEvent(typ, session string) *Event {
	return &Event{
		Version: Version,
		Type:    typ,
		TS:      time.Now().UnixMilli(),
		Session: session,
	}
}

// NewKeyEvent builds a key event for one committed character.
func NewKeyEvent(session string, r rune) *Event {
	ev := newEvent(TypeKey, session)
	ev.Rune = string(r)
	return ev
}

// NewComposeEvent builds a compose boundary event. open=true begins an IME
// composition sequence, open=false commits it.
func NewComposeEvent(session string, open bool) *Event {
	ev := newEvent(TypeCompose, session)
	ev.Open = open
	return ev
}

// NewTextEvent builds a text event carrying the field's full current text.
func NewTextEvent(session, text string) *Event {
	ev := newEvent(TypeText, session)
	ev.Text = text
	return ev
}

// NewActivateEvent builds an activate event for the session.
func NewActivateEvent(session string) *Event {
	return newEvent(TypeActivate, session)
}

// NewDeactivateEvent builds a deactivate event for the session.
func NewDeactivateEvent(session string) *Event {
	return newEvent(TypeDeactivate, session)
}

// NewForceEvent builds a manual trigger request for the session.
func NewForceEvent(session string) *Event {
	return newEvent(TypeForce, session)
}
