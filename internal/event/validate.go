package event

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Validation errors returned by Validate.
var (
	// ErrInvalidVersion indicates the `v` field is not the supported protocol version.
	ErrInvalidVersion = errors.New("invalid event version")

	// ErrMissingType indicates the type field is missing or empty.
	ErrMissingType = errors.New("missing required field: type")

	// ErrUnknownType indicates the type field names no known event type.
	ErrUnknownType = errors.New("unknown event type")

	// ErrMissingTimestamp indicates the ts field is missing, zero, or negative.
	ErrMissingTimestamp = errors.New("missing required field: ts")

	// ErrMissingSession indicates the session field is missing or empty.
	ErrMissingSession = errors.New("missing required field: session")

	// ErrMissingRune indicates a key event without a rune payload.
	ErrMissingRune = errors.New("key event missing required field: rune")

	// ErrInvalidRune indicates a key event whose rune field is not exactly
	// one character.
	ErrInvalidRune = errors.New("key event rune must be a single character")
)

// Validate checks that ev is a well-formed wire event. It returns nil if the
// event is valid, or an error describing the first failure.
//
// Required on every event:
//   - v: must be "cadence/v1"
//   - type: must name a known event type
//   - ts: must be positive (unix milliseconds)
//   - session: must be non-empty
//
// Key events additionally require a rune field holding exactly one
// character. The compose open flag, the per-key composing flag, and the text
// snapshot are free-form: false and "" are meaningful values there.
func Validate(ev *Event) error {
	if ev == nil {
		return errors.New("event is nil")
	}

	if ev.Version != Version {
		return fmt.Errorf("%w: got %q, want %q", ErrInvalidVersion, ev.Version, Version)
	}

	if ev.Type == "" {
		return ErrMissingType
	}
	if !ValidType(ev.Type) {
		return fmt.Errorf("%w: %q", ErrUnknownType, ev.Type)
	}

	if ev.TS <= 0 {
		return ErrMissingTimestamp
	}

	if ev.Session == "" {
		return ErrMissingSession
	}

	if ev.Type == TypeKey {
		if ev.Rune == "" {
			return ErrMissingRune
		}
		if utf8.RuneCountInString(ev.Rune) != 1 {
			return fmt.Errorf("%w: got %q", ErrInvalidRune, ev.Rune)
		}
	}

	return nil
}
