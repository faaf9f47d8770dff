package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrLineTooLong indicates an NDJSON line above MaxLineBytes. Oversized lines
// are rejected before decoding so a misbehaving sender cannot balloon the
// daemon's memory.
var ErrLineTooLong = errors.New("event line exceeds size cap")

// Parse decodes a JSON byte slice into an Event and validates it. It returns
// the parsed event or an error if decoding or validation fails.
//
// The expected shape, one object per line:
//
//	{"v":"cadence/v1","type":"key","ts":1730000000123,"session":"uuid","rune":"a"}
//	{"v":"cadence/v1","type":"text","ts":1730000000150,"session":"uuid","text":"draft so far"}
//	{"v":"cadence/v1","type":"force","ts":1730000000200,"session":"uuid"}
func Parse(data []byte) (*Event, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty input data")
	}
	if len(data) > MaxLineBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrLineTooLong, len(data))
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	if err := Validate(&ev); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &ev, nil
}

// ParseLine decodes a single NDJSON line, trimming any trailing newline
// before parsing. Convenience wrapper around Parse for stream readers.
func ParseLine(line []byte) (*Event, error) {
	if len(line) > 0 && line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}
	// Also trim carriage return for Windows senders
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}

	return Parse(line)
}
