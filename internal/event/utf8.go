package event

import "unicode/utf8"

// replacement is the UTF-8 encoding of U+FFFD.
var replacement = []byte{0xEF, 0xBF, 0xBD}

// ToLossyUTF8 converts arbitrary bytes to a valid UTF-8 string, replacing
// each invalid byte and each NUL with U+FFFD. Editors hand the hook whatever
// their buffer holds; snapshots must be safe to JSON-encode, store in the
// journal, and feed to the change-distance evaluator, so the sanitizing
// happens once, at the edge.
//
// Valid UTF-8 without NULs passes through without allocation.
func ToLossyUTF8(data []byte) string {
	if utf8.Valid(data) && !containsNUL(data) {
		return string(data)
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); {
		// NUL is valid UTF-8, so it needs its own check before decoding.
		if data[i] == 0 {
			out = append(out, replacement...)
			i++
			continue
		}

		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			out = append(out, replacement...)
			i++
			continue
		}
		out = append(out, data[i:i+size]...)
		i += size
	}

	return string(out)
}

// containsNUL reports whether data contains any 0x00 byte.
func containsNUL(data []byte) bool {
	for _, b := range data {
		if b == 0 {
			return true
		}
	}
	return false
}
