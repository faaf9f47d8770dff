package event

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validEventJSON returns valid JSON for a key event with optional overrides.
// A nil override value removes the field.
func validEventJSON(t *testing.T, overrides map[string]interface{}) []byte {
	t.Helper()

	m := map[string]interface{}{
		"v":       "cadence/v1",
		"type":    "key",
		"ts":      int64(1730000000123),
		"session": "test-session-123",
		"rune":    "a",
	}

	for k, v := range overrides {
		if v == nil {
			delete(m, k)
		} else {
			m[k] = v
		}
	}

	data, err := json.Marshal(m)
	require.NoError(t, err)
	return data
}

func TestParse_ValidKey(t *testing.T) {
	data := validEventJSON(t, nil)

	ev, err := Parse(data)
	require.NoError(t, err)
	require.NotNil(t, ev)

	assert.Equal(t, Version, ev.Version)
	assert.Equal(t, TypeKey, ev.Type)
	assert.Equal(t, int64(1730000000123), ev.TS)
	assert.Equal(t, "test-session-123", ev.Session)
	assert.Equal(t, "a", ev.Rune)
	assert.False(t, ev.Composing)
}

func TestParse_AllTypes(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]interface{}
	}{
		{"key", nil},
		{"key composing", map[string]interface{}{"composing": true}},
		{"compose open", map[string]interface{}{"type": "compose", "rune": nil, "open": true}},
		{"compose close", map[string]interface{}{"type": "compose", "rune": nil}},
		{"text", map[string]interface{}{"type": "text", "rune": nil, "text": "draft so far"}},
		{"text empty snapshot", map[string]interface{}{"type": "text", "rune": nil}},
		{"activate", map[string]interface{}{"type": "activate", "rune": nil}},
		{"deactivate", map[string]interface{}{"type": "deactivate", "rune": nil}},
		{"force", map[string]interface{}{"type": "force", "rune": nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := validEventJSON(t, tt.overrides)

			ev, err := Parse(data)
			require.NoError(t, err)
			require.NotNil(t, ev)
			assert.True(t, ValidType(ev.Type))
		})
	}
}

func TestParse_InvalidVersion(t *testing.T) {
	tests := []struct {
		name    string
		version interface{}
	}{
		{"empty", ""},
		{"future version", "cadence/v2"},
		{"bare number", "1"},
		{"wrong scheme", "clai/v1"},
		{"missing", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := validEventJSON(t, map[string]interface{}{
				"v": tt.version,
			})

			ev, err := Parse(data)
			assert.Nil(t, ev)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidVersion))
		})
	}
}

func TestParse_UnknownType(t *testing.T) {
	tests := []string{"keypress", "KEY", "snapshot", "command_end", "ping"}

	for _, typ := range tests {
		t.Run(typ, func(t *testing.T) {
			data := validEventJSON(t, map[string]interface{}{
				"type": typ,
			})

			ev, err := Parse(data)
			assert.Nil(t, ev)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnknownType))
		})
	}
}

func TestParse_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name        string
		fieldToOmit string
		expectedErr error
	}{
		{"missing type", "type", ErrMissingType},
		{"missing session", "session", ErrMissingSession},
		{"missing ts", "ts", ErrMissingTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := validEventJSON(t, map[string]interface{}{
				tt.fieldToOmit: nil,
			})

			ev, err := Parse(data)
			assert.Nil(t, ev)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.expectedErr))
		})
	}
}

func TestParse_BadTimestamps(t *testing.T) {
	tests := []struct {
		name string
		ts   interface{}
	}{
		{"zero", 0},
		{"negative", -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := validEventJSON(t, map[string]interface{}{
				"ts": tt.ts,
			})

			ev, err := Parse(data)
			assert.Nil(t, ev)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMissingTimestamp))
		})
	}
}

func TestParse_KeyRuneValidation(t *testing.T) {
	tests := []struct {
		name        string
		rune        interface{}
		expectedErr error
	}{
		{"missing rune", nil, ErrMissingRune},
		{"empty rune", "", ErrMissingRune},
		{"two ascii chars", "ab", ErrInvalidRune},
		{"word", "hello", ErrInvalidRune},
		{"two cjk chars", "日本", ErrInvalidRune},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := validEventJSON(t, map[string]interface{}{
				"rune": tt.rune,
			})

			ev, err := Parse(data)
			assert.Nil(t, ev)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.expectedErr))
		})
	}

	t.Run("single multi-byte rune is valid", func(t *testing.T) {
		for _, r := range []string{"あ", "字", "é", "🎉"} {
			data := validEventJSON(t, map[string]interface{}{
				"rune": r,
			})

			ev, err := Parse(data)
			require.NoError(t, err, "rune %q", r)
			assert.Equal(t, r, ev.Rune)
		}
	})

	t.Run("rune only required for key events", func(t *testing.T) {
		data := validEventJSON(t, map[string]interface{}{
			"type": "force",
			"rune": nil,
		})

		_, err := Parse(data)
		assert.NoError(t, err)
	})
}

func TestParse_UnknownFieldsIgnored(t *testing.T) {
	data := validEventJSON(t, map[string]interface{}{
		"editor":    "vim",
		"extra_obj": map[string]interface{}{"nested": true},
	})

	ev, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "a", ev.Rune)
}

func TestParse_InvalidJSON(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty input", []byte{}},
		{"nil input", nil},
		{"invalid json", []byte(`{invalid}`)},
		{"incomplete json", []byte(`{"v": "cadence/v1"`)},
		{"just a number", []byte(`123`)},
		{"just a string", []byte(`"hello"`)},
		{"array instead of object", []byte(`[1, 2, 3]`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Parse(tt.data)
			assert.Nil(t, ev)
			assert.Error(t, err)
		})
	}
}

func TestParse_LineTooLong(t *testing.T) {
	data := validEventJSON(t, map[string]interface{}{
		"type": "text",
		"rune": nil,
		"text": strings.Repeat("x", MaxLineBytes+1),
	})

	ev, err := Parse(data)
	assert.Nil(t, ev)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLineTooLong))
}

func TestParse_LargeSnapshotUnderCap(t *testing.T) {
	// A multi-page draft still has to fit on one line.
	big := strings.Repeat("w", 40000)
	data := validEventJSON(t, map[string]interface{}{
		"type": "text",
		"rune": nil,
		"text": big,
	})

	ev, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, big, ev.Text)
}

func TestParseLine(t *testing.T) {
	t.Run("with trailing newline", func(t *testing.T) {
		data := validEventJSON(t, nil)
		data = append(data, '\n')

		ev, err := ParseLine(data)
		require.NoError(t, err)
		require.NotNil(t, ev)
	})

	t.Run("with crlf", func(t *testing.T) {
		data := validEventJSON(t, nil)
		data = append(data, '\r', '\n')

		ev, err := ParseLine(data)
		require.NoError(t, err)
		require.NotNil(t, ev)
	})

	t.Run("without newline", func(t *testing.T) {
		data := validEventJSON(t, nil)

		ev, err := ParseLine(data)
		require.NoError(t, err)
		require.NotNil(t, ev)
	})
}

func TestValidate_NilEvent(t *testing.T) {
	err := Validate(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil")
}

func TestValidate_ConstructedEvents(t *testing.T) {
	events := []*Event{
		NewKeyEvent("s", 'k'),
		NewComposeEvent("s", true),
		NewComposeEvent("s", false),
		NewTextEvent("s", "snapshot"),
		NewTextEvent("s", ""),
		NewActivateEvent("s"),
		NewDeactivateEvent("s"),
		NewForceEvent("s"),
	}

	for _, ev := range events {
		assert.NoError(t, Validate(ev), "type %s", ev.Type)
	}
}

// FuzzParse ensures the decoder never panics on arbitrary input.
// Run with: go test -fuzz=FuzzParse -fuzztime=30s
func FuzzParse(f *testing.F) {
	f.Add([]byte(`{"v":"cadence/v1","type":"key","ts":1730000000123,"session":"s","rune":"a"}`))
	f.Add([]byte(`{"v":"cadence/v1","type":"text","ts":1,"session":"s","text":"draft"}`))
	f.Add([]byte(`{"v":"cadence/v1","type":"force","ts":1,"session":"s"}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`{"v":"cadence/v0"}`))
	f.Add([]byte(`not json`))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		ev, err := Parse(data)

		// A successful parse must yield an internally consistent event.
		if ev != nil && err == nil {
			assert.Equal(t, Version, ev.Version)
			assert.True(t, ValidType(ev.Type))
			assert.Positive(t, ev.TS)
			assert.NotEmpty(t, ev.Session)
		}
	})
}

// FuzzParseLine ensures newline trimming never panics.
func FuzzParseLine(f *testing.F) {
	valid := `{"v":"cadence/v1","type":"key","ts":1730000000123,"session":"s","rune":"a"}`
	f.Add([]byte(valid + "\n"))
	f.Add([]byte(valid + "\r\n"))
	f.Add([]byte(valid))
	f.Add([]byte("\n"))
	f.Add([]byte("\r\n"))

	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = ParseLine(data)
	})
}

func BenchmarkParse(b *testing.B) {
	data := []byte(`{"v":"cadence/v1","type":"key","ts":1730000000123,"session":"bench-session","rune":"a"}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Parse(data)
	}
}

func BenchmarkParseTextSnapshot(b *testing.B) {
	ev := NewTextEvent("bench-session", strings.Repeat("the quick brown fox ", 100))
	data, err := json.Marshal(ev)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Parse(data)
	}
}
