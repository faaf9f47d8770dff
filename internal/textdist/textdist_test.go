package textdist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshtein(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1},        // substitution
		{"abc", "abcd", 1},       // insertion
		{"abcd", "abc", 1},       // deletion
		{"kitten", "sitting", 3}, // classic example
		{"draft one", "draft two", 3},
		{"日本語のテキスト", "日本語のテスト", 1}, // one rune removed, not bytes
	}

	for _, tc := range tests {
		got := Levenshtein(tc.a, tc.b)
		assert.Equal(t, tc.want, got, "Levenshtein(%q, %q)", tc.a, tc.b)
	}
}

func TestChangeFraction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		candidate string
		previous  string
		want      float64
	}{
		{"identical", "same text", "same text", 0.0},
		{"empty previous is fully changed", "anything", "", 1.0},
		{"both empty", "", "", 1.0},
		{"completely different same length", "aaaa", "bbbb", 1.0},
		{"half changed", "aabb", "aacc", 0.5},
		{"one edit in ten", "abcdefghij", "abcdefghix", 0.1},
		{"candidate emptied", "", "previous draft", 1.0},
	}

	for _, tc := range tests {
		got := ChangeFraction(tc.candidate, tc.previous)
		assert.InDelta(t, tc.want, got, 1e-9, "%s: ChangeFraction(%q, %q)", tc.name, tc.candidate, tc.previous)
	}
}

func TestChangeFraction_Bounds(t *testing.T) {
	t.Parallel()

	pairs := []struct{ a, b string }{
		{"short", "a much longer previous text"},
		{"a much longer candidate text", "short"},
		{"overlap here", "overlap there"},
		{"", "x"},
		{"x", ""},
	}

	for _, p := range pairs {
		got := ChangeFraction(p.a, p.b)
		assert.GreaterOrEqual(t, got, 0.0, "ChangeFraction(%q, %q)", p.a, p.b)
		assert.LessOrEqual(t, got, 1.0, "ChangeFraction(%q, %q)", p.a, p.b)
	}
}

func TestChangeFraction_SelfIsZero(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"x", "hello world", "日本語テキスト", "line\nbreaks\tand tabs"} {
		assert.Zero(t, ChangeFraction(s, s), "ChangeFraction(%q, %q)", s, s)
	}
}

func TestChangeFraction_RuneNormalization(t *testing.T) {
	t.Parallel()

	// Multi-byte runes must normalize by rune count. Six CJK runes with one
	// substituted is 1/6, not a byte ratio.
	got := ChangeFraction("日本語です。", "日本語です！")
	assert.InDelta(t, 1.0/6.0, got, 1e-9)
}
