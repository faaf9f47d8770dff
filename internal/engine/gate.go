package engine

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/runger/cadence/internal/textdist"
)

// RejectReason says why the eligibility gate refused a candidate. Rejections
// are policy, not errors: the trigger is silently dropped and the reason only
// feeds diagnostics and metrics.
type RejectReason int

const (
	// RejectNone means the candidate passed every check.
	RejectNone RejectReason = iota
	// RejectTooShort means the candidate is below the minimum length.
	RejectTooShort
	// RejectCooldown means the last accepted trigger is too recent.
	RejectCooldown
	// RejectUnchanged means the candidate is too close to the last sent text.
	RejectUnchanged
	// RejectPlaceholder means the candidate is a known low-value phrase.
	RejectPlaceholder
	// RejectNoSource means no text accessor was wired at Activate time.
	RejectNoSource
	// RejectInactive means the engine was not active.
	RejectInactive
)

// String returns the diagnostic name of the reason.
func (r RejectReason) String() string {
	switch r {
	case RejectNone:
		return "accepted"
	case RejectTooShort:
		return "too_short"
	case RejectCooldown:
		return "cooldown"
	case RejectUnchanged:
		return "unchanged"
	case RejectPlaceholder:
		return "placeholder"
	case RejectNoSource:
		return "no_source"
	case RejectInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// placeholderPhrases is the denylist of low-value texts that never warrant an
// analysis call, compared against the lower-cased, space-trimmed candidate.
// Covers throwaway greetings and keyboard tests in both supported scripts.
var placeholderPhrases = makePhraseSet(
	"hi", "hello", "hey", "test", "testing", "hello world", "asdf",
	"こんにちは", "こんばんは", "おはようございます", "テスト", "てすと",
	"よろしくお願いします", "よろしくおねがいします",
)

func makePhraseSet(phrases ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(phrases))
	for _, p := range phrases {
		m[p] = struct{}{}
	}
	return m
}

// isPlaceholder reports whether the normalized candidate is denylisted.
func isPlaceholder(text string) bool {
	norm := strings.ToLower(strings.TrimSpace(text))
	_, ok := placeholderPhrases[norm]
	return ok
}

// gate evaluates trigger candidates against the engine's send policy. The
// checks run in a fixed order and the first failure is the reported reason;
// each check is independently necessary, so the order only matters for
// diagnostics.
type gate struct {
	cfg Config
}

// evaluate applies the automatic-path checks: minimum length, cooldown since
// the last send, minimum change distance from the last sent text (a never-set
// lastSentAt passes both cooldown and change), and the placeholder denylist.
func (g *gate) evaluate(candidate, lastSent string, lastSentAt, now time.Time) RejectReason {
	if utf8.RuneCountInString(candidate) < g.cfg.MinLength {
		return RejectTooShort
	}
	if !lastSentAt.IsZero() {
		if now.Sub(lastSentAt) < time.Duration(g.cfg.CooldownMs)*time.Millisecond {
			return RejectCooldown
		}
		if textdist.ChangeFraction(candidate, lastSent) < g.cfg.MinChangeFraction {
			return RejectUnchanged
		}
	}
	if isPlaceholder(candidate) {
		return RejectPlaceholder
	}
	return RejectNone
}

// evaluateManual applies the manual-path checks: an explicit request bypasses
// cooldown and change distance but still needs a lower absolute length floor,
// and a placeholder stays a placeholder no matter how it is submitted.
func (g *gate) evaluateManual(candidate string) RejectReason {
	if utf8.RuneCountInString(candidate) < g.cfg.ManualMinLength {
		return RejectTooShort
	}
	if isPlaceholder(candidate) {
		return RejectPlaceholder
	}
	return RejectNone
}
