// Package textdist measures how much a candidate text differs from the text
// most recently forwarded to the analysis consumer. The eligibility gate uses
// the normalized fraction to suppress re-triggers on near-identical drafts.
package textdist

// Levenshtein computes the edit distance between two strings: the minimum
// number of single-character insertions, deletions, or substitutions (unit
// cost each) required to change one into the other. Distances are computed
// over runes so multi-byte scripts count one edit per character.
func Levenshtein(a, b string) int {
	if len(a) == 0 {
		return len([]rune(b))
	}
	if len(b) == 0 {
		return len([]rune(a))
	}

	runesA := []rune(a)
	runesB := []rune(b)

	// Two-row optimization keeps memory linear in the shorter operand.
	prev := make([]int, len(runesB)+1)
	curr := make([]int, len(runesB)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(runesA); i++ {
		curr[0] = i

		for j := 1; j <= len(runesB); j++ {
			cost := 0
			if runesA[i-1] != runesB[j-1] {
				cost = 1
			}

			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}

		prev, curr = curr, prev
	}

	return prev[len(runesB)]
}

// ChangeFraction returns the normalized change distance between a candidate
// text and the previously sent text: Levenshtein distance divided by the
// length of the longer string, in [0, 1]. An empty previous text returns 1.0
// ("fully changed"), which doubles as the never-sent-before base case.
// Pure and stateless.
func ChangeFraction(candidate, previous string) float64 {
	if previous == "" {
		return 1.0
	}
	if candidate == previous {
		return 0.0
	}

	maxLen := max(len([]rune(candidate)), len([]rune(previous)))
	if maxLen == 0 {
		return 0.0
	}

	return float64(Levenshtein(candidate, previous)) / float64(maxLen)
}
