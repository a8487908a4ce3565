// Package textsim provides the string-similarity and text-segmentation
// primitives shared by duplicate detection, entity merging, and
// relationship discovery: a token-and-edit-aware similarity ratio,
// Spanish-aware sentence splitting, and word-boundary substring matching.
//
// No fuzzy-matching library appears anywhere in the retrieved example
// corpus (see DESIGN.md); this package is therefore a small, pure,
// stdlib-only implementation rather than a reach for an unseen dependency.
package textsim

import (
	"sort"
	"strings"
)

// Ratio returns a normalized string similarity in [0,1], matching spec.md
// §4.3 step 2's "token-and-edit-aware metric" and the glossary's
// "similarity (name)" definition. It is the higher of two measures:
//
//   - a character-level edit ratio (1 - Levenshtein distance / max length),
//     which catches single-token near-misses like "SAP" vs. "SAPUI5";
//   - a token-set ratio, which catches word-level subset/superset variants
//     like "Excel" vs. "MS Excel" vs. "Microsoft Excel" — names that share
//     every token of the shorter one but differ by an extra qualifying
//     word score 1.0, since that is exactly the kind of duplicate this
//     metric exists to catch (spec.md §8 Scenario A).
//
// Two empty strings are identical (ratio 1); one empty and one non-empty
// are maximally dissimilar (ratio 0).
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}

	best := editRatio(ra, rb)
	if ts := tokenSetRatio(a, b); ts > best {
		best = ts
	}
	return best
}

// editRatio is the plain character-level edit ratio.
func editRatio(ra, rb []rune) float64 {
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein(ra, rb)
	ratio := 1.0 - float64(dist)/float64(maxLen)
	if ratio < 0 {
		ratio = 0
	}
	return ratio
}

// tokenSetRatio splits both strings into whitespace-delimited tokens, then
// compares the tokens common to both ("the core") against each side's full
// token set. Following the classic token-set-ratio construction: build the
// core string, the core plus the tokens unique to a, and the core plus the
// tokens unique to b, then return the best pairwise edit ratio among the
// three. A name that is a strict word-level subset of another shares a core
// equal to its own full token set, so it scores 1.0 against that side.
func tokenSetRatio(a, b string) float64 {
	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	setA := make(map[string]bool, len(tokensA))
	for _, t := range tokensA {
		setA[t] = true
	}
	setB := make(map[string]bool, len(tokensB))
	for _, t := range tokensB {
		setB[t] = true
	}

	var core, onlyA, onlyB []string
	for _, t := range tokensA {
		if setB[t] {
			core = appendUniqueToken(core, t)
		} else {
			onlyA = appendUniqueToken(onlyA, t)
		}
	}
	for _, t := range tokensB {
		if !setA[t] {
			onlyB = appendUniqueToken(onlyB, t)
		}
	}
	sort.Strings(core)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	coreStr := strings.Join(core, " ")
	full1 := strings.TrimSpace(strings.Join(append(append([]string{}, core...), onlyA...), " "))
	full2 := strings.TrimSpace(strings.Join(append(append([]string{}, core...), onlyB...), " "))

	best := editRatio([]rune(coreStr), []rune(full1))
	if r := editRatio([]rune(coreStr), []rune(full2)); r > best {
		best = r
	}
	if r := editRatio([]rune(full1), []rune(full2)); r > best {
		best = r
	}
	return best
}

func appendUniqueToken(tokens []string, t string) []string {
	for _, existing := range tokens {
		if existing == t {
			return tokens
		}
	}
	return append(tokens, t)
}

// levenshtein computes the edit distance between two rune slices using the
// classic two-row dynamic programming table.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			curr[j] = m
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
