package cache

import "strings"

// Matcher scores how close two raw queries are, in [0, 1].
// The token-overlap default is a heuristic; if false positives on short
// queries become a problem, swap the implementation rather than tuning
// every caller.
type Matcher interface {
	Similarity(a, b string) float64
}

// TokenMatcher computes Jaccard similarity over the whitespace token sets
// of the normalized queries. Symmetric, and reflexive (1.0) for any query
// that doesn't normalize to empty.
type TokenMatcher struct{}

func (TokenMatcher) Similarity(a, b string) float64 {
	ta := tokenSet(Normalize(a))
	tb := tokenSet(Normalize(b))
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	intersection := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection

	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}
