package cache

import "strings"

// fillerReplacements are applied in this order as whole-phrase substring
// replacements over the lowercased, space-collapsed query.
var fillerReplacements = [...]struct{ old, new string }{
	{"show me", "show"},
	{"can you", ""},
	{"please", ""},
	{"could you", ""},
	{"i want to", ""},
	{"i need to", ""},
	{"help me", ""},
}

// Normalize canonicalizes a raw query for key hashing and similarity
// comparison: lowercase, runs of whitespace collapsed to single spaces,
// filler phrases stripped. Total and idempotent:
// Normalize(Normalize(q)) == Normalize(q).
func Normalize(raw string) string {
	q := strings.ToLower(raw)
	q = strings.Join(strings.Fields(q), " ")

	// Replacements can expose new filler phrases ("show me me" collapses to
	// "show me" after one pass), so run to a fixpoint. Every replacement
	// strictly shrinks the string, so this terminates.
	for {
		next := q
		for _, r := range fillerReplacements {
			next = strings.ReplaceAll(next, r.old, r.new)
		}
		next = strings.Join(strings.Fields(next), " ")
		if next == q {
			return q
		}
		q = next
	}
}
