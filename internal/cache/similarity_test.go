package cache

import (
	"math"
	"testing"
)

func TestSimilarityReflexive(t *testing.T) {
	m := TokenMatcher{}

	queries := []string{
		"show team risk",
		"list all projects",
		"Show ME the attrition report",
	}
	for _, q := range queries {
		if got := m.Similarity(q, q); got != 1.0 {
			t.Errorf("Similarity(%q, %q) = %v, want 1.0", q, q, got)
		}
	}
}

func TestSimilarityEmpty(t *testing.T) {
	m := TokenMatcher{}

	if got := m.Similarity("show team risk", ""); got != 0.0 {
		t.Fatalf("similarity against empty = %v, want 0.0", got)
	}
	if got := m.Similarity("", ""); got != 0.0 {
		t.Fatalf("similarity of two empties = %v, want 0.0", got)
	}
	// pure filler normalizes to empty, so it must score 0 against itself
	if got := m.Similarity("please", "please"); got != 0.0 {
		t.Fatalf("similarity of normalized-empty = %v, want 0.0", got)
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	m := TokenMatcher{}

	pairs := [][2]string{
		{"show team risk", "display team risk"},
		{"list my projects", "show my projects"},
		{"attrition report", "risk report for attrition"},
	}
	for _, p := range pairs {
		ab := m.Similarity(p[0], p[1])
		ba := m.Similarity(p[1], p[0])
		if ab != ba {
			t.Errorf("Similarity(%q, %q) = %v but reversed = %v", p[0], p[1], ab, ba)
		}
	}
}

func TestSimilarityJaccard(t *testing.T) {
	m := TokenMatcher{}

	// tokens {show, team, risk} vs {display, team, risk}:
	// intersection 2, union 4
	got := m.Similarity("show team risk", "display team risk")
	if math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected 0.5, got %v", got)
	}

	// disjoint token sets
	if got := m.Similarity("alpha beta", "gamma delta"); got != 0.0 {
		t.Fatalf("expected 0.0 for disjoint sets, got %v", got)
	}
}

func TestSimilarityNormalizesFirst(t *testing.T) {
	m := TokenMatcher{}

	// filler phrases must not count as distinguishing tokens
	if got := m.Similarity("show my risk level", "can you show my risk level please"); got != 1.0 {
		t.Fatalf("expected 1.0 after normalization, got %v", got)
	}
}
