package cache

import "testing"

func TestNormalizeCaseAndWhitespace(t *testing.T) {
	got := Normalize("  Show ME the Report  ")
	want := Normalize("show the report")
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if got != "show the report" {
		t.Fatalf("expected 'show the report', got %q", got)
	}
}

func TestNormalizeFillerPhrases(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"show me the report", "show the report"},
		{"can you list my projects", "list my projects"},
		{"please show attrition", "show attrition"},
		{"could you summarize surveys", "summarize surveys"},
		{"i want to see my team", "see my team"},
		{"i need to check courses", "check courses"},
		{"help me with action items", "with action items"},
		{"CAN YOU PLEASE show me risk", "show risk"},
	}

	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"  Show ME the Report  ",
		"can you please help me",
		"show me me", // one pass exposes a second filler phrase
		"",
		"plain query with no fillers",
	}

	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestNormalizeEmpty(t *testing.T) {
	if got := Normalize("   "); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
	if got := Normalize("please"); got != "" {
		t.Fatalf("expected pure filler to normalize to empty, got %q", got)
	}
}
