package model

import "testing"

func TestMoodDirective_AllMoods(t *testing.T) {
	seen := map[string]Mood{}
	for _, m := range AllMoods {
		d := m.Directive()
		if d == "" {
			t.Errorf("mood %q has empty directive", m)
		}
		if prev, dup := seen[d]; dup {
			t.Errorf("moods %q and %q share a directive", prev, m)
		}
		seen[d] = m
	}
	if err := checkMoodDirectives(); err != nil {
		t.Fatalf("checkMoodDirectives: %v", err)
	}
}

func TestMoodDirective_UnknownFallsBackToNeutral(t *testing.T) {
	if got := Mood("ecstatic").Directive(); got != MoodNeutral.Directive() {
		t.Errorf("unknown mood directive = %q, want neutral", got)
	}
}

func TestParseMood(t *testing.T) {
	tests := map[string]Mood{
		"frustrated":  MoodFrustrated,
		" Impatient ": MoodImpatient,
		"HAPPY":       MoodHappy,
		"":            MoodNeutral,
		"angry":       MoodNeutral,
	}
	for in, want := range tests {
		if got := ParseMood(in); got != want {
			t.Errorf("ParseMood(%q) = %q, want %q", in, got, want)
		}
	}
}
