package rules

import (
	"testing"

	"bingoboard/internal/domain"
)

func TestEvaluatePriorityOrder(t *testing.T) {
	// A verified tile shows verified even when its prerequisites would
	// still evaluate to locked.
	tile := domain.Tile{ID: "B1", PrereqsRaw: "NEVER_DONE"}
	progress := map[string]Flags{
		"B1": {HasSubmission: true, Complete: true, Verified: true},
	}
	if got := Evaluate(tile, progress, Policy{}); got != StatusVerified {
		t.Fatalf("got %s, want %s", got, StatusVerified)
	}
}

func TestEvaluateStates(t *testing.T) {
	tile := domain.Tile{ID: "B1"}
	cases := []struct {
		name  string
		flags Flags
		want  Status
	}{
		{"verified", Flags{HasSubmission: true, Complete: true, Verified: true}, StatusVerified},
		{"verified wins over flag", Flags{Verified: true, RequiresAction: true}, StatusVerified},
		{"requires action", Flags{HasSubmission: true, Complete: true, RequiresAction: true}, StatusRequiresAction},
		{"submitted", Flags{HasSubmission: true, Complete: true}, StatusSubmitted},
		{"draft", Flags{HasSubmission: true}, StatusPartial},
		{"no submission", Flags{}, StatusUnlocked},
	}
	for _, tc := range cases {
		progress := map[string]Flags{"B1": tc.flags}
		if got := Evaluate(tile, progress, Policy{}); got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestEvaluateUnlockPolicy(t *testing.T) {
	tile := domain.Tile{ID: "B1", PrereqsRaw: "A1"}
	progress := map[string]Flags{
		"A1": {HasSubmission: true, Complete: true, Verified: false},
	}
	if got := Evaluate(tile, progress, Policy{UnlockOnVerifiedOnly: false}); got != StatusUnlocked {
		t.Fatalf("lenient policy: got %s, want %s", got, StatusUnlocked)
	}
	if got := Evaluate(tile, progress, Policy{UnlockOnVerifiedOnly: true}); got != StatusLocked {
		t.Fatalf("strict policy: got %s, want %s", got, StatusLocked)
	}
}

func TestEvaluateNoPrereqsUnlocked(t *testing.T) {
	tile := domain.Tile{ID: "B1"}
	if got := Evaluate(tile, map[string]Flags{}, Policy{UnlockOnVerifiedOnly: true}); got != StatusUnlocked {
		t.Fatalf("got %s, want %s", got, StatusUnlocked)
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	tile := domain.Tile{ID: "B1", PrereqsRaw: "A1,A2"}
	progress := map[string]Flags{"A1": {Complete: true}}
	first := Evaluate(tile, progress, Policy{})
	second := Evaluate(tile, progress, Policy{})
	if first != second {
		t.Fatalf("evaluation is not deterministic: %s vs %s", first, second)
	}
}
