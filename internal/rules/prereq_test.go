package rules

import (
	"reflect"
	"testing"
)

func TestParsePrereqEmpty(t *testing.T) {
	for _, raw := range []string{"", "   ", "\t\n"} {
		if got := ParsePrereq(raw); len(got) != 0 {
			t.Fatalf("ParsePrereq(%q) = %v, want empty", raw, got)
		}
	}
}

func TestParsePrereqCommaList(t *testing.T) {
	got := ParsePrereq(" A1, A2 ,,A3 ")
	want := OrGroups{{"A1", "A2", "A3"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParsePrereqJSONGroups(t *testing.T) {
	got := ParsePrereq(`[["A1","A2"],["B1"]]`)
	want := OrGroups{{"A1", "A2"}, {"B1"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParsePrereqEquivalence(t *testing.T) {
	comma := ParsePrereq("A1,A2")
	jsonForm := ParsePrereq(`[["A1","A2"]]`)
	if !reflect.DeepEqual(comma, jsonForm) {
		t.Fatalf("comma form %v differs from json form %v", comma, jsonForm)
	}
}

func TestParsePrereqMalformedJSONFallsBackToCommaSplit(t *testing.T) {
	// Broken JSON must not silently produce an always-unlocked expression.
	got := ParsePrereq(`["A1","A2"`)
	if len(got) != 1 {
		t.Fatalf("expected single best-effort group, got %v", got)
	}
	// The split happens on the raw text, bracket noise included.
	if len(got[0]) != 2 {
		t.Fatalf("expected two ids, got %v", got[0])
	}
}

func TestParsePrereqFlatJSONArrayFallsBack(t *testing.T) {
	// A JSON array whose first element is not an array has the wrong shape.
	got := ParsePrereq(`["A1","A2"]`)
	if len(got) != 1 || len(got[0]) != 2 {
		t.Fatalf("expected single comma-split group, got %v", got)
	}
}

func TestParsePrereqEmptyJSONArray(t *testing.T) {
	got := ParsePrereq("[]")
	if !got.Satisfied(nil, true) {
		t.Fatalf("empty JSON array should be vacuously satisfied")
	}
}

func TestSatisfiedVacuous(t *testing.T) {
	progress := map[string]Flags{"X": {}}
	for _, strict := range []bool{false, true} {
		if !OrGroups(nil).Satisfied(progress, strict) {
			t.Fatalf("nil groups should be satisfied (strict=%v)", strict)
		}
		if !(OrGroups{{}}).Satisfied(progress, strict) {
			t.Fatalf("empty AND group should be satisfied (strict=%v)", strict)
		}
	}
}

func TestSatisfiedOrSemantics(t *testing.T) {
	groups := OrGroups{{"A", "B"}, {"C"}}
	cases := []struct {
		name    string
		a, b, c bool
		want    bool
	}{
		{"none", false, false, false, false},
		{"a only", true, false, false, false},
		{"a and b", true, true, false, true},
		{"c only", false, false, true, true},
	}
	for _, tc := range cases {
		progress := map[string]Flags{
			"A": {Complete: tc.a},
			"B": {Complete: tc.b},
			"C": {Complete: tc.c},
		}
		if got := groups.Satisfied(progress, false); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSatisfiedStrictness(t *testing.T) {
	groups := OrGroups{{"A1"}}
	progress := map[string]Flags{"A1": {Complete: true, Verified: false}}
	if !groups.Satisfied(progress, false) {
		t.Fatalf("complete tile should satisfy lenient check")
	}
	if groups.Satisfied(progress, true) {
		t.Fatalf("unverified tile must not satisfy strict check")
	}
}

func TestSatisfiedMissingIDUnsatisfied(t *testing.T) {
	groups := OrGroups{{"GHOST"}}
	if groups.Satisfied(map[string]Flags{}, false) {
		t.Fatalf("unknown id should never satisfy a requirement")
	}
}
