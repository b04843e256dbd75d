package rules

import (
	"reflect"
	"testing"

	"bingoboard/internal/domain"
)

func sub(tile, team string, complete, verified, action, archived bool) domain.Submission {
	return domain.Submission{
		ID:             tile + "-" + team,
		TileID:         tile,
		TeamID:         team,
		IsComplete:     complete,
		IsVerified:     verified,
		RequiresAction: action,
		IsArchived:     archived,
	}
}

func TestBuildProgressFiltersTeamAndArchived(t *testing.T) {
	subs := []domain.Submission{
		sub("A1", "team01", true, false, false, false),
		sub("A2", "team02", true, true, false, false),
		sub("A3", "team01", true, true, false, true),
	}
	progress := BuildProgress(subs, "team01")
	if len(progress) != 1 {
		t.Fatalf("expected 1 entry, got %d: %v", len(progress), progress)
	}
	if f := progress["A1"]; !f.HasSubmission || !f.Complete || f.Verified {
		t.Fatalf("unexpected flags for A1: %+v", f)
	}
	if _, ok := progress["A3"]; ok {
		t.Fatalf("archived submission must not appear in the index")
	}
}

func TestBuildProgressORAccumulates(t *testing.T) {
	subs := []domain.Submission{
		sub("A1", "team01", false, false, true, false),
		sub("A1", "team01", true, true, false, false),
	}
	progress := BuildProgress(subs, "team01")
	f := progress["A1"]
	if !f.HasSubmission || !f.Complete || !f.Verified || !f.RequiresAction {
		t.Fatalf("flags should OR-accumulate across duplicates: %+v", f)
	}
}

func TestBuildProgressOrderIndependent(t *testing.T) {
	subs := []domain.Submission{
		sub("A1", "team01", true, false, false, false),
		sub("A2", "team01", false, true, false, false),
		sub("A1", "team01", false, false, true, false),
	}
	reversed := []domain.Submission{subs[2], subs[1], subs[0]}
	if !reflect.DeepEqual(BuildProgress(subs, "team01"), BuildProgress(reversed, "team01")) {
		t.Fatalf("progress index should not depend on input order")
	}
}

func TestBuildProgressIdempotent(t *testing.T) {
	subs := []domain.Submission{
		sub("A1", "team01", true, false, false, false),
		sub("A2", "team01", false, false, true, false),
	}
	first := BuildProgress(subs, "team01")
	second := BuildProgress(subs, "team01")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated builds over the same input must be identical")
	}
}
