package rules

import (
	"testing"

	"bingoboard/internal/domain"
)

func TestComputeStandingsScorePolicy(t *testing.T) {
	tiles := []domain.Tile{
		{ID: "A1", Points: 5},
		{ID: "A2", Points: 10},
	}
	subs := []domain.Submission{
		sub("A1", "team01", true, true, false, false),
		sub("A2", "team01", true, false, false, false),
	}

	lenient := ComputeStandings(tiles, subs, []string{"team01"}, false)
	if lenient[0].Score != 15 || lenient[0].TilesCompleted != 2 {
		t.Fatalf("lenient: got score=%d completed=%d, want 15/2", lenient[0].Score, lenient[0].TilesCompleted)
	}

	strict := ComputeStandings(tiles, subs, []string{"team01"}, true)
	if strict[0].Score != 5 || strict[0].TilesCompleted != 1 {
		t.Fatalf("strict: got score=%d completed=%d, want 5/1", strict[0].Score, strict[0].TilesCompleted)
	}
}

func TestComputeStandingsRanking(t *testing.T) {
	tiles := []domain.Tile{
		{ID: "T10", Points: 10},
		{ID: "T20", Points: 20},
		{ID: "T30", Points: 30},
	}
	subs := []domain.Submission{
		sub("T10", "alpha", true, false, false, false),
		sub("T30", "bravo", true, false, false, false),
		sub("T20", "charlie", true, false, false, false),
	}
	standings := ComputeStandings(tiles, subs, []string{"alpha", "bravo", "charlie"}, false)
	wantOrder := []string{"bravo", "charlie", "alpha"}
	wantScores := []int{30, 20, 10}
	for i, row := range standings {
		if row.TeamID != wantOrder[i] || row.Score != wantScores[i] || row.Rank != i+1 {
			t.Fatalf("row %d: got %+v, want team=%s score=%d rank=%d", i, row, wantOrder[i], wantScores[i], i+1)
		}
	}
}

func TestComputeStandingsStableTies(t *testing.T) {
	tiles := []domain.Tile{{ID: "T1", Points: 5}}
	subs := []domain.Submission{
		sub("T1", "alpha", true, false, false, false),
		sub("T1", "bravo", true, false, false, false),
	}
	standings := ComputeStandings(tiles, subs, []string{"alpha", "bravo"}, false)
	if standings[0].TeamID != "alpha" || standings[1].TeamID != "bravo" {
		t.Fatalf("tied teams must keep encounter order: %+v", standings)
	}
}

func TestComputeStandingsArchivedExcluded(t *testing.T) {
	tiles := []domain.Tile{{ID: "T1", Points: 5}}
	subs := []domain.Submission{
		sub("T1", "alpha", true, true, false, true),
	}
	standings := ComputeStandings(tiles, subs, []string{"alpha"}, false)
	if standings[0].Score != 0 || standings[0].TilesCompleted != 0 {
		t.Fatalf("archived submissions must not score: %+v", standings[0])
	}
}

func TestComputeStandingsUnknownTeamZero(t *testing.T) {
	standings := ComputeStandings(nil, nil, []string{"ghost"}, false)
	if len(standings) != 1 || standings[0].Score != 0 || standings[0].Rank != 1 {
		t.Fatalf("unknown team should contribute a zero row: %+v", standings)
	}
}
