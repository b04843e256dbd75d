package rules

import (
	"sort"

	"bingoboard/internal/domain"
)

// Standing is one scoreboard row.
type Standing struct {
	TeamID         string `json:"team_id"`
	Score          int    `json:"score"`
	TilesCompleted int    `json:"tiles_completed"`
	Rank           int    `json:"rank"`
}

// ComputeStandings aggregates score and completed-tile count per team and
// ranks teams by descending score. The sort is stable, so teams with equal
// scores keep the order of teamIDs.
func ComputeStandings(tiles []domain.Tile, subs []domain.Submission, teamIDs []string, scoreOnVerifiedOnly bool) []Standing {
	standings := make([]Standing, 0, len(teamIDs))
	for _, teamID := range teamIDs {
		progress := BuildProgress(subs, teamID)
		row := Standing{TeamID: teamID}
		for _, tile := range tiles {
			f, ok := progress[tile.ID]
			if !ok {
				continue
			}
			scored := f.Verified
			if !scoreOnVerifiedOnly {
				scored = scored || f.Complete
			}
			if scored {
				row.Score += tile.Points
				row.TilesCompleted++
			}
		}
		standings = append(standings, row)
	}
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Score > standings[j].Score
	})
	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings
}
