package rules

import "bingoboard/internal/domain"

// BuildProgress folds a team's non-archived submissions into a per-tile flag
// index. Flags are OR-accumulated, so duplicate submissions for the same
// tile cannot flip a flag back off and input order does not matter.
func BuildProgress(subs []domain.Submission, teamID string) map[string]Flags {
	progress := make(map[string]Flags)
	for _, s := range subs {
		if s.TeamID != teamID || s.IsArchived {
			continue
		}
		f := progress[s.TileID]
		f.HasSubmission = true
		f.Complete = f.Complete || s.IsComplete
		f.Verified = f.Verified || s.IsVerified
		f.RequiresAction = f.RequiresAction || s.RequiresAction
		progress[s.TileID] = f
	}
	return progress
}
