package rules

import "bingoboard/internal/domain"

// Status is a tile's display status for one team.
type Status string

const (
	// StatusHidden is never produced by Evaluate; callers impose it when a
	// private board is viewed by someone outside the requested team.
	StatusHidden         Status = "hidden"
	StatusVerified       Status = "verified"
	StatusRequiresAction Status = "requires_action"
	StatusSubmitted      Status = "submitted"
	StatusPartial        Status = "partial"
	StatusUnlocked       Status = "unlocked"
	StatusLocked         Status = "locked"
)

// Policy holds the two board-level scoring knobs. Both default to false,
// meaning complete-or-verified counts everywhere.
type Policy struct {
	UnlockOnVerifiedOnly bool `json:"unlock_on_verified_only"`
	ScoreOnVerifiedOnly  bool `json:"score_on_verified_only"`
}

// Evaluate computes a tile's status for one team. Submission-derived states
// win over prerequisite-derived ones: a team that already interacted with a
// tile sees its real status even if the prerequisites would still gate it.
func Evaluate(tile domain.Tile, progress map[string]Flags, policy Policy) Status {
	state := progress[tile.ID]
	switch {
	case state.Verified:
		return StatusVerified
	case state.RequiresAction:
		return StatusRequiresAction
	case state.Complete:
		return StatusSubmitted
	case state.HasSubmission:
		return StatusPartial
	}
	if ParsePrereq(tile.PrereqsRaw).Satisfied(progress, policy.UnlockOnVerifiedOnly) {
		return StatusUnlocked
	}
	return StatusLocked
}
