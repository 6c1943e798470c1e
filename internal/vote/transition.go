// Package vote implements the per-(user, post) vote state machine and the
// optimistic overlays a live session shows while a vote is being committed.
package vote

import "campuswhisper/backend/internal/models"

// Transition returns the state after applying action to current and the karma
// delta the move contributes to the post.
//
//	NONE + up   -> UP   +1     UP + up     -> NONE -1
//	NONE + down -> DOWN -1     UP + down   -> DOWN -2
//	DOWN + down -> NONE +1     DOWN + up   -> UP   +2
//
// An action other than up/down leaves the state unchanged.
func Transition(current, action models.VoteDirection) (models.VoteDirection, int) {
	switch action {
	case models.VoteUp:
		switch current {
		case models.VoteUp:
			return models.VoteNone, -1
		case models.VoteDown:
			return models.VoteUp, 2
		default:
			return models.VoteUp, 1
		}
	case models.VoteDown:
		switch current {
		case models.VoteDown:
			return models.VoteNone, 1
		case models.VoteUp:
			return models.VoteDown, -2
		default:
			return models.VoteDown, -1
		}
	}
	return current, 0
}
