package models

import "time"

// StatusTransition is an audit row appended for every tournament status
// change. One row per transition, no gaps.
type StatusTransition struct {
	ID           int              `json:"id"`
	TournamentID int              `json:"tournament_id"`
	OldStatus    TournamentStatus `json:"old_status"`
	NewStatus    TournamentStatus `json:"new_status"`
	Reason       string           `json:"reason"`
	ActorID      *int             `json:"actor_id,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}
