package models

import "time"

// TournamentStatus mirrors the tournament_status ENUM in the database.
type TournamentStatus string

const (
	StatusDraft                       TournamentStatus = "draft"
	StatusSeekingInstructor           TournamentStatus = "seeking_instructor"
	StatusPendingInstructorAcceptance TournamentStatus = "pending_instructor_acceptance"
	StatusInstructorConfirmed         TournamentStatus = "instructor_confirmed"
	StatusEnrollmentOpen              TournamentStatus = "enrollment_open"
	StatusEnrollmentClosed            TournamentStatus = "enrollment_closed"
	StatusInProgress                  TournamentStatus = "in_progress"
	StatusCompleted                   TournamentStatus = "completed"
	StatusRewardsDistributed          TournamentStatus = "rewards_distributed"
)

// TournamentFormat selects the pairing strategy used for session generation.
type TournamentFormat string

const (
	FormatKnockout      TournamentFormat = "knockout"
	FormatRoundRobin    TournamentFormat = "round_robin"
	FormatGroupKnockout TournamentFormat = "group_knockout"
)

type Tournament struct {
	ID                 int              `json:"id"`
	Name               string           `json:"name"`
	Description        *string          `json:"description,omitempty"`
	OrganizerID        int              `json:"organizer_id"`
	InstructorID       *int             `json:"instructor_id,omitempty"`
	Format             TournamentFormat `json:"format"`
	Status             TournamentStatus `json:"status"`
	MaxPlayers         int              `json:"max_players"`
	EnrollmentCost     int              `json:"enrollment_cost"`
	StartTime          time.Time        `json:"start_time"`
	SessionsGenerated  bool             `json:"sessions_generated"`
	RewardsDistributed bool             `json:"rewards_distributed"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// Terminal reports whether the status admits no further transitions.
func (t *Tournament) Terminal() bool {
	return t.Status == StatusRewardsDistributed
}
