package models

import "time"

// RewardDistribution records that rewards for a tournament were paid
// out. Its existence implies the payout happened exactly once.
type RewardDistribution struct {
	ID            int       `json:"id"`
	Reference     string    `json:"reference"`
	TournamentID  int       `json:"tournament_id"`
	TotalPot      int       `json:"total_pot"`
	TotalAwarded  int       `json:"total_awarded"`
	Recipients    int       `json:"recipients"`
	DistributedAt time.Time `json:"distributed_at"`
}

// Standing is a final placement of an enrollment within a tournament.
type Standing struct {
	ID           int       `json:"id"`
	TournamentID int       `json:"tournament_id"`
	EnrollmentID int       `json:"enrollment_id"`
	Place        int       `json:"place"`
	Wins         int       `json:"wins"`
	CreatedAt    time.Time `json:"created_at"`
}
