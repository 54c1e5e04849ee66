package models

import "time"

type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionCompleted SessionStatus = "completed"
	SessionCanceled  SessionStatus = "canceled"
)

// Session is a single scheduled match between two enrollments. Sessions
// are created only by the schedule generator, exactly once per
// tournament. P2EnrollmentID is nil for a bye.
type Session struct {
	ID                 int           `json:"id"`
	TournamentID       int           `json:"tournament_id"`
	Round              int           `json:"round"`
	OrderInRound       int           `json:"order_in_round"`
	GroupLabel         *string       `json:"group_label,omitempty"`
	P1EnrollmentID     *int          `json:"p1_enrollment_id,omitempty"`
	P2EnrollmentID     *int          `json:"p2_enrollment_id,omitempty"`
	Status             SessionStatus `json:"status"`
	Score              *string       `json:"score,omitempty"`
	WinnerEnrollmentID *int          `json:"winner_enrollment_id,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
}
