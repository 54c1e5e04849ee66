package models

import "time"

// EnrollmentStatus is the request_status ENUM of an enrollment.
// Approved enrollments may be seeded into sessions; withdrawn and
// rejected are terminal.
type EnrollmentStatus string

const (
	EnrollmentApproved  EnrollmentStatus = "approved"
	EnrollmentWithdrawn EnrollmentStatus = "withdrawn"
	EnrollmentRejected  EnrollmentStatus = "rejected"
)

type Enrollment struct {
	ID            int              `json:"id"`
	TournamentID  int              `json:"tournament_id"`
	UserID        int              `json:"user_id"`
	IsActive      bool             `json:"is_active"`
	RequestStatus EnrollmentStatus `json:"request_status"`
	CheckedInAt   *time.Time       `json:"checked_in_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`

	User *User `json:"user,omitempty"`
}

// Seedable reports whether the enrollment may enter a seeding pool.
func (e *Enrollment) Seedable() bool {
	return e.IsActive && e.RequestStatus == EnrollmentApproved
}
