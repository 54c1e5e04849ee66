package events

import "time"

// Event types broadcast to tournament rooms.
const (
	TypeEnrollmentCreated   = "ENROLLMENT_CREATED"
	TypeEnrollmentWithdrawn = "ENROLLMENT_WITHDRAWN"
	TypeEnrollmentRejected  = "ENROLLMENT_REJECTED"
	TypeCheckInRecorded     = "CHECK_IN_RECORDED"
	TypeStatusTransitioned  = "STATUS_TRANSITIONED"
	TypeSessionsGenerated   = "SESSIONS_GENERATED"
	TypeSessionCompleted    = "SESSION_COMPLETED"
	TypeRewardsDistributed  = "REWARDS_DISTRIBUTED"
)

// Event is a domain notification. Events are emitted after the
// transaction that produced them commits, fire-and-forget: delivery
// failures never affect core state.
type Event struct {
	Type         string      `json:"type"`
	TournamentID int         `json:"tournament_id"`
	Payload      interface{} `json:"payload,omitempty"`
	At           time.Time   `json:"at"`
}

// Publisher is what the services see. The websocket Hub implements it;
// tests substitute a recorder.
type Publisher interface {
	Publish(tournamentID int, eventType string, payload interface{})
}
