package services

import "errors"

// Sentinel errors shared across services and the HTTP error mapping.
var (
	// Not found
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUserNotFound       = errors.New("user not found")

	ErrDistributionNotFound = errors.New("reward distribution not found")

	// Validation
	ErrValidationFailed           = errors.New("validation failed")
	ErrTournamentNameRequired     = errors.New("tournament name is required")
	ErrTournamentInvalidCapacity  = errors.New("tournament max players must be positive")
	ErrTournamentInvalidCost      = errors.New("tournament enrollment cost must not be negative")
	ErrTournamentInvalidFormat    = errors.New("invalid tournament format")
	ErrTournamentStartTimeMissing = errors.New("tournament start time is required")
	ErrPasswordTooShort           = errors.New("password is too short")

	// State conflicts
	ErrTournamentNotOpen      = errors.New("tournament enrollment is not open")
	ErrInvalidTransition      = errors.New("invalid tournament status transition")
	ErrDuplicateEnrollment    = errors.New("user already enrolled in this tournament")
	ErrCapacityExceeded       = errors.New("tournament enrollment is full")
	ErrAlreadyDistributed     = errors.New("rewards already distributed for this tournament")
	ErrTournamentNotCompleted = errors.New("tournament is not completed")
	ErrNoFinalStandings       = errors.New("tournament has no final standings")
	ErrTournamentNotStarted   = errors.New("tournament is not in progress")
	ErrSessionNotScheduled    = errors.New("session is not in a scheduled state")
	ErrInvalidResult          = errors.New("winner is not a participant of this session")
	ErrNotEnrolled            = errors.New("user has no active approved enrollment for this tournament")
	ErrCheckInTooEarly        = errors.New("check-in window has not opened yet")
	ErrCheckInTooLate         = errors.New("check-in window has closed")
	ErrNoInstructorAssigned   = errors.New("tournament has no pending instructor assignment")

	// Resource exhaustion
	ErrInsufficientCredits = errors.New("insufficient credits")

	// Auth / permissions
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserEmailConflict  = errors.New("email address is already in use")
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")

	// Transient storage failure after internal retry.
	ErrServiceUnavailable = errors.New("service temporarily unavailable, try again")
)
