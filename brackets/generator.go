package brackets

import (
	"context"

	"github.com/academyhq/tournament-core/models"
)

// Pairing is one generated session slot. P2EnrollmentID nil with P1 set
// marks a bye; both nil marks a later-round slot whose participants are
// decided by earlier results.
type Pairing struct {
	Round          int
	OrderInRound   int
	GroupLabel     *string
	P1EnrollmentID *int
	P2EnrollmentID *int
}

type GenerateParams struct {
	Tournament *models.Tournament
	// Pool is the seeding pool, already selected and ordered by the
	// caller. Generators never filter it further.
	Pool []*models.Enrollment
}

type Generator interface {
	Generate(ctx context.Context, params GenerateParams) ([]*Pairing, error)
	Name() string
}

// ForFormat returns the generator matching the tournament format.
func ForFormat(format models.TournamentFormat) (Generator, bool) {
	switch format {
	case models.FormatKnockout:
		return NewKnockoutGenerator(), true
	case models.FormatRoundRobin:
		return NewRoundRobinGenerator(), true
	case models.FormatGroupKnockout:
		return NewGroupKnockoutGenerator(), true
	}
	return nil, false
}
