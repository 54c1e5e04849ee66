package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academyhq/tournament-core/models"
)

func validCreateInput() CreateTournamentInput {
	return CreateTournamentInput{
		Name:           "Autumn Cup",
		Format:         models.FormatKnockout,
		MaxPlayers:     8,
		EnrollmentCost: 100,
		StartTime:      time.Now().Add(24 * time.Hour),
	}
}

func TestCreateTournamentWritesInitialAuditRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	organizerID := env.addUser(t, models.RoleAdmin, 0)
	created, err := env.tournaments.CreateTournament(ctx, organizerID, validCreateInput())
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, created.Status)

	// A tournament has audit history from the moment it exists.
	history, err := env.tournaments.GetTournamentDetail(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, history.History, 1)
	row := history.History[0]
	assert.Equal(t, models.StatusDraft, row.OldStatus)
	assert.Equal(t, models.StatusDraft, row.NewStatus)
	assert.Equal(t, "tournament created", row.Reason)
	require.NotNil(t, row.ActorID)
	assert.Equal(t, organizerID, *row.ActorID)
}

func TestCreateTournamentValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	organizerID := env.addUser(t, models.RoleAdmin, 0)

	cases := []struct {
		name   string
		mutate func(*CreateTournamentInput)
		want   error
	}{
		{"blank name", func(in *CreateTournamentInput) { in.Name = "  " }, ErrTournamentNameRequired},
		{"zero capacity", func(in *CreateTournamentInput) { in.MaxPlayers = 0 }, ErrTournamentInvalidCapacity},
		{"negative cost", func(in *CreateTournamentInput) { in.EnrollmentCost = -1 }, ErrTournamentInvalidCost},
		{"unknown format", func(in *CreateTournamentInput) { in.Format = "swiss" }, ErrTournamentInvalidFormat},
		{"missing start", func(in *CreateTournamentInput) { in.StartTime = time.Time{} }, ErrTournamentStartTimeMissing},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validCreateInput()
			tc.mutate(&input)
			_, err := env.tournaments.CreateTournament(ctx, organizerID, input)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestGetTournamentDetailAggregates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tournamentID, enrollmentIDs := seedInProgressTournament(t, env, models.FormatKnockout, 4)
	_, err := env.schedule.GenerateSessions(ctx, tournamentID)
	require.NoError(t, err)

	detail, err := env.tournaments.GetTournamentDetail(ctx, tournamentID)
	require.NoError(t, err)
	require.NotNil(t, detail.Tournament)
	assert.Equal(t, tournamentID, detail.Tournament.ID)
	assert.Len(t, detail.Enrollments, len(enrollmentIDs))
	assert.Len(t, detail.Sessions, 3)
	assert.Empty(t, detail.Standings)
}

func TestGetTournamentDetailNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.tournaments.GetTournamentDetail(context.Background(), 404)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}
