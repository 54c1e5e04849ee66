package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/academyhq/tournament-core/models"
	"github.com/academyhq/tournament-core/rewards"
)

type testEnv struct {
	store *memStore
	rec   *eventRecorder

	tournaments TournamentService
	lifecycle   LifecycleService
	enrollments EnrollmentService
	schedule    ScheduleService
	rewards     RewardService
	credits     CreditService
	auth        AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newMemStore()
	rec := &eventRecorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	enrollmentRepo := memEnrollmentRepo{s: store}
	creditRepo := memCreditRepo{s: store}
	sessionRepo := memSessionRepo{s: store}
	standingRepo := memStandingRepo{s: store}
	transitionRepo := memTransitionRepo{s: store}
	rewardRepo := memRewardRepo{s: store}
	userRepo := memUserRepo{s: store}

	return &testEnv{
		store:       store,
		rec:         rec,
		tournaments: NewTournamentService(store, store, enrollmentRepo, sessionRepo, standingRepo, transitionRepo, logger),
		lifecycle:   NewLifecycleService(store, store, transitionRepo, enrollmentRepo, sessionRepo, standingRepo, userRepo, rec, logger),
		enrollments: NewEnrollmentService(store, store, enrollmentRepo, creditRepo, sessionRepo, rec, logger),
		schedule:    NewScheduleService(store, store, enrollmentRepo, sessionRepo, standingRepo, rec, logger),
		rewards:     NewRewardService(store, store, enrollmentRepo, standingRepo, creditRepo, rewardRepo, transitionRepo, rewards.Default(), nil, rec, logger),
		credits:     NewCreditService(store, creditRepo, logger),
		auth:        NewAuthService(store, userRepo, creditRepo, 1000, logger),
	}
}

// setNow pins the enrollment service clock for check-in window tests.
func (env *testEnv) setNow(t *testing.T, now time.Time) {
	t.Helper()
	svc, ok := env.enrollments.(*enrollmentService)
	require.True(t, ok)
	svc.now = func() time.Time { return now }
}

func (env *testEnv) addUser(t *testing.T, role models.UserRole, balance int) int {
	t.Helper()
	id := env.store.newID()
	env.store.users[id] = &models.User{ID: id, FirstName: "Test", Email: "", Role: role}
	env.store.balances[id] = balance
	return id
}

func (env *testEnv) addTournament(t *testing.T, status models.TournamentStatus, format models.TournamentFormat, maxPlayers, cost int, startTime time.Time) int {
	t.Helper()
	id := env.store.newID()
	env.store.tournaments[id] = &models.Tournament{
		ID:             id,
		Name:           "Autumn Cup",
		OrganizerID:    1,
		Format:         format,
		Status:         status,
		MaxPlayers:     maxPlayers,
		EnrollmentCost: cost,
		StartTime:      startTime,
	}
	return id
}

func (env *testEnv) enroll(t *testing.T, tournamentID, userID int) *models.Enrollment {
	t.Helper()
	e, err := env.enrollments.Enroll(context.Background(), tournamentID, userID)
	require.NoError(t, err)
	return e
}
