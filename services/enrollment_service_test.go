package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academyhq/tournament-core/events"
	"github.com/academyhq/tournament-core/models"
)

func TestEnrollDeductsFeeAndRecordsTransaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := env.addUser(t, models.RolePlayer, 800)
	tournamentID := env.addTournament(t, models.StatusEnrollmentOpen, models.FormatKnockout, 8, 500, time.Now().Add(time.Hour))

	e, err := env.enrollments.Enroll(ctx, tournamentID, userID)
	require.NoError(t, err)
	assert.True(t, e.IsActive)
	assert.Equal(t, models.EnrollmentApproved, e.RequestStatus)

	balance, err := env.credits.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 300, balance)

	txs, err := env.credits.ListTransactions(ctx, userID, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, -500, txs[0].Amount)
	assert.Equal(t, models.TransactionEnrollmentFee, txs[0].Type)
	assert.NotEmpty(t, txs[0].Reference)

	assert.Equal(t, []string{events.TypeEnrollmentCreated}, env.rec.typesFor(tournamentID))
}

func TestEnrollRequiresOpenEnrollment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := env.addUser(t, models.RolePlayer, 800)

	for _, status := range []models.TournamentStatus{
		models.StatusDraft,
		models.StatusInstructorConfirmed,
		models.StatusEnrollmentClosed,
		models.StatusInProgress,
	} {
		tournamentID := env.addTournament(t, status, models.FormatKnockout, 8, 100, time.Now().Add(time.Hour))
		_, err := env.enrollments.Enroll(ctx, tournamentID, userID)
		assert.ErrorIs(t, err, ErrTournamentNotOpen, "status %s", status)
	}
}

func TestEnrollInsufficientCreditsLeavesNoTrace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := env.addUser(t, models.RolePlayer, 400)
	tournamentID := env.addTournament(t, models.StatusEnrollmentOpen, models.FormatKnockout, 8, 500, time.Now().Add(time.Hour))

	_, err := env.enrollments.Enroll(ctx, tournamentID, userID)
	require.ErrorIs(t, err, ErrInsufficientCredits)

	balance, err := env.credits.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 400, balance)

	enrollments, err := env.enrollments.ListByTournament(ctx, tournamentID)
	require.NoError(t, err)
	assert.Empty(t, enrollments)
}

func TestEnrollDuplicateRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := env.addUser(t, models.RolePlayer, 1000)
	tournamentID := env.addTournament(t, models.StatusEnrollmentOpen, models.FormatKnockout, 8, 100, time.Now().Add(time.Hour))

	env.enroll(t, tournamentID, userID)

	_, err := env.enrollments.Enroll(ctx, tournamentID, userID)
	require.ErrorIs(t, err, ErrDuplicateEnrollment)

	// Only the first fee was charged.
	balance, err := env.credits.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 900, balance)
}

// Two users race for the last place in a capacity-one tournament.
// Exactly one enrollment commits and only the winner pays.
func TestEnrollConcurrentLastPlace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userA := env.addUser(t, models.RolePlayer, 500)
	userB := env.addUser(t, models.RolePlayer, 500)
	tournamentID := env.addTournament(t, models.StatusEnrollmentOpen, models.FormatKnockout, 1, 200, time.Now().Add(time.Hour))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, userID := range []int{userA, userB} {
		wg.Add(1)
		go func(i, userID int) {
			defer wg.Done()
			_, errs[i] = env.enrollments.Enroll(ctx, tournamentID, userID)
		}(i, userID)
	}
	wg.Wait()

	var successes, capacityFailures int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrCapacityExceeded):
			capacityFailures++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, capacityFailures)

	balA, _ := env.credits.GetBalance(ctx, userA)
	balB, _ := env.credits.GetBalance(ctx, userB)
	assert.Equal(t, 800, balA+balB, "exactly one fee of 200 deducted")

	enrollments, err := env.enrollments.ListByTournament(ctx, tournamentID)
	require.NoError(t, err)
	assert.Len(t, enrollments, 1)
}

// One user with 600 credits races two 500-cost tournaments. At most
// one deduction can win; the balance never goes negative.
func TestEnrollConcurrentSpendAcrossTournaments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := env.addUser(t, models.RolePlayer, 600)
	t1 := env.addTournament(t, models.StatusEnrollmentOpen, models.FormatKnockout, 8, 500, time.Now().Add(time.Hour))
	t2 := env.addTournament(t, models.StatusEnrollmentOpen, models.FormatKnockout, 8, 500, time.Now().Add(time.Hour))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, tid := range []int{t1, t2} {
		wg.Add(1)
		go func(i, tid int) {
			defer wg.Done()
			_, errs[i] = env.enrollments.Enroll(ctx, tid, userID)
		}(i, tid)
	}
	wg.Wait()

	var successes int
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientCredits)
		}
	}
	assert.Equal(t, 1, successes)

	balance, err := env.credits.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 100, balance)
	assert.GreaterOrEqual(t, balance, 0)
}

func TestUnenrollRefundsHalfExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := env.addUser(t, models.RolePlayer, 1000)
	tournamentID := env.addTournament(t, models.StatusEnrollmentOpen, models.FormatKnockout, 8, 500, time.Now().Add(time.Hour))
	e := env.enroll(t, tournamentID, userID)

	receipt, err := env.enrollments.Unenroll(ctx, e.ID, userID)
	require.NoError(t, err)
	assert.False(t, receipt.AlreadyInactive)
	assert.Equal(t, 250, receipt.RefundedAmount)
	assert.Equal(t, models.EnrollmentWithdrawn, receipt.Status)

	balance, err := env.credits.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 750, balance)

	// A repeat call is a no-op: no second refund, no new event.
	again, err := env.enrollments.Unenroll(ctx, e.ID, userID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyInactive)
	assert.Equal(t, 0, again.RefundedAmount)

	balance, err = env.credits.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 750, balance)

	assert.Equal(t,
		[]string{events.TypeEnrollmentCreated, events.TypeEnrollmentWithdrawn},
		env.rec.typesFor(tournamentID))
}

func TestUnenrollRequiresOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.addUser(t, models.RolePlayer, 1000)
	other := env.addUser(t, models.RolePlayer, 1000)
	tournamentID := env.addTournament(t, models.StatusEnrollmentOpen, models.FormatKnockout, 8, 100, time.Now().Add(time.Hour))
	e := env.enroll(t, tournamentID, owner)

	_, err := env.enrollments.Unenroll(ctx, e.ID, other)
	assert.ErrorIs(t, err, ErrForbiddenOperation)
}

func TestUnenrollConcurrentSingleRefund(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := env.addUser(t, models.RolePlayer, 1000)
	tournamentID := env.addTournament(t, models.StatusEnrollmentOpen, models.FormatKnockout, 8, 400, time.Now().Add(time.Hour))
	e := env.enroll(t, tournamentID, userID)

	var wg sync.WaitGroup
	receipts := make([]*RefundReceipt, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			receipts[i], _ = env.enrollments.Unenroll(ctx, e.ID, userID)
		}(i)
	}
	wg.Wait()

	refunded := 0
	for _, r := range receipts {
		require.NotNil(t, r)
		if !r.AlreadyInactive {
			refunded++
		}
	}
	assert.Equal(t, 1, refunded, "exactly one call wins the flip")

	balance, err := env.credits.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 800, balance, "1000 - 400 fee + 200 single refund")
}

func TestRejectRefundsFullFee(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := env.addUser(t, models.RolePlayer, 1000)
	adminID := env.addUser(t, models.RoleAdmin, 0)
	tournamentID := env.addTournament(t, models.StatusEnrollmentOpen, models.FormatKnockout, 8, 500, time.Now().Add(time.Hour))
	e := env.enroll(t, tournamentID, userID)

	receipt, err := env.enrollments.Reject(ctx, e.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, 500, receipt.RefundedAmount)
	assert.Equal(t, models.EnrollmentRejected, receipt.Status)

	balance, err := env.credits.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1000, balance)
}

func TestUnenrollCancelsScheduledSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tournamentID := env.addTournament(t, models.StatusEnrollmentOpen, models.FormatRoundRobin, 8, 0, time.Now().Add(time.Hour))
	var ids []int
	for i := 0; i < 3; i++ {
		userID := env.addUser(t, models.RolePlayer, 100)
		e := env.enroll(t, tournamentID, userID)
		ids = append(ids, e.ID)
	}

	env.store.tournaments[tournamentID].Status = models.StatusInProgress

	summary, err := env.schedule.GenerateSessions(ctx, tournamentID)
	require.NoError(t, err)
	require.NotEmpty(t, summary.Sessions)

	owner := env.store.enrollments[ids[0]].UserID
	receipt, err := env.enrollments.Unenroll(ctx, ids[0], owner)
	require.NoError(t, err)
	assert.Equal(t, 2, receipt.CancelledSessions, "round robin of 3 gives each player 2 sessions")
}

func TestCheckInWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	start := time.Date(2026, 9, 12, 10, 0, 0, 0, time.UTC)
	userID := env.addUser(t, models.RolePlayer, 1000)
	tournamentID := env.addTournament(t, models.StatusEnrollmentOpen, models.FormatKnockout, 8, 100, start)
	env.enroll(t, tournamentID, userID)

	// Too early: one second before the window opens.
	env.setNow(t, start.Add(-checkInWindow).Add(-time.Second))
	_, err := env.enrollments.CheckIn(ctx, tournamentID, userID)
	assert.ErrorIs(t, err, ErrCheckInTooEarly)

	// Too late: exactly at start time.
	env.setNow(t, start)
	_, err = env.enrollments.CheckIn(ctx, tournamentID, userID)
	assert.ErrorIs(t, err, ErrCheckInTooLate)

	// Inside the window.
	within := start.Add(-5 * time.Minute)
	env.setNow(t, within)
	receipt, err := env.enrollments.CheckIn(ctx, tournamentID, userID)
	require.NoError(t, err)
	assert.False(t, receipt.AlreadyCheckedIn)
	assert.Equal(t, within, receipt.CheckedInAt)
}

func TestCheckInIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	start := time.Date(2026, 9, 12, 10, 0, 0, 0, time.UTC)
	userID := env.addUser(t, models.RolePlayer, 1000)
	tournamentID := env.addTournament(t, models.StatusEnrollmentOpen, models.FormatKnockout, 8, 100, start)
	env.enroll(t, tournamentID, userID)

	first := start.Add(-10 * time.Minute)
	env.setNow(t, first)
	receipt, err := env.enrollments.CheckIn(ctx, tournamentID, userID)
	require.NoError(t, err)
	require.False(t, receipt.AlreadyCheckedIn)

	// The second call keeps the original stamp.
	env.setNow(t, start.Add(-3*time.Minute))
	again, err := env.enrollments.CheckIn(ctx, tournamentID, userID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyCheckedIn)
	assert.Equal(t, first, again.CheckedInAt)
}

func TestCheckInRequiresActiveEnrollment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	start := time.Date(2026, 9, 12, 10, 0, 0, 0, time.UTC)
	userID := env.addUser(t, models.RolePlayer, 1000)
	tournamentID := env.addTournament(t, models.StatusEnrollmentOpen, models.FormatKnockout, 8, 100, start)

	env.setNow(t, start.Add(-5*time.Minute))
	_, err := env.enrollments.CheckIn(ctx, tournamentID, userID)
	assert.ErrorIs(t, err, ErrNotEnrolled)

	e := env.enroll(t, tournamentID, userID)
	_, err = env.enrollments.Unenroll(ctx, e.ID, userID)
	require.NoError(t, err)

	_, err = env.enrollments.CheckIn(ctx, tournamentID, userID)
	assert.ErrorIs(t, err, ErrNotEnrolled)
}
