package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/academyhq/tournament-core/events"
	"github.com/academyhq/tournament-core/models"
	"github.com/academyhq/tournament-core/repositories"
	"github.com/google/uuid"
)

// checkInWindow is how long before start_time check-in opens.
const checkInWindow = 15 * time.Minute

// RefundReceipt reports the outcome of an unenroll or rejection.
// AlreadyInactive marks the idempotent no-op branch: the enrollment was
// inactive before the call and no refund was issued.
type RefundReceipt struct {
	EnrollmentID      int                     `json:"enrollment_id"`
	TournamentID      int                     `json:"tournament_id"`
	Status            models.EnrollmentStatus `json:"status"`
	RefundedAmount    int                     `json:"refunded_amount"`
	CancelledSessions int                     `json:"cancelled_sessions"`
	AlreadyInactive   bool                    `json:"already_inactive"`
}

type CheckInReceipt struct {
	EnrollmentID     int       `json:"enrollment_id"`
	TournamentID     int       `json:"tournament_id"`
	CheckedInAt      time.Time `json:"checked_in_at"`
	AlreadyCheckedIn bool      `json:"already_checked_in"`
}

// EnrollmentService is the admission controller: it guards capacity,
// duplicates and credit balance as one atomic unit per call.
type EnrollmentService interface {
	Enroll(ctx context.Context, tournamentID, userID int) (*models.Enrollment, error)
	Unenroll(ctx context.Context, enrollmentID, userID int) (*RefundReceipt, error)
	// Reject is the admin's terminal rejection of an enrollment; the
	// full fee is returned exactly once.
	Reject(ctx context.Context, enrollmentID, actorID int) (*RefundReceipt, error)
	CheckIn(ctx context.Context, tournamentID, userID int) (*CheckInReceipt, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Enrollment, error)
}

type enrollmentService struct {
	runner         repositories.TxRunner
	tournamentRepo repositories.TournamentRepository
	enrollmentRepo repositories.EnrollmentRepository
	creditRepo     repositories.CreditRepository
	sessionRepo    repositories.SessionRepository
	publisher      events.Publisher
	logger         *slog.Logger
	now            func() time.Time
}

func NewEnrollmentService(
	runner repositories.TxRunner,
	tournamentRepo repositories.TournamentRepository,
	enrollmentRepo repositories.EnrollmentRepository,
	creditRepo repositories.CreditRepository,
	sessionRepo repositories.SessionRepository,
	publisher events.Publisher,
	logger *slog.Logger,
) EnrollmentService {
	return &enrollmentService{
		runner:         runner,
		tournamentRepo: tournamentRepo,
		enrollmentRepo: enrollmentRepo,
		creditRepo:     creditRepo,
		sessionRepo:    sessionRepo,
		publisher:      publisher,
		logger:         logger,
		now:            time.Now,
	}
}

// Enroll admits a user into a tournament. The whole unit runs inside
// one transaction holding the tournament row lock, so concurrent
// attempts on the same tournament serialize: status check, capacity
// count, fee deduction and the enrollment insert either all commit or
// all roll back. The capacity counter is recomputed under the lock on
// every call, never cached.
func (s *enrollmentService) Enroll(ctx context.Context, tournamentID, userID int) (*models.Enrollment, error) {
	var enrollment *models.Enrollment

	err := s.runner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if t.Status != models.StatusEnrollmentOpen {
			return fmt.Errorf("%w: status is %s", ErrTournamentNotOpen, t.Status)
		}

		// Courtesy pre-check for a clean error; the real duplicate
		// guard is the partial unique index hit on insert below.
		if _, err := s.enrollmentRepo.GetActiveByUserAndTournament(ctx, exec, userID, tournamentID); err == nil {
			return ErrDuplicateEnrollment
		} else if !errors.Is(err, repositories.ErrEnrollmentNotFound) {
			return err
		}

		count, err := s.enrollmentRepo.CountActive(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if count >= t.MaxPlayers {
			return fmt.Errorf("%w: %d of %d places taken", ErrCapacityExceeded, count, t.MaxPlayers)
		}

		if t.EnrollmentCost > 0 {
			if err := s.creditRepo.Deduct(ctx, exec, userID, t.EnrollmentCost); err != nil {
				if errors.Is(err, repositories.ErrInsufficientCredits) {
					return ErrInsufficientCredits
				}
				return err
			}
		}

		e := &models.Enrollment{
			TournamentID:  tournamentID,
			UserID:        userID,
			IsActive:      true,
			RequestStatus: models.EnrollmentApproved,
		}
		if err := s.enrollmentRepo.Create(ctx, exec, e); err != nil {
			if errors.Is(err, repositories.ErrEnrollmentConflict) {
				return ErrDuplicateEnrollment
			}
			return err
		}

		if t.EnrollmentCost > 0 {
			if err := s.creditRepo.CreateTransaction(ctx, exec, &models.CreditTransaction{
				Reference:    uuid.NewString(),
				UserID:       userID,
				Amount:       -t.EnrollmentCost,
				Type:         models.TransactionEnrollmentFee,
				EnrollmentID: &e.ID,
				TournamentID: &tournamentID,
			}); err != nil {
				return err
			}
		}

		enrollment = e
		return nil
	})
	if err != nil {
		return nil, translateStorageErr(err)
	}

	s.logger.InfoContext(ctx, "user enrolled",
		slog.Int("tournament_id", tournamentID),
		slog.Int("user_id", userID),
		slog.Int("enrollment_id", enrollment.ID))
	s.publisher.Publish(tournamentID, events.TypeEnrollmentCreated, enrollment)
	return enrollment, nil
}

// Unenroll withdraws an enrollment and refunds half the fee. The
// active-to-inactive flip is a conditional update, so a retried or
// concurrent duplicate call lands on the no-op branch and can never
// trigger a second refund.
func (s *enrollmentService) Unenroll(ctx context.Context, enrollmentID, userID int) (*RefundReceipt, error) {
	receipt, err := s.deactivate(ctx, enrollmentID, models.EnrollmentWithdrawn, func(e *models.Enrollment) error {
		if e.UserID != userID {
			return ErrForbiddenOperation
		}
		return nil
	}, func(cost int) int { return cost / 2 }, models.TransactionWithdrawalRefund)
	if err != nil {
		return nil, err
	}

	if !receipt.AlreadyInactive {
		s.publisher.Publish(receipt.TournamentID, events.TypeEnrollmentWithdrawn, receipt)
	}
	return receipt, nil
}

// Reject deactivates an enrollment on behalf of an admin and returns
// the full fee, with the same exactly-once flip as Unenroll.
func (s *enrollmentService) Reject(ctx context.Context, enrollmentID, actorID int) (*RefundReceipt, error) {
	receipt, err := s.deactivate(ctx, enrollmentID, models.EnrollmentRejected, func(*models.Enrollment) error {
		return nil // role enforcement happens at the transport boundary
	}, func(cost int) int { return cost }, models.TransactionRejectionRefund)
	if err != nil {
		return nil, err
	}

	if !receipt.AlreadyInactive {
		s.logger.InfoContext(ctx, "enrollment rejected",
			slog.Int("enrollment_id", enrollmentID),
			slog.Int("actor_id", actorID))
		s.publisher.Publish(receipt.TournamentID, events.TypeEnrollmentRejected, receipt)
	}
	return receipt, nil
}

func (s *enrollmentService) deactivate(
	ctx context.Context,
	enrollmentID int,
	status models.EnrollmentStatus,
	authorize func(*models.Enrollment) error,
	refundOf func(cost int) int,
	txType models.CreditTransactionType,
) (*RefundReceipt, error) {
	receipt := &RefundReceipt{EnrollmentID: enrollmentID, Status: status}

	err := s.runner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		e, err := s.enrollmentRepo.GetByID(ctx, exec, enrollmentID)
		if err != nil {
			return err
		}
		if err := authorize(e); err != nil {
			return err
		}
		receipt.TournamentID = e.TournamentID

		// Lock the tournament row so the admission capacity count and
		// this deactivation serialize.
		t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, e.TournamentID)
		if err != nil {
			return err
		}

		// The refund is tied to winning this conditional flip: losing
		// it means someone already deactivated (and refunded) first.
		if err := s.enrollmentRepo.Deactivate(ctx, exec, enrollmentID, status); err != nil {
			if errors.Is(err, repositories.ErrEnrollmentAlreadyInactive) {
				receipt.Status = e.RequestStatus
				receipt.AlreadyInactive = true
				return nil
			}
			return err
		}

		refund := refundOf(t.EnrollmentCost)
		if refund > 0 {
			if err := s.creditRepo.Refund(ctx, exec, e.UserID, refund); err != nil {
				return err
			}
			if err := s.creditRepo.CreateTransaction(ctx, exec, &models.CreditTransaction{
				Reference:    uuid.NewString(),
				UserID:       e.UserID,
				Amount:       refund,
				Type:         txType,
				EnrollmentID: &e.ID,
				TournamentID: &e.TournamentID,
			}); err != nil {
				return err
			}
		}
		receipt.RefundedAmount = refund

		cancelled, err := s.sessionRepo.CancelScheduledByEnrollment(ctx, exec, e.TournamentID, enrollmentID)
		if err != nil {
			return err
		}
		receipt.CancelledSessions = cancelled
		return nil
	})
	if err != nil {
		return nil, translateStorageErr(err)
	}
	return receipt, nil
}

// CheckIn stamps attendance inside the [start-15m, start) window. The
// stamp is a conditional single-statement update; a repeat call finds
// the existing timestamp and reports it unchanged.
func (s *enrollmentService) CheckIn(ctx context.Context, tournamentID, userID int) (*CheckInReceipt, error) {
	var receipt *CheckInReceipt

	err := s.runner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
		if err != nil {
			return err
		}

		e, err := s.enrollmentRepo.GetActiveByUserAndTournament(ctx, exec, userID, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrEnrollmentNotFound) {
				return ErrNotEnrolled
			}
			return err
		}
		if !e.Seedable() {
			return ErrNotEnrolled
		}

		now := s.now()
		opensAt := t.StartTime.Add(-checkInWindow)
		if now.Before(opensAt) {
			return fmt.Errorf("%w: opens at %s", ErrCheckInTooEarly, opensAt.Format(time.RFC3339))
		}
		if !now.Before(t.StartTime) {
			return fmt.Errorf("%w: closed at %s", ErrCheckInTooLate, t.StartTime.Format(time.RFC3339))
		}

		stamped, err := s.enrollmentRepo.StampCheckIn(ctx, exec, e.ID, now)
		if err != nil {
			return err
		}
		if !stamped {
			// Already checked in: return the original stamp untouched.
			existing, err := s.enrollmentRepo.GetByID(ctx, exec, e.ID)
			if err != nil {
				return err
			}
			receipt = &CheckInReceipt{
				EnrollmentID:     e.ID,
				TournamentID:     tournamentID,
				CheckedInAt:      *existing.CheckedInAt,
				AlreadyCheckedIn: true,
			}
			return nil
		}

		receipt = &CheckInReceipt{EnrollmentID: e.ID, TournamentID: tournamentID, CheckedInAt: now}
		return nil
	})
	if err != nil {
		return nil, translateStorageErr(err)
	}

	if !receipt.AlreadyCheckedIn {
		s.publisher.Publish(tournamentID, events.TypeCheckInRecorded, receipt)
	}
	return receipt, nil
}

func (s *enrollmentService) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Enrollment, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		return nil, translateStorageErr(err)
	}
	return s.enrollmentRepo.ListByTournament(ctx, tournamentID)
}
