package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/academyhq/tournament-core/events"
	"github.com/academyhq/tournament-core/models"
	"github.com/academyhq/tournament-core/repositories"
)

// allowedTransitions is the edge allow-list of the tournament
// lifecycle. Transition is the only code path that changes a
// tournament's status, so every committed status is the endpoint of
// one of these edges.
var allowedTransitions = map[models.TournamentStatus][]models.TournamentStatus{
	models.StatusDraft:                       {models.StatusSeekingInstructor},
	models.StatusSeekingInstructor:           {models.StatusPendingInstructorAcceptance},
	models.StatusPendingInstructorAcceptance: {models.StatusInstructorConfirmed, models.StatusSeekingInstructor},
	models.StatusInstructorConfirmed:         {models.StatusEnrollmentOpen},
	models.StatusEnrollmentOpen:              {models.StatusEnrollmentClosed},
	models.StatusEnrollmentClosed:            {models.StatusInProgress},
	models.StatusInProgress:                  {models.StatusCompleted},
	models.StatusCompleted:                   {models.StatusRewardsDistributed},
	models.StatusRewardsDistributed:          {},
}

func isAllowedTransition(from, to models.TournamentStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type LifecycleService interface {
	// Transition moves the tournament along one lifecycle edge,
	// appending the audit row in the same transaction. Moving to
	// in_progress also generates the session schedule, guarded so it
	// never runs twice.
	Transition(ctx context.Context, tournamentID int, newStatus models.TournamentStatus, actorID int, reason string) (*models.Tournament, error)
	// AssignInstructor proposes an instructor and moves
	// seeking_instructor to pending_instructor_acceptance.
	AssignInstructor(ctx context.Context, tournamentID, instructorID, actorID int) (*models.Tournament, error)
	// RespondToAssignment is the instructor's accept or decline.
	// Decline returns the tournament to seeking_instructor and clears
	// the instructor.
	RespondToAssignment(ctx context.Context, tournamentID, instructorID int, accept bool, reason string) (*models.Tournament, error)
	History(ctx context.Context, tournamentID int) ([]*models.StatusTransition, error)
}

type lifecycleService struct {
	runner         repositories.TxRunner
	tournamentRepo repositories.TournamentRepository
	transitionRepo repositories.TransitionRepository
	enrollmentRepo repositories.EnrollmentRepository
	sessionRepo    repositories.SessionRepository
	standingRepo   repositories.StandingRepository
	userRepo       repositories.UserRepository
	scheduler      *scheduleGenerator
	publisher      events.Publisher
	logger         *slog.Logger
}

func NewLifecycleService(
	runner repositories.TxRunner,
	tournamentRepo repositories.TournamentRepository,
	transitionRepo repositories.TransitionRepository,
	enrollmentRepo repositories.EnrollmentRepository,
	sessionRepo repositories.SessionRepository,
	standingRepo repositories.StandingRepository,
	userRepo repositories.UserRepository,
	publisher events.Publisher,
	logger *slog.Logger,
) LifecycleService {
	return &lifecycleService{
		runner:         runner,
		tournamentRepo: tournamentRepo,
		transitionRepo: transitionRepo,
		enrollmentRepo: enrollmentRepo,
		sessionRepo:    sessionRepo,
		standingRepo:   standingRepo,
		userRepo:       userRepo,
		scheduler:      &scheduleGenerator{tournamentRepo: tournamentRepo, enrollmentRepo: enrollmentRepo, sessionRepo: sessionRepo, logger: logger},
		publisher:      publisher,
		logger:         logger,
	}
}

func (s *lifecycleService) Transition(ctx context.Context, tournamentID int, newStatus models.TournamentStatus, actorID int, reason string) (*models.Tournament, error) {
	var (
		tournament *models.Tournament
		oldStatus  models.TournamentStatus
	)

	err := s.runner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		oldStatus = t.Status

		if err := s.applyTransition(ctx, exec, t, newStatus, &actorID, reason); err != nil {
			return err
		}

		if newStatus == models.StatusInProgress {
			if _, _, err := s.scheduler.generateLocked(ctx, exec, t); err != nil {
				return err
			}
		}
		if newStatus == models.StatusCompleted {
			if err := s.recordFinalStandings(ctx, exec, t); err != nil {
				return err
			}
		}

		tournament = t
		return nil
	})
	if err != nil {
		return nil, translateStorageErr(err)
	}

	s.publisher.Publish(tournamentID, events.TypeStatusTransitioned, map[string]interface{}{
		"old_status": oldStatus,
		"new_status": tournament.Status,
	})
	return tournament, nil
}

// applyTransition validates the edge, updates the status and appends
// the audit row. The caller holds the tournament row lock.
func (s *lifecycleService) applyTransition(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, newStatus models.TournamentStatus, actorID *int, reason string) error {
	if !isAllowedTransition(t.Status, newStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, newStatus)
	}

	if err := s.tournamentRepo.UpdateStatus(ctx, exec, t.ID, newStatus); err != nil {
		return err
	}
	if err := s.transitionRepo.Create(ctx, exec, &models.StatusTransition{
		TournamentID: t.ID,
		OldStatus:    t.Status,
		NewStatus:    newStatus,
		Reason:       reason,
		ActorID:      actorID,
	}); err != nil {
		return err
	}

	t.Status = newStatus
	return nil
}

// recordFinalStandings derives final placements from completed-session
// wins, tie-broken by seed order, and persists them once.
func (s *lifecycleService) recordFinalStandings(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) error {
	exists, err := s.standingRepo.ExistsByTournament(ctx, exec, t.ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	pool, err := s.enrollmentRepo.ListSeedable(ctx, exec, t.ID)
	if err != nil {
		return err
	}
	if len(pool) == 0 {
		return nil
	}

	wins, err := s.sessionRepo.WinsByEnrollment(ctx, exec, t.ID)
	if err != nil {
		return err
	}

	// Pool order is seed order; a stable sort by wins keeps it as the
	// tie-break.
	ranked := make([]*models.Enrollment, len(pool))
	copy(ranked, pool)
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && wins[ranked[j].ID] > wins[ranked[j-1].ID]; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}

	standings := make([]*models.Standing, 0, len(ranked))
	for i, e := range ranked {
		standings = append(standings, &models.Standing{
			TournamentID: t.ID,
			EnrollmentID: e.ID,
			Place:        i + 1,
			Wins:         wins[e.ID],
		})
	}
	return s.standingRepo.CreateBatch(ctx, exec, standings)
}

func (s *lifecycleService) AssignInstructor(ctx context.Context, tournamentID, instructorID, actorID int) (*models.Tournament, error) {
	instructor, err := s.userRepo.GetByID(ctx, instructorID)
	if err != nil {
		return nil, translateStorageErr(err)
	}
	if instructor.Role != models.RoleInstructor {
		return nil, fmt.Errorf("%w: user %d is not an instructor", ErrValidationFailed, instructorID)
	}

	var tournament *models.Tournament
	err = s.runner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if err := s.applyTransition(ctx, exec, t, models.StatusPendingInstructorAcceptance, &actorID, "instructor assignment proposed"); err != nil {
			return err
		}
		if err := s.tournamentRepo.SetInstructor(ctx, exec, t.ID, &instructorID); err != nil {
			return err
		}
		t.InstructorID = &instructorID
		tournament = t
		return nil
	})
	if err != nil {
		return nil, translateStorageErr(err)
	}

	s.publisher.Publish(tournamentID, events.TypeStatusTransitioned, map[string]interface{}{
		"new_status":    tournament.Status,
		"instructor_id": instructorID,
	})
	return tournament, nil
}

func (s *lifecycleService) RespondToAssignment(ctx context.Context, tournamentID, instructorID int, accept bool, reason string) (*models.Tournament, error) {
	var tournament *models.Tournament

	err := s.runner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if t.InstructorID == nil {
			return ErrNoInstructorAssigned
		}
		if *t.InstructorID != instructorID {
			return ErrForbiddenOperation
		}

		if accept {
			if err := s.applyTransition(ctx, exec, t, models.StatusInstructorConfirmed, &instructorID, reason); err != nil {
				return err
			}
		} else {
			// Decline clears the instructor and reopens the search.
			if err := s.applyTransition(ctx, exec, t, models.StatusSeekingInstructor, &instructorID, reason); err != nil {
				return err
			}
			if err := s.tournamentRepo.SetInstructor(ctx, exec, t.ID, nil); err != nil {
				return err
			}
			t.InstructorID = nil
		}
		tournament = t
		return nil
	})
	if err != nil {
		return nil, translateStorageErr(err)
	}

	s.publisher.Publish(tournamentID, events.TypeStatusTransitioned, map[string]interface{}{
		"new_status": tournament.Status,
	})
	return tournament, nil
}

func (s *lifecycleService) History(ctx context.Context, tournamentID int) ([]*models.StatusTransition, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return s.transitionRepo.ListByTournament(ctx, tournamentID)
}
