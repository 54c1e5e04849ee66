package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/academyhq/tournament-core/brackets"
	"github.com/academyhq/tournament-core/events"
	"github.com/academyhq/tournament-core/models"
	"github.com/academyhq/tournament-core/repositories"
)

// Seeding pool labels reported in schedule summaries.
const (
	PoolCheckInConfirmed = "check-in confirmed"
	PoolAllApproved      = "fallback: all approved"
)

type ScheduleSummary struct {
	TournamentID     int               `json:"tournament_id"`
	Pool             string            `json:"pool"`
	SeededCount      int               `json:"seeded_count"`
	TotalApproved    int               `json:"total_approved"`
	TotalCheckedIn   int               `json:"total_checked_in"`
	AlreadyGenerated bool              `json:"already_generated"`
	Sessions         []*models.Session `json:"sessions"`
}

type ScheduleService interface {
	// GenerateSessions builds the match schedule from the seeding
	// pool. Guarded by the sessions_generated flag: a repeat call is a
	// no-op that returns the existing schedule.
	GenerateSessions(ctx context.Context, tournamentID int) (*ScheduleSummary, error)
	ListSessions(ctx context.Context, tournamentID int) ([]*models.Session, error)
	RecordResult(ctx context.Context, sessionID, winnerEnrollmentID int, score *string) (*models.Session, error)
	Standings(ctx context.Context, tournamentID int) ([]*models.Standing, error)
}

// scheduleGenerator holds the generation step shared between the
// public operation and the in_progress lifecycle transition. Callers
// must hold the tournament row lock.
type scheduleGenerator struct {
	tournamentRepo repositories.TournamentRepository
	enrollmentRepo repositories.EnrollmentRepository
	sessionRepo    repositories.SessionRepository
	logger         *slog.Logger
}

// generateLocked selects the seeding pool, marks the tournament
// generated and inserts the sessions. The conditional flag update is
// what makes generation exactly-once: losing it means the schedule
// already exists, and the existing sessions are returned instead.
func (g *scheduleGenerator) generateLocked(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) (*ScheduleSummary, bool, error) {
	if err := g.tournamentRepo.MarkSessionsGenerated(ctx, exec, t.ID); err != nil {
		if errors.Is(err, repositories.ErrSessionsAlreadyGenerated) {
			summary, listErr := g.existingSummary(ctx, exec, t)
			return summary, false, listErr
		}
		return nil, false, err
	}

	approved, err := g.enrollmentRepo.ListSeedable(ctx, exec, t.ID)
	if err != nil {
		return nil, false, err
	}
	checkedIn, err := g.enrollmentRepo.ListCheckedIn(ctx, exec, t.ID)
	if err != nil {
		return nil, false, err
	}

	// Pool selection: if anyone confirmed attendance, only they are
	// seeded; otherwise every approved enrollment is.
	pool := approved
	label := PoolAllApproved
	if len(checkedIn) > 0 {
		pool = checkedIn
		label = PoolCheckInConfirmed
	}

	generator, ok := brackets.ForFormat(t.Format)
	if !ok {
		return nil, false, fmt.Errorf("%w: %q", ErrTournamentInvalidFormat, t.Format)
	}

	pairings, err := generator.Generate(ctx, brackets.GenerateParams{Tournament: t, Pool: pool})
	if err != nil {
		return nil, false, err
	}

	sessions := make([]*models.Session, 0, len(pairings))
	for _, p := range pairings {
		sessions = append(sessions, &models.Session{
			TournamentID:   t.ID,
			Round:          p.Round,
			OrderInRound:   p.OrderInRound,
			GroupLabel:     p.GroupLabel,
			P1EnrollmentID: p.P1EnrollmentID,
			P2EnrollmentID: p.P2EnrollmentID,
			Status:         models.SessionScheduled,
		})
	}
	if err := g.sessionRepo.CreateBatch(ctx, exec, sessions); err != nil {
		return nil, false, err
	}

	g.logger.InfoContext(ctx, "sessions generated",
		slog.Int("tournament_id", t.ID),
		slog.String("generator", generator.Name()),
		slog.String("pool", label),
		slog.Int("seeded", len(pool)),
		slog.Int("sessions", len(sessions)))

	return &ScheduleSummary{
		TournamentID:   t.ID,
		Pool:           label,
		SeededCount:    len(pool),
		TotalApproved:  len(approved),
		TotalCheckedIn: len(checkedIn),
		Sessions:       sessions,
	}, true, nil
}

// existingSummary rebuilds the summary for a tournament whose schedule
// already exists: the seeded count comes from the stored sessions, the
// pool report from the same selection rule generation used.
func (g *scheduleGenerator) existingSummary(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) (*ScheduleSummary, error) {
	sessions, err := g.sessionRepo.ListByTournament(ctx, exec, t.ID)
	if err != nil {
		return nil, err
	}
	approved, err := g.enrollmentRepo.ListSeedable(ctx, exec, t.ID)
	if err != nil {
		return nil, err
	}
	checkedIn, err := g.enrollmentRepo.ListCheckedIn(ctx, exec, t.ID)
	if err != nil {
		return nil, err
	}

	label := PoolAllApproved
	if len(checkedIn) > 0 {
		label = PoolCheckInConfirmed
	}

	seeded := make(map[int]struct{})
	for _, s := range sessions {
		if s.P1EnrollmentID != nil {
			seeded[*s.P1EnrollmentID] = struct{}{}
		}
		if s.P2EnrollmentID != nil {
			seeded[*s.P2EnrollmentID] = struct{}{}
		}
	}

	return &ScheduleSummary{
		TournamentID:     t.ID,
		Pool:             label,
		SeededCount:      len(seeded),
		TotalApproved:    len(approved),
		TotalCheckedIn:   len(checkedIn),
		AlreadyGenerated: true,
		Sessions:         sessions,
	}, nil
}

type scheduleService struct {
	runner         repositories.TxRunner
	tournamentRepo repositories.TournamentRepository
	sessionRepo    repositories.SessionRepository
	standingRepo   repositories.StandingRepository
	generator      *scheduleGenerator
	publisher      events.Publisher
	logger         *slog.Logger
}

func NewScheduleService(
	runner repositories.TxRunner,
	tournamentRepo repositories.TournamentRepository,
	enrollmentRepo repositories.EnrollmentRepository,
	sessionRepo repositories.SessionRepository,
	standingRepo repositories.StandingRepository,
	publisher events.Publisher,
	logger *slog.Logger,
) ScheduleService {
	return &scheduleService{
		runner:         runner,
		tournamentRepo: tournamentRepo,
		sessionRepo:    sessionRepo,
		standingRepo:   standingRepo,
		generator:      &scheduleGenerator{tournamentRepo: tournamentRepo, enrollmentRepo: enrollmentRepo, sessionRepo: sessionRepo, logger: logger},
		publisher:      publisher,
		logger:         logger,
	}
}

func (s *scheduleService) GenerateSessions(ctx context.Context, tournamentID int) (*ScheduleSummary, error) {
	var summary *ScheduleSummary
	var generated bool

	err := s.runner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if t.Status != models.StatusInProgress {
			return fmt.Errorf("%w: status is %s", ErrTournamentNotStarted, t.Status)
		}

		summary, generated, err = s.generator.generateLocked(ctx, exec, t)
		return err
	})
	if err != nil {
		return nil, translateStorageErr(err)
	}

	if generated {
		s.publisher.Publish(tournamentID, events.TypeSessionsGenerated, map[string]interface{}{
			"pool":     summary.Pool,
			"seeded":   summary.SeededCount,
			"sessions": len(summary.Sessions),
		})
	}
	return summary, nil
}

func (s *scheduleService) ListSessions(ctx context.Context, tournamentID int) ([]*models.Session, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		return nil, translateStorageErr(err)
	}
	return s.sessionRepo.ListByTournament(ctx, nil, tournamentID)
}

// RecordResult completes a scheduled session. The status check and the
// result write are one conditional update, so a result can be recorded
// at most once per session.
func (s *scheduleService) RecordResult(ctx context.Context, sessionID, winnerEnrollmentID int, score *string) (*models.Session, error) {
	var session *models.Session

	err := s.runner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		sess, err := s.sessionRepo.GetByID(ctx, exec, sessionID)
		if err != nil {
			return err
		}

		isParticipant := (sess.P1EnrollmentID != nil && *sess.P1EnrollmentID == winnerEnrollmentID) ||
			(sess.P2EnrollmentID != nil && *sess.P2EnrollmentID == winnerEnrollmentID)
		if !isParticipant {
			return fmt.Errorf("%w: enrollment %d", ErrInvalidResult, winnerEnrollmentID)
		}

		if err := s.sessionRepo.RecordResult(ctx, exec, sessionID, winnerEnrollmentID, score); err != nil {
			if errors.Is(err, repositories.ErrSessionNotScheduled) {
				return ErrSessionNotScheduled
			}
			return err
		}

		sess.Status = models.SessionCompleted
		sess.WinnerEnrollmentID = &winnerEnrollmentID
		sess.Score = score
		session = sess
		return nil
	})
	if err != nil {
		return nil, translateStorageErr(err)
	}

	s.publisher.Publish(session.TournamentID, events.TypeSessionCompleted, session)
	return session, nil
}

func (s *scheduleService) Standings(ctx context.Context, tournamentID int) ([]*models.Standing, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		return nil, translateStorageErr(err)
	}
	return s.standingRepo.ListByTournament(ctx, nil, tournamentID)
}
