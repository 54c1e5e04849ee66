package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/academyhq/tournament-core/models"
	"github.com/academyhq/tournament-core/repositories"
)

type CreateTournamentInput struct {
	Name           string                  `json:"name"`
	Description    *string                 `json:"description,omitempty"`
	Format         models.TournamentFormat `json:"format"`
	MaxPlayers     int                     `json:"max_players"`
	EnrollmentCost int                     `json:"enrollment_cost"`
	StartTime      time.Time               `json:"start_time"`
}

// TournamentDetail is the aggregate view of one tournament.
type TournamentDetail struct {
	Tournament  *models.Tournament        `json:"tournament"`
	Enrollments []*models.Enrollment      `json:"enrollments"`
	Sessions    []*models.Session         `json:"sessions"`
	Standings   []*models.Standing        `json:"standings"`
	History     []*models.StatusTransition `json:"history"`
}

type TournamentService interface {
	CreateTournament(ctx context.Context, organizerID int, input CreateTournamentInput) (*models.Tournament, error)
	GetTournamentByID(ctx context.Context, id int) (*models.Tournament, error)
	GetTournamentDetail(ctx context.Context, id int) (*TournamentDetail, error)
	ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error)
}

type tournamentService struct {
	runner         repositories.TxRunner
	tournamentRepo repositories.TournamentRepository
	enrollmentRepo repositories.EnrollmentRepository
	sessionRepo    repositories.SessionRepository
	standingRepo   repositories.StandingRepository
	transitionRepo repositories.TransitionRepository
	logger         *slog.Logger
}

func NewTournamentService(
	runner repositories.TxRunner,
	tournamentRepo repositories.TournamentRepository,
	enrollmentRepo repositories.EnrollmentRepository,
	sessionRepo repositories.SessionRepository,
	standingRepo repositories.StandingRepository,
	transitionRepo repositories.TransitionRepository,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		runner:         runner,
		tournamentRepo: tournamentRepo,
		enrollmentRepo: enrollmentRepo,
		sessionRepo:    sessionRepo,
		standingRepo:   standingRepo,
		transitionRepo: transitionRepo,
		logger:         logger,
	}
}

func validFormat(f models.TournamentFormat) bool {
	switch f {
	case models.FormatKnockout, models.FormatRoundRobin, models.FormatGroupKnockout:
		return true
	}
	return false
}

func (s *tournamentService) CreateTournament(ctx context.Context, organizerID int, input CreateTournamentInput) (*models.Tournament, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, ErrTournamentNameRequired
	}
	if input.MaxPlayers <= 0 {
		return nil, ErrTournamentInvalidCapacity
	}
	if input.EnrollmentCost < 0 {
		return nil, ErrTournamentInvalidCost
	}
	if !validFormat(input.Format) {
		return nil, ErrTournamentInvalidFormat
	}
	if input.StartTime.IsZero() {
		return nil, ErrTournamentStartTimeMissing
	}

	t := &models.Tournament{
		Name:           input.Name,
		Description:    input.Description,
		OrganizerID:    organizerID,
		Format:         input.Format,
		Status:         models.StatusDraft,
		MaxPlayers:     input.MaxPlayers,
		EnrollmentCost: input.EnrollmentCost,
		StartTime:      input.StartTime,
	}
	// The tournament row and its first audit entry commit together,
	// so every tournament has history from the moment it exists.
	err := s.runner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.tournamentRepo.Create(ctx, exec, t); err != nil {
			return err
		}
		return s.transitionRepo.Create(ctx, exec, &models.StatusTransition{
			TournamentID: t.ID,
			OldStatus:    models.StatusDraft,
			NewStatus:    models.StatusDraft,
			Reason:       "tournament created",
			ActorID:      &organizerID,
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrTournamentNameConflict):
			return nil, err
		case errors.Is(err, repositories.ErrTournamentInvalidOrganizer):
			return nil, ErrUserNotFound
		}
		return nil, translateStorageErr(err)
	}

	s.logger.InfoContext(ctx, "tournament created",
		slog.Int("tournament_id", t.ID),
		slog.Int("organizer_id", organizerID),
		slog.String("format", string(t.Format)))
	return t, nil
}

func (s *tournamentService) GetTournamentByID(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, translateStorageErr(err)
	}
	return t, nil
}

// GetTournamentDetail fans out the related reads concurrently; each
// list is independent of the others.
func (s *tournamentService) GetTournamentDetail(ctx context.Context, id int) (*TournamentDetail, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, translateStorageErr(err)
	}

	detail := &TournamentDetail{Tournament: t}
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		detail.Enrollments, err = s.enrollmentRepo.ListByTournament(gCtx, id)
		return err
	})
	g.Go(func() error {
		var err error
		detail.Sessions, err = s.sessionRepo.ListByTournament(gCtx, nil, id)
		return err
	})
	g.Go(func() error {
		var err error
		detail.Standings, err = s.standingRepo.ListByTournament(gCtx, nil, id)
		return err
	})
	g.Go(func() error {
		var err error
		detail.History, err = s.transitionRepo.ListByTournament(gCtx, id)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, translateStorageErr(err)
	}
	return detail, nil
}

func (s *tournamentService) ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	tournaments, err := s.tournamentRepo.List(ctx, filter)
	if err != nil {
		return nil, translateStorageErr(err)
	}
	return tournaments, nil
}
