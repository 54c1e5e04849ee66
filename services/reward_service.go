package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/academyhq/tournament-core/events"
	"github.com/academyhq/tournament-core/models"
	"github.com/academyhq/tournament-core/repositories"
	"github.com/academyhq/tournament-core/rewards"
	"github.com/academyhq/tournament-core/storage"
)

// RewardLine is one credited payout within a distribution.
type RewardLine struct {
	Place        int `json:"place"`
	EnrollmentID int `json:"enrollment_id"`
	UserID       int `json:"user_id"`
	Amount       int `json:"amount"`
}

type DistributionReceipt struct {
	Distribution *models.RewardDistribution `json:"distribution"`
	Lines        []RewardLine               `json:"lines"`
}

type RewardService interface {
	// Distribute pays out the tournament pot per the reward policy.
	// It succeeds at most once per tournament; any later call fails
	// with ErrAlreadyDistributed no matter how the calls interleave.
	Distribute(ctx context.Context, tournamentID, actorID int) (*DistributionReceipt, error)
	GetDistribution(ctx context.Context, tournamentID int) (*models.RewardDistribution, error)
}

type rewardService struct {
	runner         repositories.TxRunner
	tournamentRepo repositories.TournamentRepository
	enrollmentRepo repositories.EnrollmentRepository
	standingRepo   repositories.StandingRepository
	creditRepo     repositories.CreditRepository
	rewardRepo     repositories.RewardRepository
	transitionRepo repositories.TransitionRepository
	policy         *rewards.Policy
	uploader       storage.FileUploader
	publisher      events.Publisher
	logger         *slog.Logger
}

func NewRewardService(
	runner repositories.TxRunner,
	tournamentRepo repositories.TournamentRepository,
	enrollmentRepo repositories.EnrollmentRepository,
	standingRepo repositories.StandingRepository,
	creditRepo repositories.CreditRepository,
	rewardRepo repositories.RewardRepository,
	transitionRepo repositories.TransitionRepository,
	policy *rewards.Policy,
	uploader storage.FileUploader,
	publisher events.Publisher,
	logger *slog.Logger,
) RewardService {
	if policy == nil {
		policy = rewards.Default()
	}
	return &rewardService{
		runner:         runner,
		tournamentRepo: tournamentRepo,
		enrollmentRepo: enrollmentRepo,
		standingRepo:   standingRepo,
		creditRepo:     creditRepo,
		rewardRepo:     rewardRepo,
		transitionRepo: transitionRepo,
		policy:         policy,
		uploader:       uploader,
		publisher:      publisher,
		logger:         logger,
	}
}

func (s *rewardService) Distribute(ctx context.Context, tournamentID, actorID int) (*DistributionReceipt, error) {
	var receipt *DistributionReceipt

	err := s.runner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if t.RewardsDistributed || t.Status == models.StatusRewardsDistributed {
			return ErrAlreadyDistributed
		}
		if t.Status != models.StatusCompleted {
			return fmt.Errorf("%w: status is %s", ErrTournamentNotCompleted, t.Status)
		}

		standings, err := s.standingRepo.ListByTournament(ctx, exec, t.ID)
		if err != nil {
			return err
		}
		if len(standings) == 0 {
			return ErrNoFinalStandings
		}

		// The conditional flag flip is the single winner-picking step.
		// Everything after it runs exactly once across all callers.
		if err := s.tournamentRepo.MarkRewardsDistributed(ctx, exec, t.ID); err != nil {
			if errors.Is(err, repositories.ErrRewardsAlreadyMarked) {
				return ErrAlreadyDistributed
			}
			return err
		}

		activeCount, err := s.enrollmentRepo.CountActive(ctx, exec, t.ID)
		if err != nil {
			return err
		}
		collected := t.EnrollmentCost * activeCount
		pot, payouts := s.policy.Compute(collected)

		byPlace := make(map[int]*models.Standing, len(standings))
		for _, st := range standings {
			byPlace[st.Place] = st
		}

		lines := make([]RewardLine, 0, len(payouts))
		awarded := 0
		for _, p := range payouts {
			st, ok := byPlace[p.Place]
			if ok {
				// Unfilled places keep their share in the pot.
				enrollment, err := s.enrollmentRepo.GetByID(ctx, exec, st.EnrollmentID)
				if err != nil {
					return err
				}
				if err := s.creditRepo.Refund(ctx, exec, enrollment.UserID, p.Amount); err != nil {
					return err
				}
				if err := s.creditRepo.CreateTransaction(ctx, exec, &models.CreditTransaction{
					Reference:    uuid.NewString(),
					UserID:       enrollment.UserID,
					Amount:       p.Amount,
					Type:         models.TransactionReward,
					EnrollmentID: &st.EnrollmentID,
					TournamentID: &t.ID,
				}); err != nil {
					return err
				}
				lines = append(lines, RewardLine{
					Place:        p.Place,
					EnrollmentID: st.EnrollmentID,
					UserID:       enrollment.UserID,
					Amount:       p.Amount,
				})
				awarded += p.Amount
			}
		}

		distribution := &models.RewardDistribution{
			Reference:    uuid.NewString(),
			TournamentID: t.ID,
			TotalPot:     pot,
			TotalAwarded: awarded,
			Recipients:   len(lines),
		}
		if err := s.rewardRepo.CreateDistribution(ctx, exec, distribution); err != nil {
			if errors.Is(err, repositories.ErrDistributionConflict) {
				return ErrAlreadyDistributed
			}
			return err
		}

		if err := s.tournamentRepo.UpdateStatus(ctx, exec, t.ID, models.StatusRewardsDistributed); err != nil {
			return err
		}
		if err := s.transitionRepo.Create(ctx, exec, &models.StatusTransition{
			TournamentID: t.ID,
			OldStatus:    models.StatusCompleted,
			NewStatus:    models.StatusRewardsDistributed,
			Reason:       "rewards distributed",
			ActorID:      &actorID,
		}); err != nil {
			return err
		}

		receipt = &DistributionReceipt{Distribution: distribution, Lines: lines}
		return nil
	})
	if err != nil {
		return nil, translateStorageErr(err)
	}

	s.logger.InfoContext(ctx, "rewards distributed",
		slog.Int("tournament_id", tournamentID),
		slog.Int("total_pot", receipt.Distribution.TotalPot),
		slog.Int("total_awarded", receipt.Distribution.TotalAwarded),
		slog.Int("recipients", receipt.Distribution.Recipients))

	s.publisher.Publish(tournamentID, events.TypeRewardsDistributed, map[string]interface{}{
		"reference":     receipt.Distribution.Reference,
		"total_pot":     receipt.Distribution.TotalPot,
		"total_awarded": receipt.Distribution.TotalAwarded,
		"recipients":    receipt.Distribution.Recipients,
	})

	if s.uploader != nil {
		go s.archive(receipt)
	}
	return receipt, nil
}

// archive uploads the settled distribution summary to object storage.
// Best effort, after the commit: the ledger, not the archive, is the
// source of truth.
func (s *rewardService) archive(receipt *DistributionReceipt) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	doc, err := json.Marshal(receipt)
	if err != nil {
		s.logger.Error("failed to marshal distribution archive",
			slog.Int("tournament_id", receipt.Distribution.TournamentID),
			slog.String("error", err.Error()))
		return
	}

	key := fmt.Sprintf("distributions/tournament-%d-%s.json",
		receipt.Distribution.TournamentID, receipt.Distribution.Reference)
	result, err := s.uploader.Upload(ctx, key, "application/json", bytes.NewReader(doc))
	if err != nil {
		s.logger.Error("failed to archive reward distribution",
			slog.Int("tournament_id", receipt.Distribution.TournamentID),
			slog.String("error", err.Error()))
		return
	}
	s.logger.Info("reward distribution archived",
		slog.Int("tournament_id", receipt.Distribution.TournamentID),
		slog.String("key", result.Key),
		slog.String("location", result.Location))
}

func (s *rewardService) GetDistribution(ctx context.Context, tournamentID int) (*models.RewardDistribution, error) {
	d, err := s.rewardRepo.GetByTournament(ctx, nil, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrDistributionNotFound) {
			return nil, ErrDistributionNotFound
		}
		return nil, translateStorageErr(err)
	}
	return d, nil
}
