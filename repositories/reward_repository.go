package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/academyhq/tournament-core/models"
	"github.com/lib/pq"
)

var (
	ErrDistributionNotFound = errors.New("reward distribution not found")
	// ErrDistributionConflict maps the unique constraint on
	// tournament_id: a second distribution row can never be inserted.
	ErrDistributionConflict = errors.New("rewards already distributed for this tournament")
)

type RewardRepository interface {
	CreateDistribution(ctx context.Context, exec SQLExecutor, d *models.RewardDistribution) error
	GetByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (*models.RewardDistribution, error)
}

type postgresRewardRepository struct {
	db *sql.DB
}

func NewPostgresRewardRepository(db *sql.DB) RewardRepository {
	return &postgresRewardRepository{db: db}
}

func (r *postgresRewardRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRewardRepository) CreateDistribution(ctx context.Context, exec SQLExecutor, d *models.RewardDistribution) error {
	query := `
		INSERT INTO reward_distributions (reference, tournament_id, total_pot, total_awarded, recipients)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, distributed_at`
	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		d.Reference, d.TournamentID, d.TotalPot, d.TotalAwarded, d.Recipients,
	).Scan(&d.ID, &d.DistributedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			if pqErr.Constraint == "reward_distributions_tournament_id_key" {
				return ErrDistributionConflict
			}
		}
		return fmt.Errorf("failed to create reward distribution: %w", err)
	}
	return nil
}

func (r *postgresRewardRepository) GetByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (*models.RewardDistribution, error) {
	query := `
		SELECT id, reference, tournament_id, total_pot, total_awarded, recipients, distributed_at
		FROM reward_distributions
		WHERE tournament_id = $1`
	d := &models.RewardDistribution{}
	err := r.getExecutor(exec).QueryRowContext(ctx, query, tournamentID).Scan(
		&d.ID, &d.Reference, &d.TournamentID, &d.TotalPot, &d.TotalAwarded, &d.Recipients, &d.DistributedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDistributionNotFound
		}
		return nil, fmt.Errorf("failed to get reward distribution: %w", err)
	}
	return d, nil
}
