package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/academyhq/tournament-core/models"
)

type StandingRepository interface {
	CreateBatch(ctx context.Context, exec SQLExecutor, standings []*models.Standing) error
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Standing, error)
	ExistsByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (bool, error)
}

type postgresStandingRepository struct {
	db *sql.DB
}

func NewPostgresStandingRepository(db *sql.DB) StandingRepository {
	return &postgresStandingRepository{db: db}
}

func (r *postgresStandingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresStandingRepository) CreateBatch(ctx context.Context, exec SQLExecutor, standings []*models.Standing) error {
	query := `
		INSERT INTO standings (tournament_id, enrollment_id, place, wins)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	executor := r.getExecutor(exec)
	for _, s := range standings {
		err := executor.QueryRowContext(ctx, query,
			s.TournamentID, s.EnrollmentID, s.Place, s.Wins,
		).Scan(&s.ID, &s.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create standing (place %d): %w", s.Place, err)
		}
	}
	return nil
}

func (r *postgresStandingRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Standing, error) {
	query := `
		SELECT id, tournament_id, enrollment_id, place, wins, created_at
		FROM standings
		WHERE tournament_id = $1
		ORDER BY place ASC`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list standings: %w", err)
	}
	defer rows.Close()

	standings := make([]*models.Standing, 0)
	for rows.Next() {
		var s models.Standing
		if err := rows.Scan(&s.ID, &s.TournamentID, &s.EnrollmentID, &s.Place, &s.Wins, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan standing row: %w", err)
		}
		standings = append(standings, &s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating standing rows: %w", err)
	}
	return standings, nil
}

func (r *postgresStandingRepository) ExistsByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM standings WHERE tournament_id = $1)`
	var exists bool
	err := r.getExecutor(exec).QueryRowContext(ctx, query, tournamentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check standings existence: %w", err)
	}
	return exists, nil
}
