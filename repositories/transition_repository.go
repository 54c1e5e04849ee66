package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/academyhq/tournament-core/models"
)

type TransitionRepository interface {
	// Create appends one audit row. It is always called in the same
	// transaction as the status update it records.
	Create(ctx context.Context, exec SQLExecutor, t *models.StatusTransition) error
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.StatusTransition, error)
}

type postgresTransitionRepository struct {
	db *sql.DB
}

func NewPostgresTransitionRepository(db *sql.DB) TransitionRepository {
	return &postgresTransitionRepository{db: db}
}

func (r *postgresTransitionRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTransitionRepository) Create(ctx context.Context, exec SQLExecutor, t *models.StatusTransition) error {
	query := `
		INSERT INTO status_transitions (tournament_id, old_status, new_status, reason, actor_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		t.TournamentID, t.OldStatus, t.NewStatus, t.Reason, t.ActorID,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create status transition: %w", err)
	}
	return nil
}

func (r *postgresTransitionRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.StatusTransition, error) {
	query := `
		SELECT id, tournament_id, old_status, new_status, reason, actor_id, created_at
		FROM status_transitions
		WHERE tournament_id = $1
		ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list status transitions: %w", err)
	}
	defer rows.Close()

	transitions := make([]*models.StatusTransition, 0)
	for rows.Next() {
		var t models.StatusTransition
		if err := rows.Scan(&t.ID, &t.TournamentID, &t.OldStatus, &t.NewStatus, &t.Reason, &t.ActorID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status transition row: %w", err)
		}
		transitions = append(transitions, &t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status transition rows: %w", err)
	}
	return transitions, nil
}
