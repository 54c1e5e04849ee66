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
	ErrTournamentNotFound          = errors.New("tournament not found")
	ErrTournamentNameConflict      = errors.New("tournament name conflict for this organizer")
	ErrTournamentInvalidOrganizer  = errors.New("invalid organizer reference")
	ErrTournamentInvalidInstructor = errors.New("invalid instructor reference")
	ErrSessionsAlreadyGenerated    = errors.New("sessions already generated for this tournament")
	ErrRewardsAlreadyMarked        = errors.New("rewards already marked distributed for this tournament")
)

type ListTournamentsFilter struct {
	OrganizerID  *int
	InstructorID *int
	Status       *models.TournamentStatus
	Limit        int
	Offset       int
}

type TournamentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	// GetByIDForUpdate loads the tournament row under FOR UPDATE, so
	// concurrent admission and lifecycle operations on the same
	// tournament serialize while other tournaments proceed.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error
	SetInstructor(ctx context.Context, exec SQLExecutor, id int, instructorID *int) error
	// MarkSessionsGenerated flips the sessions_generated flag. The
	// update is conditional on the flag being unset, so it doubles as
	// the exactly-once guard for schedule generation.
	MarkSessionsGenerated(ctx context.Context, exec SQLExecutor, id int) error
	// MarkRewardsDistributed is the atomic check-and-set guarding
	// reward payout: it only succeeds for a completed tournament whose
	// rewards are not yet distributed.
	MarkRewardsDistributed(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `
	id, name, description, organizer_id, instructor_id, format, status,
	max_players, enrollment_cost, start_time, sessions_generated,
	rewards_distributed, created_at, updated_at`

func (r *postgresTournamentRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (
			name, description, organizer_id, format, status,
			max_players, enrollment_cost, start_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		t.Name, t.Description, t.OrganizerID, t.Format, t.Status,
		t.MaxPlayers, t.EnrollmentCost, t.StartTime,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)

	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1`
	return r.scanOne(r.getExecutor(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresTournamentRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1 FOR UPDATE`
	return r.scanOne(r.getExecutor(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresTournamentRepository) scanOne(row *sql.Row) (*models.Tournament, error) {
	t := &models.Tournament{}
	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.OrganizerID, &t.InstructorID,
		&t.Format, &t.Status, &t.MaxPlayers, &t.EnrollmentCost, &t.StartTime,
		&t.SessionsGenerated, &t.RewardsDistributed, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament: %w", err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE 1=1`
	args := []interface{}{}
	argID := 1

	if filter.OrganizerID != nil {
		query += fmt.Sprintf(" AND organizer_id = $%d", argID)
		args = append(args, *filter.OrganizerID)
		argID++
	}
	if filter.InstructorID != nil {
		query += fmt.Sprintf(" AND instructor_id = $%d", argID)
		args = append(args, *filter.InstructorID)
		argID++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}

	query += " ORDER BY start_time DESC, created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		var t models.Tournament
		if scanErr := rows.Scan(
			&t.ID, &t.Name, &t.Description, &t.OrganizerID, &t.InstructorID,
			&t.Format, &t.Status, &t.MaxPlayers, &t.EnrollmentCost, &t.StartTime,
			&t.SessionsGenerated, &t.RewardsDistributed, &t.CreatedAt, &t.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", scanErr)
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tournament rows: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error {
	query := `UPDATE tournaments SET status = $1, updated_at = now() WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, status, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) SetInstructor(ctx context.Context, exec SQLExecutor, id int, instructorID *int) error {
	query := `UPDATE tournaments SET instructor_id = $1, updated_at = now() WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, instructorID, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) MarkSessionsGenerated(ctx context.Context, exec SQLExecutor, id int) error {
	query := `
		UPDATE tournaments SET sessions_generated = true, updated_at = now()
		WHERE id = $1 AND sessions_generated = false`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark sessions generated: %w", err)
	}
	return checkAffectedRows(result, ErrSessionsAlreadyGenerated)
}

func (r *postgresTournamentRepository) MarkRewardsDistributed(ctx context.Context, exec SQLExecutor, id int) error {
	query := `
		UPDATE tournaments
		SET rewards_distributed = true, status = $1, updated_at = now()
		WHERE id = $2 AND status = $3 AND rewards_distributed = false`
	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		models.StatusRewardsDistributed, id, models.StatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to mark rewards distributed: %w", err)
	}
	return checkAffectedRows(result, ErrRewardsAlreadyMarked)
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "tournaments_organizer_id_name_key" {
				return ErrTournamentNameConflict
			}
		case "23503":
			switch pqErr.Constraint {
			case "tournaments_organizer_id_fkey":
				return ErrTournamentInvalidOrganizer
			case "tournaments_instructor_id_fkey":
				return ErrTournamentInvalidInstructor
			}
		}
	}
	return err
}
