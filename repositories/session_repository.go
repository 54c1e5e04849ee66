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
	ErrSessionNotFound          = errors.New("session not found")
	ErrSessionNotScheduled      = errors.New("session is not in a scheduled state")
	ErrSessionEnrollmentInvalid = errors.New("session enrollment conflict or invalid")
)

type SessionRepository interface {
	CreateBatch(ctx context.Context, exec SQLExecutor, sessions []*models.Session) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Session, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Session, error)
	// RecordResult completes a session, conditionally on it still
	// being scheduled, so a result cannot be recorded twice.
	RecordResult(ctx context.Context, exec SQLExecutor, id int, winnerEnrollmentID int, score *string) error
	// CancelScheduledByEnrollment cancels the enrollment's remaining
	// scheduled sessions and returns how many were cancelled.
	CancelScheduledByEnrollment(ctx context.Context, exec SQLExecutor, tournamentID, enrollmentID int) (int, error)
	CountByStatus(ctx context.Context, exec SQLExecutor, tournamentID int, status models.SessionStatus) (int, error)
	// WinsByEnrollment aggregates completed-session wins per
	// enrollment for the tournament.
	WinsByEnrollment(ctx context.Context, exec SQLExecutor, tournamentID int) (map[int]int, error)
}

type postgresSessionRepository struct {
	db *sql.DB
}

func NewPostgresSessionRepository(db *sql.DB) SessionRepository {
	return &postgresSessionRepository{db: db}
}

func (r *postgresSessionRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const sessionColumns = `
	id, tournament_id, round, order_in_round, group_label,
	p1_enrollment_id, p2_enrollment_id, status, score, winner_enrollment_id, created_at`

func (r *postgresSessionRepository) CreateBatch(ctx context.Context, exec SQLExecutor, sessions []*models.Session) error {
	query := `
		INSERT INTO sessions (
			tournament_id, round, order_in_round, group_label,
			p1_enrollment_id, p2_enrollment_id, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	executor := r.getExecutor(exec)
	for _, s := range sessions {
		err := executor.QueryRowContext(ctx, query,
			s.TournamentID, s.Round, s.OrderInRound, s.GroupLabel,
			s.P1EnrollmentID, s.P2EnrollmentID, s.Status,
		).Scan(&s.ID, &s.CreatedAt)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23503" {
				return ErrSessionEnrollmentInvalid
			}
			return fmt.Errorf("failed to create session (round %d, order %d): %w", s.Round, s.OrderInRound, err)
		}
	}
	return nil
}

func (r *postgresSessionRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Session, error) {
	query := `SELECT` + sessionColumns + ` FROM sessions WHERE id = $1`
	s := &models.Session{}
	err := r.getExecutor(exec).QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.TournamentID, &s.Round, &s.OrderInRound, &s.GroupLabel,
		&s.P1EnrollmentID, &s.P2EnrollmentID, &s.Status, &s.Score,
		&s.WinnerEnrollmentID, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

func (r *postgresSessionRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Session, error) {
	query := `SELECT` + sessionColumns + ` FROM sessions
		WHERE tournament_id = $1
		ORDER BY round ASC, order_in_round ASC`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*models.Session, 0)
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(
			&s.ID, &s.TournamentID, &s.Round, &s.OrderInRound, &s.GroupLabel,
			&s.P1EnrollmentID, &s.P2EnrollmentID, &s.Status, &s.Score,
			&s.WinnerEnrollmentID, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, &s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}
	return sessions, nil
}

func (r *postgresSessionRepository) RecordResult(ctx context.Context, exec SQLExecutor, id int, winnerEnrollmentID int, score *string) error {
	query := `
		UPDATE sessions
		SET status = $1, winner_enrollment_id = $2, score = $3
		WHERE id = $4 AND status = $5`
	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		models.SessionCompleted, winnerEnrollmentID, score, id, models.SessionScheduled)
	if err != nil {
		return fmt.Errorf("failed to record session result: %w", err)
	}
	return checkAffectedRows(result, ErrSessionNotScheduled)
}

func (r *postgresSessionRepository) CancelScheduledByEnrollment(ctx context.Context, exec SQLExecutor, tournamentID, enrollmentID int) (int, error) {
	query := `
		UPDATE sessions SET status = $1
		WHERE tournament_id = $2
		  AND status = $3
		  AND (p1_enrollment_id = $4 OR p2_enrollment_id = $4)`
	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		models.SessionCanceled, tournamentID, models.SessionScheduled, enrollmentID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel sessions for enrollment %d: %w", enrollmentID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows for session cancellation: %w", err)
	}
	return int(rowsAffected), nil
}

func (r *postgresSessionRepository) CountByStatus(ctx context.Context, exec SQLExecutor, tournamentID int, status models.SessionStatus) (int, error) {
	query := `SELECT COUNT(*) FROM sessions WHERE tournament_id = $1 AND status = $2`
	var count int
	err := r.getExecutor(exec).QueryRowContext(ctx, query, tournamentID, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

func (r *postgresSessionRepository) WinsByEnrollment(ctx context.Context, exec SQLExecutor, tournamentID int) (map[int]int, error) {
	query := `
		SELECT winner_enrollment_id, COUNT(*)
		FROM sessions
		WHERE tournament_id = $1 AND status = $2 AND winner_enrollment_id IS NOT NULL
		GROUP BY winner_enrollment_id`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, tournamentID, models.SessionCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate session wins: %w", err)
	}
	defer rows.Close()

	wins := make(map[int]int)
	for rows.Next() {
		var enrollmentID, count int
		if err := rows.Scan(&enrollmentID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan session win row: %w", err)
		}
		wins[enrollmentID] = count
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session win rows: %w", err)
	}
	return wins, nil
}
