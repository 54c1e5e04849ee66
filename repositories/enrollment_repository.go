package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/academyhq/tournament-core/models"
	"github.com/lib/pq"
)

var (
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	// ErrEnrollmentConflict maps the partial unique index on
	// (user_id, tournament_id) WHERE is_active. The index, not
	// application code, is what closes the duplicate-request race.
	ErrEnrollmentConflict          = errors.New("user already has an active enrollment for this tournament")
	ErrEnrollmentUserInvalid       = errors.New("enrollment user conflict or invalid")
	ErrEnrollmentTournamentInvalid = errors.New("enrollment tournament conflict or invalid")
	ErrEnrollmentAlreadyInactive   = errors.New("enrollment is already inactive")
)

type EnrollmentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, e *models.Enrollment) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Enrollment, error)
	GetActiveByUserAndTournament(ctx context.Context, exec SQLExecutor, userID, tournamentID int) (*models.Enrollment, error)
	// CountActive recomputes the capacity counter. Callers must hold
	// the tournament row lock for the count to be race-free.
	CountActive(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
	// Deactivate flips is_active to false only if it is currently
	// true. Zero rows affected means the enrollment was already
	// inactive; callers treat that as the idempotent no-op branch.
	Deactivate(ctx context.Context, exec SQLExecutor, id int, status models.EnrollmentStatus) error
	// StampCheckIn sets checked_in_at only when it is still NULL.
	// Returns false when the enrollment was already stamped.
	StampCheckIn(ctx context.Context, exec SQLExecutor, id int, at time.Time) (bool, error)
	ListSeedable(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Enrollment, error)
	ListCheckedIn(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Enrollment, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Enrollment, error)
}

type postgresEnrollmentRepository struct {
	db *sql.DB
}

func NewPostgresEnrollmentRepository(db *sql.DB) EnrollmentRepository {
	return &postgresEnrollmentRepository{db: db}
}

func (r *postgresEnrollmentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const enrollmentColumns = `
	id, tournament_id, user_id, is_active, request_status, checked_in_at, created_at`

func (r *postgresEnrollmentRepository) Create(ctx context.Context, exec SQLExecutor, e *models.Enrollment) error {
	query := `
		INSERT INTO enrollments (tournament_id, user_id, is_active, request_status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		e.TournamentID, e.UserID, e.IsActive, e.RequestStatus,
	).Scan(&e.ID, &e.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23505":
				if pqErr.Constraint == "enrollments_user_tournament_active_key" {
					return ErrEnrollmentConflict
				}
			case "23503":
				switch pqErr.Constraint {
				case "enrollments_user_id_fkey":
					return ErrEnrollmentUserInvalid
				case "enrollments_tournament_id_fkey":
					return ErrEnrollmentTournamentInvalid
				}
			}
		}
		return fmt.Errorf("failed to create enrollment: %w", err)
	}
	return nil
}

func (r *postgresEnrollmentRepository) scanEnrollment(rowScanner interface {
	Scan(dest ...interface{}) error
}, e *models.Enrollment) error {
	return rowScanner.Scan(
		&e.ID, &e.TournamentID, &e.UserID, &e.IsActive,
		&e.RequestStatus, &e.CheckedInAt, &e.CreatedAt,
	)
}

func (r *postgresEnrollmentRepository) findOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.Enrollment, error) {
	e := &models.Enrollment{}
	row := r.getExecutor(exec).QueryRowContext(ctx, query, args...)
	if err := r.scanEnrollment(row, e); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("failed to find enrollment: %w", err)
	}
	return e, nil
}

func (r *postgresEnrollmentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Enrollment, error) {
	query := `SELECT` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	return r.findOne(ctx, exec, query, id)
}

func (r *postgresEnrollmentRepository) GetActiveByUserAndTournament(ctx context.Context, exec SQLExecutor, userID, tournamentID int) (*models.Enrollment, error) {
	query := `SELECT` + enrollmentColumns + ` FROM enrollments
		WHERE user_id = $1 AND tournament_id = $2 AND is_active = true`
	return r.findOne(ctx, exec, query, userID, tournamentID)
}

func (r *postgresEnrollmentRepository) CountActive(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	query := `SELECT COUNT(*) FROM enrollments WHERE tournament_id = $1 AND is_active = true`
	var count int
	err := r.getExecutor(exec).QueryRowContext(ctx, query, tournamentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active enrollments: %w", err)
	}
	return count, nil
}

func (r *postgresEnrollmentRepository) Deactivate(ctx context.Context, exec SQLExecutor, id int, status models.EnrollmentStatus) error {
	query := `
		UPDATE enrollments SET is_active = false, request_status = $1
		WHERE id = $2 AND is_active = true`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate enrollment: %w", err)
	}
	return checkAffectedRows(result, ErrEnrollmentAlreadyInactive)
}

func (r *postgresEnrollmentRepository) StampCheckIn(ctx context.Context, exec SQLExecutor, id int, at time.Time) (bool, error) {
	query := `
		UPDATE enrollments SET checked_in_at = $1
		WHERE id = $2 AND checked_in_at IS NULL`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to stamp check-in: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows for check-in: %w", err)
	}
	return rowsAffected > 0, nil
}

func (r *postgresEnrollmentRepository) listWhere(ctx context.Context, exec SQLExecutor, where string, args ...interface{}) ([]*models.Enrollment, error) {
	query := `SELECT` + enrollmentColumns + ` FROM enrollments ` + where + ` ORDER BY created_at ASC, id ASC`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	enrollments := make([]*models.Enrollment, 0)
	for rows.Next() {
		var e models.Enrollment
		if err := r.scanEnrollment(rows, &e); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment row: %w", err)
		}
		enrollments = append(enrollments, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating enrollment rows: %w", err)
	}
	return enrollments, nil
}

func (r *postgresEnrollmentRepository) ListSeedable(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Enrollment, error) {
	return r.listWhere(ctx, exec,
		`WHERE tournament_id = $1 AND is_active = true AND request_status = $2`,
		tournamentID, models.EnrollmentApproved)
}

func (r *postgresEnrollmentRepository) ListCheckedIn(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Enrollment, error) {
	return r.listWhere(ctx, exec,
		`WHERE tournament_id = $1 AND is_active = true AND request_status = $2 AND checked_in_at IS NOT NULL`,
		tournamentID, models.EnrollmentApproved)
}

func (r *postgresEnrollmentRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Enrollment, error) {
	return r.listWhere(ctx, nil, `WHERE tournament_id = $1`, tournamentID)
}
