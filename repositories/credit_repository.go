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
	ErrCreditAccountNotFound = errors.New("credit account not found")
	ErrCreditAccountConflict = errors.New("credit account already exists for this user")
	// ErrInsufficientCredits is returned when the conditional deduct
	// matches no row: either the account does not exist or its balance
	// is below the requested amount.
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// CreditRepository is the ledger. Balances move only through Deduct and
// Refund, both single-statement updates, so the balance >= 0 invariant
// holds under any concurrent interleaving.
type CreditRepository interface {
	CreateAccount(ctx context.Context, exec SQLExecutor, userID, initialBalance int) error
	GetBalance(ctx context.Context, exec SQLExecutor, userID int) (int, error)
	// Deduct subtracts amount in one conditional statement
	// (balance = balance - amount WHERE balance >= amount). It is
	// never a read-then-write pair.
	Deduct(ctx context.Context, exec SQLExecutor, userID, amount int) error
	// Refund adds amount unconditionally; it fails only when the
	// account does not exist.
	Refund(ctx context.Context, exec SQLExecutor, userID, amount int) error
	CreateTransaction(ctx context.Context, exec SQLExecutor, t *models.CreditTransaction) error
	ListTransactionsByUser(ctx context.Context, userID int, limit int) ([]*models.CreditTransaction, error)
	CountTransactionsByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
}

type postgresCreditRepository struct {
	db *sql.DB
}

func NewPostgresCreditRepository(db *sql.DB) CreditRepository {
	return &postgresCreditRepository{db: db}
}

func (r *postgresCreditRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresCreditRepository) CreateAccount(ctx context.Context, exec SQLExecutor, userID, initialBalance int) error {
	query := `INSERT INTO credit_accounts (user_id, balance) VALUES ($1, $2)`
	_, err := r.getExecutor(exec).ExecContext(ctx, query, userID, initialBalance)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrCreditAccountConflict
		}
		return fmt.Errorf("failed to create credit account: %w", err)
	}
	return nil
}

func (r *postgresCreditRepository) GetBalance(ctx context.Context, exec SQLExecutor, userID int) (int, error) {
	query := `SELECT balance FROM credit_accounts WHERE user_id = $1`
	var balance int
	err := r.getExecutor(exec).QueryRowContext(ctx, query, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrCreditAccountNotFound
		}
		return 0, fmt.Errorf("failed to get credit balance: %w", err)
	}
	return balance, nil
}

func (r *postgresCreditRepository) Deduct(ctx context.Context, exec SQLExecutor, userID, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("deduct amount must be positive, got %d", amount)
	}
	query := `
		UPDATE credit_accounts
		SET balance = balance - $1, updated_at = now()
		WHERE user_id = $2 AND balance >= $1`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to deduct credits: %w", err)
	}
	return checkAffectedRows(result, ErrInsufficientCredits)
}

func (r *postgresCreditRepository) Refund(ctx context.Context, exec SQLExecutor, userID, amount int) error {
	if amount < 0 {
		return fmt.Errorf("refund amount must not be negative, got %d", amount)
	}
	query := `
		UPDATE credit_accounts
		SET balance = balance + $1, updated_at = now()
		WHERE user_id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to refund credits: %w", err)
	}
	return checkAffectedRows(result, ErrCreditAccountNotFound)
}

func (r *postgresCreditRepository) CreateTransaction(ctx context.Context, exec SQLExecutor, t *models.CreditTransaction) error {
	query := `
		INSERT INTO credit_transactions (reference, user_id, amount, type, enrollment_id, tournament_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		t.Reference, t.UserID, t.Amount, t.Type, t.EnrollmentID, t.TournamentID,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create credit transaction: %w", err)
	}
	return nil
}

func (r *postgresCreditRepository) ListTransactionsByUser(ctx context.Context, userID int, limit int) ([]*models.CreditTransaction, error) {
	query := `
		SELECT id, reference, user_id, amount, type, enrollment_id, tournament_id, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list credit transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]*models.CreditTransaction, 0)
	for rows.Next() {
		var t models.CreditTransaction
		if err := rows.Scan(
			&t.ID, &t.Reference, &t.UserID, &t.Amount, &t.Type,
			&t.EnrollmentID, &t.TournamentID, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan credit transaction row: %w", err)
		}
		transactions = append(transactions, &t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credit transaction rows: %w", err)
	}
	return transactions, nil
}

func (r *postgresCreditRepository) CountTransactionsByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	query := `SELECT COUNT(*) FROM credit_transactions WHERE tournament_id = $1`
	var count int
	err := r.getExecutor(exec).QueryRowContext(ctx, query, tournamentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count credit transactions: %w", err)
	}
	return count, nil
}
