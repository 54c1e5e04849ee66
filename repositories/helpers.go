package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// ErrStorageUnavailable is returned when a transaction keeps failing
// with a transient storage error after the internal retry.
var ErrStorageUnavailable = errors.New("storage temporarily unavailable")

// SQLExecutor is satisfied by both *sql.DB and *sql.Tx, so repository
// methods can run standalone or join an enclosing transaction.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TxRunner executes a function inside a database transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(exec SQLExecutor) error) error
}

type sqlTxRunner struct {
	db      *sql.DB
	logger  *slog.Logger
	backoff time.Duration
}

func NewTxRunner(db *sql.DB, logger *slog.Logger) TxRunner {
	return &sqlTxRunner{db: db, logger: logger, backoff: 50 * time.Millisecond}
}

// RunInTx begins a transaction, runs fn and commits. Transient failures
// (serialization, deadlock, lock timeout) are retried once after a
// short backoff; a second transient failure surfaces as
// ErrStorageUnavailable. Business errors pass through untouched.
func (r *sqlTxRunner) RunInTx(ctx context.Context, fn func(exec SQLExecutor) error) error {
	err := r.runOnce(ctx, fn)
	if err == nil || !isTransient(err) {
		return err
	}

	r.logger.WarnContext(ctx, "transient storage error, retrying transaction", slog.Any("error", err))
	select {
	case <-time.After(r.backoff):
	case <-ctx.Done():
		return ctx.Err()
	}

	err = r.runOnce(ctx, fn)
	if err != nil && isTransient(err) {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return err
}

func (r *sqlTxRunner) runOnce(ctx context.Context, fn func(exec SQLExecutor) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.logger.ErrorContext(ctx, "transaction rollback failed", slog.Any("error", rbErr))
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	err = fn(tx)
	return err
}

// isTransient reports whether the error is worth one blind retry:
// serialization_failure, deadlock_detected or lock_not_available.
func isTransient(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}

func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundError
	}
	return nil
}
