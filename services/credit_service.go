package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/academyhq/tournament-core/models"
	"github.com/academyhq/tournament-core/repositories"
)

type CreditService interface {
	GetBalance(ctx context.Context, userID int) (int, error)
	ListTransactions(ctx context.Context, userID, limit int) ([]*models.CreditTransaction, error)
	// TopUp credits the account and appends the matching ledger entry.
	TopUp(ctx context.Context, userID, amount int) (int, error)
}

type creditService struct {
	runner     repositories.TxRunner
	creditRepo repositories.CreditRepository
	logger     *slog.Logger
}

func NewCreditService(runner repositories.TxRunner, creditRepo repositories.CreditRepository, logger *slog.Logger) CreditService {
	return &creditService{runner: runner, creditRepo: creditRepo, logger: logger}
}

func (s *creditService) GetBalance(ctx context.Context, userID int) (int, error) {
	balance, err := s.creditRepo.GetBalance(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrCreditAccountNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, translateStorageErr(err)
	}
	return balance, nil
}

func (s *creditService) ListTransactions(ctx context.Context, userID, limit int) ([]*models.CreditTransaction, error) {
	return s.creditRepo.ListTransactionsByUser(ctx, userID, limit)
}

func (s *creditService) TopUp(ctx context.Context, userID, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: top-up amount must be positive", ErrValidationFailed)
	}

	var balance int
	err := s.runner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.creditRepo.Refund(ctx, exec, userID, amount); err != nil {
			if errors.Is(err, repositories.ErrCreditAccountNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if err := s.creditRepo.CreateTransaction(ctx, exec, &models.CreditTransaction{
			Reference: uuid.NewString(),
			UserID:    userID,
			Amount:    amount,
			Type:      models.TransactionTopUp,
		}); err != nil {
			return err
		}
		var err error
		balance, err = s.creditRepo.GetBalance(ctx, exec, userID)
		return err
	})
	if err != nil {
		return 0, translateStorageErr(err)
	}

	s.logger.InfoContext(ctx, "credits topped up",
		slog.Int("user_id", userID),
		slog.Int("amount", amount),
		slog.Int("balance", balance))
	return balance, nil
}
