package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/academyhq/tournament-core/models"
	"github.com/academyhq/tournament-core/repositories"
	"github.com/academyhq/tournament-core/utils"
)

const minPasswordLength = 8

type RegisterInput struct {
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Email     string          `json:"email"`
	Password  string          `json:"password"`
	Role      models.UserRole `json:"role,omitempty"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthService interface {
	// Register creates the user together with their credit account,
	// seeded with the configured starting balance, in one transaction.
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, input LoginInput) (*models.User, error)
}

type authService struct {
	runner          repositories.TxRunner
	userRepo        repositories.UserRepository
	creditRepo      repositories.CreditRepository
	startingBalance int
	logger          *slog.Logger
}

func NewAuthService(
	runner repositories.TxRunner,
	userRepo repositories.UserRepository,
	creditRepo repositories.CreditRepository,
	startingBalance int,
	logger *slog.Logger,
) AuthService {
	return &authService{
		runner:          runner,
		userRepo:        userRepo,
		creditRepo:      creditRepo,
		startingBalance: startingBalance,
		logger:          logger,
	}
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if len(input.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	hash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role := input.Role
	if role == "" {
		role = models.RolePlayer
	}

	user := &models.User{
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         role,
	}

	err = s.runner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.userRepo.Create(ctx, exec, user); err != nil {
			if errors.Is(err, repositories.ErrUserEmailConflict) {
				return ErrUserEmailConflict
			}
			return err
		}
		return s.creditRepo.CreateAccount(ctx, exec, user.ID, s.startingBalance)
	})
	if err != nil {
		return nil, translateStorageErr(err)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.Int("user_id", user.ID),
		slog.String("role", string(user.Role)),
		slog.Int("starting_balance", s.startingBalance))

	user.PasswordHash = ""
	return user, nil
}

func (s *authService) Login(ctx context.Context, input LoginInput) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(input.Email)))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, translateStorageErr(err)
	}

	if !utils.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	user.PasswordHash = ""
	return user, nil
}
