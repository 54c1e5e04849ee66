package services

import (
	"errors"

	"github.com/academyhq/tournament-core/repositories"
)

// translateStorageErr maps repository sentinels that every service
// surfaces the same way. Service-specific mappings stay local.
func translateStorageErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrStorageUnavailable):
		return ErrServiceUnavailable
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrEnrollmentNotFound):
		return ErrEnrollmentNotFound
	case errors.Is(err, repositories.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repositories.ErrSessionNotFound):
		return ErrSessionNotFound
	}
	return err
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
