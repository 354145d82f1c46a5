package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fleetops/fleetbot/internal/core/domain"
	"github.com/fleetops/fleetbot/internal/core/ports"
)

// UserService implements registration and role management on top of the user
// repository. The first-user-becomes-admin promotion happens inside the
// repository's EnsureUser so it stays coupled to the insert itself.
type UserService struct {
	repo   ports.UserRepository
	logger zerolog.Logger
}

func NewUserService(repo ports.UserRepository, logger zerolog.Logger) *UserService {
	return &UserService{repo: repo, logger: logger}
}

func (s *UserService) EnsureUser(ctx context.Context, telegramID int64, fullName string) (domain.Role, error) {
	role, err := s.repo.EnsureUser(ctx, telegramID, fullName)
	if err != nil {
		return "", fmt.Errorf("ensure user: %w", err)
	}
	if role == domain.RoleAdmin {
		s.logger.Info().Int64("telegram_id", telegramID).Msg("user holds admin role")
	}
	return role, nil
}

func (s *UserService) RoleOf(ctx context.Context, telegramID int64) (domain.Role, error) {
	return s.repo.RoleOf(ctx, telegramID)
}

// RequireAdmin gates admin-only commands. Unknown users are treated as
// unprivileged rather than as an error.
func (s *UserService) RequireAdmin(ctx context.Context, telegramID int64) error {
	role, err := s.repo.RoleOf(ctx, telegramID)
	if err != nil {
		if err == domain.ErrUserNotFound {
			return domain.ErrForbidden
		}
		return fmt.Errorf("require admin: %w", err)
	}
	if role != domain.RoleAdmin {
		return domain.ErrForbidden
	}
	return nil
}

func (s *UserService) PromoteMechanic(ctx context.Context, adminID, targetID int64) error {
	if err := s.RequireAdmin(ctx, adminID); err != nil {
		return err
	}
	if err := s.repo.SetRole(ctx, targetID, domain.RoleMechanic); err != nil {
		return err
	}
	s.logger.Info().Int64("admin_id", adminID).Int64("mechanic_id", targetID).Msg("mechanic role granted")
	return nil
}

func (s *UserService) Mechanics(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListByRole(ctx, domain.RoleMechanic)
}

func (s *UserService) Admins(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListByRole(ctx, domain.RoleAdmin)
}
