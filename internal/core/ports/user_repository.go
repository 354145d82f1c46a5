package ports

import (
	"context"

	"github.com/fleetops/fleetbot/internal/core/domain"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	// EnsureUser upserts a user by Telegram id. When the insert makes the
	// user the first ever registered, they are promoted to admin in the same
	// call. Returns the user's current role.
	EnsureUser(ctx context.Context, telegramID int64, fullName string) (domain.Role, error)
	// RoleOf returns the role of a known user, or ErrUserNotFound.
	RoleOf(ctx context.Context, telegramID int64) (domain.Role, error)
	// SetRole updates an existing user's role, or returns ErrUserNotFound.
	SetRole(ctx context.Context, telegramID int64, role domain.Role) error
	// ListByRole returns all users with the given role.
	ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
}
