package domain

import "time"

// Role classifies what a user is allowed to do.
type Role string

const (
	RoleUser     Role = "user"
	RoleMechanic Role = "mechanic"
	RoleAdmin    Role = "admin"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleMechanic, RoleAdmin:
		return true
	}
	return false
}

// User is an actor identified by their Telegram numeric id.
// Users are created implicitly on first contact; the very first user in the
// system is promoted to admin.
type User struct {
	TelegramID int64     `json:"telegram_id" bson:"_id"`
	FullName   string    `json:"full_name" bson:"full_name"`
	Role       Role      `json:"role" bson:"role"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}
