package models

import (
	"time"

	"github.com/google/uuid"
)

// AdminUser is the single-role operator account that authenticates against
// the admin HTTP surface. The platform has exactly one role (Non-goals
// exclude multi-tenant RBAC), so there is no Role column.
type AdminUser struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string `json:"-"`
	CreatedAt    time.Time
}

// AdminUserPublic is AdminUser without the password hash.
type AdminUserPublic struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPublic strips sensitive fields for API responses.
func (u *AdminUser) ToPublic() AdminUserPublic {
	return AdminUserPublic{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}
