package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents an authorization level. It is derived from the email address
// on every request and never stored.
type Role string

const (
	RoleStudent    Role = "student"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// User is an identity issued by the external auth provider, plus the
// denormalized XP total.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	XPPoints  int       `json:"xp_points"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserPublic is User with its derived role for API responses.
type UserPublic struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Role     Role      `json:"role"`
	XPPoints int       `json:"xp_points"`
}

// ToPublic converts User to UserPublic with the given role.
func (u *User) ToPublic(role Role) UserPublic {
	return UserPublic{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Role:     role,
		XPPoints: u.XPPoints,
	}
}

// DisplayName returns the name, falling back to the email.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
