package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a platform user.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	Password     string     `json:"-"`
	Name         string     `json:"name"`
	SystemRoleID *uuid.UUID `json:"system_role_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	SystemRoleID *uuid.UUID `json:"system_role_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		SystemRoleID: u.SystemRoleID,
		CreatedAt:    u.CreatedAt,
	}
}
