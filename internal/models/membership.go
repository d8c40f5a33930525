package models

import (
	"time"

	"github.com/google/uuid"
)

// Role carries a permission set or the AllPermissions override.
type Role struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	AllPermissions bool      `json:"all_permissions"`
	Permissions    []string  `json:"permissions"`
}

// Membership binds a role to a user or a group within a collection or exhibit.
// Exactly one of UserID and GroupID is set.
type Membership struct {
	ID        uuid.UUID  `json:"id"`
	ScopeID   uuid.UUID  `json:"scope_id"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	GroupID   *uuid.UUID `json:"group_id,omitempty"`
	RoleID    uuid.UUID  `json:"role_id"`
	CreatedAt time.Time  `json:"created_at"`
}

// Group is a named set of users that can hold memberships.
type Group struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// GroupMembership places a user in a group.
type GroupMembership struct {
	ID        uuid.UUID `json:"id"`
	GroupID   uuid.UUID `json:"group_id"`
	UserID    uuid.UUID `json:"user_id"`
	RoleID    uuid.UUID `json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
}
