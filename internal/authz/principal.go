package authz

import (
	"time"

	"github.com/google/uuid"
)

// Principal is the calling user with their system-level permissions already resolved.
type Principal struct {
	UserID uuid.UUID
	Email  string
	// AllSystemPermissions is set when the user's system role carries the all-permissions override.
	AllSystemPermissions bool
	SystemPermissions    []SystemPermission
	LoadedAt             time.Time
}

// HasAny reports whether p holds at least one of perms system-wide.
func (p Principal) HasAny(perms ...SystemPermission) bool {
	if len(perms) == 0 {
		return false
	}
	if p.AllSystemPermissions {
		return true
	}
	for _, want := range perms {
		for _, have := range p.SystemPermissions {
			if have == want {
				return true
			}
		}
	}
	return false
}
