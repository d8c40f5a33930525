package authz

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gallery-sim/backend/internal/models"
)

// MembershipStore finds the roles a user holds on one scope instance.
type MembershipStore interface {
	// UserRole returns the role of the direct user membership, or nil when there is none.
	UserRole(ctx context.Context, scope Scope, scopeID, userID uuid.UUID) (*models.Role, error)
	// GroupRoles returns the roles of memberships held by any group the user belongs to.
	GroupRoles(ctx context.Context, scope Scope, scopeID, userID uuid.UUID) ([]models.Role, error)
}

// Resolver combines system permissions with scoped membership roles.
type Resolver struct {
	store MembershipStore
}

// NewResolver creates a Resolver.
func NewResolver(store MembershipStore) *Resolver {
	return &Resolver{store: store}
}

// Effective is a principal's resolved permission set on one scope instance.
type Effective struct {
	All         bool               `json:"all_permissions"`
	Permissions []ScopedPermission `json:"permissions"`
}

// Has reports whether e grants any of perms.
func (e Effective) Has(perms ...ScopedPermission) bool {
	if e.All {
		return len(perms) > 0
	}
	for _, want := range perms {
		for _, have := range e.Permissions {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Effective resolves the scoped permissions of p on (scope, scopeID).
// A direct user membership wins; otherwise the roles of all the user's group memberships are unioned.
func (r *Resolver) Effective(ctx context.Context, p Principal, scope Scope, scopeID uuid.UUID) (Effective, error) {
	var roles []models.Role
	direct, err := r.store.UserRole(ctx, scope, scopeID, p.UserID)
	if err != nil {
		return Effective{}, fmt.Errorf("user role: %w", err)
	}
	if direct != nil {
		roles = []models.Role{*direct}
	} else {
		roles, err = r.store.GroupRoles(ctx, scope, scopeID, p.UserID)
		if err != nil {
			return Effective{}, fmt.Errorf("group roles: %w", err)
		}
	}

	var eff Effective
	seen := make(map[ScopedPermission]struct{})
	for _, role := range roles {
		if role.AllPermissions {
			return Effective{All: true}, nil
		}
		for _, perm := range role.Permissions {
			sp := ScopedPermission(perm)
			if _, ok := seen[sp]; ok {
				continue
			}
			seen[sp] = struct{}{}
			eff.Permissions = append(eff.Permissions, sp)
		}
	}
	return eff, nil
}

// Authorize succeeds when p holds any of systemPerms, or when its effective role on the scope
// grants any of scopedPerms. No membership means no scoped access.
func (r *Resolver) Authorize(ctx context.Context, p Principal, scope Scope, scopeID uuid.UUID, systemPerms []SystemPermission, scopedPerms []ScopedPermission) (bool, error) {
	if p.HasAny(systemPerms...) {
		return true, nil
	}
	if len(scopedPerms) == 0 || scopeID == uuid.Nil {
		return false, nil
	}
	eff, err := r.Effective(ctx, p, scope, scopeID)
	if err != nil {
		return false, err
	}
	return eff.Has(scopedPerms...), nil
}
