// Package authz resolves what a principal may do system-wide and inside a collection, exhibit or group.
package authz

import (
	"github.com/google/uuid"
)

// SystemPermission is granted through a user's system role and carried in the claims cache.
type SystemPermission string

const (
	CreateCollections SystemPermission = "CreateCollections"
	ViewCollections   SystemPermission = "ViewCollections"
	EditCollections   SystemPermission = "EditCollections"
	ManageCollections SystemPermission = "ManageCollections"
	CreateExhibits    SystemPermission = "CreateExhibits"
	ViewExhibits      SystemPermission = "ViewExhibits"
	EditExhibits      SystemPermission = "EditExhibits"
	ManageExhibits    SystemPermission = "ManageExhibits"
	ViewUsers         SystemPermission = "ViewUsers"
	ManageUsers       SystemPermission = "ManageUsers"
	ViewRoles         SystemPermission = "ViewRoles"
	ManageRoles       SystemPermission = "ManageRoles"
	ViewGroups        SystemPermission = "ViewGroups"
	ManageGroups      SystemPermission = "ManageGroups"
)

// ScopedPermission is granted through a membership role on one scope instance.
type ScopedPermission string

const (
	ViewCollection   ScopedPermission = "ViewCollection"
	EditCollection   ScopedPermission = "EditCollection"
	ManageCollection ScopedPermission = "ManageCollection"

	ViewExhibit   ScopedPermission = "ViewExhibit"
	EditExhibit   ScopedPermission = "EditExhibit"
	ManageExhibit ScopedPermission = "ManageExhibit"

	ViewGroup   ScopedPermission = "ViewGroup"
	ManageGroup ScopedPermission = "ManageGroup"
)

// Scope names the kind of entity a membership is attached to.
type Scope string

const (
	ScopeCollection Scope = "collection"
	ScopeExhibit    Scope = "exhibit"
	ScopeGroup      Scope = "group"
)

// Well-known role ids. They are seeded by migration 002 and must match it.
var (
	SystemRoleAdministrator    = uuid.MustParse("f35e8fff-f996-4cba-b303-3ba515ad8d2f")
	SystemRoleContentDeveloper = uuid.MustParse("d80b73c3-95d7-4468-8650-c62bbd082507")

	CollectionRoleManager  = uuid.MustParse("1a3f26cd-9d99-4b98-b914-12931e786198")
	CollectionRoleMember   = uuid.MustParse("f870d8ee-7332-4f7f-8ee0-63bd07cfd7e4")
	CollectionRoleObserver = uuid.MustParse("1c9d0d6e-36a6-49b5-8c87-0c2f3a5d8e1b")

	ExhibitRoleManager  = uuid.MustParse("2b7c8a8e-5a7e-4c1b-9d0e-6f0a8d7b2c31")
	ExhibitRoleMember   = uuid.MustParse("c7a9d1f0-2e3b-4a5c-8d6e-7f8091a2b3c4")
	ExhibitRoleObserver = uuid.MustParse("5e4d3c2b-1a09-4f8e-9d7c-6b5a49382716")

	GroupRoleManager = uuid.MustParse("3e6f1a2b-7c8d-4e9f-a0b1-c2d3e4f5a6b7")
	GroupRoleMember  = uuid.MustParse("9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d")
)

// DefaultRole is the role a new membership of scope receives when none is given.
func DefaultRole(scope Scope) uuid.UUID {
	switch scope {
	case ScopeExhibit:
		return ExhibitRoleMember
	case ScopeGroup:
		return GroupRoleMember
	default:
		return CollectionRoleMember
	}
}
