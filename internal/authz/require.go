package authz

import (
	"context"

	"github.com/google/uuid"

	"github.com/gallery-sim/backend/pkg/apperr"
)

// Requirement is one named access check: any listed system permission, or any listed
// scoped permission on the scope instance.
type Requirement struct {
	Scope  Scope
	System []SystemPermission
	Scoped []ScopedPermission
	Denied string
}

var (
	ViewCollectionAccess = Requirement{
		Scope:  ScopeCollection,
		System: []SystemPermission{ViewCollections, EditCollections, ManageCollections},
		Scoped: []ScopedPermission{ViewCollection, EditCollection, ManageCollection},
		Denied: "you cannot view this collection",
	}
	EditCollectionAccess = Requirement{
		Scope:  ScopeCollection,
		System: []SystemPermission{EditCollections, ManageCollections},
		Scoped: []ScopedPermission{EditCollection, ManageCollection},
		Denied: "you cannot edit this collection",
	}
	ManageCollectionAccess = Requirement{
		Scope:  ScopeCollection,
		System: []SystemPermission{ManageCollections},
		Scoped: []ScopedPermission{ManageCollection},
		Denied: "you cannot manage this collection",
	}

	ViewExhibitAccess = Requirement{
		Scope:  ScopeExhibit,
		System: []SystemPermission{ViewExhibits, EditExhibits, ManageExhibits},
		Scoped: []ScopedPermission{ViewExhibit, EditExhibit, ManageExhibit},
		Denied: "you cannot view this exhibit",
	}
	EditExhibitAccess = Requirement{
		Scope:  ScopeExhibit,
		System: []SystemPermission{EditExhibits, ManageExhibits},
		Scoped: []ScopedPermission{EditExhibit, ManageExhibit},
		Denied: "you cannot edit this exhibit",
	}
	ManageExhibitAccess = Requirement{
		Scope:  ScopeExhibit,
		System: []SystemPermission{ManageExhibits},
		Scoped: []ScopedPermission{ManageExhibit},
		Denied: "you cannot manage this exhibit",
	}

	ViewGroupAccess = Requirement{
		Scope:  ScopeGroup,
		System: []SystemPermission{ViewGroups, ManageGroups},
		Scoped: []ScopedPermission{ViewGroup, ManageGroup},
		Denied: "you cannot view this group",
	}
	ManageGroupAccess = Requirement{
		Scope:  ScopeGroup,
		System: []SystemPermission{ManageGroups},
		Scoped: []ScopedPermission{ManageGroup},
		Denied: "you cannot manage this group",
	}
)

// Require returns an ErrForbidden carrying req.Denied unless p meets req on scopeID.
func (r *Resolver) Require(ctx context.Context, p Principal, req Requirement, scopeID uuid.UUID) error {
	ok, err := r.Authorize(ctx, p, req.Scope, scopeID, req.System, req.Scoped)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden(req.Denied)
	}
	return nil
}
