package notify

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gallery-sim/backend/internal/authz"
	"github.com/gallery-sim/backend/pkg/apperr"
)

// PrincipalSource is satisfied by *authz.ClaimsCache.
type PrincipalSource interface {
	Get(ctx context.Context, userID uuid.UUID) (authz.Principal, error)
}

// Guard is satisfied by *authz.Resolver.
type Guard interface {
	Require(ctx context.Context, p authz.Principal, req authz.Requirement, scopeID uuid.UUID) error
}

// TeamMembership reports whether a user is on any team of an exhibit.
type TeamMembership interface {
	IsTeamUser(ctx context.Context, exhibitID, userID uuid.UUID) (bool, error)
}

// EntityScopes maps an article, card, team, team card or team user id to the exhibit or
// collection it belongs to. Unknown ids return apperr.ErrNotFound.
type EntityScopes interface {
	OwnerScope(ctx context.Context, id uuid.UUID) (authz.Scope, uuid.UUID, error)
}

// BroadcastGroups returns the broadcast groups p is entitled to.
func BroadcastGroups(p authz.Principal) []string {
	var groups []string
	if p.HasAny(authz.ViewExhibits, authz.EditExhibits, authz.ManageExhibits) {
		groups = append(groups, GroupExhibit)
	}
	if p.HasAny(authz.ViewCollections, authz.EditCollections, authz.ManageCollections) {
		groups = append(groups, GroupCollection)
	}
	if p.HasAny(authz.ManageUsers, authz.ManageRoles) {
		groups = append(groups, GroupAdmin)
	}
	if p.HasAny(authz.ViewGroups, authz.ManageGroups) {
		groups = append(groups, GroupGroups)
	}
	return groups
}

// Subscriptions decides which hub groups a connected user joins.
type Subscriptions struct {
	claims PrincipalSource
	guard  Guard
	teams  TeamMembership
	scopes EntityScopes
	logger *zap.Logger
}

// NewSubscriptions creates a Subscriptions.
func NewSubscriptions(claims PrincipalSource, guard Guard, teams TeamMembership, scopes EntityScopes, logger *zap.Logger) *Subscriptions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriptions{claims: claims, guard: guard, teams: teams, scopes: scopes, logger: logger}
}

// Defaults returns the user's own group plus the broadcast groups their claims entitle them to.
func (s *Subscriptions) Defaults(ctx context.Context, userID uuid.UUID) []string {
	groups := []string{userID.String()}
	p, err := s.claims.Get(ctx, userID)
	if err != nil {
		s.logger.Warn("claims unavailable for subscriber", zap.String("user_id", userID.String()), zap.Error(err))
		return groups
	}
	return append(groups, BroadcastGroups(p)...)
}

// UserOnly returns just the user's own group.
func (s *Subscriptions) UserOnly(_ context.Context, userID uuid.UUID) []string {
	return []string{userID.String()}
}

// CanJoin allows an entitled broadcast group, or an id group the user may view as a collection,
// an exhibit (including as a team member) or a group. Other entity ids are joinable when the
// user may view the exhibit or collection that owns them.
func (s *Subscriptions) CanJoin(ctx context.Context, userID uuid.UUID, group string) bool {
	if group == userID.String() {
		return true
	}
	p, err := s.claims.Get(ctx, userID)
	if err != nil {
		return false
	}
	for _, g := range BroadcastGroups(p) {
		if g == group {
			return true
		}
	}
	id, err := uuid.Parse(group)
	if err != nil {
		return false
	}
	for _, req := range []authz.Requirement{authz.ViewExhibitAccess, authz.ViewCollectionAccess, authz.ViewGroupAccess} {
		if s.guard.Require(ctx, p, req, id) == nil {
			return true
		}
	}
	if s.onTeam(ctx, id, userID) {
		return true
	}

	scope, scopeID, err := s.scopes.OwnerScope(ctx, id)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			s.logger.Warn("entity scope lookup failed", zap.String("group", group), zap.Error(err))
		}
		return false
	}
	switch scope {
	case authz.ScopeExhibit:
		return s.guard.Require(ctx, p, authz.ViewExhibitAccess, scopeID) == nil || s.onTeam(ctx, scopeID, userID)
	case authz.ScopeCollection:
		return s.guard.Require(ctx, p, authz.ViewCollectionAccess, scopeID) == nil
	}
	return false
}

func (s *Subscriptions) onTeam(ctx context.Context, exhibitID, userID uuid.UUID) bool {
	on, err := s.teams.IsTeamUser(ctx, exhibitID, userID)
	if err != nil {
		s.logger.Warn("team membership check failed", zap.String("exhibit_id", exhibitID.String()), zap.Error(err))
		return false
	}
	return on
}
