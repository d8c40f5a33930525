package articles

import (
	"context"

	"github.com/google/uuid"

	"github.com/gallery-sim/backend/internal/authz"
	"github.com/gallery-sim/backend/internal/models"
)

// Authorizer is satisfied by *authz.Resolver.
type Authorizer interface {
	Authorize(ctx context.Context, p authz.Principal, scope authz.Scope, scopeID uuid.UUID, systemPerms []authz.SystemPermission, scopedPerms []authz.ScopedPermission) (bool, error)
}

// TeamLookup answers the team questions of the live-article branch.
type TeamLookup interface {
	// UserTeamIDs returns the teams of exhibitID the user is on.
	UserTeamIDs(ctx context.Context, exhibitID, userID uuid.UUID) ([]uuid.UUID, error)
	// TeamCard returns the team's toggle row for cardID, or nil when there is none.
	TeamCard(ctx context.Context, teamID, cardID uuid.UUID) (*models.TeamCard, error)
}

// Policy decides who may create, edit or delete an article.
type Policy struct {
	authz Authorizer
	teams TeamLookup
}

// NewPolicy creates a Policy.
func NewPolicy(a Authorizer, teams TeamLookup) *Policy {
	return &Policy{authz: a, teams: teams}
}

// CanMutateArticle: library articles need collection edit rights, system-wide or scoped.
// Live articles need the caller on a team of the exhibit whose TeamCard for the article's
// card allows posting. System permissions do not apply to live articles.
func (p *Policy) CanMutateArticle(ctx context.Context, principal authz.Principal, a *models.Article) (bool, error) {
	if !a.IsLive() {
		return p.authz.Authorize(ctx, principal, authz.ScopeCollection, a.CollectionID,
			[]authz.SystemPermission{authz.EditCollections, authz.ManageCollections},
			[]authz.ScopedPermission{authz.EditCollection, authz.ManageCollection})
	}
	if a.CardID == nil {
		return false, nil
	}
	teams, err := p.teams.UserTeamIDs(ctx, *a.ExhibitID, principal.UserID)
	if err != nil {
		return false, err
	}
	for _, teamID := range teams {
		tc, err := p.teams.TeamCard(ctx, teamID, *a.CardID)
		if err != nil {
			return false, err
		}
		if tc != nil && tc.CanPostArticles {
			return true, nil
		}
	}
	return false, nil
}

// TeamFor returns the caller's team in the exhibit, or nil.
func (p *Policy) TeamFor(ctx context.Context, exhibitID, userID uuid.UUID) (*uuid.UUID, error) {
	teams, err := p.teams.UserTeamIDs(ctx, exhibitID, userID)
	if err != nil || len(teams) == 0 {
		return nil, err
	}
	return &teams[0], nil
}

// CanViewExhibit: team members of the exhibit, or holders of exhibit view rights.
func (p *Policy) CanViewExhibit(ctx context.Context, principal authz.Principal, exhibitID uuid.UUID) (bool, error) {
	team, err := p.TeamFor(ctx, exhibitID, principal.UserID)
	if err != nil || team != nil {
		return team != nil, err
	}
	return p.authz.Authorize(ctx, principal, authz.ScopeExhibit, exhibitID,
		[]authz.SystemPermission{authz.ViewExhibits, authz.EditExhibits, authz.ManageExhibits},
		[]authz.ScopedPermission{authz.ViewExhibit, authz.EditExhibit, authz.ManageExhibit})
}

// CanViewCollection checks collection view rights.
func (p *Policy) CanViewCollection(ctx context.Context, principal authz.Principal, collectionID uuid.UUID) (bool, error) {
	return p.authz.Authorize(ctx, principal, authz.ScopeCollection, collectionID,
		[]authz.SystemPermission{authz.ViewCollections, authz.EditCollections, authz.ManageCollections},
		[]authz.ScopedPermission{authz.ViewCollection, authz.EditCollection, authz.ManageCollection})
}
