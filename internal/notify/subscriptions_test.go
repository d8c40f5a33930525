package notify

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/gallery-sim/backend/internal/authz"
	"github.com/gallery-sim/backend/pkg/apperr"
)

type staticClaims map[uuid.UUID]authz.Principal

func (s staticClaims) Get(_ context.Context, userID uuid.UUID) (authz.Principal, error) {
	p, ok := s[userID]
	if !ok {
		return authz.Principal{}, apperr.NotFound("user")
	}
	return p, nil
}

// scopeGuard grants one requirement scope on listed ids.
type scopeGuard map[uuid.UUID]authz.Scope

func (g scopeGuard) Require(_ context.Context, _ authz.Principal, req authz.Requirement, id uuid.UUID) error {
	if g[id] == req.Scope {
		return nil
	}
	return apperr.Forbidden(req.Denied)
}

type teamSet map[[2]uuid.UUID]bool

func (t teamSet) IsTeamUser(_ context.Context, exhibitID, userID uuid.UUID) (bool, error) {
	return t[[2]uuid.UUID{exhibitID, userID}], nil
}

type scopedEntity struct {
	scope authz.Scope
	id    uuid.UUID
}

type ownerScopes map[uuid.UUID]scopedEntity

func (o ownerScopes) OwnerScope(_ context.Context, id uuid.UUID) (authz.Scope, uuid.UUID, error) {
	e, ok := o[id]
	if !ok {
		return "", uuid.Nil, apperr.NotFound("entity")
	}
	return e.scope, e.id, nil
}

func TestBroadcastGroups(t *testing.T) {
	assert.Empty(t, BroadcastGroups(authz.Principal{}))
	assert.Equal(t, []string{GroupExhibit, GroupCollection, GroupAdmin, GroupGroups},
		BroadcastGroups(authz.Principal{AllSystemPermissions: true}))
	assert.Equal(t, []string{GroupCollection},
		BroadcastGroups(authz.Principal{SystemPermissions: []authz.SystemPermission{authz.EditCollections}}))
}

func TestSubscriptionDefaults(t *testing.T) {
	admin, stranger := uuid.New(), uuid.New()
	s := NewSubscriptions(staticClaims{admin: {UserID: admin, AllSystemPermissions: true}}, scopeGuard{}, teamSet{}, ownerScopes{}, nil)

	assert.Equal(t, []string{admin.String(), GroupExhibit, GroupCollection, GroupAdmin, GroupGroups}, s.Defaults(context.Background(), admin))
	assert.Equal(t, []string{stranger.String()}, s.Defaults(context.Background(), stranger))
	assert.Equal(t, []string{admin.String()}, s.UserOnly(context.Background(), admin))
}

func TestCanJoin(t *testing.T) {
	user := uuid.New()
	col, ex, teamEx, other := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	s := NewSubscriptions(
		staticClaims{user: {UserID: user}},
		scopeGuard{col: authz.ScopeCollection, ex: authz.ScopeExhibit},
		teamSet{{teamEx, user}: true},
		ownerScopes{},
		nil,
	)
	ctx := context.Background()

	assert.True(t, s.CanJoin(ctx, user, user.String()))
	assert.True(t, s.CanJoin(ctx, user, col.String()))
	assert.True(t, s.CanJoin(ctx, user, ex.String()))
	assert.True(t, s.CanJoin(ctx, user, teamEx.String()))
	assert.False(t, s.CanJoin(ctx, user, other.String()))
	assert.False(t, s.CanJoin(ctx, user, GroupAdmin))
	assert.False(t, s.CanJoin(ctx, user, "not-a-group"))
	assert.False(t, s.CanJoin(ctx, uuid.New(), col.String()))
}

func TestCanJoinEntityGroupsThroughOwningScope(t *testing.T) {
	user := uuid.New()
	col, ex, teamEx, hidden := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	libraryArticle, card, liveArticle, team, teamUser, secret := uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New()
	s := NewSubscriptions(
		staticClaims{user: {UserID: user}},
		scopeGuard{col: authz.ScopeCollection, ex: authz.ScopeExhibit},
		teamSet{{teamEx, user}: true},
		ownerScopes{
			libraryArticle: {authz.ScopeCollection, col},
			card:           {authz.ScopeCollection, col},
			liveArticle:    {authz.ScopeExhibit, ex},
			team:           {authz.ScopeExhibit, teamEx},
			teamUser:       {authz.ScopeExhibit, teamEx},
			secret:         {authz.ScopeCollection, hidden},
		},
		nil,
	)
	ctx := context.Background()

	assert.True(t, s.CanJoin(ctx, user, libraryArticle.String()))
	assert.True(t, s.CanJoin(ctx, user, card.String()))
	assert.True(t, s.CanJoin(ctx, user, liveArticle.String()))
	assert.True(t, s.CanJoin(ctx, user, team.String()), "team members join their exhibit's entities")
	assert.True(t, s.CanJoin(ctx, user, teamUser.String()))
	assert.False(t, s.CanJoin(ctx, user, secret.String()))
	assert.False(t, s.CanJoin(ctx, uuid.New(), card.String()))
}
