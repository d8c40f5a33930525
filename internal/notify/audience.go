package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gallery-sim/backend/internal/models"
	"github.com/gallery-sim/backend/internal/timeline"
)

// Broadcast groups every entitled principal subscribes to.
const (
	GroupExhibit    = "exhibit"
	GroupCollection = "collection"
	GroupAdmin      = "admin"
	GroupGroups     = "group"
)

// AudienceStore answers the flat id queries audience rules need.
type AudienceStore interface {
	// ArticleReaderIDs returns users that already have a user article row for the article.
	ArticleReaderIDs(ctx context.Context, articleID uuid.UUID) ([]uuid.UUID, error)
	// CollectionUserIDs returns users on any team of any exhibit of the collection.
	CollectionUserIDs(ctx context.Context, collectionID uuid.UUID) ([]uuid.UUID, error)
	CollectionHasExhibits(ctx context.Context, collectionID uuid.UUID) (bool, error)
	TeamUserIDs(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error)
	// ExhibitUserIDs returns users on any team of the exhibit.
	ExhibitUserIDs(ctx context.Context, exhibitID uuid.UUID) ([]uuid.UUID, error)
	ExhibitClock(ctx context.Context, exhibitID uuid.UUID) (timeline.Coordinate, error)
	ArticleCoordinate(ctx context.Context, articleID uuid.UUID) (timeline.Coordinate, error)
	UnreadCount(ctx context.Context, exhibitID, userID uuid.UUID) (int, error)
}

// unreadTarget is one (exhibit, user) whose unread count must be recomputed and pushed.
type unreadTarget struct {
	exhibitID uuid.UUID
	userID    uuid.UUID
}

// audience is the result of an audience rule.
type audience struct {
	groups   []string
	suppress bool // skip the entity-change send entirely
	unread   []unreadTarget
}

func (a *audience) add(groups ...string) {
	a.groups = append(a.groups, groups...)
}

func (a *audience) addUsers(ids []uuid.UUID) {
	for _, id := range ids {
		a.groups = append(a.groups, id.String())
	}
}

// audienceFunc computes the audience of ev. On error the groups gathered so far are still used.
type audienceFunc func(ctx context.Context, s AudienceStore, ev Event) (audience, error)

// rules is the static handler table, one entry per entity type.
var rules = map[EntityType]audienceFunc{
	TypeArticle:              articleAudience,
	TypeCard:                 cardAudience,
	TypeCollection:           collectionAudience,
	TypeExhibit:              exhibitAudience,
	TypeTeam:                 teamAudience,
	TypeExhibitTeam:          teamAudience,
	TypeTeamCard:             teamCardAudience,
	TypeTeamUser:             teamUserAudience,
	TypeUserArticle:          userArticleAudience,
	TypeUser:                 userAudience,
	TypeUserPermission:       userAudience,
	TypeCollectionMembership: scopeAudience(GroupCollection),
	TypeExhibitMembership:    scopeAudience(GroupExhibit),
	TypeGroupMembership:      scopeAudience(GroupGroups),
	TypeGroup:                scopeAudience(GroupGroups),
}

func entityError(ev Event) error {
	return fmt.Errorf("%s event carries %T", ev.Type, ev.Entity)
}

// Article: its id, the broadcast group for its kind, and every user who already has it in their feed.
func articleAudience(ctx context.Context, s AudienceStore, ev Event) (audience, error) {
	a := audience{groups: []string{ev.ID.String()}}
	art, ok := ev.Entity.(*models.Article)
	if !ok {
		return a, entityError(ev)
	}
	if art.IsLive() {
		a.add(GroupExhibit)
	} else {
		a.add(GroupCollection)
	}
	readers, err := s.ArticleReaderIDs(ctx, ev.ID)
	if err != nil {
		return a, fmt.Errorf("article readers: %w", err)
	}
	a.addUsers(readers)
	return a, nil
}

func cardAudience(ctx context.Context, s AudienceStore, ev Event) (audience, error) {
	a := audience{groups: []string{ev.ID.String(), GroupCollection}}
	card, ok := ev.Entity.(*models.Card)
	if !ok {
		return a, entityError(ev)
	}
	users, err := s.CollectionUserIDs(ctx, card.CollectionID)
	if err != nil {
		return a, fmt.Errorf("collection users: %w", err)
	}
	a.addUsers(users)
	has, err := s.CollectionHasExhibits(ctx, card.CollectionID)
	if err != nil {
		return a, fmt.Errorf("collection exhibits: %w", err)
	}
	if has {
		a.add(GroupExhibit)
	}
	return a, nil
}

func collectionAudience(ctx context.Context, s AudienceStore, ev Event) (audience, error) {
	a := audience{groups: []string{ev.ID.String(), GroupAdmin}}
	users, err := s.CollectionUserIDs(ctx, ev.ID)
	if err != nil {
		return a, fmt.Errorf("collection users: %w", err)
	}
	a.addUsers(users)
	return a, nil
}

// Exhibit updates also recompute the unread count of everyone on its teams, since the clock may have moved.
func exhibitAudience(ctx context.Context, s AudienceStore, ev Event) (audience, error) {
	a := audience{groups: []string{ev.ID.String(), GroupExhibit}}
	if ev.Kind != KindUpdated {
		return a, nil
	}
	users, err := s.ExhibitUserIDs(ctx, ev.ID)
	if err != nil {
		return a, fmt.Errorf("exhibit users: %w", err)
	}
	for _, u := range users {
		a.unread = append(a.unread, unreadTarget{exhibitID: ev.ID, userID: u})
	}
	return a, nil
}

func teamAudience(_ context.Context, _ AudienceStore, ev Event) (audience, error) {
	return audience{groups: []string{ev.ID.String(), GroupExhibit}}, nil
}

func teamCardAudience(ctx context.Context, s AudienceStore, ev Event) (audience, error) {
	a := audience{groups: []string{ev.ID.String(), GroupExhibit}}
	tc, ok := ev.Entity.(*models.TeamCard)
	if !ok {
		return a, entityError(ev)
	}
	users, err := s.TeamUserIDs(ctx, tc.TeamID)
	if err != nil {
		return a, fmt.Errorf("team users: %w", err)
	}
	a.addUsers(users)
	return a, nil
}

func teamUserAudience(_ context.Context, _ AudienceStore, ev Event) (audience, error) {
	a := audience{groups: []string{ev.ID.String(), GroupExhibit}}
	tu, ok := ev.Entity.(*models.TeamUser)
	if !ok {
		return a, entityError(ev)
	}
	a.add(tu.UserID.String())
	return a, nil
}

// UserArticle goes to its owner only, and only once the article is released against the
// exhibit's clock as it reads now. Unread counts are recomputed either way.
func userArticleAudience(ctx context.Context, s AudienceStore, ev Event) (audience, error) {
	ua, ok := ev.Entity.(*models.UserArticle)
	if !ok {
		return audience{suppress: true}, entityError(ev)
	}
	a := audience{
		groups: []string{ua.UserID.String()},
		unread: []unreadTarget{{exhibitID: ua.ExhibitID, userID: ua.UserID}},
	}
	if ev.Kind == KindDeleted {
		return a, nil
	}
	clock, err := s.ExhibitClock(ctx, ua.ExhibitID)
	if err != nil {
		a.suppress = true
		return a, fmt.Errorf("exhibit clock: %w", err)
	}
	at, err := s.ArticleCoordinate(ctx, ua.ArticleID)
	if err != nil {
		a.suppress = true
		return a, fmt.Errorf("article coordinate: %w", err)
	}
	if !at.ReleasedAt(clock) {
		a.suppress = true
	}
	return a, nil
}

func userAudience(_ context.Context, _ AudienceStore, ev Event) (audience, error) {
	return audience{groups: []string{ev.ID.String(), GroupAdmin}}, nil
}

// Membership changes go to the scope's broadcast group, never to individual members.
func scopeAudience(group string) audienceFunc {
	return func(_ context.Context, _ AudienceStore, _ Event) (audience, error) {
		return audience{groups: []string{group}}, nil
	}
}
