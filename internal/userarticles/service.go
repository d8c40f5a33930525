// Package userarticles serves per-user article feeds of a running exhibit.
package userarticles

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gallery-sim/backend/internal/authz"
	"github.com/gallery-sim/backend/internal/feed"
	"github.com/gallery-sim/backend/internal/models"
	"github.com/gallery-sim/backend/internal/notify"
	"github.com/gallery-sim/backend/internal/timeline"
	"github.com/gallery-sim/backend/internal/xapi"
	"github.com/gallery-sim/backend/pkg/apperr"
)

// Store is satisfied by *Repository.
type Store interface {
	Exhibit(ctx context.Context, exhibitID uuid.UUID) (*models.Exhibit, error)
	ListForUser(ctx context.Context, exhibitID, userID uuid.UUID) ([]models.UserArticleView, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.UserArticleView, error)
	SetRead(ctx context.Context, id uuid.UUID, isRead bool) error
	TeamView(ctx context.Context, exhibitID, teamID uuid.UUID) ([]models.Article, error)
	// Team returns the team or ErrNotFound.
	Team(ctx context.Context, id uuid.UUID) (*models.Team, error)
	// TeamUser returns the user's placement in the exhibit, or nil when they are on no team.
	TeamUser(ctx context.Context, exhibitID, userID uuid.UUID) (*models.TeamUser, error)
}

// Materializer is satisfied by *feed.Materializer.
type Materializer interface {
	MaterializeUser(ctx context.Context, exhibitID, userID uuid.UUID) ([]models.UserArticle, error)
}

// Authorizer is satisfied by *authz.Resolver.
type Authorizer interface {
	Authorize(ctx context.Context, p authz.Principal, scope authz.Scope, scopeID uuid.UUID, systemPerms []authz.SystemPermission, scopedPerms []authz.ScopedPermission) (bool, error)
}

// Recorder is satisfied by *xapi.Client.
type Recorder interface {
	IsConfigured() bool
	RecordEvent(ctx context.Context, ev xapi.Event) bool
}

// ReadResult is the outcome of SetRead.
type ReadResult struct {
	UserArticle  *models.UserArticleView `json:"user_article"`
	XAPIRecorded bool                    `json:"xapi_recorded"`
}

// Service implements the feed read paths.
type Service struct {
	store  Store
	feed   Materializer
	authz  Authorizer
	events notify.Publisher
	lrs    Recorder
	logger *zap.Logger
}

// NewService creates a user article service.
func NewService(store Store, m Materializer, a Authorizer, events notify.Publisher, lrs Recorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, feed: m, authz: a, events: events, lrs: lrs, logger: logger}
}

// GetMine backfills the caller's feed, then returns its released rows newest first.
func (s *Service) GetMine(ctx context.Context, p authz.Principal, exhibitID uuid.UUID) ([]models.UserArticleView, error) {
	ex, err := s.store.Exhibit(ctx, exhibitID)
	if err != nil {
		return nil, err
	}
	created, err := s.feed.MaterializeUser(ctx, exhibitID, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("materialize feed: %w", err)
	}
	if len(created) > 0 {
		s.events.Publish(ctx, notify.UserArticlesCreated(created)...)
	}
	rows, err := s.store.ListForUser(ctx, exhibitID, p.UserID)
	if err != nil {
		return nil, err
	}
	rows = timeline.Filter(rows, feed.ViewCoordinate, feed.Clock(ex))
	timeline.SortNewestFirst(rows, feed.ViewCoordinate)
	return rows, nil
}

// GetUnreadCount counts the caller's released, unread rows.
func (s *Service) GetUnreadCount(ctx context.Context, p authz.Principal, exhibitID uuid.UUID) (int, error) {
	ex, err := s.store.Exhibit(ctx, exhibitID)
	if err != nil {
		return 0, err
	}
	rows, err := s.store.ListForUser(ctx, exhibitID, p.UserID)
	if err != nil {
		return 0, err
	}
	return feed.CountUnread(rows, feed.Clock(ex)), nil
}

// GetByExhibitTeam returns what a team sees. Members of that team, observers of the
// exhibit and holders of exhibit view rights may look.
func (s *Service) GetByExhibitTeam(ctx context.Context, p authz.Principal, exhibitID, teamID uuid.UUID) ([]models.Article, error) {
	if _, err := s.store.Exhibit(ctx, exhibitID); err != nil {
		return nil, err
	}
	team, err := s.store.Team(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.ExhibitID != exhibitID {
		return nil, apperr.NotFound("team")
	}
	ok, err := s.canViewTeam(ctx, p, exhibitID, teamID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Forbidden("you cannot view this team")
	}
	return s.store.TeamView(ctx, exhibitID, teamID)
}

func (s *Service) canViewTeam(ctx context.Context, p authz.Principal, exhibitID, teamID uuid.UUID) (bool, error) {
	tu, err := s.store.TeamUser(ctx, exhibitID, p.UserID)
	if err != nil {
		return false, err
	}
	if tu != nil && (tu.TeamID == teamID || tu.IsObserver) {
		return true, nil
	}
	return s.authz.Authorize(ctx, p, authz.ScopeExhibit, exhibitID,
		[]authz.SystemPermission{authz.ViewExhibits, authz.EditExhibits, authz.ManageExhibits},
		[]authz.ScopedPermission{authz.ViewExhibit, authz.EditExhibit, authz.ManageExhibit})
}

// SetRead flips the read flag of one of the caller's rows. Marking read records an xAPI statement.
func (s *Service) SetRead(ctx context.Context, p authz.Principal, id uuid.UUID, isRead bool) (*ReadResult, error) {
	v, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.UserID != p.UserID {
		return nil, apperr.Forbidden("not your article")
	}
	if v.IsRead == isRead {
		return &ReadResult{UserArticle: v}, nil
	}
	if err := s.store.SetRead(ctx, id, isRead); err != nil {
		return nil, err
	}
	v.IsRead = isRead
	ua := v.UserArticle
	s.events.Publish(ctx, notify.Updated(notify.TypeUserArticle, ua.ID, &ua, "is_read"))

	res := &ReadResult{UserArticle: v}
	if isRead {
		res.XAPIRecorded = s.record(ctx, p, v)
	}
	return res, nil
}

func (s *Service) record(ctx context.Context, p authz.Principal, v *models.UserArticleView) bool {
	if s.lrs == nil || !s.lrs.IsConfigured() {
		return false
	}
	ex, err := s.store.Exhibit(ctx, v.ExhibitID)
	if err != nil {
		s.logger.Warn("xapi exhibit lookup", zap.String("exhibit_id", v.ExhibitID.String()), zap.Error(err))
		return false
	}
	ev := xapi.Event{
		Verb:   xapi.VerbRead,
		Actor:  xapi.Actor{ID: p.UserID, Name: p.Email, Email: p.Email},
		Object: xapi.Activity{ID: v.ArticleID, Type: "article", Name: v.Article.Name, Description: v.Article.Summary},
		Parent: &xapi.Activity{ID: ex.ID, Type: "exhibit", Name: ex.Name},
	}
	if tu, err := s.store.TeamUser(ctx, ex.ID, p.UserID); err == nil && tu != nil {
		ev.TeamID = &tu.TeamID
	}
	return s.lrs.RecordEvent(ctx, ev)
}
