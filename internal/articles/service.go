// Package articles owns library and live articles: posting rules, CRUD, sharing by email.
package articles

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gallery-sim/backend/internal/authz"
	"github.com/gallery-sim/backend/internal/feed"
	"github.com/gallery-sim/backend/internal/models"
	"github.com/gallery-sim/backend/internal/notify"
	"github.com/gallery-sim/backend/internal/timeline"
	"github.com/gallery-sim/backend/internal/xapi"
	"github.com/gallery-sim/backend/pkg/apperr"
	"github.com/gallery-sim/backend/pkg/mailer"
)

// Store is the persistence the service needs.
type Store interface {
	TeamLookup
	Get(ctx context.Context, id uuid.UUID) (*models.Article, error)
	Create(ctx context.Context, a *models.Article) error
	// CreateLive stores a live article together with a TeamArticle for every team of its
	// exhibit holding a TeamCard for its card.
	CreateLive(ctx context.Context, a *models.Article) ([]models.TeamArticle, error)
	Update(ctx context.Context, a *models.Article) error
	// Delete removes the article and returns the feed rows removed with it.
	Delete(ctx context.Context, id uuid.UUID) ([]models.UserArticle, error)
	ListLibrary(ctx context.Context, collectionID uuid.UUID) ([]models.Article, error)
	ListByCard(ctx context.Context, cardID uuid.UUID) ([]models.Article, error)
	ListLive(ctx context.Context, exhibitID uuid.UUID) ([]models.Article, error)
	Exhibit(ctx context.Context, id uuid.UUID) (*models.Exhibit, error)
	ExhibitIDs(ctx context.Context, collectionID uuid.UUID) ([]uuid.UUID, error)
	CollectionExists(ctx context.Context, id uuid.UUID) (bool, error)
	Card(ctx context.Context, id uuid.UUID) (*models.Card, error)
	Team(ctx context.Context, id uuid.UUID) (*models.Team, error)
	TeamMemberEmails(ctx context.Context, teamID uuid.UUID) ([]string, error)
}

// Materializer backfills feeds after an article appears or moves on the timeline.
type Materializer interface {
	MaterializeExhibit(ctx context.Context, exhibitID uuid.UUID) ([]models.UserArticle, error)
}

// Recorder is satisfied by *xapi.Client.
type Recorder interface {
	IsConfigured() bool
	RecordEvent(ctx context.Context, ev xapi.Event) bool
}

// Result is an article mutation outcome. XAPIRecorded reports whether the LRS accepted the statement.
type Result struct {
	Article      *models.Article `json:"article"`
	XAPIRecorded bool            `json:"xapi_recorded"`
}

// ShareResult is the outcome of Share.
type ShareResult struct {
	Recipients   []string `json:"recipients"`
	XAPIRecorded bool     `json:"xapi_recorded"`
}

// Service implements article operations.
type Service struct {
	store  Store
	policy *Policy
	feed   Materializer
	events notify.Publisher
	lrs    Recorder
	mail   mailer.Sender
	logger *zap.Logger
}

// NewService creates an article service.
func NewService(store Store, policy *Policy, m Materializer, events notify.Publisher, lrs Recorder, mail mailer.Sender, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, policy: policy, feed: m, events: events, lrs: lrs, mail: mail, logger: logger}
}

func (s *Service) authorize(ctx context.Context, p authz.Principal, a *models.Article) error {
	ok, err := s.policy.CanMutateArticle(ctx, p, a)
	if err != nil {
		return err
	}
	if !ok {
		if a.IsLive() {
			return apperr.Forbidden("your team cannot post articles to this card")
		}
		return apperr.Forbidden("you cannot edit this collection")
	}
	return nil
}

// Create stores a new article. A live article takes the exhibit's current move and inject,
// is linked to every team that holds its card, and is pushed into their feeds.
func (s *Service) Create(ctx context.Context, p authz.Principal, a *models.Article) (*Result, error) {
	var ex *models.Exhibit
	if a.IsLive() {
		var err error
		if ex, err = s.store.Exhibit(ctx, *a.ExhibitID); err != nil {
			return nil, err
		}
		a.CollectionID = ex.CollectionID
		a.Move, a.Inject = ex.CurrentMove, ex.CurrentInject
		if a.CardID == nil {
			return nil, apperr.Invalid("live articles need a card")
		}
	} else {
		ok, err := s.store.CollectionExists(ctx, a.CollectionID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.NotFound("collection")
		}
	}
	if err := s.checkCard(ctx, a); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, a); err != nil {
		return nil, err
	}

	a.CreatedBy = p.UserID
	if a.DatePosted.IsZero() {
		a.DatePosted = time.Now().UTC()
	}
	if a.Status == "" {
		a.Status = models.StatusUnused
	}
	if a.SourceType == "" {
		a.SourceType = models.SourceNews
	}
	if ex == nil {
		if err := s.store.Create(ctx, a); err != nil {
			return nil, err
		}
		s.events.Publish(ctx, notify.Created(notify.TypeArticle, a.ID, a))
		return &Result{Article: a}, nil
	}

	if _, err := s.store.CreateLive(ctx, a); err != nil {
		return nil, err
	}
	events := []notify.Event{notify.Created(notify.TypeArticle, a.ID, a)}
	created, err := s.feed.MaterializeExhibit(ctx, ex.ID)
	if err != nil {
		// The article is committed; announce it before failing.
		s.events.Publish(ctx, events...)
		return nil, fmt.Errorf("materialize feeds: %w", err)
	}
	events = append(events, notify.UserArticlesCreated(created)...)
	res := &Result{Article: a, XAPIRecorded: s.record(ctx, p, xapi.VerbPosted, a, ex)}
	s.events.Publish(ctx, events...)
	return res, nil
}

func (s *Service) checkCard(ctx context.Context, a *models.Article) error {
	if a.CardID == nil {
		return nil
	}
	card, err := s.store.Card(ctx, *a.CardID)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Invalid("card does not exist")
	}
	if err != nil {
		return err
	}
	if card.CollectionID != a.CollectionID {
		return apperr.Invalid("card belongs to another collection")
	}
	return nil
}

// Patch is a partial article update; nil fields are left unchanged.
type Patch struct {
	CardID       *uuid.UUID         `json:"card_id"`
	Name         *string            `json:"name"`
	Summary      *string            `json:"summary"`
	Description  *string            `json:"description"`
	Move         *int               `json:"move"`
	Inject       *int               `json:"inject"`
	Status       *models.ItemStatus `json:"status"`
	SourceType   *models.SourceType `json:"source_type"`
	SourceName   *string            `json:"source_name"`
	URL          *string            `json:"url"`
	OpenInNewTab *bool              `json:"open_in_new_tab"`
	DatePosted   *time.Time         `json:"date_posted"`
}

// apply copies set fields onto a and returns the json names of fields that changed.
func (p Patch) apply(a *models.Article) []string {
	changed := []string{}
	if p.CardID != nil && (a.CardID == nil || *a.CardID != *p.CardID) {
		id := *p.CardID
		a.CardID = &id
		changed = append(changed, "card_id")
	}
	setString(&changed, "name", &a.Name, p.Name)
	setString(&changed, "summary", &a.Summary, p.Summary)
	setString(&changed, "description", &a.Description, p.Description)
	setString(&changed, "source_name", &a.SourceName, p.SourceName)
	setString(&changed, "url", &a.URL, p.URL)
	if p.Move != nil && *p.Move != a.Move {
		a.Move = *p.Move
		changed = append(changed, "move")
	}
	if p.Inject != nil && *p.Inject != a.Inject {
		a.Inject = *p.Inject
		changed = append(changed, "inject")
	}
	if p.Status != nil && *p.Status != a.Status {
		a.Status = *p.Status
		changed = append(changed, "status")
	}
	if p.SourceType != nil && *p.SourceType != a.SourceType {
		a.SourceType = *p.SourceType
		changed = append(changed, "source_type")
	}
	if p.OpenInNewTab != nil && *p.OpenInNewTab != a.OpenInNewTab {
		a.OpenInNewTab = *p.OpenInNewTab
		changed = append(changed, "open_in_new_tab")
	}
	if p.DatePosted != nil && !p.DatePosted.Equal(a.DatePosted) {
		a.DatePosted = *p.DatePosted
		changed = append(changed, "date_posted")
	}
	return changed
}

func setString(changed *[]string, name string, dst, src *string) {
	if src != nil && *src != *dst {
		*dst = *src
		*changed = append(*changed, name)
	}
}

// Update applies patch. Both the current and the patched article must pass the posting policy.
func (s *Service) Update(ctx context.Context, p authz.Principal, id uuid.UUID, patch Patch) (*Result, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, a); err != nil {
		return nil, err
	}
	if (patch.Move != nil && *patch.Move < 0) || (patch.Inject != nil && *patch.Inject < 0) {
		return nil, apperr.Invalid("move and inject must not be negative")
	}
	changed := patch.apply(a)
	if len(changed) == 0 {
		return &Result{Article: a}, nil
	}
	if contains(changed, "card_id") {
		if err := s.checkCard(ctx, a); err != nil {
			return nil, err
		}
		if err := s.authorize(ctx, p, a); err != nil {
			return nil, err
		}
	}
	if err := s.store.Update(ctx, a); err != nil {
		return nil, err
	}

	events := []notify.Event{notify.Updated(notify.TypeArticle, a.ID, a, changed...)}
	if contains(changed, "move") || contains(changed, "inject") || contains(changed, "card_id") {
		created, err := s.rematerialize(ctx, a)
		if err != nil {
			return nil, err
		}
		events = append(events, notify.UserArticlesCreated(created)...)
	}
	s.events.Publish(ctx, events...)
	return &Result{Article: a}, nil
}

func (s *Service) rematerialize(ctx context.Context, a *models.Article) ([]models.UserArticle, error) {
	var exhibits []uuid.UUID
	if a.IsLive() {
		exhibits = []uuid.UUID{*a.ExhibitID}
	} else {
		var err error
		if exhibits, err = s.store.ExhibitIDs(ctx, a.CollectionID); err != nil {
			return nil, err
		}
	}
	var all []models.UserArticle
	for _, id := range exhibits {
		created, err := s.feed.MaterializeExhibit(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("materialize feeds: %w", err)
		}
		all = append(all, created...)
	}
	return all, nil
}

// Delete removes an article and, with it, every feed row pointing at it. Each removed row
// is announced so its owner's unread count is recomputed.
func (s *Service) Delete(ctx context.Context, p authz.Principal, id uuid.UUID) error {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, p, a); err != nil {
		return err
	}
	removed, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	readers := make([]uuid.UUID, 0, len(removed))
	for _, ua := range removed {
		readers = append(readers, ua.UserID)
	}
	events := []notify.Event{notify.Deleted(notify.TypeArticle, id, a).WithUsers(readers...)}
	s.events.Publish(ctx, append(events, notify.UserArticlesDeleted(removed)...)...)
	return nil
}

// Get returns one article the caller may view.
func (s *Service) Get(ctx context.Context, p authz.Principal, id uuid.UUID) (*models.Article, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var ok bool
	if a.IsLive() {
		ok, err = s.policy.CanViewExhibit(ctx, p, *a.ExhibitID)
	} else {
		ok, err = s.policy.CanViewCollection(ctx, p, a.CollectionID)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Forbidden("you cannot view this article")
	}
	return a, nil
}

// ListByCollection returns a collection's library articles, oldest first.
func (s *Service) ListByCollection(ctx context.Context, p authz.Principal, collectionID uuid.UUID) ([]models.Article, error) {
	exists, err := s.store.CollectionExists(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.NotFound("collection")
	}
	if ok, err := s.policy.CanViewCollection(ctx, p, collectionID); err != nil || !ok {
		return nil, forbiddenOr(err, "you cannot view this collection")
	}
	list, err := s.store.ListLibrary(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	timeline.SortOldestFirst(list, feed.ArticleCoordinate)
	return list, nil
}

// ListByCard returns the articles filed under a card, oldest first.
func (s *Service) ListByCard(ctx context.Context, p authz.Principal, cardID uuid.UUID) ([]models.Article, error) {
	card, err := s.store.Card(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if ok, err := s.policy.CanViewCollection(ctx, p, card.CollectionID); err != nil || !ok {
		return nil, forbiddenOr(err, "you cannot view this collection")
	}
	list, err := s.store.ListByCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	timeline.SortOldestFirst(list, feed.ArticleCoordinate)
	return list, nil
}

// ListByExhibit returns the live articles of an exhibit released at its clock, newest first.
func (s *Service) ListByExhibit(ctx context.Context, p authz.Principal, exhibitID uuid.UUID) ([]models.Article, error) {
	ex, err := s.store.Exhibit(ctx, exhibitID)
	if err != nil {
		return nil, err
	}
	if ok, err := s.policy.CanViewExhibit(ctx, p, exhibitID); err != nil || !ok {
		return nil, forbiddenOr(err, "you cannot view this exhibit")
	}
	list, err := s.store.ListLive(ctx, exhibitID)
	if err != nil {
		return nil, err
	}
	list = timeline.Filter(list, feed.ArticleCoordinate, feed.Clock(ex))
	timeline.SortNewestFirst(list, feed.ArticleCoordinate)
	return list, nil
}

// ShareRequest names the teams to email an article to.
type ShareRequest struct {
	ExhibitID uuid.UUID   `json:"exhibit_id" binding:"required"`
	TeamIDs   []uuid.UUID `json:"team_ids" binding:"required,min=1"`
	Subject   string      `json:"subject"`
	Message   string      `json:"message"`
}

// Share emails an article to teams of an exhibit. Each team is reached through its own
// address when it has one, otherwise through its members' addresses. Mail failures fail
// the share; LRS failures do not.
func (s *Service) Share(ctx context.Context, p authz.Principal, articleID uuid.UUID, req ShareRequest) (*ShareResult, error) {
	a, err := s.store.Get(ctx, articleID)
	if err != nil {
		return nil, err
	}
	ex, err := s.store.Exhibit(ctx, req.ExhibitID)
	if err != nil {
		return nil, err
	}
	if (a.IsLive() && *a.ExhibitID != ex.ID) || (!a.IsLive() && a.CollectionID != ex.CollectionID) {
		return nil, apperr.Invalid("article does not belong to this exhibit")
	}
	if ok, err := s.policy.CanViewExhibit(ctx, p, ex.ID); err != nil || !ok {
		return nil, forbiddenOr(err, "you cannot share in this exhibit")
	}

	seen := make(map[string]struct{})
	var to []string
	add := func(addr string) {
		addr = strings.TrimSpace(addr)
		key := strings.ToLower(addr)
		if _, dup := seen[key]; addr == "" || dup {
			return
		}
		seen[key] = struct{}{}
		to = append(to, addr)
	}
	for _, teamID := range req.TeamIDs {
		team, err := s.store.Team(ctx, teamID)
		if err != nil {
			return nil, err
		}
		if team.ExhibitID != ex.ID {
			return nil, apperr.Invalid("team is not part of this exhibit")
		}
		if team.Email != "" {
			add(team.Email)
			continue
		}
		emails, err := s.store.TeamMemberEmails(ctx, teamID)
		if err != nil {
			return nil, err
		}
		for _, e := range emails {
			add(e)
		}
	}
	if len(to) == 0 {
		return nil, apperr.Invalid("no recipients have email")
	}
	if strings.TrimSpace(p.Email) == "" {
		return nil, apperr.Invalid("sender has no email")
	}

	subject := req.Subject
	if subject == "" {
		subject = a.Name
	}
	err = s.mail.Send(ctx, mailer.Message{
		From:      p.Email,
		To:        to,
		Cc:        []string{p.Email},
		Subject:   subject,
		Body:      shareBody(a, req.Message),
		ContextID: a.ID.String(),
	})
	if err != nil {
		s.logger.Warn("share email failed", zap.String("article_id", a.ID.String()), zap.Error(err))
		return nil, apperr.Newf(apperr.ErrUpstream, "transport error: %v", err)
	}

	return &ShareResult{Recipients: to, XAPIRecorded: s.record(ctx, p, xapi.VerbShared, a, ex)}, nil
}

func shareBody(a *models.Article, message string) string {
	var b strings.Builder
	if message != "" {
		fmt.Fprintf(&b, "<p>%s</p><hr/>", html.EscapeString(message))
	}
	fmt.Fprintf(&b, "<h3>%s</h3>", html.EscapeString(a.Name))
	if a.SourceName != "" {
		fmt.Fprintf(&b, "<p><em>%s (%s)</em></p>", html.EscapeString(a.SourceName), html.EscapeString(string(a.SourceType)))
	}
	if a.Summary != "" {
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(a.Summary))
	}
	if a.Description != "" {
		fmt.Fprintf(&b, "<div>%s</div>", a.Description)
	}
	if a.URL != "" {
		fmt.Fprintf(&b, `<p><a href="%s">%s</a></p>`, html.EscapeString(a.URL), html.EscapeString(a.URL))
	}
	return b.String()
}

func (s *Service) record(ctx context.Context, p authz.Principal, verb xapi.Verb, a *models.Article, ex *models.Exhibit) bool {
	if s.lrs == nil || !s.lrs.IsConfigured() {
		return false
	}
	team, err := s.policy.TeamFor(ctx, ex.ID, p.UserID)
	if err != nil {
		s.logger.Warn("xapi team lookup", zap.Error(err))
	}
	return s.lrs.RecordEvent(ctx, xapi.Event{
		Verb:   verb,
		Actor:  xapi.Actor{ID: p.UserID, Name: p.Email, Email: p.Email},
		Object: xapi.Activity{ID: a.ID, Type: "article", Name: a.Name, Description: a.Summary},
		Parent: &xapi.Activity{ID: ex.ID, Type: "exhibit", Name: ex.Name},
		TeamID: team,
	})
}

func forbiddenOr(err error, msg string) error {
	if err != nil {
		return err
	}
	return apperr.Forbidden(msg)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
