package userarticles

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gallery-sim/backend/internal/authz"
	"github.com/gallery-sim/backend/internal/middleware"
	"github.com/gallery-sim/backend/internal/models"
	"github.com/gallery-sim/backend/internal/notify"
	"github.com/gallery-sim/backend/internal/xapi"
	"github.com/gallery-sim/backend/pkg/apperr"
)

type memStore struct {
	exhibit   *models.Exhibit
	rows      map[uuid.UUID]*models.UserArticleView
	teams     map[uuid.UUID]*models.Team
	teamUsers []models.TeamUser
	teamView  []models.Article
}

func (m *memStore) Exhibit(_ context.Context, id uuid.UUID) (*models.Exhibit, error) {
	if m.exhibit == nil || m.exhibit.ID != id {
		return nil, apperr.NotFound("exhibit")
	}
	return m.exhibit, nil
}

func (m *memStore) ListForUser(_ context.Context, exhibitID, userID uuid.UUID) ([]models.UserArticleView, error) {
	var out []models.UserArticleView
	for _, v := range m.rows {
		if v.ExhibitID == exhibitID && v.UserID == userID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.UserArticleView, error) {
	v, ok := m.rows[id]
	if !ok {
		return nil, apperr.NotFound("user article")
	}
	cp := *v
	return &cp, nil
}

func (m *memStore) SetRead(_ context.Context, id uuid.UUID, isRead bool) error {
	m.rows[id].IsRead = isRead
	return nil
}

func (m *memStore) TeamView(context.Context, uuid.UUID, uuid.UUID) ([]models.Article, error) {
	return m.teamView, nil
}

func (m *memStore) Team(_ context.Context, id uuid.UUID) (*models.Team, error) {
	t, ok := m.teams[id]
	if !ok {
		return nil, apperr.NotFound("team")
	}
	return t, nil
}

func (m *memStore) TeamUser(_ context.Context, exhibitID, userID uuid.UUID) (*models.TeamUser, error) {
	for i := range m.teamUsers {
		tu := m.teamUsers[i]
		if tu.UserID == userID && m.teams[tu.TeamID].ExhibitID == exhibitID {
			return &tu, nil
		}
	}
	return nil, nil
}

// backfill adds pending rows to the store when MaterializeUser runs.
type backfill struct {
	store   *memStore
	pending []models.UserArticleView
	calls   int
}

func (b *backfill) MaterializeUser(_ context.Context, _, userID uuid.UUID) ([]models.UserArticle, error) {
	b.calls++
	var created []models.UserArticle
	for i := range b.pending {
		v := b.pending[i]
		if v.UserID != userID {
			continue
		}
		b.store.rows[v.ID] = &v
		created = append(created, v.UserArticle)
	}
	b.pending = nil
	return created, nil
}

type denyAll struct{}

func (denyAll) Authorize(_ context.Context, p authz.Principal, _ authz.Scope, _ uuid.UUID, sys []authz.SystemPermission, _ []authz.ScopedPermission) (bool, error) {
	return p.HasAny(sys...), nil
}

type recorder struct{ events []notify.Event }

func (r *recorder) Publish(_ context.Context, events ...notify.Event) {
	r.events = append(r.events, events...)
}

type lrs struct{ got []xapi.Event }

func (l *lrs) IsConfigured() bool { return true }

func (l *lrs) RecordEvent(_ context.Context, ev xapi.Event) bool {
	l.got = append(l.got, ev)
	return true
}

type fixture struct {
	store  *memStore
	feed   *backfill
	events *recorder
	lrs    *lrs
	svc    *Service
	user   authz.Principal
	team   *models.Team
}

func newFixture() *fixture {
	ex := &models.Exhibit{ID: uuid.New(), CollectionID: uuid.New(), Name: "Exercise", CurrentMove: 2, CurrentInject: 1}
	f := &fixture{
		store:  &memStore{exhibit: ex, rows: make(map[uuid.UUID]*models.UserArticleView), teams: make(map[uuid.UUID]*models.Team)},
		events: &recorder{},
		lrs:    &lrs{},
		user:   authz.Principal{UserID: uuid.New(), Email: "u@example.com"},
	}
	f.team = &models.Team{ID: uuid.New(), ExhibitID: ex.ID, Name: "Blue"}
	f.store.teams[f.team.ID] = f.team
	f.store.teamUsers = []models.TeamUser{{ID: uuid.New(), TeamID: f.team.ID, UserID: f.user.UserID}}
	f.feed = &backfill{store: f.store}
	f.svc = NewService(f.store, f.feed, denyAll{}, f.events, f.lrs, nil)
	return f
}

func (f *fixture) row(move, inject int, read bool) models.UserArticleView {
	articleID := uuid.New()
	return models.UserArticleView{
		UserArticle: models.UserArticle{ID: uuid.New(), ExhibitID: f.store.exhibit.ID, UserID: f.user.UserID, ArticleID: articleID, IsRead: read},
		Article:     models.Article{ID: articleID, Name: "a", Move: move, Inject: inject},
	}
}

func (f *fixture) put(v models.UserArticleView) uuid.UUID {
	f.store.rows[v.ID] = &v
	return v.ID
}

func TestGetMineBackfillsThenGates(t *testing.T) {
	f := newFixture()
	f.put(f.row(1, 4, false))
	f.put(f.row(3, 0, false))
	f.feed.pending = []models.UserArticleView{f.row(2, 1, false)}

	rows, err := f.svc.GetMine(context.Background(), f.user, f.store.exhibit.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.feed.calls)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].Article.Move)
	assert.Equal(t, 1, rows[1].Article.Move)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, "UserArticleCreated", f.events.events[0].Name())
}

func TestGetMineUnknownExhibit(t *testing.T) {
	f := newFixture()
	_, err := f.svc.GetMine(context.Background(), f.user, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Zero(t, f.feed.calls)
}

func TestUnreadCountIgnoresReadAndUnreleased(t *testing.T) {
	f := newFixture()
	for _, v := range []models.UserArticleView{
		f.row(1, 0, false), f.row(2, 0, false), f.row(2, 1, false),
		f.row(1, 1, true), f.row(2, 0, true),
		f.row(2, 2, false),
	} {
		f.put(v)
	}

	n, err := f.svc.GetUnreadCount(context.Background(), f.user, f.store.exhibit.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSetReadOwnerOnly(t *testing.T) {
	f := newFixture()
	id := f.put(f.row(1, 0, false))
	ctx := context.Background()

	_, err := f.svc.SetRead(ctx, authz.Principal{UserID: uuid.New(), AllSystemPermissions: true}, id, true)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	res, err := f.svc.SetRead(ctx, f.user, id, true)
	require.NoError(t, err)
	assert.True(t, res.UserArticle.IsRead)
	assert.True(t, res.XAPIRecorded)
	require.Len(t, f.lrs.got, 1)
	assert.Equal(t, xapi.VerbRead, f.lrs.got[0].Verb)
	assert.Equal(t, f.team.ID, *f.lrs.got[0].TeamID)

	require.Len(t, f.events.events, 1)
	ev := f.events.events[0]
	assert.Equal(t, "UserArticleUpdated", ev.Name())
	assert.Equal(t, []string{"is_read"}, ev.Changed)

	_, err = f.svc.SetRead(ctx, f.user, id, true)
	require.NoError(t, err)
	assert.Len(t, f.events.events, 1, "unchanged flag publishes nothing")

	_, err = f.svc.SetRead(ctx, f.user, uuid.New(), true)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTeamViewAccess(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	exhibitID := f.store.exhibit.ID
	red := &models.Team{ID: uuid.New(), ExhibitID: exhibitID, Name: "Red"}
	f.store.teams[red.ID] = red
	f.store.teamView = []models.Article{{ID: uuid.New()}}

	list, err := f.svc.GetByExhibitTeam(ctx, f.user, exhibitID, f.team.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.svc.GetByExhibitTeam(ctx, f.user, exhibitID, red.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	f.store.teamUsers[0].IsObserver = true
	_, err = f.svc.GetByExhibitTeam(ctx, f.user, exhibitID, red.ID)
	assert.NoError(t, err)

	viewer := authz.Principal{UserID: uuid.New(), SystemPermissions: []authz.SystemPermission{authz.ViewExhibits}}
	_, err = f.svc.GetByExhibitTeam(ctx, viewer, exhibitID, red.ID)
	assert.NoError(t, err)

	other := &models.Team{ID: uuid.New(), ExhibitID: uuid.New()}
	f.store.teams[other.ID] = other
	_, err = f.svc.GetByExhibitTeam(ctx, viewer, exhibitID, other.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSetReadHandlerValidatesBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture()
	id := f.put(f.row(1, 0, false))
	h := NewHandler(f.svc, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextPrincipal, f.user) })
	r.PUT("/user-articles/:id/read", h.SetRead)

	send := func(path string, body any) *httptest.ResponseRecorder {
		b, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPut, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusBadRequest, send("/user-articles/"+id.String()+"/read", map[string]any{}).Code)
	assert.Equal(t, http.StatusBadRequest, send("/user-articles/nope/read", map[string]any{"is_read": true}).Code)
	assert.Equal(t, http.StatusNotFound, send("/user-articles/"+uuid.NewString()+"/read", map[string]any{"is_read": true}).Code)
	assert.Equal(t, http.StatusOK, send("/user-articles/"+id.String()+"/read", map[string]any{"is_read": true}).Code)
	assert.True(t, f.store.rows[id].IsRead)
}
