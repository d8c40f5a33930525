package teams

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
	"github.com/gallery-sim/backend/pkg/apperr"
)

type memStore struct {
	exhibits  map[uuid.UUID]*models.Exhibit
	teams     map[uuid.UUID]*models.Team
	users     []models.TeamUser
	cards     map[uuid.UUID]uuid.UUID // card -> collection
	teamCards map[[2]uuid.UUID]*models.TeamCard
}

func newMemStore() *memStore {
	return &memStore{
		exhibits:  make(map[uuid.UUID]*models.Exhibit),
		teams:     make(map[uuid.UUID]*models.Team),
		cards:     make(map[uuid.UUID]uuid.UUID),
		teamCards: make(map[[2]uuid.UUID]*models.TeamCard),
	}
}

func (m *memStore) Exhibit(_ context.Context, id uuid.UUID) (*models.Exhibit, error) {
	ex, ok := m.exhibits[id]
	if !ok {
		return nil, apperr.NotFound("exhibit")
	}
	return ex, nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Team, error) {
	t, ok := m.teams[id]
	if !ok {
		return nil, apperr.NotFound("team")
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) ListByExhibit(_ context.Context, exhibitID uuid.UUID) ([]models.Team, error) {
	var out []models.Team
	for _, t := range m.teams {
		if t.ExhibitID == exhibitID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) Create(_ context.Context, t *models.Team) error {
	t.ID = uuid.New()
	cp := *t
	m.teams[t.ID] = &cp
	return nil
}

func (m *memStore) Update(_ context.Context, t *models.Team) error {
	cp := *t
	m.teams[t.ID] = &cp
	return nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.teams, id)
	return nil
}

func (m *memStore) TeamOfUser(_ context.Context, exhibitID, userID uuid.UUID) (*uuid.UUID, error) {
	for _, tu := range m.users {
		if tu.UserID == userID && m.teams[tu.TeamID].ExhibitID == exhibitID {
			id := tu.TeamID
			return &id, nil
		}
	}
	return nil, nil
}

func (m *memStore) Users(_ context.Context, teamID uuid.UUID) ([]models.TeamUser, error) {
	var out []models.TeamUser
	for _, tu := range m.users {
		if tu.TeamID == teamID {
			out = append(out, tu)
		}
	}
	return out, nil
}

func (m *memStore) AddUser(_ context.Context, _ uuid.UUID, tu *models.TeamUser) error {
	tu.ID = uuid.New()
	m.users = append(m.users, *tu)
	return nil
}

func (m *memStore) RemoveUser(_ context.Context, teamID, userID uuid.UUID) (*models.TeamUser, error) {
	for i, tu := range m.users {
		if tu.TeamID == teamID && tu.UserID == userID {
			m.users = append(m.users[:i], m.users[i+1:]...)
			return &tu, nil
		}
	}
	return nil, apperr.NotFound("team user")
}

func (m *memStore) CardCollection(_ context.Context, cardID uuid.UUID) (uuid.UUID, error) {
	id, ok := m.cards[cardID]
	if !ok {
		return uuid.Nil, apperr.NotFound("card")
	}
	return id, nil
}

func (m *memStore) Cards(_ context.Context, teamID uuid.UUID) ([]models.TeamCard, error) {
	var out []models.TeamCard
	for k, tc := range m.teamCards {
		if k[0] == teamID {
			out = append(out, *tc)
		}
	}
	return out, nil
}

func (m *memStore) UpsertCard(_ context.Context, tc *models.TeamCard) (bool, error) {
	key := [2]uuid.UUID{tc.TeamID, tc.CardID}
	old, ok := m.teamCards[key]
	if ok {
		tc.ID = old.ID
	} else {
		tc.ID = uuid.New()
	}
	cp := *tc
	m.teamCards[key] = &cp
	return !ok, nil
}

func (m *memStore) DeleteCard(_ context.Context, teamID, cardID uuid.UUID) (*models.TeamCard, error) {
	key := [2]uuid.UUID{teamID, cardID}
	tc, ok := m.teamCards[key]
	if !ok {
		return nil, apperr.NotFound("team card")
	}
	delete(m.teamCards, key)
	return tc, nil
}

type systemOnly struct{}

func (systemOnly) Require(_ context.Context, p authz.Principal, req authz.Requirement, _ uuid.UUID) error {
	if p.HasAny(req.System...) {
		return nil
	}
	return apperr.Forbidden(req.Denied)
}

type materializer struct {
	exhibitCalls int
	userCalls    []uuid.UUID
}

func (m *materializer) MaterializeExhibit(context.Context, uuid.UUID) ([]models.UserArticle, error) {
	m.exhibitCalls++
	return nil, nil
}

func (m *materializer) MaterializeUser(_ context.Context, exhibitID, userID uuid.UUID) ([]models.UserArticle, error) {
	m.userCalls = append(m.userCalls, userID)
	return []models.UserArticle{{ID: uuid.New(), ExhibitID: exhibitID, UserID: userID}}, nil
}

type events struct{ got []notify.Event }

func (e *events) Publish(_ context.Context, evs ...notify.Event) { e.got = append(e.got, evs...) }

func (e *events) names() []string {
	var out []string
	for _, ev := range e.got {
		out = append(out, ev.Name())
	}
	return out
}

type harness struct {
	store  *memStore
	feed   *materializer
	events *events
	caller authz.Principal
	router *gin.Engine
	ex     *models.Exhibit
	blue   *models.Team
	red    *models.Team
}

var editor = authz.Principal{UserID: uuid.New(), SystemPermissions: []authz.SystemPermission{authz.EditExhibits}}

func newHarness() *harness {
	gin.SetMode(gin.TestMode)
	h := &harness{store: newMemStore(), feed: &materializer{}, events: &events{}, caller: editor}
	h.ex = &models.Exhibit{ID: uuid.New(), CollectionID: uuid.New()}
	h.store.exhibits[h.ex.ID] = h.ex
	h.blue = &models.Team{ExhibitID: h.ex.ID, Name: "Blue"}
	h.red = &models.Team{ExhibitID: h.ex.ID, Name: "Red"}
	_ = h.store.Create(context.Background(), h.blue)
	_ = h.store.Create(context.Background(), h.red)

	handler := NewHandler(h.store, systemOnly{}, h.feed, h.events, nil)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextPrincipal, h.caller) })
	r.POST("/exhibits/:id/teams", handler.Create)
	r.GET("/exhibits/:id/teams", handler.ListByExhibit)
	r.GET("/teams/:id", handler.GetByID)
	r.POST("/teams/:id/users", handler.AddUser)
	r.DELETE("/teams/:id/users/:userId", handler.RemoveUser)
	r.PUT("/teams/:id/cards/:cardId", handler.UpsertCard)
	h.router = r
	return h
}

func (h *harness) call(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func TestCreatePublishesTeamAndExhibitTeam(t *testing.T) {
	h := newHarness()
	w := h.call(http.MethodPost, "/exhibits/"+h.ex.ID.String()+"/teams", map[string]string{"name": "Green"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"TeamCreated", "ExhibitTeamCreated"}, h.events.names())

	w = h.call(http.MethodPost, "/exhibits/"+uuid.NewString()+"/teams", map[string]string{"name": "Green"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUserOnOneTeamPerExhibit(t *testing.T) {
	h := newHarness()
	user := uuid.New()

	w := h.call(http.MethodPost, "/teams/"+h.blue.ID.String()+"/users", map[string]any{"user_id": user})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []uuid.UUID{user}, h.feed.userCalls)
	assert.Equal(t, []string{"TeamUserCreated", "UserArticleCreated"}, h.events.names())

	w = h.call(http.MethodPost, "/teams/"+h.red.ID.String()+"/users", map[string]any{"user_id": user})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already on a team in this exhibit")

	w = h.call(http.MethodPost, "/teams/"+h.blue.ID.String()+"/users", map[string]any{"user_id": user})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already on this team")

	other := &models.Exhibit{ID: uuid.New()}
	h.store.exhibits[other.ID] = other
	green := &models.Team{ExhibitID: other.ID, Name: "Green"}
	require.NoError(t, h.store.Create(context.Background(), green))
	w = h.call(http.MethodPost, "/teams/"+green.ID.String()+"/users", map[string]any{"user_id": user})
	assert.Equal(t, http.StatusCreated, w.Code, "other exhibits are unaffected")

	w = h.call(http.MethodDelete, "/teams/"+h.blue.ID.String()+"/users/"+user.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = h.call(http.MethodPost, "/teams/"+h.red.ID.String()+"/users", map[string]any{"user_id": user})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestUpsertCard(t *testing.T) {
	h := newHarness()
	card := uuid.New()
	foreign := uuid.New()
	h.store.cards[card] = h.ex.CollectionID
	h.store.cards[foreign] = uuid.New()
	path := "/teams/" + h.blue.ID.String() + "/cards/"

	assert.Equal(t, http.StatusBadRequest, h.call(http.MethodPut, path+foreign.String(), map[string]any{}).Code)
	assert.Equal(t, http.StatusNotFound, h.call(http.MethodPut, path+uuid.NewString(), map[string]any{}).Code)

	w := h.call(http.MethodPut, path+card.String(), map[string]any{})
	require.Equal(t, http.StatusCreated, w.Code)
	tc := h.store.teamCards[[2]uuid.UUID{h.blue.ID, card}]
	assert.True(t, tc.IsShownOnWall)
	assert.False(t, tc.CanPostArticles)

	w = h.call(http.MethodPut, path+card.String(), map[string]any{"can_post_articles": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, h.store.teamCards[[2]uuid.UUID{h.blue.ID, card}].CanPostArticles)
	assert.Equal(t, 2, h.feed.exhibitCalls)
	assert.Equal(t, []string{"TeamCardCreated", "TeamCardUpdated"}, h.events.names())
}

func TestPlayersSeeTheirExhibitsTeams(t *testing.T) {
	h := newHarness()
	player := uuid.New()
	h.store.users = append(h.store.users, models.TeamUser{ID: uuid.New(), TeamID: h.blue.ID, UserID: player})

	h.caller = authz.Principal{UserID: player}
	assert.Equal(t, http.StatusOK, h.call(http.MethodGet, "/exhibits/"+h.ex.ID.String()+"/teams", nil).Code)
	assert.Equal(t, http.StatusOK, h.call(http.MethodGet, "/teams/"+h.red.ID.String(), nil).Code)
	assert.Equal(t, http.StatusForbidden, h.call(http.MethodPost, "/teams/"+h.red.ID.String()+"/users", map[string]any{"user_id": uuid.New()}).Code)

	h.caller = authz.Principal{UserID: uuid.New()}
	assert.Equal(t, http.StatusForbidden, h.call(http.MethodGet, "/exhibits/"+h.ex.ID.String()+"/teams", nil).Code)
}
