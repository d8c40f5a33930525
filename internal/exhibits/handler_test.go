package exhibits

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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
	exhibits    map[uuid.UUID]*models.Exhibit
	collections map[uuid.UUID]bool
	players     map[uuid.UUID]uuid.UUID // user -> exhibit
}

func (m *memStore) List(context.Context) ([]models.Exhibit, error) {
	var out []models.Exhibit
	for _, ex := range m.exhibits {
		out = append(out, *ex)
	}
	return out, nil
}

func (m *memStore) ListForUser(_ context.Context, userID uuid.UUID) ([]models.Exhibit, error) {
	var out []models.Exhibit
	if ex, ok := m.exhibits[m.players[userID]]; ok {
		out = append(out, *ex)
	}
	return out, nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Exhibit, error) {
	ex, ok := m.exhibits[id]
	if !ok {
		return nil, apperr.NotFound("exhibit")
	}
	cp := *ex
	return &cp, nil
}

func (m *memStore) CollectionExists(_ context.Context, id uuid.UUID) (bool, error) {
	return m.collections[id], nil
}

func (m *memStore) IsTeamUser(_ context.Context, exhibitID, userID uuid.UUID) (bool, error) {
	return m.players[userID] == exhibitID, nil
}

func (m *memStore) Create(_ context.Context, ex *models.Exhibit) error {
	ex.ID = uuid.New()
	cp := *ex
	m.exhibits[ex.ID] = &cp
	return nil
}

func (m *memStore) Update(_ context.Context, ex *models.Exhibit) error {
	cp := *ex
	m.exhibits[ex.ID] = &cp
	return nil
}

func (m *memStore) SetClock(_ context.Context, id uuid.UUID, move, inject int) error {
	m.exhibits[id].CurrentMove, m.exhibits[id].CurrentInject = move, inject
	return nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.exhibits, id)
	return nil
}

type copier struct {
	store *memStore
	calls int
}

func (c *copier) Copy(_ context.Context, srcID uuid.UUID, name string, userID uuid.UUID) (*models.Collection, error) {
	c.calls++
	col := &models.Collection{ID: uuid.New(), Name: "copy", CreatedBy: userID}
	c.store.collections[col.ID] = true
	return col, nil
}

// systemOnly grants by system permission alone.
type systemOnly struct{}

func (systemOnly) Require(_ context.Context, p authz.Principal, req authz.Requirement, _ uuid.UUID) error {
	if p.HasAny(req.System...) {
		return nil
	}
	return apperr.Forbidden(req.Denied)
}

type materializer struct {
	calls []uuid.UUID
	rows  []models.UserArticle
	err   error
}

func (m *materializer) MaterializeExhibit(_ context.Context, id uuid.UUID) ([]models.UserArticle, error) {
	m.calls = append(m.calls, id)
	return m.rows, m.err
}

type events struct{ got []notify.Event }

func (e *events) Publish(_ context.Context, evs ...notify.Event) { e.got = append(e.got, evs...) }

type harness struct {
	store  *memStore
	copier *copier
	feed   *materializer
	events *events
	caller authz.Principal
	router *gin.Engine
}

func newHarness() *harness {
	gin.SetMode(gin.TestMode)
	h := &harness{
		store: &memStore{
			exhibits:    make(map[uuid.UUID]*models.Exhibit),
			collections: make(map[uuid.UUID]bool),
			players:     make(map[uuid.UUID]uuid.UUID),
		},
		feed:   &materializer{},
		events: &events{},
	}
	h.copier = &copier{store: h.store}
	handler := NewHandler(h.store, systemOnly{}, h.copier, h.feed, h.events, nil)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextPrincipal, h.caller) })
	r.POST("/exhibits", handler.Create)
	r.GET("/exhibits/:id", handler.GetByID)
	r.PUT("/exhibits/:id/move", handler.SetMoveAndInject)
	r.DELETE("/exhibits/:id", handler.Delete)
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

func (h *harness) exhibit(move, inject int) *models.Exhibit {
	ex := &models.Exhibit{CollectionID: uuid.New(), CurrentMove: move, CurrentInject: inject}
	_ = h.store.Create(context.Background(), ex)
	return ex
}

var editor = authz.Principal{UserID: uuid.New(), SystemPermissions: []authz.SystemPermission{authz.EditExhibits}}

func TestSetMoveAndInjectMaterializesAndPublishes(t *testing.T) {
	h := newHarness()
	h.caller = editor
	ex := h.exhibit(1, 0)
	h.feed.rows = []models.UserArticle{{ID: uuid.New(), ExhibitID: ex.ID, UserID: uuid.New()}}

	w := h.call(http.MethodPut, "/exhibits/"+ex.ID.String()+"/move", map[string]int{"move": 1, "inject": 2})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, h.store.exhibits[ex.ID].CurrentInject)
	assert.Equal(t, []uuid.UUID{ex.ID}, h.feed.calls)

	require.Len(t, h.events.got, 2)
	assert.Equal(t, "UserArticleCreated", h.events.got[0].Name())
	last := h.events.got[1]
	assert.Equal(t, "ExhibitUpdated", last.Name())
	assert.Equal(t, []string{"current_inject"}, last.Changed)
}

func TestSetMoveAndInjectAnnouncesClockWhenMaterializeFails(t *testing.T) {
	h := newHarness()
	h.caller = editor
	ex := h.exhibit(1, 0)
	h.feed.err = errors.New("feed unavailable")

	w := h.call(http.MethodPut, "/exhibits/"+ex.ID.String()+"/move", map[string]int{"move": 2, "inject": 0})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 2, h.store.exhibits[ex.ID].CurrentMove)
	require.Len(t, h.events.got, 1)
	assert.Equal(t, "ExhibitUpdated", h.events.got[0].Name())
	assert.Equal(t, []string{"current_move"}, h.events.got[0].Changed)
}

func TestSetMoveAndInjectBackwardIsAllowed(t *testing.T) {
	h := newHarness()
	h.caller = editor
	ex := h.exhibit(3, 1)

	w := h.call(http.MethodPut, "/exhibits/"+ex.ID.String()+"/move", map[string]int{"move": 2, "inject": 0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, h.store.exhibits[ex.ID].CurrentMove)
	require.NotEmpty(t, h.events.got)
	assert.Equal(t, []string{"current_move", "current_inject"}, h.events.got[len(h.events.got)-1].Changed)
}

func TestSetMoveAndInjectUnchangedDoesNothing(t *testing.T) {
	h := newHarness()
	h.caller = editor
	ex := h.exhibit(2, 2)

	w := h.call(http.MethodPut, "/exhibits/"+ex.ID.String()+"/move", map[string]int{"move": 2, "inject": 2})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, h.feed.calls)
	assert.Empty(t, h.events.got)
}

func TestSetMoveAndInjectValidation(t *testing.T) {
	h := newHarness()
	ex := h.exhibit(0, 0)
	path := "/exhibits/" + ex.ID.String() + "/move"

	h.caller = authz.Principal{UserID: uuid.New()}
	assert.Equal(t, http.StatusNotFound, h.call(http.MethodPut, "/exhibits/"+uuid.NewString()+"/move", map[string]int{"move": 1, "inject": 0}).Code)
	assert.Equal(t, http.StatusForbidden, h.call(http.MethodPut, path, map[string]int{"move": 1, "inject": 0}).Code)

	h.caller = editor
	assert.Equal(t, http.StatusBadRequest, h.call(http.MethodPut, path, map[string]int{"move": 1}).Code)
	assert.Equal(t, http.StatusBadRequest, h.call(http.MethodPut, path, map[string]int{"move": -1, "inject": 0}).Code)
}

func TestPlayersMayViewTheirExhibit(t *testing.T) {
	h := newHarness()
	ex := h.exhibit(0, 0)
	player := authz.Principal{UserID: uuid.New()}
	h.store.players[player.UserID] = ex.ID

	h.caller = player
	assert.Equal(t, http.StatusOK, h.call(http.MethodGet, "/exhibits/"+ex.ID.String(), nil).Code)
	assert.Equal(t, http.StatusForbidden, h.call(http.MethodDelete, "/exhibits/"+ex.ID.String(), nil).Code)

	h.caller = authz.Principal{UserID: uuid.New()}
	assert.Equal(t, http.StatusForbidden, h.call(http.MethodGet, "/exhibits/"+ex.ID.String(), nil).Code)
}

func TestCreateFromCopy(t *testing.T) {
	h := newHarness()
	collection := uuid.New()
	h.store.collections[collection] = true
	h.caller = authz.Principal{UserID: uuid.New(), SystemPermissions: []authz.SystemPermission{authz.CreateExhibits, authz.ViewCollections}}

	w := h.call(http.MethodPost, "/exhibits", map[string]any{"collection_id": collection, "name": "Run 1", "copy": true})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, h.copier.calls)
	require.Len(t, h.store.exhibits, 1)
	for _, ex := range h.store.exhibits {
		assert.NotEqual(t, collection, ex.CollectionID)
		assert.Equal(t, h.caller.UserID, ex.CreatedBy)
	}
	require.Len(t, h.events.got, 2)
	assert.Equal(t, "CollectionCreated", h.events.got[0].Name())
	assert.Equal(t, "ExhibitCreated", h.events.got[1].Name())
}
