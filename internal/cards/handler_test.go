package cards

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
	collections map[uuid.UUID]bool
	cards       map[uuid.UUID]*models.Card
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Card, error) {
	c, ok := m.cards[id]
	if !ok {
		return nil, apperr.NotFound("card")
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) ListByCollection(_ context.Context, id uuid.UUID) ([]models.Card, error) {
	var out []models.Card
	for _, c := range m.cards {
		if c.CollectionID == id {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memStore) CollectionExists(_ context.Context, id uuid.UUID) (bool, error) {
	return m.collections[id], nil
}

func (m *memStore) Create(_ context.Context, c *models.Card) error {
	c.ID = uuid.New()
	cp := *c
	m.cards[c.ID] = &cp
	return nil
}

func (m *memStore) Update(_ context.Context, c *models.Card) error {
	cp := *c
	m.cards[c.ID] = &cp
	return nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.cards, id)
	return nil
}

// editors may edit the listed collections.
type editors map[uuid.UUID]uuid.UUID

func (e editors) Require(_ context.Context, p authz.Principal, req authz.Requirement, id uuid.UUID) error {
	if e[id] == p.UserID {
		return nil
	}
	return apperr.Forbidden(req.Denied)
}

type events struct{ got []notify.Event }

func (e *events) Publish(_ context.Context, evs ...notify.Event) { e.got = append(e.got, evs...) }

func TestCardLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	editor := authz.Principal{UserID: uuid.New()}
	collection := uuid.New()
	store := &memStore{collections: map[uuid.UUID]bool{collection: true}, cards: make(map[uuid.UUID]*models.Card)}
	ev := &events{}
	h := NewHandler(store, editors{collection: editor.UserID}, ev, nil)

	var caller authz.Principal
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextPrincipal, caller) })
	r.POST("/cards", h.Create)
	r.PUT("/cards/:id", h.Update)
	r.DELETE("/cards/:id", h.Delete)
	r.GET("/collections/:id/cards", h.ListByCollection)

	call := func(method, path string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			_ = json.NewEncoder(&buf).Encode(body)
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	caller = authz.Principal{UserID: uuid.New()}
	assert.Equal(t, http.StatusNotFound, call(http.MethodPost, "/cards", map[string]any{"collection_id": uuid.New(), "name": "x"}).Code)
	assert.Equal(t, http.StatusForbidden, call(http.MethodPost, "/cards", map[string]any{"collection_id": collection, "name": "x"}).Code)
	assert.Equal(t, http.StatusBadRequest, call(http.MethodPost, "/cards", map[string]any{"collection_id": collection, "name": "x", "move": -1}).Code)

	caller = editor
	w := call(http.MethodPost, "/cards", map[string]any{"collection_id": collection, "name": "Blue sky", "move": 1})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, store.cards, 1)
	var id uuid.UUID
	for k := range store.cards {
		id = k
	}

	w = call(http.MethodPut, "/cards/"+id.String(), map[string]any{"move": 2, "name": "Blue sky"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, store.cards[id].Move)

	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/collections/"+collection.String()+"/cards", nil).Code)
	assert.Equal(t, http.StatusNoContent, call(http.MethodDelete, "/cards/"+id.String(), nil).Code)
	assert.Empty(t, store.cards)

	var names []string
	for _, e := range ev.got {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"CardCreated", "CardUpdated", "CardDeleted"}, names)
	assert.Equal(t, []string{"move"}, ev.got[1].Changed)
}
