package collections

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
	byID   map[uuid.UUID]*models.Collection
	copies int
}

func (m *memStore) List(context.Context) ([]models.Collection, error) {
	var out []models.Collection
	for _, c := range m.byID {
		out = append(out, *c)
	}
	return out, nil
}

func (m *memStore) ListForUser(_ context.Context, userID uuid.UUID) ([]models.Collection, error) {
	var out []models.Collection
	for _, c := range m.byID {
		if c.CreatedBy == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Collection, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, apperr.NotFound("collection")
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) Create(_ context.Context, c *models.Collection) error {
	c.ID = uuid.New()
	cp := *c
	m.byID[c.ID] = &cp
	return nil
}

func (m *memStore) Update(_ context.Context, c *models.Collection) error {
	cp := *c
	m.byID[c.ID] = &cp
	return nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.byID, id)
	return nil
}

func (m *memStore) Copy(ctx context.Context, srcID uuid.UUID, name string, userID uuid.UUID) (*models.Collection, error) {
	src, err := m.GetByID(ctx, srcID)
	if err != nil {
		return nil, err
	}
	m.copies++
	if name == "" {
		name = src.Name + " - copy"
	}
	c := &models.Collection{Name: name, CreatedBy: userID}
	return c, m.Create(ctx, c)
}

// ownerGuard lets the creator of a collection do anything with it.
type ownerGuard struct{ store *memStore }

func (g ownerGuard) Require(_ context.Context, p authz.Principal, req authz.Requirement, id uuid.UUID) error {
	if c, ok := g.store.byID[id]; ok && c.CreatedBy == p.UserID {
		return nil
	}
	if p.HasAny(req.System...) {
		return nil
	}
	return apperr.Forbidden(req.Denied)
}

type events struct{ got []notify.Event }

func (e *events) Publish(_ context.Context, evs ...notify.Event) { e.got = append(e.got, evs...) }

func setup(p authz.Principal) (*gin.Engine, *memStore, *events) {
	gin.SetMode(gin.TestMode)
	store := &memStore{byID: make(map[uuid.UUID]*models.Collection)}
	ev := &events{}
	h := NewHandler(store, ownerGuard{store}, ev, nil)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextPrincipal, p) })
	r.GET("/collections", h.List)
	r.POST("/collections", h.Create)
	r.GET("/collections/:id", h.GetByID)
	r.PUT("/collections/:id", h.Update)
	r.DELETE("/collections/:id", h.Delete)
	r.POST("/collections/:id/copy", h.Copy)
	return r, store, ev
}

func call(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
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

func TestCreateNeedsSystemPermission(t *testing.T) {
	r, store, ev := setup(authz.Principal{UserID: uuid.New()})
	w := call(r, http.MethodPost, "/collections", map[string]string{"name": "Library"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, store.byID)

	author := authz.Principal{UserID: uuid.New(), SystemPermissions: []authz.SystemPermission{authz.CreateCollections}}
	r, store, ev = setup(author)
	w = call(r, http.MethodPost, "/collections", map[string]string{"name": "Library"})
	assert.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, store.byID, 1)
	require.Len(t, ev.got, 1)
	assert.Equal(t, "CollectionCreated", ev.got[0].Name())
}

func TestMissingCollectionIsNotFoundBeforeForbidden(t *testing.T) {
	r, _, _ := setup(authz.Principal{UserID: uuid.New()})
	assert.Equal(t, http.StatusNotFound, call(r, http.MethodGet, "/collections/"+uuid.NewString(), nil).Code)
	assert.Equal(t, http.StatusBadRequest, call(r, http.MethodGet, "/collections/x", nil).Code)
}

func TestUpdatePublishesChangedFields(t *testing.T) {
	owner := authz.Principal{UserID: uuid.New()}
	r, store, ev := setup(owner)
	col := &models.Collection{Name: "Old", CreatedBy: owner.UserID}
	require.NoError(t, store.Create(context.Background(), col))

	w := call(r, http.MethodPut, "/collections/"+col.ID.String(), map[string]string{"name": "New", "description": ""})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "New", store.byID[col.ID].Name)
	require.Len(t, ev.got, 1)
	assert.Equal(t, []string{"name"}, ev.got[0].Changed)

	w = call(r, http.MethodPut, "/collections/"+col.ID.String(), map[string]string{"name": "New"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, ev.got, 1)
}

func TestStrangerCannotDelete(t *testing.T) {
	owner := authz.Principal{UserID: uuid.New()}
	r, store, _ := setup(authz.Principal{UserID: uuid.New()})
	col := &models.Collection{Name: "Mine", CreatedBy: owner.UserID}
	require.NoError(t, store.Create(context.Background(), col))

	assert.Equal(t, http.StatusForbidden, call(r, http.MethodDelete, "/collections/"+col.ID.String(), nil).Code)
	assert.Contains(t, store.byID, col.ID)
}

func TestCopy(t *testing.T) {
	author := authz.Principal{UserID: uuid.New(), SystemPermissions: []authz.SystemPermission{authz.CreateCollections}}
	r, store, ev := setup(author)
	col := &models.Collection{Name: "Base", CreatedBy: author.UserID}
	require.NoError(t, store.Create(context.Background(), col))

	w := call(r, http.MethodPost, "/collections/"+col.ID.String()+"/copy", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, store.copies)
	require.Len(t, ev.got, 1)
	copied := ev.got[0].Entity.(*models.Collection)
	assert.Equal(t, "Base - copy", copied.Name)
	assert.NotEqual(t, col.ID, copied.ID)
}
