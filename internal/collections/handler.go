// Package collections manages content libraries and their copies.
package collections

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gallery-sim/backend/internal/authz"
	"github.com/gallery-sim/backend/internal/middleware"
	"github.com/gallery-sim/backend/internal/models"
	"github.com/gallery-sim/backend/internal/notify"
	"github.com/gallery-sim/backend/pkg/response"
)

// Store is satisfied by *Repository.
type Store interface {
	List(ctx context.Context) ([]models.Collection, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Collection, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Collection, error)
	Create(ctx context.Context, c *models.Collection) error
	Update(ctx context.Context, c *models.Collection) error
	Delete(ctx context.Context, id uuid.UUID) error
	Copy(ctx context.Context, srcID uuid.UUID, name string, userID uuid.UUID) (*models.Collection, error)
}

// Guard is satisfied by *authz.Resolver.
type Guard interface {
	Require(ctx context.Context, p authz.Principal, req authz.Requirement, scopeID uuid.UUID) error
}

// CreateRequest is the body for POST /collections.
type CreateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// UpdateRequest is the body for PUT /collections/:id.
type UpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// CopyRequest is the optional body for POST /collections/:id/copy.
type CopyRequest struct {
	Name string `json:"name"`
}

// Handler handles collection HTTP endpoints.
type Handler struct {
	store  Store
	guard  Guard
	events notify.Publisher
	logger *zap.Logger
}

// NewHandler creates a collections handler.
func NewHandler(store Store, guard Guard, events notify.Publisher, logger *zap.Logger) *Handler {
	return &Handler{store: store, guard: guard, events: events, logger: logger}
}

// load returns the collection after the NotFound and access checks.
func (h *Handler) load(c *gin.Context, req authz.Requirement) (*models.Collection, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid collection id")
		return nil, false
	}
	col, err := h.store.GetByID(c.Request.Context(), id)
	if err == nil {
		err = h.guard.Require(c.Request.Context(), middleware.Principal(c), req, id)
	}
	if err != nil {
		response.Error(c, err, "failed to load collection")
		return nil, false
	}
	return col, true
}

// List handles GET /collections. Holders of ViewCollections see all, others their own.
func (h *Handler) List(c *gin.Context) {
	p := middleware.Principal(c)
	var (
		list []models.Collection
		err  error
	)
	if p.HasAny(authz.ViewCollections, authz.EditCollections, authz.ManageCollections) {
		list, err = h.store.List(c.Request.Context())
	} else {
		list, err = h.store.ListForUser(c.Request.Context(), p.UserID)
	}
	if err != nil {
		response.Internal(c, "failed to list collections")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /collections/:id.
func (h *Handler) GetByID(c *gin.Context) {
	col, ok := h.load(c, authz.ViewCollectionAccess)
	if !ok {
		return
	}
	response.OK(c, col)
}

// Create handles POST /collections.
func (h *Handler) Create(c *gin.Context) {
	p := middleware.Principal(c)
	if !p.HasAny(authz.CreateCollections) {
		response.Forbidden(c, "you cannot create collections")
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	col := &models.Collection{Name: req.Name, Description: req.Description, CreatedBy: p.UserID}
	if err := h.store.Create(c.Request.Context(), col); err != nil {
		response.Error(c, err, "failed to create collection")
		return
	}
	h.events.Publish(c.Request.Context(), notify.Created(notify.TypeCollection, col.ID, col))
	response.Created(c, col)
}

// Update handles PUT /collections/:id.
func (h *Handler) Update(c *gin.Context) {
	col, ok := h.load(c, authz.EditCollectionAccess)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	var changed []string
	if req.Name != nil && *req.Name != col.Name {
		if *req.Name == "" {
			response.BadRequest(c, "name must not be empty")
			return
		}
		col.Name = *req.Name
		changed = append(changed, "name")
	}
	if req.Description != nil && *req.Description != col.Description {
		col.Description = *req.Description
		changed = append(changed, "description")
	}
	if len(changed) > 0 {
		if err := h.store.Update(c.Request.Context(), col); err != nil {
			response.Error(c, err, "failed to update collection")
			return
		}
		h.events.Publish(c.Request.Context(), notify.Updated(notify.TypeCollection, col.ID, col, changed...))
	}
	response.OK(c, col)
}

// Delete handles DELETE /collections/:id.
func (h *Handler) Delete(c *gin.Context) {
	col, ok := h.load(c, authz.ManageCollectionAccess)
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), col.ID); err != nil {
		response.Error(c, err, "failed to delete collection")
		return
	}
	h.events.Publish(c.Request.Context(), notify.Deleted(notify.TypeCollection, col.ID, col))
	response.NoContent(c)
}

// Copy handles POST /collections/:id/copy.
func (h *Handler) Copy(c *gin.Context) {
	src, ok := h.load(c, authz.ViewCollectionAccess)
	if !ok {
		return
	}
	p := middleware.Principal(c)
	if !p.HasAny(authz.CreateCollections) {
		response.Forbidden(c, "you cannot create collections")
		return
	}
	var req CopyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	col, err := CopyAndAnnounce(c.Request.Context(), h.store, h.events, src.ID, req.Name, p.UserID)
	if err != nil {
		response.Error(c, err, "failed to copy collection")
		return
	}
	response.Created(c, col)
}

// Copier duplicates a collection.
type Copier interface {
	Copy(ctx context.Context, srcID uuid.UUID, name string, userID uuid.UUID) (*models.Collection, error)
}

// CopyAndAnnounce copies a collection and publishes the new one.
func CopyAndAnnounce(ctx context.Context, store Copier, events notify.Publisher, srcID uuid.UUID, name string, userID uuid.UUID) (*models.Collection, error) {
	col, err := store.Copy(ctx, srcID, name, userID)
	if err != nil {
		return nil, err
	}
	events.Publish(ctx, notify.Created(notify.TypeCollection, col.ID, col))
	return col, nil
}
