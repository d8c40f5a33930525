// Package cards manages the status buckets of a collection.
package cards

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
	GetByID(ctx context.Context, id uuid.UUID) (*models.Card, error)
	ListByCollection(ctx context.Context, collectionID uuid.UUID) ([]models.Card, error)
	CollectionExists(ctx context.Context, id uuid.UUID) (bool, error)
	Create(ctx context.Context, c *models.Card) error
	Update(ctx context.Context, c *models.Card) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Guard is satisfied by *authz.Resolver.
type Guard interface {
	Require(ctx context.Context, p authz.Principal, req authz.Requirement, scopeID uuid.UUID) error
}

// CreateRequest is the body for POST /cards.
type CreateRequest struct {
	CollectionID uuid.UUID `json:"collection_id" binding:"required"`
	Name         string    `json:"name" binding:"required"`
	Description  string    `json:"description"`
	Move         int       `json:"move" binding:"min=0"`
	Inject       int       `json:"inject" binding:"min=0"`
}

// UpdateRequest is the body for PUT /cards/:id.
type UpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Move        *int    `json:"move" binding:"omitempty,min=0"`
	Inject      *int    `json:"inject" binding:"omitempty,min=0"`
}

// Handler handles card HTTP endpoints.
type Handler struct {
	store  Store
	guard  Guard
	events notify.Publisher
	logger *zap.Logger
}

// NewHandler creates a cards handler.
func NewHandler(store Store, guard Guard, events notify.Publisher, logger *zap.Logger) *Handler {
	return &Handler{store: store, guard: guard, events: events, logger: logger}
}

func (h *Handler) load(c *gin.Context, req authz.Requirement) (*models.Card, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid card id")
		return nil, false
	}
	card, err := h.store.GetByID(c.Request.Context(), id)
	if err == nil {
		err = h.guard.Require(c.Request.Context(), middleware.Principal(c), req, card.CollectionID)
	}
	if err != nil {
		response.Error(c, err, "failed to load card")
		return nil, false
	}
	return card, true
}

// ListByCollection handles GET /collections/:id/cards.
func (h *Handler) ListByCollection(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid collection id")
		return
	}
	ctx := c.Request.Context()
	exists, err := h.store.CollectionExists(ctx, id)
	if err != nil {
		response.Internal(c, "failed to list cards")
		return
	}
	if !exists {
		response.NotFound(c, "collection not found")
		return
	}
	if err := h.guard.Require(ctx, middleware.Principal(c), authz.ViewCollectionAccess, id); err != nil {
		response.Error(c, err, "failed to list cards")
		return
	}
	list, err := h.store.ListByCollection(ctx, id)
	if err != nil {
		response.Internal(c, "failed to list cards")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /cards/:id.
func (h *Handler) GetByID(c *gin.Context) {
	card, ok := h.load(c, authz.ViewCollectionAccess)
	if !ok {
		return
	}
	response.OK(c, card)
}

// Create handles POST /cards.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	exists, err := h.store.CollectionExists(ctx, req.CollectionID)
	if err != nil {
		response.Internal(c, "failed to create card")
		return
	}
	if !exists {
		response.NotFound(c, "collection not found")
		return
	}
	if err := h.guard.Require(ctx, middleware.Principal(c), authz.EditCollectionAccess, req.CollectionID); err != nil {
		response.Error(c, err, "failed to create card")
		return
	}
	card := &models.Card{
		CollectionID: req.CollectionID,
		Name:         req.Name,
		Description:  req.Description,
		Move:         req.Move,
		Inject:       req.Inject,
	}
	if err := h.store.Create(ctx, card); err != nil {
		response.Error(c, err, "failed to create card")
		return
	}
	h.events.Publish(ctx, notify.Created(notify.TypeCard, card.ID, card))
	response.Created(c, card)
}

// Update handles PUT /cards/:id.
func (h *Handler) Update(c *gin.Context) {
	card, ok := h.load(c, authz.EditCollectionAccess)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	var changed []string
	if req.Name != nil && *req.Name != card.Name {
		card.Name = *req.Name
		changed = append(changed, "name")
	}
	if req.Description != nil && *req.Description != card.Description {
		card.Description = *req.Description
		changed = append(changed, "description")
	}
	if req.Move != nil && *req.Move != card.Move {
		card.Move = *req.Move
		changed = append(changed, "move")
	}
	if req.Inject != nil && *req.Inject != card.Inject {
		card.Inject = *req.Inject
		changed = append(changed, "inject")
	}
	if len(changed) > 0 {
		if err := h.store.Update(c.Request.Context(), card); err != nil {
			response.Error(c, err, "failed to update card")
			return
		}
		h.events.Publish(c.Request.Context(), notify.Updated(notify.TypeCard, card.ID, card, changed...))
	}
	response.OK(c, card)
}

// Delete handles DELETE /cards/:id.
func (h *Handler) Delete(c *gin.Context) {
	card, ok := h.load(c, authz.EditCollectionAccess)
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), card.ID); err != nil {
		response.Error(c, err, "failed to delete card")
		return
	}
	h.events.Publish(c.Request.Context(), notify.Deleted(notify.TypeCard, card.ID, card))
	response.NoContent(c)
}
