// Package exhibits manages running exhibits and their move/inject clock.
package exhibits

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gallery-sim/backend/internal/authz"
	"github.com/gallery-sim/backend/internal/collections"
	"github.com/gallery-sim/backend/internal/middleware"
	"github.com/gallery-sim/backend/internal/models"
	"github.com/gallery-sim/backend/internal/notify"
	"github.com/gallery-sim/backend/internal/timeline"
	"github.com/gallery-sim/backend/pkg/response"
)

// Store is satisfied by *Repository.
type Store interface {
	List(ctx context.Context) ([]models.Exhibit, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Exhibit, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Exhibit, error)
	CollectionExists(ctx context.Context, id uuid.UUID) (bool, error)
	IsTeamUser(ctx context.Context, exhibitID, userID uuid.UUID) (bool, error)
	Create(ctx context.Context, ex *models.Exhibit) error
	Update(ctx context.Context, ex *models.Exhibit) error
	SetClock(ctx context.Context, id uuid.UUID, move, inject int) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Guard is satisfied by *authz.Resolver.
type Guard interface {
	Require(ctx context.Context, p authz.Principal, req authz.Requirement, scopeID uuid.UUID) error
}

// Materializer is satisfied by *feed.Materializer.
type Materializer interface {
	MaterializeExhibit(ctx context.Context, exhibitID uuid.UUID) ([]models.UserArticle, error)
}

// CreateRequest is the body for POST /exhibits. With Copy set the exhibit runs on a
// fresh copy of the collection instead of the collection itself.
type CreateRequest struct {
	CollectionID uuid.UUID  `json:"collection_id" binding:"required"`
	ScenarioID   *uuid.UUID `json:"scenario_id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Copy         bool       `json:"copy"`
}

// UpdateRequest is the body for PUT /exhibits/:id.
type UpdateRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	ScenarioID  *uuid.UUID `json:"scenario_id"`
}

// MoveRequest is the body for PUT /exhibits/:id/move.
type MoveRequest struct {
	Move   *int `json:"move" binding:"required,min=0"`
	Inject *int `json:"inject" binding:"required,min=0"`
}

// Handler handles exhibit HTTP endpoints.
type Handler struct {
	store  Store
	guard  Guard
	copier collections.Copier
	feed   Materializer
	events notify.Publisher
	logger *zap.Logger
}

// NewHandler creates an exhibits handler.
func NewHandler(store Store, guard Guard, copier collections.Copier, m Materializer, events notify.Publisher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, guard: guard, copier: copier, feed: m, events: events, logger: logger}
}

// load returns the exhibit after the NotFound and access checks. With teamMayPass set,
// players on any of its teams pass without a membership.
func (h *Handler) load(c *gin.Context, req authz.Requirement, teamMayPass bool) (*models.Exhibit, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid exhibit id")
		return nil, false
	}
	ctx := c.Request.Context()
	p := middleware.Principal(c)
	ex, err := h.store.GetByID(ctx, id)
	if err != nil {
		response.Error(c, err, "failed to load exhibit")
		return nil, false
	}
	if teamMayPass {
		member, err := h.store.IsTeamUser(ctx, id, p.UserID)
		if err != nil {
			response.Internal(c, "failed to load exhibit")
			return nil, false
		}
		if member {
			return ex, true
		}
	}
	if err := h.guard.Require(ctx, p, req, id); err != nil {
		response.Error(c, err, "failed to load exhibit")
		return nil, false
	}
	return ex, true
}

// List handles GET /exhibits.
func (h *Handler) List(c *gin.Context) {
	p := middleware.Principal(c)
	var (
		list []models.Exhibit
		err  error
	)
	if p.HasAny(authz.ViewExhibits, authz.EditExhibits, authz.ManageExhibits) {
		list, err = h.store.List(c.Request.Context())
	} else {
		list, err = h.store.ListForUser(c.Request.Context(), p.UserID)
	}
	if err != nil {
		response.Internal(c, "failed to list exhibits")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /exhibits/:id.
func (h *Handler) GetByID(c *gin.Context) {
	ex, ok := h.load(c, authz.ViewExhibitAccess, true)
	if !ok {
		return
	}
	response.OK(c, ex)
}

// Create handles POST /exhibits.
func (h *Handler) Create(c *gin.Context) {
	p := middleware.Principal(c)
	if !p.HasAny(authz.CreateExhibits) {
		response.Forbidden(c, "you cannot create exhibits")
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	exists, err := h.store.CollectionExists(ctx, req.CollectionID)
	if err != nil {
		response.Internal(c, "failed to create exhibit")
		return
	}
	if !exists {
		response.NotFound(c, "collection not found")
		return
	}
	if err := h.guard.Require(ctx, p, authz.ViewCollectionAccess, req.CollectionID); err != nil {
		response.Error(c, err, "failed to create exhibit")
		return
	}

	collectionID := req.CollectionID
	if req.Copy {
		col, err := collections.CopyAndAnnounce(ctx, h.copier, h.events, req.CollectionID, "", p.UserID)
		if err != nil {
			response.Error(c, err, "failed to copy collection")
			return
		}
		collectionID = col.ID
	}
	ex := &models.Exhibit{
		CollectionID: collectionID,
		ScenarioID:   req.ScenarioID,
		Name:         req.Name,
		Description:  req.Description,
		CreatedBy:    p.UserID,
	}
	if err := h.store.Create(ctx, ex); err != nil {
		response.Error(c, err, "failed to create exhibit")
		return
	}
	h.events.Publish(ctx, notify.Created(notify.TypeExhibit, ex.ID, ex))
	response.Created(c, ex)
}

// Update handles PUT /exhibits/:id.
func (h *Handler) Update(c *gin.Context) {
	ex, ok := h.load(c, authz.EditExhibitAccess, false)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	var changed []string
	if req.Name != nil && *req.Name != ex.Name {
		ex.Name = *req.Name
		changed = append(changed, "name")
	}
	if req.Description != nil && *req.Description != ex.Description {
		ex.Description = *req.Description
		changed = append(changed, "description")
	}
	if req.ScenarioID != nil && (ex.ScenarioID == nil || *ex.ScenarioID != *req.ScenarioID) {
		ex.ScenarioID = req.ScenarioID
		changed = append(changed, "scenario_id")
	}
	if len(changed) > 0 {
		if err := h.store.Update(c.Request.Context(), ex); err != nil {
			response.Error(c, err, "failed to update exhibit")
			return
		}
		h.events.Publish(c.Request.Context(), notify.Updated(notify.TypeExhibit, ex.ID, ex, changed...))
	}
	response.OK(c, ex)
}

// SetMoveAndInject handles PUT /exhibits/:id/move. The clock may go backward;
// feed rows already created stay, and reads hide what is ahead of the clock.
func (h *Handler) SetMoveAndInject(c *gin.Context) {
	ex, ok := h.load(c, authz.EditExhibitAccess, false)
	if !ok {
		return
	}
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	from := timeline.Coordinate{Move: ex.CurrentMove, Inject: ex.CurrentInject}
	to := timeline.Coordinate{Move: *req.Move, Inject: *req.Inject}
	if from == to {
		response.OK(c, ex)
		return
	}
	if to.Less(from) {
		h.logger.Info("exhibit clock moved backward",
			zap.String("exhibit_id", ex.ID.String()),
			zap.Int("from_move", from.Move), zap.Int("from_inject", from.Inject),
			zap.Int("to_move", to.Move), zap.Int("to_inject", to.Inject))
	}
	if err := h.store.SetClock(ctx, ex.ID, to.Move, to.Inject); err != nil {
		response.Error(c, err, "failed to set move and inject")
		return
	}
	var changed []string
	if from.Move != to.Move {
		changed = append(changed, "current_move")
	}
	if from.Inject != to.Inject {
		changed = append(changed, "current_inject")
	}
	ex.CurrentMove, ex.CurrentInject = to.Move, to.Inject

	created, err := h.feed.MaterializeExhibit(ctx, ex.ID)
	if err != nil {
		h.logger.Error("materialize after clock change", zap.String("exhibit_id", ex.ID.String()), zap.Error(err))
		// The clock is committed; clients still need to see it move.
		h.events.Publish(ctx, notify.Updated(notify.TypeExhibit, ex.ID, ex, changed...))
		response.Internal(c, "clock updated but feeds failed to materialize")
		return
	}
	events := append(notify.UserArticlesCreated(created), notify.Updated(notify.TypeExhibit, ex.ID, ex, changed...))
	h.events.Publish(ctx, events...)
	response.OK(c, ex)
}

// Delete handles DELETE /exhibits/:id.
func (h *Handler) Delete(c *gin.Context) {
	ex, ok := h.load(c, authz.ManageExhibitAccess, false)
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), ex.ID); err != nil {
		response.Error(c, err, "failed to delete exhibit")
		return
	}
	h.events.Publish(c.Request.Context(), notify.Deleted(notify.TypeExhibit, ex.ID, ex))
	response.NoContent(c)
}
