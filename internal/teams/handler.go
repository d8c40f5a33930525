// Package teams manages the teams of an exhibit, their members and their card toggles.
package teams

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
	Exhibit(ctx context.Context, id uuid.UUID) (*models.Exhibit, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Team, error)
	ListByExhibit(ctx context.Context, exhibitID uuid.UUID) ([]models.Team, error)
	Create(ctx context.Context, t *models.Team) error
	Update(ctx context.Context, t *models.Team) error
	Delete(ctx context.Context, id uuid.UUID) error

	TeamOfUser(ctx context.Context, exhibitID, userID uuid.UUID) (*uuid.UUID, error)
	Users(ctx context.Context, teamID uuid.UUID) ([]models.TeamUser, error)
	AddUser(ctx context.Context, exhibitID uuid.UUID, tu *models.TeamUser) error
	RemoveUser(ctx context.Context, teamID, userID uuid.UUID) (*models.TeamUser, error)

	CardCollection(ctx context.Context, cardID uuid.UUID) (uuid.UUID, error)
	Cards(ctx context.Context, teamID uuid.UUID) ([]models.TeamCard, error)
	UpsertCard(ctx context.Context, tc *models.TeamCard) (bool, error)
	DeleteCard(ctx context.Context, teamID, cardID uuid.UUID) (*models.TeamCard, error)
}

// Guard is satisfied by *authz.Resolver.
type Guard interface {
	Require(ctx context.Context, p authz.Principal, req authz.Requirement, scopeID uuid.UUID) error
}

// Materializer is satisfied by *feed.Materializer.
type Materializer interface {
	MaterializeExhibit(ctx context.Context, exhibitID uuid.UUID) ([]models.UserArticle, error)
	MaterializeUser(ctx context.Context, exhibitID, userID uuid.UUID) ([]models.UserArticle, error)
}

// CreateRequest is the body for POST /exhibits/:id/teams.
type CreateRequest struct {
	Name      string `json:"name" binding:"required"`
	ShortName string `json:"short_name"`
	Email     string `json:"email" binding:"omitempty,email"`
}

// UpdateRequest is the body for PUT /teams/:id.
type UpdateRequest struct {
	Name      *string `json:"name"`
	ShortName *string `json:"short_name"`
	Email     *string `json:"email" binding:"omitempty,email"`
}

// Handler handles team HTTP endpoints.
type Handler struct {
	store  Store
	guard  Guard
	feed   Materializer
	events notify.Publisher
	logger *zap.Logger
}

// NewHandler creates a teams handler.
func NewHandler(store Store, guard Guard, m Materializer, events notify.Publisher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, guard: guard, feed: m, events: events, logger: logger}
}

// canView: anyone on a team of the exhibit, or holders of exhibit view rights.
func (h *Handler) canView(ctx context.Context, p authz.Principal, exhibitID uuid.UUID) error {
	team, err := h.store.TeamOfUser(ctx, exhibitID, p.UserID)
	if err != nil || team != nil {
		return err
	}
	return h.guard.Require(ctx, p, authz.ViewExhibitAccess, exhibitID)
}

// loadTeam returns the team from the :id param after the NotFound and access checks.
// A nil req means view access.
func (h *Handler) loadTeam(c *gin.Context, req *authz.Requirement) (*models.Team, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid team id")
		return nil, false
	}
	ctx := c.Request.Context()
	t, err := h.store.GetByID(ctx, id)
	if err == nil {
		if req == nil {
			err = h.canView(ctx, middleware.Principal(c), t.ExhibitID)
		} else {
			err = h.guard.Require(ctx, middleware.Principal(c), *req, t.ExhibitID)
		}
	}
	if err != nil {
		response.Error(c, err, "failed to load team")
		return nil, false
	}
	return t, true
}

// ListByExhibit handles GET /exhibits/:id/teams.
func (h *Handler) ListByExhibit(c *gin.Context) {
	exhibitID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid exhibit id")
		return
	}
	ctx := c.Request.Context()
	if _, err := h.store.Exhibit(ctx, exhibitID); err != nil {
		response.Error(c, err, "failed to list teams")
		return
	}
	if err := h.canView(ctx, middleware.Principal(c), exhibitID); err != nil {
		response.Error(c, err, "failed to list teams")
		return
	}
	list, err := h.store.ListByExhibit(ctx, exhibitID)
	if err != nil {
		response.Internal(c, "failed to list teams")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /teams/:id.
func (h *Handler) GetByID(c *gin.Context) {
	t, ok := h.loadTeam(c, nil)
	if !ok {
		return
	}
	response.OK(c, t)
}

// Create handles POST /exhibits/:id/teams.
func (h *Handler) Create(c *gin.Context) {
	exhibitID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid exhibit id")
		return
	}
	ctx := c.Request.Context()
	if _, err := h.store.Exhibit(ctx, exhibitID); err != nil {
		response.Error(c, err, "failed to create team")
		return
	}
	if err := h.guard.Require(ctx, middleware.Principal(c), authz.EditExhibitAccess, exhibitID); err != nil {
		response.Error(c, err, "failed to create team")
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	t := &models.Team{ExhibitID: exhibitID, Name: req.Name, ShortName: req.ShortName, Email: req.Email}
	if err := h.store.Create(ctx, t); err != nil {
		response.Error(c, err, "failed to create team")
		return
	}
	h.events.Publish(ctx,
		notify.Created(notify.TypeTeam, t.ID, t),
		notify.Created(notify.TypeExhibitTeam, t.ID, t))
	response.Created(c, t)
}

// Update handles PUT /teams/:id.
func (h *Handler) Update(c *gin.Context) {
	t, ok := h.loadTeam(c, &authz.EditExhibitAccess)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	var changed []string
	if req.Name != nil && *req.Name != t.Name {
		t.Name = *req.Name
		changed = append(changed, "name")
	}
	if req.ShortName != nil && *req.ShortName != t.ShortName {
		t.ShortName = *req.ShortName
		changed = append(changed, "short_name")
	}
	if req.Email != nil && *req.Email != t.Email {
		t.Email = *req.Email
		changed = append(changed, "email")
	}
	if len(changed) > 0 {
		if err := h.store.Update(c.Request.Context(), t); err != nil {
			response.Error(c, err, "failed to update team")
			return
		}
		h.events.Publish(c.Request.Context(), notify.Updated(notify.TypeTeam, t.ID, t, changed...))
	}
	response.OK(c, t)
}

// Delete handles DELETE /teams/:id.
func (h *Handler) Delete(c *gin.Context) {
	t, ok := h.loadTeam(c, &authz.EditExhibitAccess)
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), t.ID); err != nil {
		response.Error(c, err, "failed to delete team")
		return
	}
	h.events.Publish(c.Request.Context(),
		notify.Deleted(notify.TypeTeam, t.ID, t),
		notify.Deleted(notify.TypeExhibitTeam, t.ID, t))
	response.NoContent(c)
}
