package teams

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gallery-sim/backend/internal/authz"
	"github.com/gallery-sim/backend/internal/models"
	"github.com/gallery-sim/backend/internal/notify"
	"github.com/gallery-sim/backend/pkg/response"
)

// AddUserRequest is the body for POST /teams/:id/users.
type AddUserRequest struct {
	UserID     uuid.UUID `json:"user_id" binding:"required"`
	IsObserver bool      `json:"is_observer"`
}

// ListUsers handles GET /teams/:id/users.
func (h *Handler) ListUsers(c *gin.Context) {
	t, ok := h.loadTeam(c, nil)
	if !ok {
		return
	}
	list, err := h.store.Users(c.Request.Context(), t.ID)
	if err != nil {
		response.Internal(c, "failed to list team users")
		return
	}
	response.OK(c, list)
}

// AddUser handles POST /teams/:id/users. A user plays on at most one team per exhibit.
// The new member's feed is backfilled right away.
func (h *Handler) AddUser(c *gin.Context) {
	t, ok := h.loadTeam(c, &authz.EditExhibitAccess)
	if !ok {
		return
	}
	var req AddUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	current, err := h.store.TeamOfUser(ctx, t.ExhibitID, req.UserID)
	if err != nil {
		response.Internal(c, "failed to add team user")
		return
	}
	if current != nil {
		if *current == t.ID {
			response.Conflict(c, "user is already on this team")
		} else {
			response.Conflict(c, "user is already on a team in this exhibit")
		}
		return
	}
	tu := &models.TeamUser{TeamID: t.ID, UserID: req.UserID, IsObserver: req.IsObserver}
	if err := h.store.AddUser(ctx, t.ExhibitID, tu); err != nil {
		response.Error(c, err, "failed to add team user")
		return
	}

	events := []notify.Event{notify.Created(notify.TypeTeamUser, tu.ID, tu)}
	created, err := h.feed.MaterializeUser(ctx, t.ExhibitID, tu.UserID)
	if err != nil {
		// The next feed read retries the backfill.
		h.logger.Warn("backfill new team user", zap.String("team_id", t.ID.String()),
			zap.String("user_id", tu.UserID.String()), zap.Error(err))
	}
	events = append(events, notify.UserArticlesCreated(created)...)
	h.events.Publish(ctx, events...)
	response.Created(c, tu)
}

// RemoveUser handles DELETE /teams/:id/users/:userId.
func (h *Handler) RemoveUser(c *gin.Context) {
	t, ok := h.loadTeam(c, &authz.EditExhibitAccess)
	if !ok {
		return
	}
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	tu, err := h.store.RemoveUser(c.Request.Context(), t.ID, userID)
	if err != nil {
		response.Error(c, err, "failed to remove team user")
		return
	}
	h.events.Publish(c.Request.Context(), notify.Deleted(notify.TypeTeamUser, tu.ID, tu))
	response.NoContent(c)
}
