package userarticles

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gallery-sim/backend/internal/middleware"
	"github.com/gallery-sim/backend/pkg/response"
)

// ReadRequest is the body for PUT /user-articles/:id/read.
type ReadRequest struct {
	IsRead *bool `json:"is_read" binding:"required"`
}

// Handler handles feed HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a user articles handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// GetMine handles GET /exhibits/:id/user-articles/mine.
func (h *Handler) GetMine(c *gin.Context) {
	exhibitID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid exhibit id")
		return
	}
	rows, err := h.svc.GetMine(c.Request.Context(), middleware.Principal(c), exhibitID)
	if err != nil {
		response.Error(c, err, "failed to load feed")
		return
	}
	response.OK(c, rows)
}

// GetUnreadCount handles GET /exhibits/:id/user-articles/unread-count.
func (h *Handler) GetUnreadCount(c *gin.Context) {
	exhibitID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid exhibit id")
		return
	}
	n, err := h.svc.GetUnreadCount(c.Request.Context(), middleware.Principal(c), exhibitID)
	if err != nil {
		response.Error(c, err, "failed to count unread articles")
		return
	}
	response.OK(c, gin.H{"exhibit_id": exhibitID, "count": n})
}

// GetByExhibitTeam handles GET /exhibits/:id/teams/:teamId/articles.
func (h *Handler) GetByExhibitTeam(c *gin.Context) {
	exhibitID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid exhibit id")
		return
	}
	teamID, err := uuid.Parse(c.Param("teamId"))
	if err != nil {
		response.BadRequest(c, "invalid team id")
		return
	}
	list, err := h.svc.GetByExhibitTeam(c.Request.Context(), middleware.Principal(c), exhibitID, teamID)
	if err != nil {
		response.Error(c, err, "failed to load team articles")
		return
	}
	response.OK(c, list)
}

// SetRead handles PUT /user-articles/:id/read.
func (h *Handler) SetRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user article id")
		return
	}
	var req ReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.SetRead(c.Request.Context(), middleware.Principal(c), id, *req.IsRead)
	if err != nil {
		response.Error(c, err, "failed to update user article")
		return
	}
	response.OK(c, res)
}
