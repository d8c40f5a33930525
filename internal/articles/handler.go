package articles

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gallery-sim/backend/internal/middleware"
	"github.com/gallery-sim/backend/internal/models"
	"github.com/gallery-sim/backend/pkg/response"
)

// CreateRequest is the body for POST /articles. Set ExhibitID to post live into an exhibit,
// or CollectionID to author library content.
type CreateRequest struct {
	CollectionID *uuid.UUID        `json:"collection_id"`
	ExhibitID    *uuid.UUID        `json:"exhibit_id"`
	CardID       *uuid.UUID        `json:"card_id"`
	Name         string            `json:"name" binding:"required"`
	Summary      string            `json:"summary"`
	Description  string            `json:"description"`
	Move         int               `json:"move" binding:"min=0"`
	Inject       int               `json:"inject" binding:"min=0"`
	Status       models.ItemStatus `json:"status"`
	SourceType   models.SourceType `json:"source_type"`
	SourceName   string            `json:"source_name"`
	URL          string            `json:"url"`
	OpenInNewTab bool              `json:"open_in_new_tab"`
	DatePosted   *time.Time        `json:"date_posted"`
}

// Handler handles article HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an article handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func parseID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid "+what+" id")
		return uuid.Nil, false
	}
	return id, true
}

// Create handles POST /articles.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if (req.CollectionID == nil) == (req.ExhibitID == nil) {
		response.BadRequest(c, "exactly one of collection_id and exhibit_id is required")
		return
	}
	a := &models.Article{
		ExhibitID:    req.ExhibitID,
		CardID:       req.CardID,
		Name:         req.Name,
		Summary:      req.Summary,
		Description:  req.Description,
		Move:         req.Move,
		Inject:       req.Inject,
		Status:       req.Status,
		SourceType:   req.SourceType,
		SourceName:   req.SourceName,
		URL:          req.URL,
		OpenInNewTab: req.OpenInNewTab,
	}
	if req.CollectionID != nil {
		a.CollectionID = *req.CollectionID
	}
	if req.DatePosted != nil {
		a.DatePosted = *req.DatePosted
	}
	res, err := h.svc.Create(c.Request.Context(), middleware.Principal(c), a)
	if err != nil {
		response.Error(c, err, "failed to create article")
		return
	}
	response.Created(c, res)
}

// GetByID handles GET /articles/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "article")
	if !ok {
		return
	}
	a, err := h.svc.Get(c.Request.Context(), middleware.Principal(c), id)
	if err != nil {
		response.Error(c, err, "failed to load article")
		return
	}
	response.OK(c, a)
}

// Update handles PUT /articles/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c, "article")
	if !ok {
		return
	}
	var patch Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.Update(c.Request.Context(), middleware.Principal(c), id, patch)
	if err != nil {
		response.Error(c, err, "failed to update article")
		return
	}
	response.OK(c, res)
}

// Delete handles DELETE /articles/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c, "article")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.Principal(c), id); err != nil {
		response.Error(c, err, "failed to delete article")
		return
	}
	response.NoContent(c)
}

// ListByCollection handles GET /collections/:id/articles.
func (h *Handler) ListByCollection(c *gin.Context) {
	id, ok := parseID(c, "collection")
	if !ok {
		return
	}
	list, err := h.svc.ListByCollection(c.Request.Context(), middleware.Principal(c), id)
	if err != nil {
		response.Error(c, err, "failed to list articles")
		return
	}
	response.OK(c, list)
}

// ListByCard handles GET /cards/:id/articles.
func (h *Handler) ListByCard(c *gin.Context) {
	id, ok := parseID(c, "card")
	if !ok {
		return
	}
	list, err := h.svc.ListByCard(c.Request.Context(), middleware.Principal(c), id)
	if err != nil {
		response.Error(c, err, "failed to list articles")
		return
	}
	response.OK(c, list)
}

// ListByExhibit handles GET /exhibits/:id/articles.
func (h *Handler) ListByExhibit(c *gin.Context) {
	id, ok := parseID(c, "exhibit")
	if !ok {
		return
	}
	list, err := h.svc.ListByExhibit(c.Request.Context(), middleware.Principal(c), id)
	if err != nil {
		response.Error(c, err, "failed to list articles")
		return
	}
	response.OK(c, list)
}

// Share handles POST /articles/:id/share.
func (h *Handler) Share(c *gin.Context) {
	id, ok := parseID(c, "article")
	if !ok {
		return
	}
	var req ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.Share(c.Request.Context(), middleware.Principal(c), id, req)
	if err != nil {
		response.Error(c, err, "failed to share article")
		return
	}
	response.OK(c, res)
}
