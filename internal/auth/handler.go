package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gallery-sim/backend/internal/models"
	"github.com/gallery-sim/backend/internal/notify"
	"github.com/gallery-sim/backend/pkg/apperr"
	"github.com/gallery-sim/backend/pkg/response"
	"github.com/gallery-sim/backend/pkg/utils"
)

// RegisterRequest is the body for POST /auth/register and POST /users.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SystemRoleRequest is the body for PUT /users/:id/role. A null role clears it.
type SystemRoleRequest struct {
	RoleID *uuid.UUID `json:"role_id"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// ClaimsRefresher evicts cached permissions of users whose roles changed.
type ClaimsRefresher interface {
	RefreshClaims(userIDs ...uuid.UUID)
}

// Handler handles auth and user HTTP endpoints.
type Handler struct {
	repo   *Repository
	jwt    *JWTService
	claims ClaimsRefresher
	events notify.Publisher
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, jwt *JWTService, claims ClaimsRefresher, events notify.Publisher, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, jwt: jwt, claims: claims, events: events, logger: logger}
}

// Register handles POST /auth/register. New users have no system role.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, err := h.create(c, req)
	if err != nil {
		response.Error(c, err, "failed to create user")
		return
	}
	token, err := h.jwt.Generate(user.ID, user.Email)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.Created(c, TokenResponse{Token: token, User: user.ToPublic()})
}

func (h *Handler) create(c *gin.Context, req RegisterRequest) (*models.User, error) {
	hash, err := utils.HashPassword(req.Password)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return nil, apperr.Invalid(err.Error())
	}
	if err != nil {
		return nil, err
	}
	user, err := h.repo.Create(c.Request.Context(), req.Email, hash, req.Name, nil)
	if err != nil {
		return nil, err
	}
	h.events.Publish(c.Request.Context(), notify.Created(notify.TypeUser, user.ID, user.ToPublic()))
	return user, nil
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			h.logger.Error("login lookup", zap.Error(err))
		}
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	id, _ := c.Get("user_id")
	uid, _ := id.(uuid.UUID)
	user, err := h.repo.GetByID(c.Request.Context(), uid)
	if err != nil {
		response.Error(c, err, "failed to load user")
		return
	}
	response.OK(c, user.ToPublic())
}

// List handles GET /users.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list users")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /users/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	user, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load user")
		return
	}
	response.OK(c, user.ToPublic())
}

// Create handles POST /users (user managers).
func (h *Handler) Create(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, err := h.create(c, req)
	if err != nil {
		response.Error(c, err, "failed to create user")
		return
	}
	response.Created(c, user.ToPublic())
}

// SetSystemRole handles PUT /users/:id/role. The user's cached claims are dropped so the
// new permissions apply on their next request.
func (h *Handler) SetSystemRole(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var req SystemRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, err := h.repo.SetSystemRole(c.Request.Context(), id, req.RoleID)
	if err != nil {
		response.Error(c, err, "failed to update user role")
		return
	}
	h.claims.RefreshClaims(user.ID)

	pub := user.ToPublic()
	h.events.Publish(c.Request.Context(),
		notify.Updated(notify.TypeUser, user.ID, pub, "system_role_id"),
		notify.Updated(notify.TypeUserPermission, user.ID, pub, "system_role_id"),
	)
	response.OK(c, pub)
}
