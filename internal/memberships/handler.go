// Package memberships grants roles on collections and exhibits to users and groups, and manages groups.
package memberships

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
	ScopeExists(ctx context.Context, scope authz.Scope, id uuid.UUID) (bool, error)
	RoleScope(ctx context.Context, roleID uuid.UUID) (string, error)
	List(ctx context.Context, scope authz.Scope, scopeID uuid.UUID) ([]models.Membership, error)
	Get(ctx context.Context, scope authz.Scope, id uuid.UUID) (*models.Membership, error)
	Create(ctx context.Context, scope authz.Scope, m *models.Membership) error
	SetRole(ctx context.Context, scope authz.Scope, id, roleID uuid.UUID) error
	Delete(ctx context.Context, scope authz.Scope, id uuid.UUID) error

	ListGroups(ctx context.Context) ([]models.Group, error)
	ListGroupsForUser(ctx context.Context, userID uuid.UUID) ([]models.Group, error)
	GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error)
	CreateGroup(ctx context.Context, g *models.Group) error
	UpdateGroup(ctx context.Context, g *models.Group) error
	DeleteGroup(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
	GroupMembers(ctx context.Context, groupID uuid.UUID) ([]models.GroupMembership, error)
	AddGroupMember(ctx context.Context, gm *models.GroupMembership) error
	GroupMember(ctx context.Context, id uuid.UUID) (*models.GroupMembership, error)
	RemoveGroupMember(ctx context.Context, id uuid.UUID) error
}

// Guard is satisfied by *authz.Resolver.
type Guard interface {
	Require(ctx context.Context, p authz.Principal, req authz.Requirement, scopeID uuid.UUID) error
}

// RoleLister is satisfied by *authz.Repository.
type RoleLister interface {
	ListRoles(ctx context.Context, scope string) ([]models.Role, error)
}

// ClaimsRefresher is satisfied by *authz.ClaimsCache.
type ClaimsRefresher interface {
	RefreshClaims(userIDs ...uuid.UUID)
}

// scopeConfig describes one kind of membership-bearing scope.
type scopeConfig struct {
	scope  authz.Scope
	view   authz.Requirement
	manage authz.Requirement
	entity notify.EntityType
	name   string
}

var scopes = map[authz.Scope]scopeConfig{
	authz.ScopeCollection: {
		scope:  authz.ScopeCollection,
		view:   authz.ViewCollectionAccess,
		manage: authz.ManageCollectionAccess,
		entity: notify.TypeCollectionMembership,
		name:   "collection",
	},
	authz.ScopeExhibit: {
		scope:  authz.ScopeExhibit,
		view:   authz.ViewExhibitAccess,
		manage: authz.ManageExhibitAccess,
		entity: notify.TypeExhibitMembership,
		name:   "exhibit",
	},
}

// CreateRequest is the body for POST /collections/:id/memberships and /exhibits/:id/memberships.
type CreateRequest struct {
	UserID  *uuid.UUID `json:"user_id"`
	GroupID *uuid.UUID `json:"group_id"`
	RoleID  *uuid.UUID `json:"role_id"`
}

// UpdateRequest is the body for PUT /collection-memberships/:id and /exhibit-memberships/:id.
type UpdateRequest struct {
	RoleID uuid.UUID `json:"role_id" binding:"required"`
}

// GroupRequest is the body for POST and PUT on groups.
type GroupRequest struct {
	Name        string `json:"name" binding:"required,max=255"`
	Description string `json:"description"`
}

// GroupMemberRequest is the body for POST /groups/:id/memberships.
type GroupMemberRequest struct {
	UserID uuid.UUID  `json:"user_id" binding:"required"`
	RoleID *uuid.UUID `json:"role_id"`
}

// Handler handles membership, group and role endpoints.
type Handler struct {
	store  Store
	guard  Guard
	roles  RoleLister
	claims ClaimsRefresher
	events notify.Publisher
	logger *zap.Logger
}

// NewHandler creates a memberships handler.
func NewHandler(store Store, guard Guard, roles RoleLister, claims ClaimsRefresher, events notify.Publisher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, guard: guard, roles: roles, claims: claims, events: events, logger: logger}
}

func parseID(c *gin.Context, param, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.BadRequest(c, "invalid "+what+" id")
		return uuid.Nil, false
	}
	return id, true
}

// loadScope checks that the collection or exhibit in :id exists and that the caller meets req on it.
func (h *Handler) loadScope(c *gin.Context, cfg scopeConfig, req authz.Requirement) (uuid.UUID, bool) {
	id, ok := parseID(c, "id", cfg.name)
	if !ok {
		return uuid.Nil, false
	}
	exists, err := h.store.ScopeExists(c.Request.Context(), cfg.scope, id)
	if err != nil {
		response.Internal(c, "failed to load "+cfg.name)
		return uuid.Nil, false
	}
	if !exists {
		response.NotFound(c, cfg.name+" not found")
		return uuid.Nil, false
	}
	if err := h.guard.Require(c.Request.Context(), middleware.Principal(c), req, id); err != nil {
		response.Error(c, err, "failed to authorize")
		return uuid.Nil, false
	}
	return id, true
}

// loadMembership returns the membership in :id after the manage check on its scope.
func (h *Handler) loadMembership(c *gin.Context, cfg scopeConfig) (*models.Membership, bool) {
	id, ok := parseID(c, "id", "membership")
	if !ok {
		return nil, false
	}
	m, err := h.store.Get(c.Request.Context(), cfg.scope, id)
	if err == nil {
		err = h.guard.Require(c.Request.Context(), middleware.Principal(c), cfg.manage, m.ScopeID)
	}
	if err != nil {
		response.Error(c, err, "failed to load membership")
		return nil, false
	}
	return m, true
}

// checkRole rejects a role that belongs to another scope.
func (h *Handler) checkRole(c *gin.Context, scope authz.Scope, roleID uuid.UUID) bool {
	got, err := h.store.RoleScope(c.Request.Context(), roleID)
	if err != nil {
		response.Error(c, err, "failed to load role")
		return false
	}
	if got != string(scope) {
		response.BadRequest(c, "role does not apply to a "+string(scope))
		return false
	}
	return true
}

// affected returns the users whose claims change with m: the member or every member of the group.
func (h *Handler) affected(ctx context.Context, m *models.Membership) []uuid.UUID {
	if m.UserID != nil {
		return []uuid.UUID{*m.UserID}
	}
	members, err := h.store.GroupMembers(ctx, *m.GroupID)
	if err != nil {
		h.logger.Warn("failed to load group members", zap.String("group_id", m.GroupID.String()), zap.Error(err))
		return nil
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, gm := range members {
		ids = append(ids, gm.UserID)
	}
	return ids
}

// announce refreshes the affected users' claims and publishes ev to the scope's broadcast group.
func (h *Handler) announce(ctx context.Context, m *models.Membership, ev notify.Event) {
	h.claims.RefreshClaims(h.affected(ctx, m)...)
	h.events.Publish(ctx, ev)
}

// List returns GET /{scope}s/:id/memberships.
func (h *Handler) List(scope authz.Scope) gin.HandlerFunc {
	cfg := scopes[scope]
	return func(c *gin.Context) {
		id, ok := h.loadScope(c, cfg, cfg.view)
		if !ok {
			return
		}
		list, err := h.store.List(c.Request.Context(), cfg.scope, id)
		if err != nil {
			response.Internal(c, "failed to list memberships")
			return
		}
		response.OK(c, list)
	}
}

// Create returns POST /{scope}s/:id/memberships. Exactly one of user_id and group_id is required.
func (h *Handler) Create(scope authz.Scope) gin.HandlerFunc {
	cfg := scopes[scope]
	return func(c *gin.Context) {
		id, ok := h.loadScope(c, cfg, cfg.manage)
		if !ok {
			return
		}
		var req CreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
		if (req.UserID == nil) == (req.GroupID == nil) {
			response.BadRequest(c, "exactly one of user_id and group_id is required")
			return
		}
		roleID := authz.DefaultRole(cfg.scope)
		if req.RoleID != nil {
			roleID = *req.RoleID
			if !h.checkRole(c, cfg.scope, roleID) {
				return
			}
		}
		m := &models.Membership{ScopeID: id, UserID: req.UserID, GroupID: req.GroupID, RoleID: roleID}
		if err := h.store.Create(c.Request.Context(), cfg.scope, m); err != nil {
			response.Error(c, err, "failed to create membership")
			return
		}
		h.announce(c.Request.Context(), m, notify.Created(cfg.entity, m.ID, m))
		response.Created(c, m)
	}
}

// Update returns PUT /{scope}-memberships/:id, which changes the role.
func (h *Handler) Update(scope authz.Scope) gin.HandlerFunc {
	cfg := scopes[scope]
	return func(c *gin.Context) {
		m, ok := h.loadMembership(c, cfg)
		if !ok {
			return
		}
		var req UpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
		if req.RoleID == m.RoleID {
			response.OK(c, m)
			return
		}
		if !h.checkRole(c, cfg.scope, req.RoleID) {
			return
		}
		if err := h.store.SetRole(c.Request.Context(), cfg.scope, m.ID, req.RoleID); err != nil {
			response.Error(c, err, "failed to update membership")
			return
		}
		m.RoleID = req.RoleID
		h.announce(c.Request.Context(), m, notify.Updated(cfg.entity, m.ID, m, "role_id"))
		response.OK(c, m)
	}
}

// Delete returns DELETE /{scope}-memberships/:id.
func (h *Handler) Delete(scope authz.Scope) gin.HandlerFunc {
	cfg := scopes[scope]
	return func(c *gin.Context) {
		m, ok := h.loadMembership(c, cfg)
		if !ok {
			return
		}
		// Resolve affected users while the row still exists.
		users := h.affected(c.Request.Context(), m)
		if err := h.store.Delete(c.Request.Context(), cfg.scope, m.ID); err != nil {
			response.Error(c, err, "failed to delete membership")
			return
		}
		h.claims.RefreshClaims(users...)
		h.events.Publish(c.Request.Context(), notify.Deleted(cfg.entity, m.ID, m))
		response.NoContent(c)
	}
}

// ListRoles handles GET /roles?scope=collection. The scope defaults to system.
func (h *Handler) ListRoles(c *gin.Context) {
	scope := c.DefaultQuery("scope", "system")
	switch scope {
	case "system", string(authz.ScopeCollection), string(authz.ScopeExhibit), string(authz.ScopeGroup):
	default:
		response.BadRequest(c, "unknown role scope")
		return
	}
	roles, err := h.roles.ListRoles(c.Request.Context(), scope)
	if err != nil {
		response.Internal(c, "failed to list roles")
		return
	}
	if roles == nil {
		roles = []models.Role{}
	}
	response.OK(c, roles)
}
