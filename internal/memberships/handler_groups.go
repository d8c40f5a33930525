package memberships

import (
	"github.com/gin-gonic/gin"

	"github.com/gallery-sim/backend/internal/authz"
	"github.com/gallery-sim/backend/internal/middleware"
	"github.com/gallery-sim/backend/internal/models"
	"github.com/gallery-sim/backend/internal/notify"
	"github.com/gallery-sim/backend/pkg/response"
)

func (h *Handler) loadGroup(c *gin.Context, req authz.Requirement) (*models.Group, bool) {
	id, ok := parseID(c, "id", "group")
	if !ok {
		return nil, false
	}
	g, err := h.store.GetGroup(c.Request.Context(), id)
	if err == nil {
		err = h.guard.Require(c.Request.Context(), middleware.Principal(c), req, id)
	}
	if err != nil {
		response.Error(c, err, "failed to load group")
		return nil, false
	}
	return g, true
}

// ListGroups handles GET /groups. Holders of ViewGroups see all, others the groups they are in.
func (h *Handler) ListGroups(c *gin.Context) {
	p := middleware.Principal(c)
	var (
		list []models.Group
		err  error
	)
	if p.HasAny(authz.ViewGroups, authz.ManageGroups) {
		list, err = h.store.ListGroups(c.Request.Context())
	} else {
		list, err = h.store.ListGroupsForUser(c.Request.Context(), p.UserID)
	}
	if err != nil {
		response.Internal(c, "failed to list groups")
		return
	}
	response.OK(c, list)
}

// GetGroup handles GET /groups/:id.
func (h *Handler) GetGroup(c *gin.Context) {
	g, ok := h.loadGroup(c, authz.ViewGroupAccess)
	if !ok {
		return
	}
	response.OK(c, g)
}

// CreateGroup handles POST /groups.
func (h *Handler) CreateGroup(c *gin.Context) {
	if !middleware.Principal(c).HasAny(authz.ManageGroups) {
		response.Forbidden(c, "you cannot create groups")
		return
	}
	var req GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	g := &models.Group{Name: req.Name, Description: req.Description}
	if err := h.store.CreateGroup(c.Request.Context(), g); err != nil {
		response.Error(c, err, "failed to create group")
		return
	}
	h.events.Publish(c.Request.Context(), notify.Created(notify.TypeGroup, g.ID, g))
	response.Created(c, g)
}

// UpdateGroup handles PUT /groups/:id.
func (h *Handler) UpdateGroup(c *gin.Context) {
	g, ok := h.loadGroup(c, authz.ManageGroupAccess)
	if !ok {
		return
	}
	var req GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	var changed []string
	if req.Name != g.Name {
		g.Name = req.Name
		changed = append(changed, "name")
	}
	if req.Description != g.Description {
		g.Description = req.Description
		changed = append(changed, "description")
	}
	if len(changed) == 0 {
		response.OK(c, g)
		return
	}
	if err := h.store.UpdateGroup(c.Request.Context(), g); err != nil {
		response.Error(c, err, "failed to update group")
		return
	}
	h.events.Publish(c.Request.Context(), notify.Updated(notify.TypeGroup, g.ID, g, changed...))
	response.OK(c, g)
}

// DeleteGroup handles DELETE /groups/:id. Former members lose the group's memberships.
func (h *Handler) DeleteGroup(c *gin.Context) {
	g, ok := h.loadGroup(c, authz.ManageGroupAccess)
	if !ok {
		return
	}
	members, err := h.store.DeleteGroup(c.Request.Context(), g.ID)
	if err != nil {
		response.Error(c, err, "failed to delete group")
		return
	}
	h.claims.RefreshClaims(members...)
	h.events.Publish(c.Request.Context(), notify.Deleted(notify.TypeGroup, g.ID, g))
	response.NoContent(c)
}

// ListGroupMembers handles GET /groups/:id/memberships.
func (h *Handler) ListGroupMembers(c *gin.Context) {
	g, ok := h.loadGroup(c, authz.ViewGroupAccess)
	if !ok {
		return
	}
	list, err := h.store.GroupMembers(c.Request.Context(), g.ID)
	if err != nil {
		response.Internal(c, "failed to list group members")
		return
	}
	response.OK(c, list)
}

// AddGroupMember handles POST /groups/:id/memberships.
func (h *Handler) AddGroupMember(c *gin.Context) {
	g, ok := h.loadGroup(c, authz.ManageGroupAccess)
	if !ok {
		return
	}
	var req GroupMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	roleID := authz.DefaultRole(authz.ScopeGroup)
	if req.RoleID != nil {
		roleID = *req.RoleID
		if !h.checkRole(c, authz.ScopeGroup, roleID) {
			return
		}
	}
	gm := &models.GroupMembership{GroupID: g.ID, UserID: req.UserID, RoleID: roleID}
	if err := h.store.AddGroupMember(c.Request.Context(), gm); err != nil {
		response.Error(c, err, "failed to add group member")
		return
	}
	h.claims.RefreshClaims(gm.UserID)
	h.events.Publish(c.Request.Context(), notify.Created(notify.TypeGroupMembership, gm.ID, gm))
	response.Created(c, gm)
}

// RemoveGroupMember handles DELETE /group-memberships/:id.
func (h *Handler) RemoveGroupMember(c *gin.Context) {
	id, ok := parseID(c, "id", "group membership")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	gm, err := h.store.GroupMember(ctx, id)
	if err == nil {
		err = h.guard.Require(ctx, middleware.Principal(c), authz.ManageGroupAccess, gm.GroupID)
	}
	if err != nil {
		response.Error(c, err, "failed to load group membership")
		return
	}
	if err := h.store.RemoveGroupMember(ctx, gm.ID); err != nil {
		response.Error(c, err, "failed to remove group member")
		return
	}
	h.claims.RefreshClaims(gm.UserID)
	h.events.Publish(ctx, notify.Deleted(notify.TypeGroupMembership, gm.ID, gm))
	response.NoContent(c)
}

