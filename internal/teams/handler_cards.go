package teams

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gallery-sim/backend/internal/authz"
	"github.com/gallery-sim/backend/internal/models"
	"github.com/gallery-sim/backend/internal/notify"
	"github.com/gallery-sim/backend/pkg/response"
)

// CardRequest is the body for PUT /teams/:id/cards/:cardId. Omitted flags take the
// defaults: shown on the wall, no posting.
type CardRequest struct {
	Move            int   `json:"move" binding:"min=0"`
	Inject          int   `json:"inject" binding:"min=0"`
	IsShownOnWall   *bool `json:"is_shown_on_wall"`
	CanPostArticles *bool `json:"can_post_articles"`
}

// ListCards handles GET /teams/:id/cards.
func (h *Handler) ListCards(c *gin.Context) {
	t, ok := h.loadTeam(c, nil)
	if !ok {
		return
	}
	list, err := h.store.Cards(c.Request.Context(), t.ID)
	if err != nil {
		response.Internal(c, "failed to list team cards")
		return
	}
	response.OK(c, list)
}

// UpsertCard handles PUT /teams/:id/cards/:cardId. The card must belong to the
// exhibit's collection. Feeds are backfilled since the team may now see more.
func (h *Handler) UpsertCard(c *gin.Context) {
	t, ok := h.loadTeam(c, &authz.EditExhibitAccess)
	if !ok {
		return
	}
	cardID, err := uuid.Parse(c.Param("cardId"))
	if err != nil {
		response.BadRequest(c, "invalid card id")
		return
	}
	var req CardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	ex, err := h.store.Exhibit(ctx, t.ExhibitID)
	if err != nil {
		response.Error(c, err, "failed to save team card")
		return
	}
	collectionID, err := h.store.CardCollection(ctx, cardID)
	if err != nil {
		response.Error(c, err, "failed to save team card")
		return
	}
	if collectionID != ex.CollectionID {
		response.BadRequest(c, "card belongs to another collection")
		return
	}

	tc := &models.TeamCard{
		TeamID:        t.ID,
		CardID:        cardID,
		Move:          req.Move,
		Inject:        req.Inject,
		IsShownOnWall: true,
	}
	if req.IsShownOnWall != nil {
		tc.IsShownOnWall = *req.IsShownOnWall
	}
	if req.CanPostArticles != nil {
		tc.CanPostArticles = *req.CanPostArticles
	}
	inserted, err := h.store.UpsertCard(ctx, tc)
	if err != nil {
		response.Error(c, err, "failed to save team card")
		return
	}
	created, err := h.feed.MaterializeExhibit(ctx, t.ExhibitID)
	if err != nil {
		response.Error(c, err, "failed to materialize feeds")
		return
	}

	ev := notify.Updated(notify.TypeTeamCard, tc.ID, tc, "move", "inject", "is_shown_on_wall", "can_post_articles")
	if inserted {
		ev = notify.Created(notify.TypeTeamCard, tc.ID, tc)
	}
	h.events.Publish(ctx, append([]notify.Event{ev}, notify.UserArticlesCreated(created)...)...)
	if inserted {
		response.Created(c, tc)
		return
	}
	response.OK(c, tc)
}

// DeleteCard handles DELETE /teams/:id/cards/:cardId.
func (h *Handler) DeleteCard(c *gin.Context) {
	t, ok := h.loadTeam(c, &authz.EditExhibitAccess)
	if !ok {
		return
	}
	cardID, err := uuid.Parse(c.Param("cardId"))
	if err != nil {
		response.BadRequest(c, "invalid card id")
		return
	}
	tc, err := h.store.DeleteCard(c.Request.Context(), t.ID, cardID)
	if err != nil {
		response.Error(c, err, "failed to delete team card")
		return
	}
	h.events.Publish(c.Request.Context(), notify.Deleted(notify.TypeTeamCard, tc.ID, tc))
	response.NoContent(c)
}
