// Package notify computes who must hear about an entity change and pushes it to them.
package notify

import (
	"github.com/google/uuid"

	"github.com/gallery-sim/backend/internal/models"
)

// EntityType names the kind of entity an Event is about.
type EntityType string

const (
	TypeArticle              EntityType = "Article"
	TypeCard                 EntityType = "Card"
	TypeCollection           EntityType = "Collection"
	TypeExhibit              EntityType = "Exhibit"
	TypeTeam                 EntityType = "Team"
	TypeExhibitTeam          EntityType = "ExhibitTeam"
	TypeTeamCard             EntityType = "TeamCard"
	TypeTeamUser             EntityType = "TeamUser"
	TypeUserArticle          EntityType = "UserArticle"
	TypeUser                 EntityType = "User"
	TypeUserPermission       EntityType = "UserPermission"
	TypeCollectionMembership EntityType = "CollectionMembership"
	TypeExhibitMembership    EntityType = "ExhibitMembership"
	TypeGroupMembership      EntityType = "GroupMembership"
	TypeGroup                EntityType = "Group"
)

// Kind is the mutation an Event reports.
type Kind int

const (
	KindCreated Kind = iota
	KindUpdated
	KindDeleted
)

func (k Kind) String() string {
	switch k {
	case KindCreated:
		return "Created"
	case KindUpdated:
		return "Updated"
	case KindDeleted:
		return "Deleted"
	}
	return "Unknown"
}

// Event is Created(entity) | Updated(entity, changed) | Deleted(id).
// Deleted events still carry the entity snapshot so the audience can be computed,
// but only the id is sent.
type Event struct {
	Type    EntityType
	Kind    Kind
	ID      uuid.UUID
	Entity  interface{}
	Changed []string
	// Users are extra recipients known only at mutation time, such as the readers of a
	// deleted article whose feed rows were removed with it.
	Users []uuid.UUID
}

// Created reports a newly stored entity.
func Created(t EntityType, id uuid.UUID, entity interface{}) Event {
	return Event{Type: t, Kind: KindCreated, ID: id, Entity: entity}
}

// Updated reports a change to the named fields of entity.
func Updated(t EntityType, id uuid.UUID, entity interface{}, changed ...string) Event {
	if changed == nil {
		changed = []string{}
	}
	return Event{Type: t, Kind: KindUpdated, ID: id, Entity: entity, Changed: changed}
}

// Deleted reports a removed entity; snapshot is its last known state.
func Deleted(t EntityType, id uuid.UUID, snapshot interface{}) Event {
	return Event{Type: t, Kind: KindDeleted, ID: id, Entity: snapshot}
}

// WithUsers returns e with extra per-user recipients.
func (e Event) WithUsers(ids ...uuid.UUID) Event {
	e.Users = append(append([]uuid.UUID(nil), e.Users...), ids...)
	return e
}

// Name is the client-facing event name, e.g. "ArticleUpdated".
func (e Event) Name() string {
	return string(e.Type) + e.Kind.String()
}

// ChangePayload is sent for Created (Changed is null) and Updated events.
type ChangePayload struct {
	Entity  interface{} `json:"entity"`
	Changed []string    `json:"changed"`
}

// DeletePayload is sent for Deleted events.
type DeletePayload struct {
	ID uuid.UUID `json:"id"`
}

// UnreadPayload is sent on the unread-count channel.
type UnreadPayload struct {
	ExhibitID uuid.UUID `json:"exhibit_id"`
	Count     int       `json:"count"`
}

// EventUnreadCount is the event name on the unread-count channel.
const EventUnreadCount = "UnreadCountUpdated"

// Payload returns what subscribers receive for e.
func (e Event) Payload() interface{} {
	if e.Kind == KindDeleted {
		return DeletePayload{ID: e.ID}
	}
	return ChangePayload{Entity: e.Entity, Changed: e.Changed}
}

// UserArticlesCreated turns freshly materialized feed rows into Created events.
func UserArticlesCreated(rows []models.UserArticle) []Event {
	events := make([]Event, 0, len(rows))
	for i := range rows {
		ua := &rows[i]
		events = append(events, Created(TypeUserArticle, ua.ID, ua))
	}
	return events
}

// UserArticlesDeleted turns removed feed rows into Deleted events.
func UserArticlesDeleted(rows []models.UserArticle) []Event {
	events := make([]Event, 0, len(rows))
	for i := range rows {
		ua := &rows[i]
		events = append(events, Deleted(TypeUserArticle, ua.ID, ua))
	}
	return events
}
