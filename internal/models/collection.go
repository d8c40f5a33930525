package models

import (
	"time"

	"github.com/google/uuid"
)

// Collection is a template content library of cards and library articles.
type Collection struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Card is a status/category bucket of a collection, released at its own (Move, Inject).
type Card struct {
	ID           uuid.UUID `json:"id"`
	CollectionID uuid.UUID `json:"collection_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Move         int       `json:"move"`
	Inject       int       `json:"inject"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
