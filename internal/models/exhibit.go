package models

import (
	"time"

	"github.com/google/uuid"
)

// Exhibit is a running instance of a collection with a (CurrentMove, CurrentInject) clock.
type Exhibit struct {
	ID            uuid.UUID  `json:"id"`
	CollectionID  uuid.UUID  `json:"collection_id"`
	ScenarioID    *uuid.UUID `json:"scenario_id,omitempty"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	CurrentMove   int        `json:"current_move"`
	CurrentInject int        `json:"current_inject"`
	CreatedBy     uuid.UUID  `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
