package models

import (
	"time"

	"github.com/google/uuid"
)

// Team is a group of users participating together in one exhibit.
type Team struct {
	ID        uuid.UUID `json:"id"`
	ExhibitID uuid.UUID `json:"exhibit_id"`
	Name      string    `json:"name"`
	ShortName string    `json:"short_name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TeamUser places a user on a team. A user is on at most one team per exhibit.
type TeamUser struct {
	ID         uuid.UUID `json:"id"`
	TeamID     uuid.UUID `json:"team_id"`
	UserID     uuid.UUID `json:"user_id"`
	IsObserver bool      `json:"is_observer"`
	CreatedAt  time.Time `json:"created_at"`
}

// TeamCard is the per-team visibility/posting toggle for a card. Unique on (TeamID, CardID).
type TeamCard struct {
	ID              uuid.UUID `json:"id"`
	TeamID          uuid.UUID `json:"team_id"`
	CardID          uuid.UUID `json:"card_id"`
	Move            int       `json:"move"`
	Inject          int       `json:"inject"`
	IsShownOnWall   bool      `json:"is_shown_on_wall"`
	CanPostArticles bool      `json:"can_post_articles"`
	CreatedAt       time.Time `json:"created_at"`
}

// TeamArticle associates a live article with a team of its exhibit.
type TeamArticle struct {
	ID        uuid.UUID `json:"id"`
	ExhibitID uuid.UUID `json:"exhibit_id"`
	TeamID    uuid.UUID `json:"team_id"`
	ArticleID uuid.UUID `json:"article_id"`
	CreatedAt time.Time `json:"created_at"`
}
