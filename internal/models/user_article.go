package models

import (
	"time"

	"github.com/google/uuid"
)

// UserArticle is a per-user feed entry, unique on (ExhibitID, UserID, ArticleID).
type UserArticle struct {
	ID               uuid.UUID `json:"id"`
	ExhibitID        uuid.UUID `json:"exhibit_id"`
	UserID           uuid.UUID `json:"user_id"`
	ArticleID        uuid.UUID `json:"article_id"`
	ActualDatePosted time.Time `json:"actual_date_posted"`
	IsRead           bool      `json:"is_read"`
}

// UserArticleView is a feed row joined with its article, as returned to clients.
type UserArticleView struct {
	UserArticle
	Article Article `json:"article"`
}
