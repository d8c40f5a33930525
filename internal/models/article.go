package models

import (
	"time"

	"github.com/google/uuid"
)

// SourceType classifies where an article claims to come from.
type SourceType string

const (
	SourceNews         SourceType = "News"
	SourceSocial       SourceType = "Social"
	SourceEmail        SourceType = "Email"
	SourcePhone        SourceType = "Phone"
	SourceReporting    SourceType = "Reporting"
	SourceIntelligence SourceType = "Intel"
	SourceOrganization SourceType = "Organization"
)

// ItemStatus is the article's status color on the wall.
type ItemStatus string

const (
	StatusUnused   ItemStatus = "Unused"
	StatusClosed   ItemStatus = "Closed"
	StatusCritical ItemStatus = "Critical"
	StatusAffected ItemStatus = "Affected"
	StatusNormal   ItemStatus = "Normal"
)

// Article is either library content of a collection (ExhibitID nil) or a live post scoped to one exhibit.
type Article struct {
	ID           uuid.UUID  `json:"id"`
	CollectionID uuid.UUID  `json:"collection_id"`
	ExhibitID    *uuid.UUID `json:"exhibit_id,omitempty"`
	CardID       *uuid.UUID `json:"card_id,omitempty"`
	Name         string     `json:"name"`
	Summary      string     `json:"summary"`
	Description  string     `json:"description"`
	Move         int        `json:"move"`
	Inject       int        `json:"inject"`
	Status       ItemStatus `json:"status"`
	SourceType   SourceType `json:"source_type"`
	SourceName   string     `json:"source_name"`
	URL          string     `json:"url"`
	OpenInNewTab bool       `json:"open_in_new_tab"`
	DatePosted   time.Time  `json:"date_posted"`
	CreatedBy    uuid.UUID  `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsLive reports whether the article was posted into a running exhibit.
func (a *Article) IsLive() bool {
	return a.ExhibitID != nil
}
