// Package feed materializes per-user article feeds and answers feed reads.
package feed

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gallery-sim/backend/internal/models"
	"github.com/gallery-sim/backend/internal/timeline"
)

// Tx is the storage view a materialization runs against. All calls share one transaction.
type Tx interface {
	Exhibit(ctx context.Context, exhibitID uuid.UUID) (*models.Exhibit, error)
	TeamIDs(ctx context.Context, exhibitID uuid.UUID) ([]uuid.UUID, error)
	// UserTeamIDs returns the teams of exhibitID the user is on.
	UserTeamIDs(ctx context.Context, exhibitID, userID uuid.UUID) ([]uuid.UUID, error)
	TeamUserIDs(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error)
	// TeamCardIDs returns the team's cards that belong to collectionID.
	TeamCardIDs(ctx context.Context, teamID, collectionID uuid.UUID) ([]uuid.UUID, error)
	// CandidateArticles returns library articles of collectionID and live articles of exhibitID whose card is in cardIDs.
	CandidateArticles(ctx context.Context, collectionID, exhibitID uuid.UUID, cardIDs []uuid.UUID) ([]models.Article, error)
	ExistingArticleIDs(ctx context.Context, exhibitID, userID uuid.UUID) ([]uuid.UUID, error)
	// InsertUserArticle inserts ua unless a row with the same (exhibit, user, article) exists.
	// It reports false without error when the row already existed.
	InsertUserArticle(ctx context.Context, ua *models.UserArticle) (bool, error)
}

// Store opens materialization transactions.
type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error
}

// Materializer backfills UserArticle rows for released articles.
type Materializer struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewMaterializer creates a Materializer.
func NewMaterializer(store Store, logger *zap.Logger) *Materializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Materializer{store: store, logger: logger, now: time.Now}
}

// MaterializeExhibit ensures every user on every team of the exhibit has a row for every
// article released to their team. It returns the rows it created.
func (m *Materializer) MaterializeExhibit(ctx context.Context, exhibitID uuid.UUID) ([]models.UserArticle, error) {
	return m.run(ctx, exhibitID, nil)
}

// MaterializeUser is MaterializeExhibit restricted to one user's team.
func (m *Materializer) MaterializeUser(ctx context.Context, exhibitID, userID uuid.UUID) ([]models.UserArticle, error) {
	return m.run(ctx, exhibitID, &userID)
}

func (m *Materializer) run(ctx context.Context, exhibitID uuid.UUID, only *uuid.UUID) ([]models.UserArticle, error) {
	var created []models.UserArticle
	err := m.store.InTx(ctx, func(tx Tx) error {
		ex, err := tx.Exhibit(ctx, exhibitID)
		if err != nil {
			return err
		}
		var teams []uuid.UUID
		if only != nil {
			teams, err = tx.UserTeamIDs(ctx, exhibitID, *only)
		} else {
			teams, err = tx.TeamIDs(ctx, exhibitID)
		}
		if err != nil {
			return err
		}

		b := batch{tx: tx, exhibit: ex, now: m.now(), have: make(map[uuid.UUID]map[uuid.UUID]struct{})}
		for _, teamID := range teams {
			if err := b.team(ctx, teamID, only); err != nil {
				return err
			}
		}
		created = b.created
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(created) > 0 {
		materializedTotal.Add(float64(len(created)))
		m.logger.Debug("materialized user articles",
			zap.String("exhibit_id", exhibitID.String()),
			zap.Int("created", len(created)),
		)
	}
	return created, nil
}

// batch is one materialization pass. Teams, articles and users are walked sequentially.
type batch struct {
	tx      Tx
	exhibit *models.Exhibit
	now     time.Time
	have    map[uuid.UUID]map[uuid.UUID]struct{} // user -> article ids with a row
	created []models.UserArticle
}

func (b *batch) team(ctx context.Context, teamID uuid.UUID, only *uuid.UUID) error {
	ex := b.exhibit
	cards, err := b.tx.TeamCardIDs(ctx, teamID, ex.CollectionID)
	if err != nil || len(cards) == 0 {
		return err
	}
	articles, err := b.tx.CandidateArticles(ctx, ex.CollectionID, ex.ID, cards)
	if err != nil {
		return err
	}
	released := timeline.Filter(articles, ArticleCoordinate, Clock(ex))
	if len(released) == 0 {
		return nil
	}

	users := []uuid.UUID{}
	if only != nil {
		users = append(users, *only)
	} else if users, err = b.tx.TeamUserIDs(ctx, teamID); err != nil {
		return err
	}

	for _, userID := range users {
		have, err := b.existing(ctx, userID)
		if err != nil {
			return err
		}
		for _, a := range released {
			if _, ok := have[a.ID]; ok {
				continue
			}
			ua := models.UserArticle{
				ExhibitID:        ex.ID,
				UserID:           userID,
				ArticleID:        a.ID,
				ActualDatePosted: b.now,
			}
			inserted, err := b.tx.InsertUserArticle(ctx, &ua)
			if err != nil {
				return err
			}
			have[a.ID] = struct{}{}
			if inserted {
				b.created = append(b.created, ua)
			}
		}
	}
	return nil
}

func (b *batch) existing(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	if have, ok := b.have[userID]; ok {
		return have, nil
	}
	ids, err := b.tx.ExistingArticleIDs(ctx, b.exhibit.ID, userID)
	if err != nil {
		return nil, err
	}
	have := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		have[id] = struct{}{}
	}
	b.have[userID] = have
	return have, nil
}

// Clock returns the exhibit's current timeline position.
func Clock(ex *models.Exhibit) timeline.Coordinate {
	return timeline.Coordinate{Move: ex.CurrentMove, Inject: ex.CurrentInject}
}

// ArticleCoordinate returns the article's release position.
func ArticleCoordinate(a models.Article) timeline.Coordinate {
	return timeline.Coordinate{Move: a.Move, Inject: a.Inject}
}

// ViewCoordinate returns the release position of a feed row's article.
func ViewCoordinate(v models.UserArticleView) timeline.Coordinate {
	return ArticleCoordinate(v.Article)
}

// CountUnread counts rows that are unread and released at clock.
func CountUnread(rows []models.UserArticleView, clock timeline.Coordinate) int {
	n := 0
	for _, r := range rows {
		if !r.IsRead && ViewCoordinate(r).ReleasedAt(clock) {
			n++
		}
	}
	return n
}
