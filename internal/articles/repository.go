package articles

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gallery-sim/backend/internal/feed"
	"github.com/gallery-sim/backend/internal/models"
	"github.com/gallery-sim/backend/pkg/apperr"
)

// Repository handles article persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an article repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns an article by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Article, error) {
	var a models.Article
	err := feed.ScanArticle(r.pool.QueryRow(ctx, `SELECT `+feed.ArticleColumns+` FROM articles a WHERE a.id = $1`, id), &a)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("article")
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Create inserts a new article.
func (r *Repository) Create(ctx context.Context, a *models.Article) error {
	return insertArticle(ctx, r.pool, a)
}

// CreateLive inserts a live article and its TeamArticles in one transaction.
func (r *Repository) CreateLive(ctx context.Context, a *models.Article) ([]models.TeamArticle, error) {
	var links []models.TeamArticle
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertArticle(ctx, tx, a); err != nil {
			return err
		}
		var err error
		links, err = linkTeams(ctx, tx, *a.ExhibitID, a.ID, *a.CardID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}

func insertArticle(ctx context.Context, q querier, a *models.Article) error {
	const sql = `INSERT INTO articles (collection_id, exhibit_id, card_id, name, summary, description, move, inject,
		status, source_type, source_name, url, open_in_new_tab, date_posted, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`
	return q.QueryRow(ctx, sql, a.CollectionID, a.ExhibitID, a.CardID, a.Name, a.Summary, a.Description, a.Move, a.Inject,
		a.Status, a.SourceType, a.SourceName, a.URL, a.OpenInNewTab, a.DatePosted, a.CreatedBy).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// Update writes every mutable column of a.
func (r *Repository) Update(ctx context.Context, a *models.Article) error {
	const q = `UPDATE articles SET card_id = $2, name = $3, summary = $4, description = $5, move = $6, inject = $7,
		status = $8, source_type = $9, source_name = $10, url = $11, open_in_new_tab = $12, date_posted = $13, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, a.ID, a.CardID, a.Name, a.Summary, a.Description, a.Move, a.Inject,
		a.Status, a.SourceType, a.SourceName, a.URL, a.OpenInNewTab, a.DatePosted).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("article")
	}
	return err
}

// Delete removes an article and returns the feed rows that cascaded with it.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) ([]models.UserArticle, error) {
	var removed []models.UserArticle
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `DELETE FROM user_articles WHERE article_id = $1
			RETURNING id, exhibit_id, user_id, article_id, actual_date_posted, is_read`, id)
		if err != nil {
			return err
		}
		if removed, err = pgx.CollectRows(rows, pgx.RowToStructByPos[models.UserArticle]); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM articles WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("article")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (r *Repository) list(ctx context.Context, where string, arg uuid.UUID) ([]models.Article, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+feed.ArticleColumns+` FROM articles a WHERE `+where, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Article{}
	for rows.Next() {
		var a models.Article
		if err := feed.ScanArticle(rows, &a); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// ListLibrary returns the library articles of a collection.
func (r *Repository) ListLibrary(ctx context.Context, collectionID uuid.UUID) ([]models.Article, error) {
	return r.list(ctx, `a.collection_id = $1 AND a.exhibit_id IS NULL`, collectionID)
}

// ListByCard returns all articles filed under a card.
func (r *Repository) ListByCard(ctx context.Context, cardID uuid.UUID) ([]models.Article, error) {
	return r.list(ctx, `a.card_id = $1`, cardID)
}

// ListLive returns the articles posted into an exhibit.
func (r *Repository) ListLive(ctx context.Context, exhibitID uuid.UUID) ([]models.Article, error) {
	return r.list(ctx, `a.exhibit_id = $1`, exhibitID)
}

func (r *Repository) ids(ctx context.Context, sql string, args ...any) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// Exhibit loads an exhibit.
func (r *Repository) Exhibit(ctx context.Context, id uuid.UUID) (*models.Exhibit, error) {
	const q = `SELECT id, collection_id, scenario_id, name, description, current_move, current_inject, created_by, created_at, updated_at
		FROM exhibits WHERE id = $1`
	var e models.Exhibit
	err := r.pool.QueryRow(ctx, q, id).Scan(&e.ID, &e.CollectionID, &e.ScenarioID, &e.Name, &e.Description,
		&e.CurrentMove, &e.CurrentInject, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("exhibit")
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ExhibitIDs returns the exhibits running a collection.
func (r *Repository) ExhibitIDs(ctx context.Context, collectionID uuid.UUID) ([]uuid.UUID, error) {
	return r.ids(ctx, `SELECT id FROM exhibits WHERE collection_id = $1`, collectionID)
}

// CollectionExists reports whether the collection exists.
func (r *Repository) CollectionExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM collections WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

// Card loads a card.
func (r *Repository) Card(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	var c models.Card
	err := r.pool.QueryRow(ctx, `SELECT id, collection_id, name, description, move, inject, created_at, updated_at FROM cards WHERE id = $1`, id).
		Scan(&c.ID, &c.CollectionID, &c.Name, &c.Description, &c.Move, &c.Inject, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("card")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// linkTeams creates a TeamArticle for every team of the exhibit holding a TeamCard for cardID.
func linkTeams(ctx context.Context, q querier, exhibitID, articleID, cardID uuid.UUID) ([]models.TeamArticle, error) {
	const sql = `INSERT INTO team_articles (exhibit_id, team_id, article_id)
		SELECT t.exhibit_id, t.id, $2 FROM teams t
		INNER JOIN team_cards tc ON tc.team_id = t.id AND tc.card_id = $3
		WHERE t.exhibit_id = $1
		ON CONFLICT (team_id, article_id) DO NOTHING
		RETURNING id, exhibit_id, team_id, article_id, created_at`
	rows, err := q.Query(ctx, sql, exhibitID, articleID, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.TeamArticle
	for rows.Next() {
		var ta models.TeamArticle
		if err := rows.Scan(&ta.ID, &ta.ExhibitID, &ta.TeamID, &ta.ArticleID, &ta.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, ta)
	}
	return list, rows.Err()
}

// Team loads a team.
func (r *Repository) Team(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	var t models.Team
	err := r.pool.QueryRow(ctx, `SELECT id, exhibit_id, name, short_name, email, created_at, updated_at FROM teams WHERE id = $1`, id).
		Scan(&t.ID, &t.ExhibitID, &t.Name, &t.ShortName, &t.Email, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("team")
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TeamMemberEmails returns the non-empty addresses of a team's users.
func (r *Repository) TeamMemberEmails(ctx context.Context, teamID uuid.UUID) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT u.email FROM team_users tu INNER JOIN users u ON u.id = tu.user_id
		WHERE tu.team_id = $1 AND u.email <> '' ORDER BY u.email`, teamID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// UserTeamIDs implements TeamLookup.
func (r *Repository) UserTeamIDs(ctx context.Context, exhibitID, userID uuid.UUID) ([]uuid.UUID, error) {
	return r.ids(ctx, `SELECT t.id FROM teams t INNER JOIN team_users tu ON tu.team_id = t.id
		WHERE t.exhibit_id = $1 AND tu.user_id = $2`, exhibitID, userID)
}

// TeamCard implements TeamLookup.
func (r *Repository) TeamCard(ctx context.Context, teamID, cardID uuid.UUID) (*models.TeamCard, error) {
	const q = `SELECT id, team_id, card_id, move, inject, is_shown_on_wall, can_post_articles, created_at
		FROM team_cards WHERE team_id = $1 AND card_id = $2`
	var tc models.TeamCard
	err := r.pool.QueryRow(ctx, q, teamID, cardID).Scan(&tc.ID, &tc.TeamID, &tc.CardID, &tc.Move, &tc.Inject,
		&tc.IsShownOnWall, &tc.CanPostArticles, &tc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tc, nil
}
