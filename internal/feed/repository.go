package feed

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gallery-sim/backend/internal/models"
	"github.com/gallery-sim/backend/internal/timeline"
	"github.com/gallery-sim/backend/pkg/apperr"
)

// ArticleColumns selects an article aliased as "a".
const ArticleColumns = `a.id, a.collection_id, a.exhibit_id, a.card_id, a.name, a.summary, a.description, a.move, a.inject,
	a.status, a.source_type, a.source_name, a.url, a.open_in_new_tab, a.date_posted, a.created_by, a.created_at, a.updated_at`

// ScanArticle scans the columns of ArticleColumns.
func ScanArticle(row pgx.Row, a *models.Article) error {
	return row.Scan(&a.ID, &a.CollectionID, &a.ExhibitID, &a.CardID, &a.Name, &a.Summary, &a.Description, &a.Move, &a.Inject,
		&a.Status, &a.SourceType, &a.SourceName, &a.URL, &a.OpenInNewTab, &a.DatePosted, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository stores user articles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a feed repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InTx implements Store. The whole materialization commits or rolls back together.
func (r *Repository) InTx(ctx context.Context, fn func(Tx) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(pgTx{q: tx})
	})
}

type pgTx struct {
	q querier
}

func (t pgTx) Exhibit(ctx context.Context, exhibitID uuid.UUID) (*models.Exhibit, error) {
	return getExhibit(ctx, t.q, exhibitID)
}

func getExhibit(ctx context.Context, q querier, id uuid.UUID) (*models.Exhibit, error) {
	const sql = `SELECT id, collection_id, scenario_id, name, description, current_move, current_inject, created_by, created_at, updated_at
		FROM exhibits WHERE id = $1`
	var e models.Exhibit
	err := q.QueryRow(ctx, sql, id).Scan(&e.ID, &e.CollectionID, &e.ScenarioID, &e.Name, &e.Description,
		&e.CurrentMove, &e.CurrentInject, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("exhibit")
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (t pgTx) TeamIDs(ctx context.Context, exhibitID uuid.UUID) ([]uuid.UUID, error) {
	return collectIDs(ctx, t.q, `SELECT id FROM teams WHERE exhibit_id = $1 ORDER BY created_at`, exhibitID)
}

func (t pgTx) UserTeamIDs(ctx context.Context, exhibitID, userID uuid.UUID) ([]uuid.UUID, error) {
	return collectIDs(ctx, t.q, `SELECT t.id FROM teams t INNER JOIN team_users tu ON tu.team_id = t.id
		WHERE t.exhibit_id = $1 AND tu.user_id = $2`, exhibitID, userID)
}

func (t pgTx) TeamUserIDs(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error) {
	return collectIDs(ctx, t.q, `SELECT user_id FROM team_users WHERE team_id = $1`, teamID)
}

func (t pgTx) TeamCardIDs(ctx context.Context, teamID, collectionID uuid.UUID) ([]uuid.UUID, error) {
	return collectIDs(ctx, t.q, `SELECT tc.card_id FROM team_cards tc INNER JOIN cards c ON c.id = tc.card_id
		WHERE tc.team_id = $1 AND c.collection_id = $2`, teamID, collectionID)
}

func (t pgTx) CandidateArticles(ctx context.Context, collectionID, exhibitID uuid.UUID, cardIDs []uuid.UUID) ([]models.Article, error) {
	return candidateArticles(ctx, t.q, collectionID, exhibitID, cardIDs)
}

func candidateArticles(ctx context.Context, q querier, collectionID, exhibitID uuid.UUID, cardIDs []uuid.UUID) ([]models.Article, error) {
	sql := `SELECT ` + ArticleColumns + ` FROM articles a
		WHERE a.card_id = ANY($3)
		AND ((a.exhibit_id IS NULL AND a.collection_id = $1) OR a.exhibit_id = $2)`
	rows, err := q.Query(ctx, sql, collectionID, exhibitID, cardIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Article
	for rows.Next() {
		var a models.Article
		if err := ScanArticle(rows, &a); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (t pgTx) ExistingArticleIDs(ctx context.Context, exhibitID, userID uuid.UUID) ([]uuid.UUID, error) {
	return collectIDs(ctx, t.q, `SELECT article_id FROM user_articles WHERE exhibit_id = $1 AND user_id = $2`, exhibitID, userID)
}

func (t pgTx) InsertUserArticle(ctx context.Context, ua *models.UserArticle) (bool, error) {
	const sql = `INSERT INTO user_articles (exhibit_id, user_id, article_id, actual_date_posted, is_read)
		VALUES ($1, $2, $3, $4, FALSE)
		ON CONFLICT (exhibit_id, user_id, article_id) DO NOTHING
		RETURNING id`
	err := t.q.QueryRow(ctx, sql, ua.ExhibitID, ua.UserID, ua.ArticleID, ua.ActualDatePosted).Scan(&ua.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func collectIDs(ctx context.Context, q querier, sql string, args ...any) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

const viewColumns = `ua.id, ua.exhibit_id, ua.user_id, ua.article_id, ua.actual_date_posted, ua.is_read, ` + ArticleColumns

func scanView(row pgx.Row, v *models.UserArticleView) error {
	a := &v.Article
	return row.Scan(&v.ID, &v.ExhibitID, &v.UserID, &v.ArticleID, &v.ActualDatePosted, &v.IsRead,
		&a.ID, &a.CollectionID, &a.ExhibitID, &a.CardID, &a.Name, &a.Summary, &a.Description, &a.Move, &a.Inject,
		&a.Status, &a.SourceType, &a.SourceName, &a.URL, &a.OpenInNewTab, &a.DatePosted, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
}

// ListForUser returns every row of the user's feed in the exhibit, ungated.
func (r *Repository) ListForUser(ctx context.Context, exhibitID, userID uuid.UUID) ([]models.UserArticleView, error) {
	sql := `SELECT ` + viewColumns + ` FROM user_articles ua INNER JOIN articles a ON a.id = ua.article_id
		WHERE ua.exhibit_id = $1 AND ua.user_id = $2`
	rows, err := r.pool.Query(ctx, sql, exhibitID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.UserArticleView
	for rows.Next() {
		var v models.UserArticleView
		if err := scanView(rows, &v); err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, rows.Err()
}

// GetByID returns one feed row with its article.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.UserArticleView, error) {
	sql := `SELECT ` + viewColumns + ` FROM user_articles ua INNER JOIN articles a ON a.id = ua.article_id WHERE ua.id = $1`
	var v models.UserArticleView
	err := scanView(r.pool.QueryRow(ctx, sql, id), &v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user article")
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// SetRead updates the read flag of one row.
func (r *Repository) SetRead(ctx context.Context, id uuid.UUID, isRead bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE user_articles SET is_read = $2 WHERE id = $1`, id, isRead)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user article")
	}
	return nil
}

// Exhibit loads an exhibit outside a materialization.
func (r *Repository) Exhibit(ctx context.Context, exhibitID uuid.UUID) (*models.Exhibit, error) {
	return getExhibit(ctx, r.pool, exhibitID)
}

// UnreadCount counts the user's unread rows released at the exhibit's current clock.
func (r *Repository) UnreadCount(ctx context.Context, exhibitID, userID uuid.UUID) (int, error) {
	ex, err := r.Exhibit(ctx, exhibitID)
	if err != nil {
		return 0, err
	}
	rows, err := r.ListForUser(ctx, exhibitID, userID)
	if err != nil {
		return 0, err
	}
	return CountUnread(rows, Clock(ex)), nil
}

// TeamView returns the articles released to a team, newest first.
func (r *Repository) TeamView(ctx context.Context, exhibitID, teamID uuid.UUID) ([]models.Article, error) {
	ex, err := r.Exhibit(ctx, exhibitID)
	if err != nil {
		return nil, err
	}
	cards, err := pgTx{q: r.pool}.TeamCardIDs(ctx, teamID, ex.CollectionID)
	if err != nil || len(cards) == 0 {
		return nil, err
	}
	list, err := candidateArticles(ctx, r.pool, ex.CollectionID, ex.ID, cards)
	if err != nil {
		return nil, err
	}
	list = timeline.Filter(list, ArticleCoordinate, Clock(ex))
	timeline.SortNewestFirst(list, ArticleCoordinate)
	return list, nil
}
