package notify

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gallery-sim/backend/internal/authz"
	"github.com/gallery-sim/backend/internal/timeline"
	"github.com/gallery-sim/backend/pkg/apperr"
)

// UnreadCounter computes a user's unread count in an exhibit.
type UnreadCounter interface {
	UnreadCount(ctx context.Context, exhibitID, userID uuid.UUID) (int, error)
}

// Repository answers audience queries against Postgres.
type Repository struct {
	pool   *pgxpool.Pool
	unread UnreadCounter
}

// NewRepository creates an audience repository. unread is usually the feed repository.
func NewRepository(pool *pgxpool.Pool, unread UnreadCounter) *Repository {
	return &Repository{pool: pool, unread: unread}
}

func (r *Repository) ids(ctx context.Context, sql string, args ...any) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (r *Repository) ArticleReaderIDs(ctx context.Context, articleID uuid.UUID) ([]uuid.UUID, error) {
	return r.ids(ctx, `SELECT DISTINCT user_id FROM user_articles WHERE article_id = $1`, articleID)
}

func (r *Repository) CollectionUserIDs(ctx context.Context, collectionID uuid.UUID) ([]uuid.UUID, error) {
	return r.ids(ctx, `SELECT DISTINCT tu.user_id FROM team_users tu
		INNER JOIN teams t ON t.id = tu.team_id
		INNER JOIN exhibits e ON e.id = t.exhibit_id
		WHERE e.collection_id = $1`, collectionID)
}

func (r *Repository) CollectionHasExhibits(ctx context.Context, collectionID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM exhibits WHERE collection_id = $1)`, collectionID).Scan(&ok)
	return ok, err
}

func (r *Repository) TeamUserIDs(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error) {
	return r.ids(ctx, `SELECT user_id FROM team_users WHERE team_id = $1`, teamID)
}

func (r *Repository) ExhibitUserIDs(ctx context.Context, exhibitID uuid.UUID) ([]uuid.UUID, error) {
	return r.ids(ctx, `SELECT DISTINCT tu.user_id FROM team_users tu
		INNER JOIN teams t ON t.id = tu.team_id
		WHERE t.exhibit_id = $1`, exhibitID)
}

func (r *Repository) ExhibitClock(ctx context.Context, exhibitID uuid.UUID) (timeline.Coordinate, error) {
	var c timeline.Coordinate
	err := r.pool.QueryRow(ctx, `SELECT current_move, current_inject FROM exhibits WHERE id = $1`, exhibitID).Scan(&c.Move, &c.Inject)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, apperr.NotFound("exhibit")
	}
	return c, err
}

func (r *Repository) ArticleCoordinate(ctx context.Context, articleID uuid.UUID) (timeline.Coordinate, error) {
	var c timeline.Coordinate
	err := r.pool.QueryRow(ctx, `SELECT move, inject FROM articles WHERE id = $1`, articleID).Scan(&c.Move, &c.Inject)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, apperr.NotFound("article")
	}
	return c, err
}

func (r *Repository) UnreadCount(ctx context.Context, exhibitID, userID uuid.UUID) (int, error) {
	return r.unread.UnreadCount(ctx, exhibitID, userID)
}

// OwnerScope implements EntityScopes.
func (r *Repository) OwnerScope(ctx context.Context, id uuid.UUID) (authz.Scope, uuid.UUID, error) {
	const q = `SELECT 'exhibit', exhibit_id FROM articles WHERE id = $1 AND exhibit_id IS NOT NULL
		UNION ALL SELECT 'collection', collection_id FROM articles WHERE id = $1 AND exhibit_id IS NULL
		UNION ALL SELECT 'collection', collection_id FROM cards WHERE id = $1
		UNION ALL SELECT 'exhibit', exhibit_id FROM teams WHERE id = $1
		UNION ALL SELECT 'exhibit', t.exhibit_id FROM team_cards tc INNER JOIN teams t ON t.id = tc.team_id WHERE tc.id = $1
		UNION ALL SELECT 'exhibit', t.exhibit_id FROM team_users tu INNER JOIN teams t ON t.id = tu.team_id WHERE tu.id = $1
		LIMIT 1`
	var (
		scope   string
		scopeID uuid.UUID
	)
	err := r.pool.QueryRow(ctx, q, id).Scan(&scope, &scopeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", uuid.Nil, apperr.NotFound("entity")
	}
	if err != nil {
		return "", uuid.Nil, err
	}
	return authz.Scope(scope), scopeID, nil
}
