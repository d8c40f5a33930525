package userarticles

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

// Repository adds the team lookups of this package to the feed repository.
type Repository struct {
	*feed.Repository
	pool *pgxpool.Pool
}

// NewRepository creates a user article repository.
func NewRepository(pool *pgxpool.Pool, feeds *feed.Repository) *Repository {
	return &Repository{Repository: feeds, pool: pool}
}

// Team returns a team by id.
func (r *Repository) Team(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	const query = `SELECT id, exhibit_id, name, short_name, email, created_at, updated_at FROM teams WHERE id = $1`
	var t models.Team
	err := r.pool.QueryRow(ctx, query, id).Scan(&t.ID, &t.ExhibitID, &t.Name, &t.ShortName, &t.Email, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("team")
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TeamUser returns the user's team placement in the exhibit, or nil.
func (r *Repository) TeamUser(ctx context.Context, exhibitID, userID uuid.UUID) (*models.TeamUser, error) {
	const query = `SELECT tu.id, tu.team_id, tu.user_id, tu.is_observer, tu.created_at
		FROM team_users tu INNER JOIN teams t ON t.id = tu.team_id
		WHERE t.exhibit_id = $1 AND tu.user_id = $2
		ORDER BY tu.created_at LIMIT 1`
	var tu models.TeamUser
	err := r.pool.QueryRow(ctx, query, exhibitID, userID).Scan(&tu.ID, &tu.TeamID, &tu.UserID, &tu.IsObserver, &tu.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tu, nil
}
