package exhibits

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gallery-sim/backend/internal/authz"
	"github.com/gallery-sim/backend/internal/models"
	"github.com/gallery-sim/backend/pkg/apperr"
)

const exhibitColumns = `e.id, e.collection_id, e.scenario_id, e.name, e.description, e.current_move, e.current_inject,
	e.created_by, e.created_at, e.updated_at`

// Repository handles exhibit persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an exhibits repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]models.Exhibit, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[models.Exhibit])
}

// List returns every exhibit, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Exhibit, error) {
	return r.list(ctx, `SELECT `+exhibitColumns+` FROM exhibits e ORDER BY e.created_at DESC`)
}

// ListForUser returns exhibits the user plays in or is a member of.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Exhibit, error) {
	return r.list(ctx, `SELECT `+exhibitColumns+` FROM exhibits e
		WHERE EXISTS (
			SELECT 1 FROM teams t INNER JOIN team_users tu ON tu.team_id = t.id
			WHERE t.exhibit_id = e.id AND tu.user_id = $1
		) OR EXISTS (
			SELECT 1 FROM exhibit_memberships m
			LEFT JOIN group_memberships gm ON gm.group_id = m.group_id
			WHERE m.exhibit_id = e.id AND (m.user_id = $1 OR gm.user_id = $1)
		)
		ORDER BY e.created_at DESC`, userID)
}

// GetByID returns an exhibit by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Exhibit, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+exhibitColumns+` FROM exhibits e WHERE e.id = $1`, id)
	if err != nil {
		return nil, err
	}
	ex, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[models.Exhibit])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("exhibit")
	}
	return ex, err
}

// CollectionExists reports whether the collection exists.
func (r *Repository) CollectionExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM collections WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

// IsTeamUser reports whether the user is on any team of the exhibit.
func (r *Repository) IsTeamUser(ctx context.Context, exhibitID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM teams t INNER JOIN team_users tu ON tu.team_id = t.id
		WHERE t.exhibit_id = $1 AND tu.user_id = $2)`, exhibitID, userID).Scan(&ok)
	return ok, err
}

// Create inserts an exhibit and makes its creator a manager of it.
func (r *Repository) Create(ctx context.Context, ex *models.Exhibit) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `INSERT INTO exhibits (collection_id, scenario_id, name, description, current_move, current_inject, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at, updated_at`
		err := tx.QueryRow(ctx, query, ex.CollectionID, ex.ScenarioID, ex.Name, ex.Description,
			ex.CurrentMove, ex.CurrentInject, ex.CreatedBy).Scan(&ex.ID, &ex.CreatedAt, &ex.UpdatedAt)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO exhibit_memberships (exhibit_id, user_id, role_id) VALUES ($1, $2, $3)`,
			ex.ID, ex.CreatedBy, authz.ExhibitRoleManager)
		return err
	})
}

// Update saves the descriptive fields.
func (r *Repository) Update(ctx context.Context, ex *models.Exhibit) error {
	const query = `UPDATE exhibits SET name = $2, description = $3, scenario_id = $4, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query, ex.ID, ex.Name, ex.Description, ex.ScenarioID).Scan(&ex.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("exhibit")
	}
	return err
}

// SetClock moves the exhibit's clock.
func (r *Repository) SetClock(ctx context.Context, id uuid.UUID, move, inject int) error {
	tag, err := r.pool.Exec(ctx, `UPDATE exhibits SET current_move = $2, current_inject = $3, updated_at = NOW() WHERE id = $1`,
		id, move, inject)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("exhibit")
	}
	return nil
}

// Delete removes an exhibit with its teams, live articles and feeds.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM exhibits WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("exhibit")
	}
	return nil
}
