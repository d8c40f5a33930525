package cards

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gallery-sim/backend/internal/models"
	"github.com/gallery-sim/backend/pkg/apperr"
)

const cardColumns = `id, collection_id, name, description, move, inject, created_at, updated_at`

// Repository handles card persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a cards repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a card by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	c, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[models.Card])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("card")
	}
	return c, err
}

// ListByCollection returns a collection's cards in timeline order.
func (r *Repository) ListByCollection(ctx context.Context, collectionID uuid.UUID) ([]models.Card, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+cardColumns+` FROM cards WHERE collection_id = $1 ORDER BY move, inject, name`, collectionID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[models.Card])
}

// CollectionExists reports whether the collection exists.
func (r *Repository) CollectionExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM collections WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

// Create inserts a card.
func (r *Repository) Create(ctx context.Context, c *models.Card) error {
	const query = `INSERT INTO cards (collection_id, name, description, move, inject) VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query, c.CollectionID, c.Name, c.Description, c.Move, c.Inject).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// Update saves a card's editable fields.
func (r *Repository) Update(ctx context.Context, c *models.Card) error {
	const query = `UPDATE cards SET name = $2, description = $3, move = $4, inject = $5, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query, c.ID, c.Name, c.Description, c.Move, c.Inject).Scan(&c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("card")
	}
	return err
}

// Delete removes a card. Its articles keep existing without a card.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("card")
	}
	return nil
}
