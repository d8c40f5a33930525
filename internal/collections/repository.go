package collections

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gallery-sim/backend/internal/authz"
	"github.com/gallery-sim/backend/internal/models"
	"github.com/gallery-sim/backend/pkg/apperr"
)

const collectionColumns = `c.id, c.name, c.description, c.created_by, c.created_at, c.updated_at`

// Repository handles collection persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a collections repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanCollection(row pgx.Row) (*models.Collection, error) {
	var c models.Collection
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("collection")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]models.Collection, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Collection{}
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	return list, rows.Err()
}

// List returns every collection by name.
func (r *Repository) List(ctx context.Context) ([]models.Collection, error) {
	return r.list(ctx, `SELECT `+collectionColumns+` FROM collections c ORDER BY c.name`)
}

// ListForUser returns the collections the user is a member of, directly or through a group.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Collection, error) {
	return r.list(ctx, `SELECT `+collectionColumns+` FROM collections c
		WHERE EXISTS (
			SELECT 1 FROM collection_memberships m
			LEFT JOIN group_memberships gm ON gm.group_id = m.group_id
			WHERE m.collection_id = c.id AND (m.user_id = $1 OR gm.user_id = $1)
		)
		ORDER BY c.name`, userID)
}

// GetByID returns a collection by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Collection, error) {
	return scanCollection(r.pool.QueryRow(ctx, `SELECT `+collectionColumns+` FROM collections c WHERE c.id = $1`, id))
}

func insertCollection(ctx context.Context, tx pgx.Tx, c *models.Collection) error {
	const query = `INSERT INTO collections (name, description, created_by) VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, query, c.Name, c.Description, c.CreatedBy).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `INSERT INTO collection_memberships (collection_id, user_id, role_id) VALUES ($1, $2, $3)`,
		c.ID, c.CreatedBy, authz.CollectionRoleManager)
	return err
}

// Create inserts a collection and makes its creator a manager of it.
func (r *Repository) Create(ctx context.Context, c *models.Collection) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return insertCollection(ctx, tx, c)
	})
}

// Update saves name and description.
func (r *Repository) Update(ctx context.Context, c *models.Collection) error {
	const query = `UPDATE collections SET name = $2, description = $3, updated_at = NOW() WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query, c.ID, c.Name, c.Description).Scan(&c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("collection")
	}
	return err
}

// Delete removes a collection. Cards, articles and exhibits cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM collections WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("collection")
	}
	return nil
}

// Copy duplicates a collection with its cards and library articles in one transaction.
// Live articles stay with their exhibits.
func (r *Repository) Copy(ctx context.Context, srcID uuid.UUID, name string, userID uuid.UUID) (*models.Collection, error) {
	var dst *models.Collection
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		src, err := scanCollection(tx.QueryRow(ctx, `SELECT `+collectionColumns+` FROM collections c WHERE c.id = $1`, srcID))
		if err != nil {
			return err
		}
		dst = &models.Collection{Name: name, Description: src.Description, CreatedBy: userID}
		if dst.Name == "" {
			dst.Name = src.Name + " - copy"
		}
		if err := insertCollection(ctx, tx, dst); err != nil {
			return fmt.Errorf("insert copy: %w", err)
		}
		cards, err := copyCards(ctx, tx, srcID, dst.ID)
		if err != nil {
			return fmt.Errorf("copy cards: %w", err)
		}
		return copyArticles(ctx, tx, srcID, dst.ID, userID, cards)
	})
	if err != nil {
		return nil, err
	}
	return dst, nil
}

// copyCards returns old card id -> new card id.
func copyCards(ctx context.Context, tx pgx.Tx, srcID, dstID uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	rows, err := tx.Query(ctx, `SELECT id, name, description, move, inject FROM cards WHERE collection_id = $1`, srcID)
	if err != nil {
		return nil, err
	}
	type card struct {
		ID          uuid.UUID
		Name        string
		Description string
		Move        int
		Inject      int
	}
	cards, err := pgx.CollectRows(rows, pgx.RowToStructByPos[card])
	if err != nil {
		return nil, err
	}
	ids := make(map[uuid.UUID]uuid.UUID, len(cards))
	for _, c := range cards {
		var id uuid.UUID
		err := tx.QueryRow(ctx, `INSERT INTO cards (collection_id, name, description, move, inject)
			VALUES ($1, $2, $3, $4, $5) RETURNING id`, dstID, c.Name, c.Description, c.Move, c.Inject).Scan(&id)
		if err != nil {
			return nil, err
		}
		ids[c.ID] = id
	}
	return ids, nil
}

func copyArticles(ctx context.Context, tx pgx.Tx, srcID, dstID, userID uuid.UUID, cards map[uuid.UUID]uuid.UUID) error {
	rows, err := tx.Query(ctx, `SELECT id, card_id FROM articles WHERE collection_id = $1 AND exhibit_id IS NULL`, srcID)
	if err != nil {
		return err
	}
	type ref struct {
		ID     uuid.UUID
		CardID *uuid.UUID
	}
	refs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[ref])
	if err != nil {
		return err
	}
	const query = `INSERT INTO articles (collection_id, card_id, name, summary, description, move, inject,
			status, source_type, source_name, url, open_in_new_tab, date_posted, created_by)
		SELECT $2, $3, name, summary, description, move, inject,
			status, source_type, source_name, url, open_in_new_tab, date_posted, $4
		FROM articles WHERE id = $1`
	for _, a := range refs {
		var card *uuid.UUID
		if a.CardID != nil {
			if id, ok := cards[*a.CardID]; ok {
				card = &id
			}
		}
		if _, err := tx.Exec(ctx, query, a.ID, dstID, card, userID); err != nil {
			return fmt.Errorf("copy article %s: %w", a.ID, err)
		}
	}
	return nil
}
