package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gallery-sim/backend/internal/models"
	"github.com/gallery-sim/backend/pkg/apperr"
)

const userColumns = `id, email, password_hash, name, system_role_id, created_at, updated_at`

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a user repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Name, &u.SystemRoleID, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns a user by email (case-insensitive).
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

// List returns all users ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.UserPublic, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, email, name, system_role_id, created_at FROM users ORDER BY name, email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.UserPublic
	for rows.Next() {
		var u models.UserPublic
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.SystemRoleID, &u.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// Create inserts a new user. A duplicate email is a conflict.
func (r *Repository) Create(ctx context.Context, email, passwordHash, name string, systemRoleID *uuid.UUID) (*models.User, error) {
	const q = `INSERT INTO users (email, password_hash, name, system_role_id) VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q, email, passwordHash, name, systemRoleID))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return nil, apperr.Conflict("email already registered")
	}
	return u, err
}

// SetSystemRole replaces the user's system role; nil clears it.
func (r *Repository) SetSystemRole(ctx context.Context, id uuid.UUID, roleID *uuid.UUID) (*models.User, error) {
	const q = `UPDATE users SET system_role_id = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q, id, roleID))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return nil, apperr.Invalid("unknown role")
	}
	return u, err
}

// Emails returns the non-empty email addresses of the given users.
func (r *Repository) Emails(ctx context.Context, ids []uuid.UUID) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT email FROM users WHERE id = ANY($1) AND email <> '' ORDER BY email`, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
