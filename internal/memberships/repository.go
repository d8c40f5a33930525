package memberships

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gallery-sim/backend/internal/authz"
	"github.com/gallery-sim/backend/internal/models"
	"github.com/gallery-sim/backend/pkg/apperr"
)

// tables maps a membership scope to its membership table, scope column and parent table.
var tables = map[authz.Scope]struct{ memberships, column, parent string }{
	authz.ScopeCollection: {"collection_memberships", "collection_id", "collections"},
	authz.ScopeExhibit:    {"exhibit_memberships", "exhibit_id", "exhibits"},
}

// Repository handles membership and group persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a memberships repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func table(scope authz.Scope) (struct{ memberships, column, parent string }, error) {
	t, ok := tables[scope]
	if !ok {
		return t, fmt.Errorf("unknown membership scope %q", scope)
	}
	return t, nil
}

func translate(err error, conflict string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return apperr.Conflict(conflict)
		case "23503":
			return apperr.Invalid("unknown user, group or role")
		}
	}
	return err
}

// ScopeExists reports whether the collection or exhibit exists.
func (r *Repository) ScopeExists(ctx context.Context, scope authz.Scope, id uuid.UUID) (bool, error) {
	t, err := table(scope)
	if err != nil {
		return false, err
	}
	var ok bool
	err = r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, t.parent), id).Scan(&ok)
	return ok, err
}

// RoleScope returns the scope a role belongs to.
func (r *Repository) RoleScope(ctx context.Context, roleID uuid.UUID) (string, error) {
	var scope string
	err := r.pool.QueryRow(ctx, `SELECT scope FROM roles WHERE id = $1`, roleID).Scan(&scope)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.Invalid("unknown role")
	}
	return scope, err
}

// List returns the memberships of one collection or exhibit.
func (r *Repository) List(ctx context.Context, scope authz.Scope, scopeID uuid.UUID) ([]models.Membership, error) {
	t, err := table(scope)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT id, %s, user_id, group_id, role_id, created_at
		FROM %s WHERE %s = $1 ORDER BY created_at`, t.column, t.memberships, t.column), scopeID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[models.Membership])
}

// Get returns one membership.
func (r *Repository) Get(ctx context.Context, scope authz.Scope, id uuid.UUID) (*models.Membership, error) {
	t, err := table(scope)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT id, %s, user_id, group_id, role_id, created_at
		FROM %s WHERE id = $1`, t.column, t.memberships), id)
	if err != nil {
		return nil, err
	}
	m, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[models.Membership])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("membership")
	}
	return m, err
}

// Create inserts a membership for a user or a group.
func (r *Repository) Create(ctx context.Context, scope authz.Scope, m *models.Membership) error {
	t, err := table(scope)
	if err != nil {
		return err
	}
	err = r.pool.QueryRow(ctx, fmt.Sprintf(`INSERT INTO %s (%s, user_id, group_id, role_id) VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`, t.memberships, t.column), m.ScopeID, m.UserID, m.GroupID, m.RoleID).Scan(&m.ID, &m.CreatedAt)
	return translate(err, "already a member")
}

// SetRole changes a membership's role.
func (r *Repository) SetRole(ctx context.Context, scope authz.Scope, id, roleID uuid.UUID) error {
	t, err := table(scope)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`UPDATE %s SET role_id = $2 WHERE id = $1`, t.memberships), id, roleID)
	if err != nil {
		return translate(err, "already a member")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("membership")
	}
	return nil
}

// Delete removes a membership.
func (r *Repository) Delete(ctx context.Context, scope authz.Scope, id uuid.UUID) error {
	t, err := table(scope)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, t.memberships), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("membership")
	}
	return nil
}

// ListGroups returns every group by name.
func (r *Repository) ListGroups(ctx context.Context) ([]models.Group, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, created_at FROM groups ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[models.Group])
}

// ListGroupsForUser returns the groups the user belongs to.
func (r *Repository) ListGroupsForUser(ctx context.Context, userID uuid.UUID) ([]models.Group, error) {
	rows, err := r.pool.Query(ctx, `SELECT g.id, g.name, g.description, g.created_at
		FROM groups g INNER JOIN group_memberships gm ON gm.group_id = g.id
		WHERE gm.user_id = $1 ORDER BY g.name`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[models.Group])
}

// GetGroup returns a group by ID.
func (r *Repository) GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, created_at FROM groups WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	g, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[models.Group])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("group")
	}
	return g, err
}

// CreateGroup inserts a group.
func (r *Repository) CreateGroup(ctx context.Context, g *models.Group) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO groups (name, description) VALUES ($1, $2) RETURNING id, created_at`,
		g.Name, g.Description).Scan(&g.ID, &g.CreatedAt)
	return translate(err, "group name already taken")
}

// UpdateGroup saves a group's name and description.
func (r *Repository) UpdateGroup(ctx context.Context, g *models.Group) error {
	tag, err := r.pool.Exec(ctx, `UPDATE groups SET name = $2, description = $3 WHERE id = $1`, g.ID, g.Name, g.Description)
	if err != nil {
		return translate(err, "group name already taken")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("group")
	}
	return nil
}

// DeleteGroup removes a group and returns the ids of its former members.
func (r *Repository) DeleteGroup(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	var members []uuid.UUID
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT user_id FROM group_memberships WHERE group_id = $1`, id)
		if err != nil {
			return err
		}
		if members, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID]); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("group")
		}
		return nil
	})
	return members, err
}

// GroupMembers returns a group's memberships.
func (r *Repository) GroupMembers(ctx context.Context, groupID uuid.UUID) ([]models.GroupMembership, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, group_id, user_id, role_id, created_at
		FROM group_memberships WHERE group_id = $1 ORDER BY created_at`, groupID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[models.GroupMembership])
}

// AddGroupMember puts a user in a group.
func (r *Repository) AddGroupMember(ctx context.Context, gm *models.GroupMembership) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO group_memberships (group_id, user_id, role_id) VALUES ($1, $2, $3)
		RETURNING id, created_at`, gm.GroupID, gm.UserID, gm.RoleID).Scan(&gm.ID, &gm.CreatedAt)
	return translate(err, "already a member")
}

// GroupMember returns one group membership.
func (r *Repository) GroupMember(ctx context.Context, id uuid.UUID) (*models.GroupMembership, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, group_id, user_id, role_id, created_at
		FROM group_memberships WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	gm, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[models.GroupMembership])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("group membership")
	}
	return gm, err
}

// RemoveGroupMember deletes a group membership.
func (r *Repository) RemoveGroupMember(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM group_memberships WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("group membership")
	}
	return nil
}
