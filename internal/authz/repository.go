package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gallery-sim/backend/internal/models"
	"github.com/gallery-sim/backend/pkg/apperr"
)

// membershipTables maps a scope to its membership table and scope column.
var membershipTables = map[Scope]struct{ table, column string }{
	ScopeCollection: {"collection_memberships", "collection_id"},
	ScopeExhibit:    {"exhibit_memberships", "exhibit_id"},
	ScopeGroup:      {"group_memberships", "group_id"},
}

// Repository reads roles and memberships for authorization.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an authz repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UserRole implements MembershipStore.
func (r *Repository) UserRole(ctx context.Context, scope Scope, scopeID, userID uuid.UUID) (*models.Role, error) {
	t, ok := membershipTables[scope]
	if !ok {
		return nil, fmt.Errorf("unknown scope %q", scope)
	}
	q := fmt.Sprintf(`SELECT r.id, r.name, r.all_permissions, r.permissions
		FROM %s m INNER JOIN roles r ON r.id = m.role_id
		WHERE m.%s = $1 AND m.user_id = $2`, t.table, t.column)
	var role models.Role
	err := r.pool.QueryRow(ctx, q, scopeID, userID).Scan(&role.ID, &role.Name, &role.AllPermissions, &role.Permissions)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// GroupRoles implements MembershipStore. Group scope has no nested groups.
func (r *Repository) GroupRoles(ctx context.Context, scope Scope, scopeID, userID uuid.UUID) ([]models.Role, error) {
	if scope == ScopeGroup {
		return nil, nil
	}
	t, ok := membershipTables[scope]
	if !ok {
		return nil, fmt.Errorf("unknown scope %q", scope)
	}
	q := fmt.Sprintf(`SELECT DISTINCT r.id, r.name, r.all_permissions, r.permissions
		FROM %s m
		INNER JOIN roles r ON r.id = m.role_id
		INNER JOIN group_memberships gm ON gm.group_id = m.group_id
		WHERE m.%s = $1 AND gm.user_id = $2`, t.table, t.column)
	rows, err := r.pool.Query(ctx, q, scopeID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.AllPermissions, &role.Permissions); err != nil {
			return nil, err
		}
		list = append(list, role)
	}
	return list, rows.Err()
}

// LoadPrincipal implements ClaimsLoader from the user's system role.
func (r *Repository) LoadPrincipal(ctx context.Context, userID uuid.UUID) (Principal, error) {
	const q = `SELECT u.id, u.email, COALESCE(r.all_permissions, FALSE), COALESCE(r.permissions, '{}')
		FROM users u LEFT JOIN roles r ON r.id = u.system_role_id
		WHERE u.id = $1`
	var p Principal
	var perms []string
	err := r.pool.QueryRow(ctx, q, userID).Scan(&p.UserID, &p.Email, &p.AllSystemPermissions, &perms)
	if errors.Is(err, pgx.ErrNoRows) {
		return Principal{}, apperr.NotFound("user")
	}
	if err != nil {
		return Principal{}, err
	}
	for _, s := range perms {
		p.SystemPermissions = append(p.SystemPermissions, SystemPermission(s))
	}
	return p, nil
}

// ListRoles returns the roles of one scope ("system", "collection", "exhibit", "group").
func (r *Repository) ListRoles(ctx context.Context, scope string) ([]models.Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, all_permissions, permissions FROM roles WHERE scope = $1 ORDER BY name`, scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.AllPermissions, &role.Permissions); err != nil {
			return nil, err
		}
		list = append(list, role)
	}
	return list, rows.Err()
}
