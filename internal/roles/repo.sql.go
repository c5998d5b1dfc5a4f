package roles

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/lostfound/lostfound/internal/platform/db"
	"github.com/lostfound/lostfound/internal/shared"
)

const roleColumns = `id, name, description, permissions, protected, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (Role, error) {
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.Permissions, &role.Protected, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	if role.Permissions == nil {
		role.Permissions = []string{}
	}
	return role, nil
}

// ListRoles returns all roles.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRole loads one role.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
}

// GetRoleByName loads a role by case-insensitive name.
func (r *Repository) GetRoleByName(ctx context.Context, name string) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE lower(name) = $1`, strings.ToLower(name)))
}

func (t *txRepository) LockRole(ctx context.Context, id int64) (Role, error) {
	return scanRole(t.tx.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepository) InsertRole(ctx context.Context, role Role) (Role, error) {
	created, err := scanRole(t.tx.QueryRow(ctx, `INSERT INTO roles (name, description, permissions, protected)
VALUES ($1, $2, $3, $4) RETURNING `+roleColumns, role.Name, role.Description, role.Permissions, role.Protected))
	if err != nil && db.IsUniqueViolation(err) {
		return Role{}, shared.Conflict(shared.ReasonDuplicateRole, "role %q already exists", role.Name)
	}
	return created, err
}

func (t *txRepository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	updated, err := scanRole(t.tx.QueryRow(ctx, `UPDATE roles SET name = $2, description = $3, permissions = $4, updated_at = NOW()
WHERE id = $1 RETURNING `+roleColumns, role.ID, role.Name, role.Description, role.Permissions))
	if err != nil && db.IsUniqueViolation(err) {
		return Role{}, shared.Conflict(shared.ReasonDuplicateRole, "role %q already exists", role.Name)
	}
	return updated, err
}

func (t *txRepository) CountUsers(ctx context.Context, roleID int64) (int64, error) {
	var n int64
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role_id = $1`, roleID).Scan(&n)
	return n, err
}

func (t *txRepository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return shared.Conflict(shared.ReasonRoleInUse, "role %d is assigned to users", id)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
