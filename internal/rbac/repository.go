package rbac

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lostfound/lostfound/internal/platform/db"
	"github.com/lostfound/lostfound/internal/shared"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("rbac: not found")

// RepositoryPort abstracts catalog persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	LoadSnapshot(ctx context.Context) (Snapshot, error)
	RolePermissions(ctx context.Context, roleID int64) ([]string, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
}

// TxRepository exposes catalog mutations that must share a transaction.
type TxRepository interface {
	LockRevision(ctx context.Context) (int64, error)
	Snapshot(ctx context.Context) (Snapshot, error)
	InsertPermission(ctx context.Context, p Permission) (Permission, error)
	InsertImplication(ctx context.Context, edge Implication) error
	DeleteImplication(ctx context.Context, edge Implication) (bool, error)
	BumpRevision(ctx context.Context) (int64, error)
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// Repository persists the catalog in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx runs fn in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// LoadSnapshot reads permissions, implications and the revision from one
// repeatable-read snapshot so a concurrent change is seen whole or not at all.
func (r *Repository) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		var err error
		snap, err = readSnapshot(ctx, tx)
		return err
	})
	return snap, err
}

// RolePermissions returns the permissions granted to a role.
func (r *Repository) RolePermissions(ctx context.Context, roleID int64) ([]string, error) {
	var perms []string
	err := r.pool.QueryRow(ctx, `SELECT permissions FROM roles WHERE id = $1`, roleID).Scan(&perms)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return perms, nil
}

// ListPermissions returns all permissions ordered by name.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	return listPermissions(ctx, r.pool)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func listPermissions(ctx context.Context, q querier) ([]Permission, error) {
	rows, err := q.Query(ctx, `SELECT name, description, created_at FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func readSnapshot(ctx context.Context, q querier) (Snapshot, error) {
	var snap Snapshot
	if err := q.QueryRow(ctx, `SELECT version FROM permission_catalog_revision WHERE id = TRUE`).Scan(&snap.Version); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, err
		}
	}
	perms, err := listPermissions(ctx, q)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Permissions = perms
	rows, err := q.Query(ctx, `SELECT parent, child FROM permission_implications ORDER BY parent, child`)
	if err != nil {
		return Snapshot{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var edge Implication
		if err := rows.Scan(&edge.Parent, &edge.Child); err != nil {
			return Snapshot{}, err
		}
		snap.Implications = append(snap.Implications, edge)
	}
	return snap, rows.Err()
}

func (t *txRepository) LockRevision(ctx context.Context) (int64, error) {
	var version int64
	err := t.tx.QueryRow(ctx, `SELECT version FROM permission_catalog_revision WHERE id = TRUE FOR UPDATE`).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		_, err = t.tx.Exec(ctx, `INSERT INTO permission_catalog_revision (id, version) VALUES (TRUE, 0) ON CONFLICT (id) DO NOTHING`)
		if err != nil {
			return 0, err
		}
		err = t.tx.QueryRow(ctx, `SELECT version FROM permission_catalog_revision WHERE id = TRUE FOR UPDATE`).Scan(&version)
	}
	return version, err
}

func (t *txRepository) Snapshot(ctx context.Context) (Snapshot, error) {
	return readSnapshot(ctx, t.tx)
}

func (t *txRepository) InsertPermission(ctx context.Context, p Permission) (Permission, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO permissions (name, description, created_at) VALUES ($1, $2, $3) RETURNING created_at`,
		p.Name, p.Description, time.Now().UTC()).Scan(&p.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Permission{}, shared.Conflict(shared.ReasonDuplicateName, "permission %q already exists", p.Name)
		}
		return Permission{}, err
	}
	return p, nil
}

func (t *txRepository) InsertImplication(ctx context.Context, edge Implication) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO permission_implications (parent, child) VALUES ($1, $2)`, edge.Parent, edge.Child)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return shared.Conflict(shared.ReasonImplication, "implication %s -> %s already exists", edge.Parent, edge.Child)
		}
		if db.IsForeignKeyViolation(err) {
			return shared.NotFound(shared.ReasonPermission, "implication references unknown permission")
		}
		return err
	}
	return nil
}

func (t *txRepository) DeleteImplication(ctx context.Context, edge Implication) (bool, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM permission_implications WHERE parent = $1 AND child = $2`, edge.Parent, edge.Child)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (t *txRepository) BumpRevision(ctx context.Context) (int64, error) {
	var version int64
	err := t.tx.QueryRow(ctx, `UPDATE permission_catalog_revision SET version = version + 1, updated_at = NOW() WHERE id = TRUE RETURNING version`).Scan(&version)
	return version, err
}

func (t *txRepository) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.WriteAudit(ctx, t.tx, log)
}
