package items

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lostfound/lostfound/internal/platform/db"
	"github.com/lostfound/lostfound/internal/shared"
)

// ErrNotFound indicates the item does not exist.
var ErrNotFound = errors.New("items: not found")

// RepositoryPort defines item persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	FindByID(ctx context.Context, id int64) (Item, error)
	FindAll(ctx context.Context, filter Filter) ([]Item, int, error)
	Insert(ctx context.Context, item Item) (Item, error)
}

// TxRepository exposes item mutations that hold the row lock.
type TxRepository interface {
	LockItem(ctx context.Context, id int64) (Item, error)
	SetStatus(ctx context.Context, id int64, status Status) error
	DeleteItem(ctx context.Context, id int64) error
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// Repository persists items in PostgreSQL.
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

// WithTx runs fn in a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const itemColumns = `id, kind, owner_id, title, description, location, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// ScanItem reads an item selected with the canonical column list.
func ScanItem(row rowScanner) (Item, error) {
	var it Item
	var kind, status string
	if err := row.Scan(&it.ID, &kind, &it.OwnerID, &it.Title, &it.Description, &it.Location, &status, &it.CreatedAt, &it.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	it.Kind = Kind(kind)
	it.Status = Status(status)
	return it, nil
}

// Columns is the canonical column list used by ScanItem.
func Columns() string {
	return itemColumns
}

// FindByID loads one item without locking.
func (r *Repository) FindByID(ctx context.Context, id int64) (Item, error) {
	return ScanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
}

// FindAll lists items matching filter, newest first.
func (r *Repository) FindAll(ctx context.Context, filter Filter) ([]Item, int, error) {
	var where []string
	var args []any
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		where = append(where, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM items`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM items%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		itemColumns, clause, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []Item{}
	for rows.Next() {
		it, err := ScanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, it)
	}
	return out, total, rows.Err()
}

// Insert stores a new ACTIVE item.
func (r *Repository) Insert(ctx context.Context, item Item) (Item, error) {
	return ScanItem(r.pool.QueryRow(ctx, `INSERT INTO items (kind, owner_id, title, description, location, status)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+itemColumns,
		string(item.Kind), item.OwnerID, item.Title, item.Description, item.Location, string(item.Status)))
}

func (t *txRepository) LockItem(ctx context.Context, id int64) (Item, error) {
	return ScanItem(t.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepository) SetStatus(ctx context.Context, id int64, status Status) error {
	_, err := t.tx.Exec(ctx, `UPDATE items SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	return err
}

func (t *txRepository) DeleteItem(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepository) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.WriteAudit(ctx, t.tx, log)
}
