package interests

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lostfound/lostfound/internal/items"
	"github.com/lostfound/lostfound/internal/platform/db"
	"github.com/lostfound/lostfound/internal/shared"
)

// ErrNotFound indicates the interest or its item does not exist.
var ErrNotFound = errors.New("interests: not found")

// RepositoryPort defines interest persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	FindItem(ctx context.Context, itemID int64) (items.Item, error)
	ListForItem(ctx context.Context, itemID int64) ([]Interest, error)
	ListByUser(ctx context.Context, userID int64) ([]Interest, error)
}

// TxRepository inserts interests while the item row is share-locked.
type TxRepository interface {
	LockItemShared(ctx context.Context, itemID int64) (items.Item, error)
	Insert(ctx context.Context, interest Interest) (Interest, error)
}

// Repository persists interests in PostgreSQL.
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

const interestColumns = `id, item_id, user_id, assigned_by, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// ScanInterest reads an interest selected with the canonical column list.
func ScanInterest(row rowScanner) (Interest, error) {
	var in Interest
	if err := row.Scan(&in.ID, &in.ItemID, &in.UserID, &in.AssignedBy, &in.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Interest{}, ErrNotFound
		}
		return Interest{}, err
	}
	return in, nil
}

// Columns is the canonical column list used by ScanInterest.
func Columns() string {
	return interestColumns
}

func itemErr(err error) error {
	if errors.Is(err, items.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// FindItem loads the item an interest targets.
func (r *Repository) FindItem(ctx context.Context, itemID int64) (items.Item, error) {
	it, err := items.ScanItem(r.pool.QueryRow(ctx, `SELECT `+items.Columns()+` FROM items WHERE id = $1`, itemID))
	return it, itemErr(err)
}

func (r *Repository) list(ctx context.Context, query string, arg int64) ([]Interest, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Interest{}
	for rows.Next() {
		in, err := ScanInterest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// ListForItem returns interests of an item in arrival order.
func (r *Repository) ListForItem(ctx context.Context, itemID int64) ([]Interest, error) {
	return r.list(ctx, `SELECT `+interestColumns+` FROM interests WHERE item_id = $1 ORDER BY created_at, id`, itemID)
}

// ListByUser returns the interests a user expressed, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]Interest, error) {
	return r.list(ctx, `SELECT `+interestColumns+` FROM interests WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
}

func (t *txRepository) LockItemShared(ctx context.Context, itemID int64) (items.Item, error) {
	it, err := items.ScanItem(t.tx.QueryRow(ctx, `SELECT `+items.Columns()+` FROM items WHERE id = $1 FOR SHARE`, itemID))
	return it, itemErr(err)
}

func (t *txRepository) Insert(ctx context.Context, interest Interest) (Interest, error) {
	created, err := ScanInterest(t.tx.QueryRow(ctx, `INSERT INTO interests (item_id, user_id) VALUES ($1, $2) RETURNING `+interestColumns,
		interest.ItemID, interest.UserID))
	if err != nil {
		return Interest{}, insertErr(err, interest)
	}
	return created, nil
}

// Foreign keys of the interests table.
const (
	fkItem = "interests_item_id_fkey"
	fkUser = "interests_user_id_fkey"
)

func insertErr(err error, interest Interest) error {
	switch {
	case db.IsUniqueViolation(err):
		return shared.Conflict(shared.ReasonDuplicateInterest, "interest in item %d already recorded", interest.ItemID)
	case db.IsForeignKeyViolation(err, fkUser):
		return shared.NotFound(shared.ReasonUser, "user %d not found", interest.UserID)
	case db.IsForeignKeyViolation(err, fkItem):
		return shared.NotFound(shared.ReasonItem, "item %d not found", interest.ItemID)
	case db.IsForeignKeyViolation(err):
		return shared.NotFound(shared.ReasonItem, "item %d or user %d not found", interest.ItemID, interest.UserID)
	default:
		return err
	}
}
