package assignment

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lostfound/lostfound/internal/interests"
	"github.com/lostfound/lostfound/internal/items"
	"github.com/lostfound/lostfound/internal/platform/db"
	"github.com/lostfound/lostfound/internal/shared"
)

// Lookup errors returned by TxRepository.
var (
	ErrInterestNotFound = errors.New("assignment: interest not found")
	ErrItemNotFound     = errors.New("assignment: item not found")
)

// RepositoryPort opens the assignment transaction.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository holds the item row lock for the whole assignment.
type TxRepository interface {
	FindInterest(ctx context.Context, id int64) (interests.Interest, error)
	LockItem(ctx context.Context, id int64) (items.Item, error)
	UserExists(ctx context.Context, id int64) (bool, error)
	HasAssignment(ctx context.Context, itemID int64) (bool, error)
	MarkAssigned(ctx context.Context, interestID, actorID int64) error
	CompleteItem(ctx context.Context, itemID int64) error
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// Repository implements RepositoryPort on PostgreSQL.
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

// WithTx runs fn in a read-committed transaction. Under read committed a
// caller blocked on the item lock re-reads the row once the holder commits,
// so it observes COMPLETED instead of failing with a serialization error.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err, "interests_one_assignment_per_item"):
		return shared.Conflict(shared.ReasonAlreadyAssigned, "item already has an assigned receiver")
	case db.IsSerializationFailure(err):
		return shared.Conflict(shared.ReasonSerialization, "concurrent assignment, retry")
	default:
		return err
	}
}

func (t *txRepository) FindInterest(ctx context.Context, id int64) (interests.Interest, error) {
	in, err := interests.ScanInterest(t.tx.QueryRow(ctx, `SELECT `+interests.Columns()+` FROM interests WHERE id = $1`, id))
	if errors.Is(err, interests.ErrNotFound) {
		return interests.Interest{}, ErrInterestNotFound
	}
	return in, err
}

func (t *txRepository) LockItem(ctx context.Context, id int64) (items.Item, error) {
	it, err := items.ScanItem(t.tx.QueryRow(ctx, `SELECT `+items.Columns()+` FROM items WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, items.ErrNotFound) {
		return items.Item{}, ErrItemNotFound
	}
	return it, err
}

func (t *txRepository) UserExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (t *txRepository) HasAssignment(ctx context.Context, itemID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM interests WHERE item_id = $1 AND assigned_by IS NOT NULL)`, itemID).Scan(&exists)
	return exists, err
}

func (t *txRepository) MarkAssigned(ctx context.Context, interestID, actorID int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE interests SET assigned_by = $2 WHERE id = $1 AND assigned_by IS NULL`, interestID, actorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return shared.Conflict(shared.ReasonAlreadyAssigned, "interest %d already assigned", interestID)
	}
	return nil
}

func (t *txRepository) CompleteItem(ctx context.Context, itemID int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE items SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3`,
		itemID, string(items.StatusCompleted), string(items.StatusActive))
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return shared.InvalidState(shared.ReasonItemNotActive, "item %d is no longer active", itemID)
	}
	return nil
}

func (t *txRepository) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.WriteAudit(ctx, t.tx, log)
}
