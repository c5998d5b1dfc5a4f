package profileview

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lostfound/lostfound/internal/items"
	"github.com/lostfound/lostfound/internal/platform/db"
	"github.com/lostfound/lostfound/internal/shared"
)

var (
	// ErrNotFound indicates the request does not exist.
	ErrNotFound = errors.New("profileview: request not found")
	// ErrItemNotFound indicates the item does not exist.
	ErrItemNotFound = errors.New("profileview: item not found")
)

// RepositoryPort defines profile-view persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	FindItem(ctx context.Context, itemID int64) (items.Item, error)
	HasInterestProof(ctx context.Context, interestID, itemID, requesterID int64) (bool, error)
	HasChatProof(ctx context.Context, chatMessageID, itemID, requesterID, ownerID int64) (bool, error)
	Insert(ctx context.Context, req Request) (Request, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]Request, error)
	ListByRequester(ctx context.Context, requesterID int64) ([]Request, error)
	HasApproved(ctx context.Context, ownerID, viewerID int64) (bool, error)
}

// TxRepository mutates a request under its row lock.
type TxRepository interface {
	LockRequest(ctx context.Context, id int64) (Request, error)
	SetStatus(ctx context.Context, id int64, status Status) (Request, error)
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// Repository persists profile-view requests in PostgreSQL.
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

const requestColumns = `id, item_id, owner_id, requester_id, interest_id, chat_message_id, status, created_at, updated_at, decided_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (Request, error) {
	var req Request
	err := row.Scan(&req.ID, &req.ItemID, &req.OwnerID, &req.RequesterID, &req.InterestID, &req.ChatMessageID,
		&req.Status, &req.CreatedAt, &req.UpdatedAt, &req.DecidedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	return req, err
}

// FindItem loads the item the request is about.
func (r *Repository) FindItem(ctx context.Context, itemID int64) (items.Item, error) {
	it, err := items.ScanItem(r.pool.QueryRow(ctx, `SELECT `+items.Columns()+` FROM items WHERE id = $1`, itemID))
	if errors.Is(err, items.ErrNotFound) {
		return items.Item{}, ErrItemNotFound
	}
	return it, err
}

// HasInterestProof reports whether the interest was made by requesterID on itemID.
func (r *Repository) HasInterestProof(ctx context.Context, interestID, itemID, requesterID int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM interests WHERE id = $1 AND item_id = $2 AND user_id = $3)`,
		interestID, itemID, requesterID).Scan(&ok)
	return ok, err
}

// HasChatProof reports whether the message on itemID was exchanged between the two users.
func (r *Repository) HasChatProof(ctx context.Context, chatMessageID, itemID, requesterID, ownerID int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM chat_messages
		WHERE id = $1 AND item_id = $2
		  AND ((sender_id = $3 AND recipient_id = $4) OR (sender_id = $4 AND recipient_id = $3)))`,
		chatMessageID, itemID, requesterID, ownerID).Scan(&ok)
	return ok, err
}

// Insert stores a PENDING request.
func (r *Repository) Insert(ctx context.Context, req Request) (Request, error) {
	created, err := scanRequest(r.pool.QueryRow(ctx, `INSERT INTO profile_view_requests
		(item_id, owner_id, requester_id, interest_id, chat_message_id, status)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+requestColumns,
		req.ItemID, req.OwnerID, req.RequesterID, req.InterestID, req.ChatMessageID, StatusPending))
	if err != nil {
		return Request{}, insertErr(err, req)
	}
	return created, nil
}

// Foreign keys of the profile_view_requests table.
const (
	fkItem        = "profile_view_requests_item_id_fkey"
	fkOwner       = "profile_view_requests_owner_id_fkey"
	fkRequester   = "profile_view_requests_requester_id_fkey"
	fkInterest    = "profile_view_requests_interest_id_fkey"
	fkChatMessage = "profile_view_requests_chat_message_id_fkey"
)

func insertErr(err error, req Request) error {
	switch {
	case db.IsUniqueViolation(err):
		return shared.Conflict(shared.ReasonDuplicateRequest, "an open request for item %d already exists", req.ItemID)
	case db.IsForeignKeyViolation(err, fkItem):
		return ErrItemNotFound
	case db.IsForeignKeyViolation(err, fkOwner, fkRequester):
		return shared.NotFound(shared.ReasonUser, "owner %d or requester %d not found", req.OwnerID, req.RequesterID)
	case db.IsForeignKeyViolation(err, fkInterest):
		return shared.NotFound(shared.ReasonInterest, "interest not found")
	case db.IsForeignKeyViolation(err, fkChatMessage):
		return shared.NotFound(shared.ReasonChatMessage, "chat message not found")
	case db.IsForeignKeyViolation(err):
		return shared.NotFound(shared.ReasonRequest, "a referenced record of item %d no longer exists", req.ItemID)
	default:
		return err
	}
}

func (r *Repository) list(ctx context.Context, query string, arg int64) ([]Request, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// ListByOwner returns requests addressed to ownerID, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID int64) ([]Request, error) {
	return r.list(ctx, `SELECT `+requestColumns+` FROM profile_view_requests WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`, ownerID)
}

// ListByRequester returns requests made by requesterID, newest first.
func (r *Repository) ListByRequester(ctx context.Context, requesterID int64) ([]Request, error) {
	return r.list(ctx, `SELECT `+requestColumns+` FROM profile_view_requests WHERE requester_id = $1 ORDER BY created_at DESC, id DESC`, requesterID)
}

// HasApproved reports whether viewerID holds an approved request from ownerID.
func (r *Repository) HasApproved(ctx context.Context, ownerID, viewerID int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM profile_view_requests WHERE owner_id = $1 AND requester_id = $2 AND status = $3)`,
		ownerID, viewerID, StatusApproved).Scan(&ok)
	return ok, err
}

func (t *txRepository) LockRequest(ctx context.Context, id int64) (Request, error) {
	return scanRequest(t.tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM profile_view_requests WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepository) SetStatus(ctx context.Context, id int64, status Status) (Request, error) {
	return scanRequest(t.tx.QueryRow(ctx, `UPDATE profile_view_requests
		SET status = $2, updated_at = NOW(), decided_at = NOW()
		WHERE id = $1 RETURNING `+requestColumns, id, status))
}

func (t *txRepository) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.WriteAudit(ctx, t.tx, log)
}
