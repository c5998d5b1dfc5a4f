package items

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lostfound/lostfound/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	items  map[int64]Item
	audits []shared.AuditLog
	nextID int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[int64]Item)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make(map[int64]Item, len(r.items))
	for id, it := range r.items {
		snapshot[id] = it
	}
	audits := len(r.audits)
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.items = snapshot
		r.audits = r.audits[:audits]
		return err
	}
	return nil
}

func (r *memoryRepo) FindByID(ctx context.Context, id int64) (Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return it, nil
}

func (r *memoryRepo) FindAll(ctx context.Context, filter Filter) ([]Item, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Item
	for id := int64(1); id <= r.nextID; id++ {
		it, ok := r.items[id]
		if !ok {
			continue
		}
		if filter.Kind != "" && it.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && it.Status != filter.Status {
			continue
		}
		if filter.OwnerID != nil && !it.OwnedBy(*filter.OwnerID) {
			continue
		}
		out = append(out, it)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Insert(ctx context.Context, item Item) (Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	item.ID = r.nextID
	item.CreatedAt = time.Now()
	r.items[item.ID] = item
	return item, nil
}

func (tx *memoryTx) LockItem(ctx context.Context, id int64) (Item, error) {
	it, ok := tx.repo.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return it, nil
}

func (tx *memoryTx) SetStatus(ctx context.Context, id int64, status Status) error {
	it := tx.repo.items[id]
	it.Status = status
	tx.repo.items[id] = it
	return nil
}

func (tx *memoryTx) DeleteItem(ctx context.Context, id int64) error {
	delete(tx.repo.items, id)
	return nil
}

func (tx *memoryTx) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	tx.repo.audits = append(tx.repo.audits, log)
	return nil
}

type stubAuthz map[int64][]string

func (s stubAuthz) Allowed(ctx context.Context, p shared.Principal, required ...string) (bool, error) {
	if !p.IsActive {
		return false, nil
	}
	for _, g := range s[p.ID] {
		for _, r := range required {
			if g == r {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s stubAuthz) Authorize(ctx context.Context, p shared.Principal, required ...string) error {
	ok, _ := s.Allowed(ctx, p, required...)
	if ok {
		return nil
	}
	if !p.IsActive {
		return shared.Forbidden(shared.ReasonInactive, "inactive")
	}
	return shared.Forbidden(shared.ReasonRoleDenied, "denied")
}

const (
	ownerID  = int64(1)
	adminID  = int64(2)
	memberID = int64(3)
)

func principal(id int64) shared.Principal {
	return shared.Principal{ID: id, IsActive: true}
}

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	authz := stubAuthz{
		ownerID:  {shared.PermItemCreate},
		adminID:  {shared.PermItemCreate, shared.PermItemFreeCreate, shared.PermItemReject, shared.PermItemDelete},
		memberID: {shared.PermItemCreate},
	}
	return NewService(repo, authz, nil), repo
}

func TestCreateItem(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	found, err := svc.Create(ctx, principal(ownerID), CreateRequest{Kind: KindFound, Title: " Blue umbrella "})
	require.NoError(t, err)
	require.Equal(t, StatusActive, found.Status)
	require.True(t, found.OwnedBy(ownerID))
	require.Equal(t, "Blue umbrella", found.Title)

	_, err = svc.Create(ctx, principal(ownerID), CreateRequest{Kind: KindFree, Title: "Chair"})
	require.ErrorIs(t, err, shared.ErrForbidden)

	free, err := svc.Create(ctx, principal(adminID), CreateRequest{Kind: KindFree, Title: "Chair"})
	require.NoError(t, err)
	require.Nil(t, free.OwnerID)

	_, err = svc.Create(ctx, principal(ownerID), CreateRequest{Kind: "STOLEN", Title: "x"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRejectTransitions(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	item, err := svc.Create(ctx, principal(ownerID), CreateRequest{Kind: KindLost, Title: "Keys"})
	require.NoError(t, err)

	_, err = svc.Reject(ctx, principal(memberID), item.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)
	require.Equal(t, shared.ReasonRoleDenied, shared.ReasonOf(err))

	rejected, err := svc.Reject(ctx, principal(ownerID), item.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Len(t, repo.audits, 1)

	_, err = svc.Reject(ctx, principal(adminID), item.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	require.Equal(t, shared.ReasonItemNotActive, shared.ReasonOf(err))

	_, err = svc.Reject(ctx, principal(adminID), 999)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRejectByModerator(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	item, err := svc.Create(ctx, principal(ownerID), CreateRequest{Kind: KindFound, Title: "Wallet"})
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, principal(adminID), item.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
}

func TestTerminalStatesAreFinal(t *testing.T) {
	for _, from := range []Status{StatusCompleted, StatusRejected} {
		for _, to := range []Status{StatusActive, StatusCompleted, StatusRejected} {
			require.False(t, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
	require.True(t, StatusActive.CanTransition(StatusCompleted))
	require.False(t, StatusActive.CanTransition(StatusActive))
}

func TestDeleteItem(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	item, err := svc.Create(ctx, principal(ownerID), CreateRequest{Kind: KindLost, Title: "Scarf"})
	require.NoError(t, err)

	err = svc.Delete(ctx, principal(ownerID), item.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)

	require.NoError(t, svc.Delete(ctx, principal(adminID), item.ID))
	_, err = svc.FindByID(ctx, item.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Equal(t, shared.AuditItemDelete, repo.audits[0].Action)
}

func TestFindAllFilters(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, err := svc.Create(ctx, principal(ownerID), CreateRequest{Kind: KindLost, Title: "a"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, principal(memberID), CreateRequest{Kind: KindFound, Title: "b"})
	require.NoError(t, err)

	found, total, err := svc.FindAll(ctx, Filter{Kind: KindFound})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "b", found[0].Title)

	owner := ownerID
	mine, _, err := svc.FindAll(ctx, Filter{OwnerID: &owner})
	require.NoError(t, err)
	require.Len(t, mine, 1)

	_, _, err = svc.FindAll(ctx, Filter{Status: "LOST"})
	require.ErrorIs(t, err, shared.ErrValidation)
}
