package profileview

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/lostfound/lostfound/internal/items"
	"github.com/lostfound/lostfound/internal/shared"
	"github.com/lostfound/lostfound/jobs"
)

const (
	ownerID     int64 = 1
	requesterID int64 = 2
	strangerID  int64 = 3
)

type interestRef struct{ itemID, userID int64 }

type chatRef struct{ itemID, sender, recipient int64 }

type memoryRepo struct {
	mu        sync.Mutex
	items     map[int64]items.Item
	interests map[int64]interestRef
	chats     map[int64]chatRef
	requests  map[int64]Request
	audits    []shared.AuditLog
	nextID    int64
	failAudit bool
}

func newMemoryRepo() *memoryRepo {
	owner := ownerID
	return &memoryRepo{
		items: map[int64]items.Item{
			10: {ID: 10, Kind: items.KindFound, Status: items.StatusActive, OwnerID: &owner},
			11: {ID: 11, Kind: items.KindFree, Status: items.StatusActive},
		},
		interests: map[int64]interestRef{
			100: {itemID: 10, userID: requesterID},
			101: {itemID: 10, userID: strangerID},
		},
		chats: map[int64]chatRef{
			200: {itemID: 10, sender: ownerID, recipient: requesterID},
			201: {itemID: 10, sender: strangerID, recipient: ownerID},
		},
		requests: make(map[int64]Request),
	}
}

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make(map[int64]Request, len(r.requests))
	for id, req := range r.requests {
		saved[id] = req
	}
	audits := len(r.audits)
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.requests = saved
		r.audits = r.audits[:audits]
		return err
	}
	return nil
}

func (r *memoryRepo) FindItem(ctx context.Context, itemID int64) (items.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[itemID]
	if !ok {
		return items.Item{}, ErrItemNotFound
	}
	return it, nil
}

func (r *memoryRepo) HasInterestProof(ctx context.Context, interestID, itemID, requester int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.interests[interestID]
	return ok && ref.itemID == itemID && ref.userID == requester, nil
}

func (r *memoryRepo) HasChatProof(ctx context.Context, chatID, itemID, requester, owner int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.chats[chatID]
	if !ok || ref.itemID != itemID {
		return false, nil
	}
	return (ref.sender == requester && ref.recipient == owner) || (ref.sender == owner && ref.recipient == requester), nil
}

func (r *memoryRepo) Insert(ctx context.Context, req Request) (Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.requests {
		if existing.ItemID == req.ItemID && existing.RequesterID == req.RequesterID && existing.Status.Open() {
			return Request{}, shared.Conflict(shared.ReasonDuplicateRequest, "duplicate")
		}
	}
	r.nextID++
	req.ID = r.nextID
	req.Status = StatusPending
	r.requests[req.ID] = req
	return req, nil
}

func (r *memoryRepo) filter(match func(Request) bool) []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Request{}
	for id := int64(1); id <= r.nextID; id++ {
		if req, ok := r.requests[id]; ok && match(req) {
			out = append(out, req)
		}
	}
	return out
}

func (r *memoryRepo) ListByOwner(ctx context.Context, owner int64) ([]Request, error) {
	return r.filter(func(req Request) bool { return req.OwnerID == owner }), nil
}

func (r *memoryRepo) ListByRequester(ctx context.Context, requester int64) ([]Request, error) {
	return r.filter(func(req Request) bool { return req.RequesterID == requester }), nil
}

func (r *memoryRepo) HasApproved(ctx context.Context, owner, viewer int64) (bool, error) {
	return len(r.filter(func(req Request) bool {
		return req.OwnerID == owner && req.RequesterID == viewer && req.Status == StatusApproved
	})) > 0, nil
}

func (tx *memoryTx) LockRequest(ctx context.Context, id int64) (Request, error) {
	req, ok := tx.repo.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return req, nil
}

func (tx *memoryTx) SetStatus(ctx context.Context, id int64, status Status) (Request, error) {
	req := tx.repo.requests[id]
	req.Status = status
	tx.repo.requests[id] = req
	return req, nil
}

func (tx *memoryTx) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	if tx.repo.failAudit {
		return errors.New("audit unavailable")
	}
	tx.repo.audits = append(tx.repo.audits, log)
	return nil
}

type captureEnqueuer struct {
	payloads []jobs.ProfileViewNotifyPayload
}

func (c *captureEnqueuer) EnqueueProfileViewNotify(ctx context.Context, p jobs.ProfileViewNotifyPayload) (*asynq.TaskInfo, error) {
	c.payloads = append(c.payloads, p)
	return &asynq.TaskInfo{Queue: jobs.QueueDefault}, nil
}

func newTestService() (*Service, *memoryRepo, *captureEnqueuer) {
	repo := newMemoryRepo()
	enq := &captureEnqueuer{}
	return NewService(repo, enq, slog.New(slog.NewTextHandler(io.Discard, nil))), repo, enq
}

func principal(id int64) shared.Principal {
	return shared.Principal{ID: id, IsActive: true}
}

func ptr(v int64) *int64 { return &v }

func TestCreateWithInterestProof(t *testing.T) {
	svc, _, enq := newTestService()

	req, err := svc.Create(context.Background(), principal(requesterID), CreateRequest{ItemID: 10, InterestID: ptr(100)})
	require.NoError(t, err)
	require.Equal(t, StatusPending, req.Status)
	require.Equal(t, ownerID, req.OwnerID)
	require.Len(t, enq.payloads, 1)
	require.Equal(t, ownerID, enq.payloads[0].Recipient())
}

func TestCreateWithChatProofEitherDirection(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Create(context.Background(), principal(requesterID), CreateRequest{ItemID: 10, ChatMessageID: ptr(200)})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), principal(strangerID), CreateRequest{ItemID: 10, ChatMessageID: ptr(201)})
	require.NoError(t, err)
}

func TestCreateRejections(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name   string
		actor  int64
		in     CreateRequest
		kind   error
		reason string
	}{
		{"no proof", requesterID, CreateRequest{ItemID: 10}, shared.ErrValidation, ""},
		{"two proofs", requesterID, CreateRequest{ItemID: 10, InterestID: ptr(100), ChatMessageID: ptr(200)}, shared.ErrValidation, ""},
		{"unknown item", requesterID, CreateRequest{ItemID: 99, InterestID: ptr(100)}, shared.ErrNotFound, shared.ReasonItem},
		{"ownerless item", requesterID, CreateRequest{ItemID: 11, InterestID: ptr(100)}, shared.ErrInvalidState, shared.ReasonItemWithoutOwner},
		{"self request", ownerID, CreateRequest{ItemID: 10, InterestID: ptr(100)}, shared.ErrForbidden, shared.ReasonSelfRequest},
		{"interest of someone else", requesterID, CreateRequest{ItemID: 10, InterestID: ptr(101)}, shared.ErrForbidden, shared.ReasonMissingProof},
		{"chat not with owner", requesterID, CreateRequest{ItemID: 10, ChatMessageID: ptr(201)}, shared.ErrForbidden, shared.ReasonMissingProof},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, principal(tc.actor), tc.in)
			require.ErrorIs(t, err, tc.kind)
			require.Equal(t, tc.reason, shared.ReasonOf(err))
		})
	}
}

func TestDuplicateOpenRequestConflicts(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	owner := principal(ownerID)

	first, err := svc.Create(ctx, principal(requesterID), CreateRequest{ItemID: 10, InterestID: ptr(100)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, principal(requesterID), CreateRequest{ItemID: 10, ChatMessageID: ptr(200)})
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Equal(t, shared.ReasonDuplicateRequest, shared.ReasonOf(err))

	_, err = svc.Approve(ctx, owner, first.ID)
	require.NoError(t, err)
	_, err = svc.Create(ctx, principal(requesterID), CreateRequest{ItemID: 10, InterestID: ptr(100)})
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.Revoke(ctx, owner, first.ID)
	require.NoError(t, err)
	_, err = svc.Create(ctx, principal(requesterID), CreateRequest{ItemID: 10, InterestID: ptr(100)})
	require.NoError(t, err)
}

func TestLifecycleAndVisibility(t *testing.T) {
	svc, repo, enq := newTestService()
	ctx := context.Background()
	owner := principal(ownerID)

	req, err := svc.Create(ctx, principal(requesterID), CreateRequest{ItemID: 10, InterestID: ptr(100)})
	require.NoError(t, err)

	_, err = svc.Approve(ctx, principal(strangerID), req.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)
	require.Equal(t, shared.ReasonNotOwner, shared.ReasonOf(err))

	_, err = svc.Revoke(ctx, owner, req.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	approved, err := svc.Approve(ctx, owner, req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	ok, err := svc.CanView(ctx, ownerID, requesterID)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.Deny(ctx, owner, req.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	require.Equal(t, shared.ReasonIllegalTransition, shared.ReasonOf(err))

	revoked, err := svc.Revoke(ctx, owner, req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDenied, revoked.Status)
	ok, err = svc.CanView(ctx, ownerID, requesterID)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = svc.Approve(ctx, owner, req.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	require.Len(t, repo.audits, 2)
	require.Equal(t, shared.AuditProfileViewApprove, repo.audits[0].Action)
	require.Equal(t, shared.AuditProfileViewRevoke, repo.audits[1].Action)
	require.Len(t, enq.payloads, 3)
	require.Equal(t, requesterID, enq.payloads[2].Recipient())
}

func TestManyRequestsMayBeApproved(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	a, err := svc.Create(ctx, principal(requesterID), CreateRequest{ItemID: 10, InterestID: ptr(100)})
	require.NoError(t, err)
	b, err := svc.Create(ctx, principal(strangerID), CreateRequest{ItemID: 10, InterestID: ptr(101)})
	require.NoError(t, err)

	_, err = svc.Approve(ctx, principal(ownerID), a.ID)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, principal(ownerID), b.ID)
	require.NoError(t, err)

	incoming, err := svc.ListIncoming(ctx, principal(ownerID))
	require.NoError(t, err)
	require.Len(t, incoming, 2)
	outgoing, err := svc.ListOutgoing(ctx, principal(strangerID))
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
}

func TestTransitionErrors(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Deny(ctx, principal(ownerID), 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Equal(t, shared.ReasonRequest, shared.ReasonOf(err))

	req, err := svc.Create(ctx, principal(requesterID), CreateRequest{ItemID: 10, InterestID: ptr(100)})
	require.NoError(t, err)

	inactive := principal(ownerID)
	inactive.IsActive = false
	_, err = svc.Approve(ctx, inactive, req.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)

	repo.failAudit = true
	_, err = svc.Approve(ctx, principal(ownerID), req.ID)
	require.ErrorIs(t, err, shared.ErrInternal)
	require.Equal(t, StatusPending, repo.requests[req.ID].Status)
}
