package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/lostfound/lostfound/internal/jobs"
	"github.com/lostfound/lostfound/internal/rbac"
)

type contactBook map[int64][2]string

func (b contactBook) LookupContact(_ context.Context, userID int64) (string, string, error) {
	c, ok := b[userID]
	if !ok {
		return "", "", errors.New("unknown user")
	}
	return c[0], c[1], nil
}

type captureMailer struct {
	sent []Message
}

func (m *captureMailer) Send(_ context.Context, msg Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

func TestTaskIDsAreDeterministic(t *testing.T) {
	payload := AssignmentNotifyPayload{ItemID: 1, InterestID: 7, ReceiverID: 3, AssignedBy: 2}
	a, err := NewAssignmentNotifyTask(payload)
	require.NoError(t, err)
	require.Equal(t, TaskAssignmentNotify, a.Type())
	require.Equal(t, taskID(TaskAssignmentNotify, int64(7)), taskID(TaskAssignmentNotify, payload.InterestID))
	require.NotEqual(t,
		taskID(TaskProfileViewNotify, int64(5), "PENDING"),
		taskID(TaskProfileViewNotify, int64(5), "APPROVED"))

	var decoded AssignmentNotifyPayload
	require.NoError(t, json.Unmarshal(a.Payload(), &decoded))
	require.Equal(t, payload, decoded)
}

func TestProfileViewRecipient(t *testing.T) {
	p := ProfileViewNotifyPayload{OwnerID: 1, RequesterID: 2, Status: "PENDING"}
	require.Equal(t, int64(1), p.Recipient())
	p.Status = "APPROVED"
	require.Equal(t, int64(2), p.Recipient())
}

func TestNotifyJobDeliversAssignment(t *testing.T) {
	mailer := &captureMailer{}
	job := NewNotifyJob(contactBook{3: {"dana@example.com", "Dana"}}, mailer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewAssignmentNotifyTask(AssignmentNotifyPayload{ItemID: 9, InterestID: 4, ReceiverID: 3, AssignedBy: 1})
	require.NoError(t, err)

	require.NoError(t, job.HandleAssignment(context.Background(), task))
	require.Len(t, mailer.sent, 1)
	require.Equal(t, "dana@example.com", mailer.sent[0].To)
	require.Contains(t, mailer.sent[0].Body, "#9")
}

func TestNotifyJobRoutesProfileViewByStatus(t *testing.T) {
	mailer := &captureMailer{}
	book := contactBook{1: {"owner@example.com", "Owner"}, 2: {"req@example.com", "Req"}}
	job := NewNotifyJob(book, mailer, nil, nil)

	for _, status := range []string{"PENDING", "DENIED"} {
		task, err := NewProfileViewNotifyTask(ProfileViewNotifyPayload{RequestID: 5, ItemID: 8, OwnerID: 1, RequesterID: 2, Status: status})
		require.NoError(t, err)
		require.NoError(t, job.HandleProfileView(context.Background(), task))
	}
	require.Len(t, mailer.sent, 2)
	require.Equal(t, "owner@example.com", mailer.sent[0].To)
	require.Equal(t, "req@example.com", mailer.sent[1].To)
}

func TestNotifyJobSkipsRetryOnBadPayload(t *testing.T) {
	job := NewNotifyJob(contactBook{}, &captureMailer{}, nil, nil)
	err := job.HandleAssignment(context.Background(), asynq.NewTask(TaskAssignmentNotify, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNotifyJobRetriesOnLookupFailure(t *testing.T) {
	job := NewNotifyJob(contactBook{}, &captureMailer{}, nil, nil)
	task, err := NewAssignmentNotifyTask(AssignmentNotifyPayload{ReceiverID: 42})
	require.NoError(t, err)
	err = job.HandleAssignment(context.Background(), task)
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

type snapshotFunc func(context.Context) (rbac.Snapshot, error)

func (f snapshotFunc) LoadSnapshot(ctx context.Context) (rbac.Snapshot, error) { return f(ctx) }

func TestCatalogVerifyJob(t *testing.T) {
	valid := snapshotFunc(func(context.Context) (rbac.Snapshot, error) {
		return rbac.Snapshot{
			Version:      3,
			Permissions:  []rbac.Permission{{Name: "item_edit"}, {Name: "item_delete"}},
			Implications: []rbac.Implication{{Parent: "item_edit", Child: "item_delete"}},
		}, nil
	})
	require.NoError(t, NewCatalogVerifyJob(valid, nil, nil).Handle(context.Background(), nil))

	cyclic := snapshotFunc(func(context.Context) (rbac.Snapshot, error) {
		return rbac.Snapshot{
			Permissions: []rbac.Permission{{Name: "a"}, {Name: "b"}},
			Implications: []rbac.Implication{
				{Parent: "a", Child: "b"},
				{Parent: "b", Child: "a"},
			},
		}, nil
	})
	err := NewCatalogVerifyJob(cyclic, nil, nil).Handle(context.Background(), nil)
	var cycle *rbac.ErrCatalogCycle
	require.ErrorAs(t, err, &cycle)

	failing := snapshotFunc(func(context.Context) (rbac.Snapshot, error) { return rbac.Snapshot{}, errors.New("db down") })
	require.Error(t, NewCatalogVerifyJob(failing, nil, nil).Handle(context.Background(), nil))
}

func TestClientEnqueueDeduplicates(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	payload := AssignmentNotifyPayload{ItemID: 1, InterestID: 2, ReceiverID: 3, AssignedBy: 4}
	info, err := client.EnqueueAssignmentNotify(context.Background(), payload)
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Equal(t, QueueDefault, info.Queue)

	again, err := client.EnqueueAssignmentNotify(context.Background(), payload)
	require.NoError(t, err)
	require.Nil(t, again)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"queue":"default","pending":0,"retry":0,"failed":0}`, rec.Body.String())
}
