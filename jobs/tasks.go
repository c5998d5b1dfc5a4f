package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAssignmentNotify tells a receiver they were chosen for an item.
	TaskAssignmentNotify = "assignment:notify"
	// TaskProfileViewNotify tells the other party about a profile-view request change.
	TaskProfileViewNotify = "profileview:notify"
)

// taskNamespace seeds deterministic task ids so a retried enqueue of the same
// event is deduplicated by asynq.
var taskNamespace = uuid.MustParse("5b1f3c52-8a8e-4c38-9d0e-6f0f7d1c2a41")

func taskID(kind string, parts ...any) string {
	return uuid.NewSHA1(taskNamespace, []byte(kind+fmt.Sprint(parts...))).String()
}

// AssignmentNotifyPayload describes a committed assignment.
type AssignmentNotifyPayload struct {
	ItemID     int64 `json:"item_id"`
	InterestID int64 `json:"interest_id"`
	ReceiverID int64 `json:"receiver_id"`
	AssignedBy int64 `json:"assigned_by"`
}

// NewAssignmentNotifyTask constructs an Asynq task.
func NewAssignmentNotifyTask(payload AssignmentNotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAssignmentNotify, data,
		asynq.Queue(QueueDefault),
		asynq.TaskID(taskID(TaskAssignmentNotify, payload.InterestID)),
		asynq.MaxRetry(5)), nil
}

// ProfileViewNotifyPayload describes a profile-view request event.
type ProfileViewNotifyPayload struct {
	RequestID   int64  `json:"request_id"`
	ItemID      int64  `json:"item_id"`
	OwnerID     int64  `json:"owner_id"`
	RequesterID int64  `json:"requester_id"`
	Status      string `json:"status"`
}

// Recipient returns who is told about the event: the owner when a request
// is opened and the requester for every decision.
func (p ProfileViewNotifyPayload) Recipient() int64 {
	if p.Status == "PENDING" {
		return p.OwnerID
	}
	return p.RequesterID
}

// NewProfileViewNotifyTask constructs an Asynq task.
func NewProfileViewNotifyTask(payload ProfileViewNotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProfileViewNotify, data,
		asynq.Queue(QueueDefault),
		asynq.TaskID(taskID(TaskProfileViewNotify, payload.RequestID, payload.Status)),
		asynq.MaxRetry(5)), nil
}

// Message is an outbound notification.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of delivering them.
type LogMailer struct {
	Logger *slog.Logger
}

// Send logs msg.
func (m LogMailer) Send(ctx context.Context, msg Message) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification", slog.String("to", msg.To), slog.String("subject", msg.Subject))
	return nil
}
