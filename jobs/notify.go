package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/lostfound/lostfound/internal/jobs"
)

// Directory resolves contact details of users.
type Directory interface {
	LookupContact(ctx context.Context, userID int64) (email, name string, err error)
}

// NotifyJob delivers assignment and profile-view notifications.
type NotifyJob struct {
	Directory Directory
	Mailer    Mailer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewNotifyJob constructs the job handler.
func NewNotifyJob(directory Directory, mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *NotifyJob {
	if logger == nil {
		logger = slog.Default()
	}
	if mailer == nil {
		mailer = LogMailer{Logger: logger}
	}
	return &NotifyJob{Directory: directory, Mailer: mailer, Logger: logger, Metrics: metrics}
}

// HandleAssignment processes TaskAssignmentNotify tasks.
func (j *NotifyJob) HandleAssignment(ctx context.Context, t *asynq.Task) error {
	tracker := j.Metrics.Track(TaskAssignmentNotify)
	var payload AssignmentNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry))
	}
	email, name, err := j.Directory.LookupContact(ctx, payload.ReceiverID)
	if err != nil {
		return tracker.End(err)
	}
	err = j.Mailer.Send(ctx, Message{
		To:      email,
		Subject: "You have been chosen as the receiver",
		Body:    fmt.Sprintf("Hi %s, item #%d has been assigned to you.", name, payload.ItemID),
	})
	if err == nil {
		j.Metrics.AddNotification(TaskAssignmentNotify)
	}
	return tracker.End(err)
}

// HandleProfileView processes TaskProfileViewNotify tasks.
func (j *NotifyJob) HandleProfileView(ctx context.Context, t *asynq.Task) error {
	tracker := j.Metrics.Track(TaskProfileViewNotify)
	var payload ProfileViewNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry))
	}
	email, name, err := j.Directory.LookupContact(ctx, payload.Recipient())
	if err != nil {
		return tracker.End(err)
	}
	subject := fmt.Sprintf("Profile view request #%d is %s", payload.RequestID, payload.Status)
	if payload.Status == "PENDING" {
		subject = fmt.Sprintf("New profile view request for item #%d", payload.ItemID)
	}
	err = j.Mailer.Send(ctx, Message{
		To:      email,
		Subject: subject,
		Body:    fmt.Sprintf("Hi %s, %s.", name, subject),
	})
	if err == nil {
		j.Metrics.AddNotification(TaskProfileViewNotify)
	}
	return tracker.End(err)
}
