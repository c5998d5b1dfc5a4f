package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/lostfound/lostfound/internal/jobs"
	"github.com/lostfound/lostfound/internal/rbac"
)

const (
	// TaskCatalogVerify checks that the stored permission graph still builds.
	TaskCatalogVerify = "rbac:catalog_verify"
	// CatalogVerifySchedule runs the check hourly.
	CatalogVerifySchedule = "@every 1h"
)

// CatalogVerifyPayload carries scheduling metadata.
type CatalogVerifyPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewCatalogVerifyTask constructs an Asynq task for the catalog check.
func NewCatalogVerifyTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(CatalogVerifyPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogVerify, body, asynq.Queue(QueueDefault), asynq.MaxRetry(0)), nil
}

// SnapshotLoader reads the committed permission catalog.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context) (rbac.Snapshot, error)
}

// CatalogVerifyJob rebuilds the catalog from storage and reports graphs that
// no longer validate.
type CatalogVerifyJob struct {
	Loader  SnapshotLoader
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCatalogVerifyJob constructs the job handler.
func NewCatalogVerifyJob(loader SnapshotLoader, logger *slog.Logger, metrics *jobmetrics.Metrics) *CatalogVerifyJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogVerifyJob{Loader: loader, Logger: logger, Metrics: metrics}
}

// Handle executes the check.
func (j *CatalogVerifyJob) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.Metrics.Track(TaskCatalogVerify)
	snap, err := j.Loader.LoadSnapshot(ctx)
	if err != nil {
		return tracker.End(fmt.Errorf("load catalog: %w", err))
	}
	catalog, err := rbac.NewCatalog(snap.Version, snap.Permissions, snap.Implications)
	if err != nil {
		j.Logger.Error("permission catalog invalid", slog.Any("error", err), slog.Int64("version", snap.Version))
		return tracker.End(err)
	}
	j.Logger.Info("permission catalog verified",
		slog.String("job", TaskCatalogVerify),
		slog.Int64("version", catalog.Version()),
		slog.Int("permissions", len(catalog.Names())))
	return tracker.End(nil)
}
