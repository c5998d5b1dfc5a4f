package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lostfound/lostfound/internal/app"
	jobmetrics "github.com/lostfound/lostfound/internal/jobs"
	"github.com/lostfound/lostfound/internal/platform/db"
	"github.com/lostfound/lostfound/internal/rbac"
	"github.com/lostfound/lostfound/internal/users"
	"github.com/lostfound/lostfound/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolConfig{})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)
	directory := users.NewService(users.NewRepository(pool), nil, nil, nil, users.ServiceConfig{}, logger)

	notifyJob := jobs.NewNotifyJob(directory, jobs.LogMailer{Logger: logger}, logger, metrics)
	verifyJob := jobs.NewCatalogVerifyJob(rbac.NewRepository(pool), logger, metrics)

	verifyTask, err := jobs.NewCatalogVerifyTask(time.Now().UTC())
	if err != nil {
		logger.Error("build catalog verify task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAssignmentNotify, Handler: notifyJob.HandleAssignment},
			{Type: jobs.TaskProfileViewNotify, Handler: notifyJob.HandleProfileView},
			{Type: jobs.TaskCatalogVerify, Handler: verifyJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: jobs.CatalogVerifySchedule, Task: verifyTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
