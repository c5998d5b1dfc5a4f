package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lostfound/lostfound/cmd/lostfound/cli"
	"github.com/lostfound/lostfound/internal/app"
	"github.com/lostfound/lostfound/internal/assignment"
	"github.com/lostfound/lostfound/internal/auth"
	"github.com/lostfound/lostfound/internal/interests"
	"github.com/lostfound/lostfound/internal/items"
	"github.com/lostfound/lostfound/internal/observability"
	"github.com/lostfound/lostfound/internal/platform/cache"
	"github.com/lostfound/lostfound/internal/platform/db"
	"github.com/lostfound/lostfound/internal/profileview"
	"github.com/lostfound/lostfound/internal/rbac"
	"github.com/lostfound/lostfound/internal/roles"
	"github.com/lostfound/lostfound/internal/users"
	"github.com/lostfound/lostfound/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := runJobsCommand(ctx, redisOpts, os.Args[2:]); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolConfig{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	jobsClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	rbacService := rbac.NewService(rbac.NewRepository(pool), rbac.ServiceConfig{
		RefreshEvery: cfg.CatalogRefreshInterval,
		Notifier:     rbac.NewRedisNotifier(redisClient),
		Observer:     metrics,
		Logger:       logger,
	})
	if _, err := rbacService.Refresh(ctx); err != nil {
		logger.Error("load permission catalog", slog.Any("error", err))
		os.Exit(1)
	}
	go func() {
		if err := rbacService.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("permission catalog watch", slog.Any("error", err))
		}
	}()
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	rolesService := roles.NewService(roles.NewRepository(pool), rbacService, logger)
	profileViewService := profileview.NewService(profileview.NewRepository(pool), jobsClient, logger)
	usersService := users.NewService(users.NewRepository(pool), rolesService, rbacService, profileViewService,
		users.ServiceConfig{DefaultRole: cfg.DefaultRole}, logger)

	authService := auth.NewService(auth.NewRepository(pool), auth.NewRedisRevocations(redisClient), auth.Config{
		Secret: cfg.JWTSecret,
		Issuer: cfg.JWTIssuer,
		TTL:    cfg.JWTTTL,
	}, logger)
	authenticator := &auth.Authenticator{Service: authService, Principals: usersService, Logger: logger}

	itemsService := items.NewService(items.NewRepository(pool), rbacService, logger)
	interestsService := interests.NewService(interests.NewRepository(pool), rbacService, logger)
	coordinator := assignment.NewCoordinator(assignment.NewRepository(pool), rbacService, jobsClient, metrics, logger)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Authenticator:      authenticator,
		Metrics:            metrics,
		AuthHandler:        auth.NewHandler(logger, authService, usersService),
		PermissionsHandler: rbac.NewHandler(logger, rbacService, rbacMiddleware),
		RolesHandler:       roles.NewHandler(logger, rolesService, rbacMiddleware),
		UsersHandler:       users.NewHandler(logger, usersService, rbacMiddleware),
		ItemsHandler:       items.NewHandler(logger, itemsService),
		InterestsHandler:   interests.NewHandler(logger, interestsService, rbacMiddleware),
		AssignmentHandler:  assignment.NewHandler(logger, coordinator),
		ProfileViewHandler: profileview.NewHandler(logger, profileViewService, rbacMiddleware),
		JobHandler:         jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func runJobsCommand(ctx context.Context, opts asynq.RedisClientOpt, args []string) error {
	jobsCLI, err := cli.NewJobsCLI(opts)
	if err != nil {
		return err
	}
	defer func() { _ = jobsCLI.Close() }()

	if len(args) == 0 {
		return errors.New("usage: lostfound jobs trigger <task> | stats | pending")
	}
	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return errors.New("usage: lostfound jobs trigger <task>")
		}
		info, err := jobsCLI.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	case "pending":
		tasks, err := jobsCLI.ListPending(ctx, 20)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			fmt.Printf("%s %s\n", t.ID, t.Type)
		}
	default:
		return fmt.Errorf("unknown jobs command %q", args[0])
	}
	return nil
}
