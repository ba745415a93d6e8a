package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/meridian-ip/meridian/internal/adminroles"
	"github.com/meridian-ip/meridian/internal/app"
	"github.com/meridian-ip/meridian/internal/authz"
	"github.com/meridian-ip/meridian/internal/authz/catalog"
	"github.com/meridian-ip/meridian/internal/platform/cache"
	"github.com/meridian-ip/meridian/internal/platform/db"
	"github.com/meridian-ip/meridian/internal/shared"
	"github.com/meridian-ip/meridian/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	cat := catalog.Default()
	auditLogger := shared.NewAuditLogger(pool, logger)
	authzCache := authz.NewCache(redisClient, cfg.PermissionCacheTTL, cfg.RoleViewCacheTTL, logger)
	resolver := authz.NewResolver(authz.NewPGStore(pool), cat, authzCache, logger)

	adminRolesRepo := adminroles.NewRepository(pool)
	adminRolesService := adminroles.NewService(adminRolesRepo, cat, resolver, auditLogger, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRoleExpirySweep, Handler: jobs.NewRoleExpirySweepHandler(adminRolesService, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.RoleExpirySweepInterval, Task: jobs.NewRoleExpirySweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
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
