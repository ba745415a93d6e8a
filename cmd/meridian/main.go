package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-ip/meridian/internal/adminroles"
	"github.com/meridian-ip/meridian/internal/approvals"
	"github.com/meridian-ip/meridian/internal/app"
	"github.com/meridian-ip/meridian/internal/authz"
	"github.com/meridian-ip/meridian/internal/authz/catalog"
	"github.com/meridian-ip/meridian/internal/platform/cache"
	"github.com/meridian-ip/meridian/internal/platform/db"
	"github.com/meridian-ip/meridian/internal/resources"
	"github.com/meridian-ip/meridian/internal/shared"
	"github.com/meridian-ip/meridian/internal/users"
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
		logger.Error("connect postgres", slog.Any("error", err))
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
	if err := catalog.NewExpander(cat.Hierarchy()).Validate(); err != nil {
		logger.Error("permission hierarchy", slog.Any("error", err))
		os.Exit(1)
	}

	auditLogger := shared.NewAuditLogger(pool, logger)

	authzCache := authz.NewCache(redisClient, cfg.PermissionCacheTTL, cfg.RoleViewCacheTTL, logger)
	resolver := authz.NewResolver(authz.NewPGStore(pool), cat, authzCache, logger)
	evaluator := authz.NewAccessEvaluator(resolver, resources.NewProvider(pool), logger)
	fieldFilter := authz.NewFieldFilter(authz.DefaultFieldPolicies(), logger)
	authzHandler := authz.NewHandler(resolver, evaluator, fieldFilter, logger)

	adminRolesRepo := adminroles.NewRepository(pool)
	adminRolesService := adminroles.NewService(adminRolesRepo, cat, resolver, auditLogger, logger)
	adminRolesHandler := adminroles.NewHandler(adminRolesService, logger)

	approvalEngine := approvals.NewEngine(approvals.DefaultRequirements(), logger)
	approvalsRepo := approvals.NewRepository(pool)
	approvalsService := approvals.NewService(approvalsRepo, approvalEngine, resolver, auditLogger, logger)
	approvalsHandler := approvals.NewHandler(approvalsService, logger)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, resolver, auditLogger, logger)
	usersHandler := users.NewHandler(usersService, logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
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
	jobsHandler := jobs.NewHandler(asynq.NewInspector(redisOpts), jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Resolver:          resolver,
		AuthzHandler:      authzHandler,
		AdminRolesHandler: adminRolesHandler,
		ApprovalsHandler:  approvalsHandler,
		UsersHandler:      usersHandler,
		JobsHandler:       jobsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server run", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
