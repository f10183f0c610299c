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

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ifrs-ledger/internal/accounting"
	"github.com/odyssey-erp/ifrs-ledger/internal/app"
	"github.com/odyssey-erp/ifrs-ledger/internal/assets"
	"github.com/odyssey-erp/ifrs-ledger/internal/integration"
	"github.com/odyssey-erp/ifrs-ledger/internal/inventory"
	"github.com/odyssey-erp/ifrs-ledger/internal/observability"
	"github.com/odyssey-erp/ifrs-ledger/internal/platform/cache"
	"github.com/odyssey-erp/ifrs-ledger/internal/platform/db"
	"github.com/odyssey-erp/ifrs-ledger/internal/prepaid"
	"github.com/odyssey-erp/ifrs-ledger/internal/shared"
	"github.com/odyssey-erp/ifrs-ledger/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, MaxConnLifetime: cfg.PGMaxConnLifetime})
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
	locker := cache.NewLocker(redisClient)

	metrics := observability.NewMetrics()

	ledger := accounting.NewService(accounting.NewRepository(pool), shared.NewAuditLogger(pool), metrics.Ledger())
	hooks := integration.NewHooks(ledger,
		integration.WithVATRate(cfg.VATRate),
		integration.WithCurrency(cfg.Currency),
		integration.WithLogger(logger),
	)

	depreciation := assets.NewService(assets.NewRepository(pool), hooks, locker, assets.ServiceConfig{
		DefaultDecliningRate: cfg.DepreciationDefaultRate,
		LockTTL:              cfg.LockTTL,
		PeriodsPerYear:       cfg.DepreciationPeriodsPerYear,
		Currency:             cfg.Currency,
	}, logger)
	amortization := prepaid.NewService(prepaid.NewRepository(pool), hooks, locker, cfg.Currency, logger)
	costing := inventory.NewService(hooks, logger)

	depreciationJob := jobs.NewDepreciationRunJob(depreciation, ledger, logger, metrics.Jobs())
	amortizationJob := jobs.NewAmortizationRunJob(amortization, ledger, logger, metrics.Jobs())
	integrityJob := jobs.NewGLIntegrityJob(ledger, locker, cfg.IntegrityParallelism, logger, metrics.Jobs())
	inventoryJob := jobs.NewInventoryCloseJob(costing, logger, metrics.Jobs())

	depreciationTask, err := jobs.NewDepreciationRunTask(0, "")
	if err != nil {
		logger.Error("build depreciation task", slog.Any("error", err))
		os.Exit(1)
	}
	amortizationTask, err := jobs.NewAmortizationRunTask(0, "")
	if err != nil {
		logger.Error("build amortization task", slog.Any("error", err))
		os.Exit(1)
	}
	integrityTask, err := jobs.NewLedgerIntegrityTask(0)
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDepreciationRun, Handler: depreciationJob.Handle},
			{Type: jobs.TaskAmortizationRun, Handler: amortizationJob.Handle},
			{Type: jobs.TaskLedgerIntegrity, Handler: integrityJob.Handle},
			{Type: jobs.TaskInventoryClose, Handler: inventoryJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.DepreciationCron, Task: depreciationTask, Options: []asynq.Option{asynq.MaxRetry(5)}},
			{Spec: cfg.AmortizationCron, Task: amortizationTask, Options: []asynq.Option{asynq.MaxRetry(5)}},
			{Spec: cfg.GLIntegrityCron, Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	inspector := asynq.NewInspector(redisOpts)
	defer func() { _ = inspector.Close() }()

	router := chi.NewRouter()
	router.Use(metrics.Middleware)
	router.Handle("/metrics", metrics.Handler())
	jobs.NewHandler(inspector, logger).MountRoutes(router)

	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics listening", slog.String("addr", cfg.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", slog.Any("error", err))
			stop()
		}
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown", slog.Any("error", err))
	}
}
