package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fakturio/fakturio/internal/app"
	"github.com/fakturio/fakturio/internal/billing"
	"github.com/fakturio/fakturio/internal/ingest"
	"github.com/fakturio/fakturio/internal/inventory"
	"github.com/fakturio/fakturio/internal/invoices"
	"github.com/fakturio/fakturio/internal/observability"
	"github.com/fakturio/fakturio/internal/organizations"
	"github.com/fakturio/fakturio/internal/periods"
	"github.com/fakturio/fakturio/internal/platform/cache"
	"github.com/fakturio/fakturio/internal/platform/db"
	"github.com/fakturio/fakturio/internal/received"
	"github.com/fakturio/fakturio/internal/recurring"
	"github.com/fakturio/fakturio/internal/shared"
	"github.com/fakturio/fakturio/internal/worklog"
	"github.com/fakturio/fakturio/jobs"
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
		logger.Warn("redis unavailable, billing summaries uncached", slog.Any("error", err))
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	auditLogger := shared.NewAuditLogger(pool)
	notifier := shared.NewPGNotifier(pool)
	metrics := observability.NewMetrics()

	periodsRepo := periods.NewRepository(pool)
	periodsService := periods.NewService(periodsRepo, auditLogger, logger)
	periodsHandler := periods.NewHandler(periodsService)

	organizationsRepo := organizations.NewRepository(pool)
	aresClient := organizations.NewAresClient(cfg.AresBaseURL)
	organizationsService := organizations.NewService(organizationsRepo, aresClient, auditLogger, logger)
	organizationsHandler := organizations.NewHandler(organizationsService)

	remote := ingest.NewRemoteClient(ingest.RemoteConfig{
		BaseURL:    cfg.OCRBaseURL,
		APIKey:     cfg.OCRAPIKey,
		Model:      cfg.OCRModel,
		HTTPClient: &http.Client{Timeout: cfg.OCRTimeout},
		Logger:     logger,
	})
	extractor := &ingest.LazyExtractor{Build: func() (ingest.TextExtractor, error) {
		return ingest.FitzExtractor{}, nil
	}}
	cascade := ingest.NewCascade(remote, extractor, notifier, logger)
	blobs := ingest.FSStore{Dir: cfg.StorageDir}

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	receivedRepo := received.NewRepository(pool)
	receivedService := received.NewService(receivedRepo, cascade, blobs, jobsClient, notifier, logger)
	receivedHandler := received.NewHandler(receivedService)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, periodsService, auditLogger, logger)
	inventoryHandler := inventory.NewHandler(inventoryService)

	worklogRepo := worklog.NewRepository(pool)
	worklogService := worklog.NewService(worklogRepo, periodsService, auditLogger, logger)
	worklogHandler := worklog.NewHandler(worklogService)

	recurringRepo := recurring.NewRepository(pool)
	recurringHandler := recurring.NewHandler(recurringRepo)

	rateCards := billing.NewRateCardSource(pool)
	billingService := billing.NewService(rateCards, worklogRepo, recurringRepo, inventoryRepo, redisClient, logger)
	billingHandler := billing.NewHandler(billingService)

	invoicesRepo := invoices.NewRepository(pool)
	invoicesService := invoices.NewService(invoicesRepo, periodsService, billingService, worklogRepo, inventoryRepo, auditLogger, logger)
	invoicesHandler := invoices.NewHandler(invoicesService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, metrics, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		PeriodsHandler:       periodsHandler,
		OrganizationsHandler: organizationsHandler,
		ReceivedHandler:      receivedHandler,
		InventoryHandler:     inventoryHandler,
		WorklogHandler:       worklogHandler,
		RecurringHandler:     recurringHandler,
		BillingHandler:       billingHandler,
		InvoicesHandler:      invoicesHandler,
		JobHandler:           jobHandler,
		Metrics:              metrics,
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
