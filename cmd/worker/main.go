package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/fakturio/fakturio/internal/app"
	"github.com/fakturio/fakturio/internal/ingest"
	"github.com/fakturio/fakturio/internal/platform/db"
	"github.com/fakturio/fakturio/internal/received"
	"github.com/fakturio/fakturio/internal/shared"
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

	notifier := shared.NewPGNotifier(pool)

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

	// The worker ingests synchronously; no enqueuer is wired.
	receivedRepo := received.NewRepository(pool)
	receivedService := received.NewService(receivedRepo, cascade, blobs, nil, notifier, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskOCRProcess, Handler: jobs.NewOCRProcessHandler(receivedService, logger)},
			{Type: jobs.TaskOCRSweep, Handler: jobs.NewOCRSweepHandler(receivedService, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 * * * *", Task: jobs.NewOCRSweepTask()},
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
