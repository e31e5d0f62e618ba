package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/fakturio/fakturio/internal/received"
)

// NewOCRProcessHandler returns the handler that re-runs ingestion for a
// stored document. Extraction failures do not fail the task: the
// ingestion service stores a sentinel record instead, and only
// persistence or storage errors trigger a retry.
func NewOCRProcessHandler(svc *received.Service, logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, t *asynq.Task) error {
		var payload OCRProcessPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		res, err := svc.IngestStored(ctx, payload.Location, payload.Filename, payload.MIMEType, payload.ActorID)
		if err != nil {
			logger.Error("jobs: stored document ingestion failed",
				slog.String("location", payload.Location),
				slog.Any("error", err))
			return err
		}
		logger.Info("jobs: stored document ingested",
			slog.String("location", payload.Location),
			slog.Int64("invoice_id", res.Invoice.ID),
			slog.Bool("duplicated", res.Duplicated))
		return nil
	}
}
