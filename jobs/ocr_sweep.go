package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/fakturio/fakturio/internal/received"
)

// NewOCRSweepHandler returns the handler behind the periodic sweep. It
// retries extraction for FAILED sentinel invoices whose document is
// still stored.
func NewOCRSweepHandler(svc *received.Service, logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, t *asynq.Task) error {
		recovered, err := svc.ReprocessFailed(ctx)
		if err != nil {
			logger.Error("jobs: failed-extraction sweep aborted",
				slog.Int("recovered", recovered), slog.Any("error", err))
			return err
		}
		if recovered > 0 {
			logger.Info("jobs: failed-extraction sweep recovered invoices",
				slog.Int("recovered", recovered))
		}
		return nil
	}
}
