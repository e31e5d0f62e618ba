package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fakturio/fakturio/internal/shared"
)

// Input carries one document through the cascade. The remote response
// is cached on it so the table stage reuses the first stage's fetch
// instead of calling the service again.
type Input struct {
	Data     []byte
	Filename string
	MIMEType string
	ActorID  int64

	remote *RemoteResponse
}

// Strategy is one extraction attempt. Failures are values, not panics:
// the orchestrator falls through to the next strategy on error.
type Strategy interface {
	Name() string
	Parse(ctx context.Context, in *Input) (Document, error)
}

// Cascade runs the ordered extraction strategies, first success wins.
type Cascade struct {
	strategies []Strategy
	notifier   shared.Notifier
	logger     *slog.Logger
	now        func() time.Time
}

// NewCascade builds the production strategy order: remote OCR, table
// reconstruction from paginated text, local text fallback.
func NewCascade(remote *RemoteClient, extractor TextExtractor, notifier shared.Notifier, logger *slog.Logger) *Cascade {
	if notifier == nil {
		notifier = shared.NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cascade{
		strategies: []Strategy{
			&remoteStrategy{client: remote},
			&tableStrategy{},
			&localStrategy{extractor: extractor},
		},
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// NewCascadeWithStrategies is the test seam for custom strategy lists.
func NewCascadeWithStrategies(notifier shared.Notifier, logger *slog.Logger, strategies ...Strategy) *Cascade {
	c := NewCascade(nil, nil, notifier, logger)
	c.strategies = strategies
	return c
}

// Ingest runs the cascade. It never returns an error: when every
// strategy fails the result is a sentinel document with Mock set and
// the last stage's failure in ErrText, so downstream code stays
// uniform. Callers must check Mock before treating the result as a
// parsed invoice.
func (c *Cascade) Ingest(ctx context.Context, in *Input) Document {
	var lastErr error
	lastStage := ""
	for _, strategy := range c.strategies {
		doc, err := strategy.Parse(ctx, in)
		if err == nil && len(doc.Items) > 0 {
			c.logger.Info("ingest: extraction succeeded",
				slog.String("stage", strategy.Name()),
				slog.String("invoice_number", doc.InvoiceNumber),
				slog.Int("items", len(doc.Items)))
			return doc
		}
		if err == nil {
			// Zero extracted items is a failure, not an empty success.
			err = errNoTableItems
		}
		lastErr = err
		lastStage = strategy.Name()
		c.logger.Warn("ingest: extraction stage failed",
			slog.String("stage", strategy.Name()),
			slog.Any("error", err))
		c.report(ctx, in.ActorID, shared.NotificationLevelWarning,
			fmt.Sprintf("Vytěžení selhalo (%s): %v", strategy.Name(), err),
			map[string]any{"stage": strategy.Name(), "filename": in.Filename})
	}

	failure := fmt.Errorf("ingest: all extraction strategies failed, last stage %s: %w", lastStage, lastErr)
	c.report(ctx, in.ActorID, shared.NotificationLevelError, failure.Error(),
		map[string]any{"stage": lastStage, "filename": in.Filename})
	return c.sentinel(failure)
}

// report delivers a notification, fire and forget. A failing sink must
// never fail the ingestion itself.
func (c *Cascade) report(ctx context.Context, actorID int64, level, message string, meta map[string]any) {
	err := c.notifier.Notify(ctx, shared.Notification{
		Type:     shared.NotificationTypeOCR,
		Level:    level,
		Message:  message,
		Metadata: meta,
		ActorID:  actorID,
	})
	if err != nil {
		c.logger.Warn("ingest: notification delivery failed", slog.Any("error", err))
	}
}

func (c *Cascade) sentinel(cause error) Document {
	now := c.now().UTC()
	zero := int64(0)
	return Document{
		SupplierName:  DefaultSupplierName,
		InvoiceNumber: "TMP-" + uuid.NewString()[:8],
		IssueDate:     &now,
		Currency:      "CZK",
		Source:        SourceSentinel,
		Mock:          true,
		ErrText:       cause.Error(),
		Items: []LineItem{{
			Name:            "Položka z OCR",
			Description:     "OCR nedostupné, použita náhradní data",
			Quantity:        decimal.NewFromInt(1),
			UnitPriceCents:  &zero,
			TotalPriceCents: &zero,
		}},
	}
}

type remoteStrategy struct {
	client *RemoteClient
}

func (s *remoteStrategy) Name() string { return "remote-ocr" }

func (s *remoteStrategy) Parse(ctx context.Context, in *Input) (Document, error) {
	if !s.client.Enabled() {
		return Document{}, errors.New("ingest: remote OCR credential not configured")
	}
	resp, err := s.client.Process(ctx, in.Data, in.Filename, in.MIMEType)
	if err != nil {
		return Document{}, err
	}
	in.remote = resp
	return mapRemoteFlat(resp.Flat)
}

type tableStrategy struct{}

func (s *tableStrategy) Name() string { return "table-extract" }

func (s *tableStrategy) Parse(ctx context.Context, in *Input) (Document, error) {
	if !in.remote.HasPages() {
		return Document{}, errors.New("ingest: no paginated text to reconstruct")
	}
	return ParseMarkdownPages(in.remote.Pages)
}

type localStrategy struct {
	extractor TextExtractor
}

func (s *localStrategy) Name() string { return "local-fallback" }

func (s *localStrategy) Parse(ctx context.Context, in *Input) (Document, error) {
	if s.extractor == nil {
		return Document{}, ErrExtractorUnavailable
	}
	text, err := s.extractor.Extract(ctx, in.Data)
	if err != nil {
		return Document{}, err
	}
	return parseLocalText(text)
}
