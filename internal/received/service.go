package received

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fakturio/fakturio/internal/ingest"
	"github.com/fakturio/fakturio/internal/shared"
)

// ErrHasAssignedItems blocks deleting an invoice whose line items
// already back inventory records.
var ErrHasAssignedItems = errors.New("received: invoice has assigned inventory items")

// ErrInvalidItemStatus rejects a review transition outside the manual
// set. ASSIGNED is reserved for the inventory assignment write.
var ErrInvalidItemStatus = errors.New("received: invalid item status")

// DocumentExtractor runs the ingestion cascade. Satisfied by
// ingest.Cascade; tests substitute a stub.
type DocumentExtractor interface {
	Ingest(ctx context.Context, in *ingest.Input) ingest.Document
}

// TaskEnqueuer dispatches stored documents to the background worker.
type TaskEnqueuer interface {
	EnqueueOCR(ctx context.Context, location, filename, mimetype string, actorID int64) error
}

// Service orchestrates ingestion and the review lifecycle of received
// invoices.
type Service struct {
	repo      RepositoryPort
	extractor DocumentExtractor
	blobs     ingest.BlobStore
	enqueuer  TaskEnqueuer
	notifier  shared.Notifier
	logger    *slog.Logger
}

// NewService constructs a Service instance.
func NewService(repo RepositoryPort, extractor DocumentExtractor, blobs ingest.BlobStore, enqueuer TaskEnqueuer, notifier shared.Notifier, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = shared.NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, extractor: extractor, blobs: blobs, enqueuer: enqueuer, notifier: notifier, logger: logger}
}

// IngestInput is one uploaded document.
type IngestInput struct {
	Data     []byte
	Filename string
	MIMEType string
	ActorID  int64
}

// Result is the ingestion outcome. Duplicated means the document's
// digest matched an existing record; the existing record is returned
// and nothing new was written.
type Result struct {
	Invoice    Invoice
	Duplicated bool
}

// Ingest runs the full synchronous pipeline: extract, canonicalize,
// persist. Machine-readable ISDOC/UBL files bypass the OCR cascade.
// Extraction never fails the call; a sentinel invoice with OCR status
// FAILED is stored instead. Only persistence errors surface.
func (s *Service) Ingest(ctx context.Context, in IngestInput) (Result, error) {
	doc := s.extract(ctx, in)

	inv := fromDocument(doc, in.ActorID)
	inv.Filename = in.Filename
	inv.MIMEType = in.MIMEType

	if s.blobs != nil && len(in.Data) > 0 {
		location, err := s.blobs.Save(ctx, in.Data, filepath.Ext(in.Filename))
		if err != nil {
			s.logger.Warn("received: blob store failed", slog.Any("error", err))
		} else {
			inv.FileLocation = location
		}
	}

	created, err := s.repo.Create(ctx, inv)
	if err != nil {
		if errors.Is(err, shared.ErrDuplicateDocument) {
			existing, findErr := s.repo.FindByDigest(ctx, inv.Digest)
			if findErr != nil {
				return Result{}, fmt.Errorf("received: duplicate lookup: %w", findErr)
			}
			s.logger.Info("received: duplicate document",
				slog.String("digest", inv.Digest),
				slog.Int64("invoice_id", existing.ID))
			return Result{Invoice: existing, Duplicated: true}, nil
		}
		return Result{}, err
	}

	if created.OCRStatus == OCRFailed {
		s.notify(ctx, in.ActorID, shared.NotificationLevelWarning,
			fmt.Sprintf("Faktura %s uložena s náhradními daty", created.InvoiceNumber),
			map[string]any{"invoice_id": created.ID})
	}
	return Result{Invoice: created}, nil
}

// UploadAsync stores the document and hands extraction to the worker.
func (s *Service) UploadAsync(ctx context.Context, in IngestInput) (string, error) {
	if s.blobs == nil || s.enqueuer == nil {
		return "", errors.New("received: async ingestion not configured")
	}
	location, err := s.blobs.Save(ctx, in.Data, filepath.Ext(in.Filename))
	if err != nil {
		return "", fmt.Errorf("received: blob store: %w", err)
	}
	if err := s.enqueuer.EnqueueOCR(ctx, location, in.Filename, in.MIMEType, in.ActorID); err != nil {
		return "", fmt.Errorf("received: enqueue: %w", err)
	}
	return location, nil
}

// IngestStored re-runs ingestion for a stored document. The worker
// calls this from the OCR task handler.
func (s *Service) IngestStored(ctx context.Context, location, filename, mimetype string, actorID int64) (Result, error) {
	if s.blobs == nil {
		return Result{}, errors.New("received: blob store not configured")
	}
	data, err := s.blobs.Load(ctx, location)
	if err != nil {
		return Result{}, err
	}
	res, err := s.Ingest(ctx, IngestInput{Data: data, Filename: filename, MIMEType: mimetype, ActorID: actorID})
	if err != nil {
		return Result{}, err
	}
	res.Invoice.FileLocation = location
	return res, nil
}

// ReprocessFailed retries extraction for FAILED sentinel invoices whose
// original document is still stored. A sentinel is replaced only when
// the retry yields real data and none of its lines back inventory
// records. Returns the number of recovered invoices.
func (s *Service) ReprocessFailed(ctx context.Context) (int, error) {
	if s.blobs == nil {
		return 0, errors.New("received: blob store not configured")
	}
	failed, err := s.repo.ListFailed(ctx)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, inv := range failed {
		data, err := s.blobs.Load(ctx, inv.FileLocation)
		if err != nil {
			s.logger.Warn("received: reprocess blob load failed",
				slog.Int64("invoice_id", inv.ID), slog.Any("error", err))
			continue
		}
		doc := s.extract(ctx, IngestInput{
			Data:     data,
			Filename: inv.Filename,
			MIMEType: inv.MIMEType,
			ActorID:  inv.CreatedBy,
		})
		if doc.Mock {
			continue
		}

		assigned, err := s.repo.HasAssignedItems(ctx, inv.ID)
		if err != nil {
			return recovered, err
		}
		if assigned {
			continue
		}

		replacement := fromDocument(doc, inv.CreatedBy)
		replacement.Filename = inv.Filename
		replacement.MIMEType = inv.MIMEType
		replacement.FileLocation = inv.FileLocation

		if err := s.repo.Delete(ctx, inv.ID); err != nil {
			s.logger.Warn("received: reprocess sentinel delete failed",
				slog.Int64("invoice_id", inv.ID), slog.Any("error", err))
			continue
		}
		created, err := s.repo.Create(ctx, replacement)
		if err != nil {
			if errors.Is(err, shared.ErrDuplicateDocument) {
				recovered++
				continue
			}
			return recovered, err
		}
		recovered++
		s.notify(ctx, inv.CreatedBy, shared.NotificationLevelInfo,
			fmt.Sprintf("Faktura %s úspěšně znovu zpracována", created.InvoiceNumber),
			map[string]any{"invoice_id": created.ID})
	}
	return recovered, nil
}

// extract dispatches between the structural ISDOC mapper and the OCR
// cascade, always producing a document.
func (s *Service) extract(ctx context.Context, in IngestInput) ingest.Document {
	if ingest.IsISDOCFilename(in.Filename) {
		doc, err := ingest.ParseISDOC(in.Data)
		if err == nil {
			return doc
		}
		if !errors.Is(err, ingest.ErrNotISDOC) {
			s.logger.Warn("received: isdoc parse failed, falling back to cascade",
				slog.String("filename", in.Filename), slog.Any("error", err))
		}
	}
	return s.extractor.Ingest(ctx, &ingest.Input{
		Data:     in.Data,
		Filename: in.Filename,
		MIMEType: in.MIMEType,
		ActorID:  in.ActorID,
	})
}

// Get returns one invoice with its items.
func (s *Service) Get(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.Find(ctx, id)
}

// List returns all invoices, newest first.
func (s *Service) List(ctx context.Context) ([]Invoice, error) {
	return s.repo.List(ctx)
}

// MarkReady moves the invoice into the READY state after review.
func (s *Service) MarkReady(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.UpdateStatus(ctx, id, StatusReady)
}

// Archive moves the invoice into the ARCHIVED state.
func (s *Service) Archive(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.UpdateStatus(ctx, id, StatusArchived)
}

// ReviewItem applies a manual review transition to one line item.
func (s *Service) ReviewItem(ctx context.Context, itemID int64, status string) (Item, error) {
	switch status {
	case ItemPending, ItemApproved, ItemRejected:
	default:
		return Item{}, ErrInvalidItemStatus
	}
	return s.repo.UpdateItemStatus(ctx, itemID, status)
}

// Delete removes the invoice unless any line item already backs an
// inventory record.
func (s *Service) Delete(ctx context.Context, id int64) error {
	assigned, err := s.repo.HasAssignedItems(ctx, id)
	if err != nil {
		return err
	}
	if assigned {
		return ErrHasAssignedItems
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) notify(ctx context.Context, actorID int64, level, message string, meta map[string]any) {
	err := s.notifier.Notify(ctx, shared.Notification{
		Type:     shared.NotificationTypeImport,
		Level:    level,
		Message:  message,
		Metadata: meta,
		ActorID:  actorID,
	})
	if err != nil {
		s.logger.Warn("received: notification delivery failed", slog.Any("error", err))
	}
}
