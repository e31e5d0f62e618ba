package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fakturio/fakturio/internal/billing"
	"github.com/fakturio/fakturio/internal/shared"
)

// PeriodGuard rejects writes into locked accounting periods.
type PeriodGuard interface {
	AssertUnlocked(ctx context.Context, month, year int) error
}

// BillingSource computes the period totals the invoice is issued over.
type BillingSource interface {
	Summary(ctx context.Context, organizationID int64, month, year int) (billing.Totals, error)
	InvalidateBillingSummary(ctx context.Context, organizationID int64, month, year int)
}

// WorkMarker stamps the period's work records as billed.
type WorkMarker interface {
	MarkBilled(ctx context.Context, organizationID int64, month, year int) error
}

// InventoryMarker stamps the period's inventory items as invoiced.
type InventoryMarker interface {
	MarkInvoiced(ctx context.Context, organizationID int64, month, year int) error
}

// Service orchestrates invoice generation and lifecycle.
type Service struct {
	repo      RepositoryPort
	guard     PeriodGuard
	billing   BillingSource
	work      WorkMarker
	inventory InventoryMarker
	audit     shared.AuditPort
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo RepositoryPort, guard PeriodGuard, billingSrc BillingSource, work WorkMarker, inv InventoryMarker, audit shared.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		guard:     guard,
		billing:   billingSrc,
		work:      work,
		inventory: inv,
		audit:     audit,
		logger:    logger,
		now:       time.Now,
	}
}

// Generate issues the organization's invoice for one period: period
// guard, one-per-period check, totals from the billing engine, next
// number in the year's sequence. The underlying records are stamped
// billed afterwards; a stamping failure is logged, not rolled back,
// because the issued invoice is already the source of truth.
func (s *Service) Generate(ctx context.Context, organizationID int64, month, year int, actorID int64) (Invoice, error) {
	if err := s.guard.AssertUnlocked(ctx, month, year); err != nil {
		return Invoice{}, err
	}
	if _, err := s.repo.FindForPeriod(ctx, organizationID, month, year); err == nil {
		return Invoice{}, ErrInvoiceExists
	} else if !errors.Is(err, shared.ErrNotFound) {
		return Invoice{}, err
	}

	totals, err := s.billing.Summary(ctx, organizationID, month, year)
	if err != nil {
		return Invoice{}, err
	}

	last, err := s.repo.LastSequence(ctx, year)
	if err != nil {
		return Invoice{}, err
	}
	seq := last + 1

	created, err := s.repo.Create(ctx, Invoice{
		OrganizationID: organizationID,
		Month:          month,
		Year:           year,
		Number:         FormatNumber(month, year, seq),
		Sequence:       seq,
		SubtotalCents:  totals.SubtotalCents,
		VATCents:       totals.VATCents,
		TotalCents:     totals.TotalCents,
		Status:         StatusDraft,
		CreatedBy:      actorID,
	})
	if err != nil {
		return Invoice{}, err
	}

	if s.work != nil {
		if err := s.work.MarkBilled(ctx, organizationID, month, year); err != nil {
			s.logger.Warn("invoices: marking work records billed failed", slog.Any("error", err))
		}
	}
	if s.inventory != nil {
		if err := s.inventory.MarkInvoiced(ctx, organizationID, month, year); err != nil {
			s.logger.Warn("invoices: marking inventory invoiced failed", slog.Any("error", err))
		}
	}
	s.billing.InvalidateBillingSummary(ctx, organizationID, month, year)

	s.recordAudit(ctx, actorID, created, "GENERATE")
	return created, nil
}

// Get returns one invoice.
func (s *Service) Get(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.Find(ctx, id)
}

// List returns the organization's invoices, newest period first.
func (s *Service) List(ctx context.Context, organizationID int64) ([]Invoice, error) {
	return s.repo.List(ctx, organizationID)
}

// Send moves a DRAFT invoice to SENT.
func (s *Service) Send(ctx context.Context, id, actorID int64) (Invoice, error) {
	return s.transition(ctx, id, actorID, StatusSent, StatusDraft)
}

// MarkPaid moves a SENT invoice to PAID.
func (s *Service) MarkPaid(ctx context.Context, id, actorID int64) (Invoice, error) {
	return s.transition(ctx, id, actorID, StatusPaid, StatusSent)
}

// Cancel voids a DRAFT or SENT invoice. Its sequence number is not
// reused.
func (s *Service) Cancel(ctx context.Context, id, actorID int64) (Invoice, error) {
	return s.transition(ctx, id, actorID, StatusCancelled, StatusDraft, StatusSent)
}

func (s *Service) transition(ctx context.Context, id, actorID int64, to string, from ...string) (Invoice, error) {
	current, err := s.repo.Find(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	allowed := false
	for _, f := range from {
		if current.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return Invoice{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, to)
	}
	if err := s.guard.AssertUnlocked(ctx, current.Month, current.Year); err != nil {
		return Invoice{}, err
	}
	updated, err := s.repo.UpdateStatus(ctx, id, to)
	if err != nil {
		return Invoice{}, err
	}
	s.recordAudit(ctx, actorID, updated, to)
	return updated, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, inv Invoice, action string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "IssuedInvoice",
		EntityID: fmt.Sprintf("%d", inv.ID),
		Diff: map[string]any{
			"organization_id": inv.OrganizationID,
			"number":          inv.Number,
			"status":          inv.Status,
		},
		At: s.now(),
	})
	if err != nil {
		s.logger.Warn("invoices: audit record failed", slog.Any("error", err))
	}
}
