package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fakturio/fakturio/internal/received"
	"github.com/fakturio/fakturio/internal/shared"
)

// PeriodGuard rejects writes into locked accounting periods. Satisfied
// by the periods service.
type PeriodGuard interface {
	AssertUnlocked(ctx context.Context, month, year int) error
}

// Service coordinates inventory items and line assignment.
type Service struct {
	repo   RepositoryPort
	guard  PeriodGuard
	audit  shared.AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo RepositoryPort, guard PeriodGuard, audit shared.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, guard: guard, audit: audit, logger: logger, now: time.Now}
}

// Get returns one item.
func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	return s.repo.Find(ctx, id)
}

// ListForPeriod returns the organization's items for one billing period.
func (s *Service) ListForPeriod(ctx context.Context, organizationID int64, month, year int) ([]Item, error) {
	return s.repo.ListForPeriod(ctx, organizationID, month, year)
}

// Create stores a manually entered item. The target period must be
// unlocked.
func (s *Service) Create(ctx context.Context, in CreateInput) (Item, error) {
	if in.OrganizationID == 0 {
		return Item{}, errors.New("inventory: organization required")
	}
	if in.Name == "" {
		return Item{}, errors.New("inventory: name required")
	}
	if err := s.guard.AssertUnlocked(ctx, in.Month, in.Year); err != nil {
		return Item{}, err
	}

	qty := in.Quantity
	if qty < 1 {
		qty = 1
	}
	total := in.TotalPriceCents
	if total == 0 && in.UnitPriceCents != 0 {
		total = in.UnitPriceCents * qty
	}

	var created Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.InsertItem(ctx, Item{
			OrganizationID:  in.OrganizationID,
			Name:            in.Name,
			Description:     in.Description,
			ProductCode:     in.ProductCode,
			Quantity:        qty,
			UnitPriceCents:  in.UnitPriceCents,
			TotalPriceCents: total,
			VATRate:         in.VATRate,
			Month:           in.Month,
			Year:            in.Year,
			Status:          StatusManual,
			CreatedBy:       in.ActorID,
		})
		return err
	})
	if err != nil {
		return Item{}, err
	}
	s.recordAudit(ctx, in.ActorID, created, "CREATE")
	return created, nil
}

// Assign turns a received invoice line into an inventory item for the
// organization's billing period. Error order is fixed: locked period
// first, then missing line, then double assignment. The item insert and
// the source-line stamp land in one transaction; the unique
// back-reference makes concurrent assignment of the same line lose with
// ErrAlreadyAssigned rather than create a second item.
func (s *Service) Assign(ctx context.Context, in AssignInput) (Item, error) {
	if in.OrganizationID == 0 {
		return Item{}, errors.New("inventory: organization required")
	}
	if err := s.guard.AssertUnlocked(ctx, in.Month, in.Year); err != nil {
		return Item{}, err
	}

	var created Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		line, err := tx.FindSourceLine(ctx, in.LineItemID)
		if err != nil {
			return err
		}
		if line.Status == received.ItemAssigned {
			return shared.ErrAlreadyAssigned
		}

		item := deriveItem(line, in)
		created, err = tx.InsertItem(ctx, item)
		if err != nil {
			return err
		}
		return tx.MarkSourceAssigned(ctx, line.ID, in.OrganizationID, in.Month, in.Year)
	})
	if err != nil {
		return Item{}, err
	}
	s.recordAudit(ctx, in.ActorID, created, "ASSIGN")
	return created, nil
}

// deriveItem computes quantity and prices from whatever the source
// document carried. Quantity floors to a whole count, minimum one.
// A missing unit price is backfilled from total/quantity; a missing
// total from unit×quantity; with neither known both stay zero so the
// line still lands and can be priced by hand.
func deriveItem(line SourceLine, in AssignInput) Item {
	qty := line.Quantity.Floor().IntPart()
	if qty < 1 {
		qty = 1
	}

	var unit, total int64
	switch {
	case line.UnitPriceCents != nil:
		unit = *line.UnitPriceCents
	case line.TotalPriceCents != nil:
		unit = decimal.NewFromInt(*line.TotalPriceCents).
			Div(decimal.NewFromInt(qty)).Round(0).IntPart()
	}
	if line.TotalPriceCents != nil {
		total = *line.TotalPriceCents
	} else {
		total = unit * qty
	}

	sourceID := line.ID
	return Item{
		OrganizationID:   in.OrganizationID,
		Name:             line.Name,
		Description:      line.Description,
		ProductCode:      line.ProductCode,
		Quantity:         qty,
		UnitPriceCents:   unit,
		TotalPriceCents:  total,
		VATRate:          line.VATRate,
		Month:            in.Month,
		Year:             in.Year,
		Status:           StatusAssigned,
		SourceLineItemID: &sourceID,
		CreatedBy:        in.ActorID,
	}
}

// Update mutates a non-invoiced item; the item's period must be
// unlocked.
func (s *Service) Update(ctx context.Context, item Item, actorID int64) (Item, error) {
	current, err := s.repo.Find(ctx, item.ID)
	if err != nil {
		return Item{}, err
	}
	if current.Status == StatusInvoiced {
		return Item{}, ErrInvoicedImmutable
	}
	if err := s.guard.AssertUnlocked(ctx, current.Month, current.Year); err != nil {
		return Item{}, err
	}
	updated, err := s.repo.Update(ctx, item)
	if err != nil {
		return Item{}, err
	}
	s.recordAudit(ctx, actorID, updated, "UPDATE")
	return updated, nil
}

// Delete removes a non-invoiced item; the item's period must be
// unlocked.
func (s *Service) Delete(ctx context.Context, id, actorID int64) error {
	current, err := s.repo.Find(ctx, id)
	if err != nil {
		return err
	}
	if current.Status == StatusInvoiced {
		return ErrInvoicedImmutable
	}
	if err := s.guard.AssertUnlocked(ctx, current.Month, current.Year); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, current, "DELETE")
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, item Item, action string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "InventoryItem",
		EntityID: fmt.Sprintf("%d", item.ID),
		Diff: map[string]any{
			"organization_id": item.OrganizationID,
			"month":           item.Month,
			"year":            item.Year,
			"status":          item.Status,
		},
		At: s.now(),
	})
	if err != nil {
		s.logger.Warn("inventory: audit record failed", slog.Any("error", err))
	}
}
