package worklog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fakturio/fakturio/internal/shared"
)

// PeriodGuard rejects writes into locked accounting periods.
type PeriodGuard interface {
	AssertUnlocked(ctx context.Context, month, year int) error
}

// Service coordinates work record writes and the period guard. Every
// mutation is guarded by the period of the record's date, not the
// current calendar month.
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

// Create stores a new record in DRAFT state.
func (s *Service) Create(ctx context.Context, rec Record) (Record, error) {
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	month, year := rec.Period()
	if err := s.guard.AssertUnlocked(ctx, month, year); err != nil {
		return Record{}, err
	}
	rec.Status = StatusDraft
	created, err := s.repo.Create(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	s.recordAudit(ctx, rec.CreatedBy, created, "CREATE")
	return created, nil
}

// Update mutates a record. Both the current and the new date's period
// must be unlocked, so a record cannot be moved out of a locked month.
func (s *Service) Update(ctx context.Context, rec Record, actorID int64) (Record, error) {
	current, err := s.repo.Find(ctx, rec.ID)
	if err != nil {
		return Record{}, err
	}
	if current.Status == StatusBilled {
		return Record{}, ErrBilledImmutable
	}
	rec.OrganizationID = current.OrganizationID
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}

	month, year := current.Period()
	if err := s.guard.AssertUnlocked(ctx, month, year); err != nil {
		return Record{}, err
	}
	if newMonth, newYear := rec.Period(); newMonth != month || newYear != year {
		if err := s.guard.AssertUnlocked(ctx, newMonth, newYear); err != nil {
			return Record{}, err
		}
	}

	updated, err := s.repo.Update(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	s.recordAudit(ctx, actorID, updated, "UPDATE")
	return updated, nil
}

// Delete removes a record; its period must be unlocked.
func (s *Service) Delete(ctx context.Context, id, actorID int64) error {
	current, err := s.repo.Find(ctx, id)
	if err != nil {
		return err
	}
	if current.Status == StatusBilled {
		return ErrBilledImmutable
	}
	month, year := current.Period()
	if err := s.guard.AssertUnlocked(ctx, month, year); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, current, "DELETE")
	return nil
}

// Get returns one record.
func (s *Service) Get(ctx context.Context, id int64) (Record, error) {
	return s.repo.Find(ctx, id)
}

// ListForBilling returns the organization's billable records for one
// period, with the billing-org remap applied.
func (s *Service) ListForBilling(ctx context.Context, organizationID int64, month, year int) ([]Record, error) {
	return s.repo.ListForBilling(ctx, organizationID, month, year)
}

// Submit moves a DRAFT record to SUBMITTED.
func (s *Service) Submit(ctx context.Context, id, actorID int64) (Record, error) {
	return s.transition(ctx, id, actorID, StatusDraft, StatusSubmitted)
}

// Approve moves a SUBMITTED record to APPROVED.
func (s *Service) Approve(ctx context.Context, id, actorID int64) (Record, error) {
	return s.transition(ctx, id, actorID, StatusSubmitted, StatusApproved)
}

func (s *Service) transition(ctx context.Context, id, actorID int64, from, to string) (Record, error) {
	current, err := s.repo.Find(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if current.Status != from {
		return Record{}, fmt.Errorf("worklog: cannot move %s record to %s", current.Status, to)
	}
	month, year := current.Period()
	if err := s.guard.AssertUnlocked(ctx, month, year); err != nil {
		return Record{}, err
	}
	updated, err := s.repo.UpdateStatus(ctx, id, to)
	if err != nil {
		return Record{}, err
	}
	s.recordAudit(ctx, actorID, updated, to)
	return updated, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, rec Record, action string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "WorkRecord",
		EntityID: fmt.Sprintf("%d", rec.ID),
		Diff: map[string]any{
			"organization_id": rec.OrganizationID,
			"date":            rec.Date.Format("2006-01-02"),
			"status":          rec.Status,
		},
		At: s.now(),
	})
	if err != nil {
		s.logger.Warn("worklog: audit record failed", slog.Any("error", err))
	}
}
