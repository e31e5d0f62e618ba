package periods

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fakturio/fakturio/internal/shared"
)

// Service orchestrates period lock state and the unlocked guard.
type Service struct {
	repo   RepositoryPort
	audit  shared.AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo RepositoryPort, audit shared.AuditPort, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		audit:  audit,
		logger: logger,
		now:    time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns all known periods, newest first.
func (s *Service) List(ctx context.Context) ([]Period, error) {
	return s.repo.List(ctx)
}

// Lock marks the period as locked, creating it when missing. Locking an
// already-locked period just refreshes actor and timestamp.
func (s *Service) Lock(ctx context.Context, month, year int, actorID int64) (Period, error) {
	if err := ValidatePeriod(month, year); err != nil {
		return Period{}, err
	}
	period, err := s.repo.UpsertLock(ctx, month, year, actorID, s.now())
	if err != nil {
		return Period{}, err
	}
	s.recordAudit(ctx, actorID, period, "LOCK")
	return period, nil
}

// Unlock clears the lock. Unlocking a period that is not locked is a
// no-op success, so retried unlocks stay idempotent.
func (s *Service) Unlock(ctx context.Context, month, year int, actorID int64) (Period, error) {
	if err := ValidatePeriod(month, year); err != nil {
		return Period{}, err
	}
	period, err := s.repo.Find(ctx, month, year)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Period{Month: month, Year: year}, nil
		}
		return Period{}, err
	}
	if !period.Locked() {
		return period, nil
	}
	updated, err := s.repo.ClearLock(ctx, month, year)
	if err != nil {
		return Period{}, err
	}
	s.recordAudit(ctx, actorID, updated, "UNLOCK")
	return updated, nil
}

// AssertUnlocked is the guard every mutating operation on work records,
// inventory items, issued invoices and assignments calls before writing.
// It always reads current state; lock/unlock may land concurrently, so
// callers must not cache an earlier answer within the same request.
func (s *Service) AssertUnlocked(ctx context.Context, month, year int) error {
	if month == 0 || year == 0 {
		return nil
	}
	period, err := s.repo.Find(ctx, month, year)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}
	if period.Locked() {
		return &shared.PeriodLockedError{Month: month, Year: year}
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, period Period, action string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "AccountingPeriod",
		EntityID: fmt.Sprintf("%d", period.ID),
		Diff:     map[string]any{"month": period.Month, "year": period.Year},
		At:       s.now(),
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("periods: audit record failed", slog.Any("error", err))
	}
}
