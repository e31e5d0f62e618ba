package organizations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fakturio/fakturio/internal/shared"
)

// Service coordinates organization CRUD and registry enrichment.
type Service struct {
	repo     RepositoryPort
	registry RegistryPort
	audit    shared.AuditPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a Service instance. registry may be nil; creation
// then stores whatever the caller supplied without enrichment.
func NewService(repo RepositoryPort, registry RegistryPort, audit shared.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, registry: registry, audit: audit, logger: logger, now: time.Now}
}

// List returns all organizations ordered by name.
func (s *Service) List(ctx context.Context) ([]Organization, error) {
	return s.repo.List(ctx)
}

// Get returns one organization.
func (s *Service) Get(ctx context.Context, id int64) (Organization, error) {
	return s.repo.Find(ctx, id)
}

// Create stores a new organization. When the name is empty but a tax id
// is present, the registry fills in name and address.
func (s *Service) Create(ctx context.Context, org Organization, actorID int64) (Organization, error) {
	if org.Name == "" && org.TaxID != "" && s.registry != nil {
		company, err := s.registry.Lookup(ctx, org.TaxID)
		if err != nil {
			return Organization{}, err
		}
		org.Name = company.Name
		org.TaxID = company.TaxID
		if org.VATID == "" {
			org.VATID = company.VATID
		}
		if org.Address == "" {
			org.Address = company.Address
		}
	}
	if err := org.Validate(); err != nil {
		return Organization{}, err
	}
	created, err := s.repo.Create(ctx, org)
	if err != nil {
		return Organization{}, err
	}
	s.recordAudit(ctx, actorID, created, "CREATE")
	return created, nil
}

// Update mutates an existing organization.
func (s *Service) Update(ctx context.Context, org Organization, actorID int64) (Organization, error) {
	if _, err := s.repo.Find(ctx, org.ID); err != nil {
		return Organization{}, err
	}
	if err := org.Validate(); err != nil {
		return Organization{}, err
	}
	updated, err := s.repo.Update(ctx, org)
	if err != nil {
		return Organization{}, err
	}
	s.recordAudit(ctx, actorID, updated, "UPDATE")
	return updated, nil
}

// Delete removes an organization.
func (s *Service) Delete(ctx context.Context, id, actorID int64) error {
	current, err := s.repo.Find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, current, "DELETE")
	return nil
}

// LookupCompany queries the registry directly, for prefilling forms.
func (s *Service) LookupCompany(ctx context.Context, taxID string) (Company, error) {
	if s.registry == nil {
		return Company{}, errors.New("organizations: registry not configured")
	}
	return s.registry.Lookup(ctx, taxID)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, org Organization, action string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "Organization",
		EntityID: fmt.Sprintf("%d", org.ID),
		Diff: map[string]any{
			"name":   org.Name,
			"tax_id": org.TaxID,
		},
		At: s.now(),
	})
	if err != nil {
		s.logger.Warn("organizations: audit record failed", slog.Any("error", err))
	}
}
