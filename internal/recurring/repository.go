package recurring

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fakturio/fakturio/internal/shared"
)

// RepositoryPort abstracts recurring service persistence.
type RepositoryPort interface {
	Create(ctx context.Context, svc Service) (Service, error)
	Find(ctx context.Context, id int64) (Service, error)
	Update(ctx context.Context, svc Service) (Service, error)
	Delete(ctx context.Context, id int64) error
	ListForOrganization(ctx context.Context, organizationID int64) ([]Service, error)
	ListActive(ctx context.Context, organizationID int64) ([]Service, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the Postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) RepositoryPort {
	return &repository{pool: pool}
}

const serviceColumns = `id, organization_id, name, description, monthly_fee_cents, active, created_at, updated_at`

func scanService(row pgx.Row) (Service, error) {
	var s Service
	err := row.Scan(&s.ID, &s.OrganizationID, &s.Name, &s.Description, &s.MonthlyFeeCents,
		&s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Service{}, shared.ErrNotFound
		}
		return Service{}, err
	}
	return s, nil
}

func (r *repository) Create(ctx context.Context, svc Service) (Service, error) {
	row := r.pool.QueryRow(ctx, `
INSERT INTO recurring_services (organization_id, name, description, monthly_fee_cents, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW())
RETURNING `+serviceColumns,
		svc.OrganizationID, svc.Name, svc.Description, svc.MonthlyFeeCents, svc.Active)
	return scanService(row)
}

func (r *repository) Find(ctx context.Context, id int64) (Service, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+serviceColumns+` FROM recurring_services WHERE id=$1`, id)
	return scanService(row)
}

func (r *repository) Update(ctx context.Context, svc Service) (Service, error) {
	row := r.pool.QueryRow(ctx, `
UPDATE recurring_services
SET name=$2, description=$3, monthly_fee_cents=$4, active=$5, updated_at=NOW()
WHERE id=$1
RETURNING `+serviceColumns,
		svc.ID, svc.Name, svc.Description, svc.MonthlyFeeCents, svc.Active)
	return scanService(row)
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM recurring_services WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) ListForOrganization(ctx context.Context, organizationID int64) ([]Service, error) {
	return r.list(ctx, `SELECT `+serviceColumns+` FROM recurring_services WHERE organization_id=$1 ORDER BY id`, organizationID)
}

func (r *repository) ListActive(ctx context.Context, organizationID int64) ([]Service, error) {
	return r.list(ctx, `SELECT `+serviceColumns+` FROM recurring_services WHERE organization_id=$1 AND active ORDER BY id`, organizationID)
}

func (r *repository) list(ctx context.Context, query string, args ...any) ([]Service, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
