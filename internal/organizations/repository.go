package organizations

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fakturio/fakturio/internal/shared"
)

// RepositoryPort abstracts organization persistence for the service.
type RepositoryPort interface {
	Create(ctx context.Context, org Organization) (Organization, error)
	Find(ctx context.Context, id int64) (Organization, error)
	List(ctx context.Context) ([]Organization, error)
	Update(ctx context.Context, org Organization) (Organization, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the Postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) RepositoryPort {
	return &repository{pool: pool}
}

const orgColumns = `id, name, tax_id, vat_id, address, email, phone,
hourly_rate_cents, km_rate_cents, vat_rate, created_at, updated_at`

func scanOrganization(row pgx.Row) (Organization, error) {
	var o Organization
	err := row.Scan(&o.ID, &o.Name, &o.TaxID, &o.VATID, &o.Address, &o.Email, &o.Phone,
		&o.HourlyRateCents, &o.KilometerRateCents, &o.VATRate, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Organization{}, shared.ErrNotFound
		}
		return Organization{}, err
	}
	return o, nil
}

func (r *repository) Create(ctx context.Context, org Organization) (Organization, error) {
	row := r.pool.QueryRow(ctx, `
INSERT INTO organizations (name, tax_id, vat_id, address, email, phone,
  hourly_rate_cents, km_rate_cents, vat_rate, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW())
RETURNING `+orgColumns,
		org.Name, org.TaxID, org.VATID, org.Address, org.Email, org.Phone,
		org.HourlyRateCents, org.KilometerRateCents, org.VATRate)
	return scanOrganization(row)
}

func (r *repository) Find(ctx context.Context, id int64) (Organization, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id=$1`, id)
	return scanOrganization(row)
}

func (r *repository) List(ctx context.Context) ([]Organization, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orgColumns+` FROM organizations ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Organization
	for rows.Next() {
		o, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *repository) Update(ctx context.Context, org Organization) (Organization, error) {
	row := r.pool.QueryRow(ctx, `
UPDATE organizations
SET name=$2, tax_id=$3, vat_id=$4, address=$5, email=$6, phone=$7,
    hourly_rate_cents=$8, km_rate_cents=$9, vat_rate=$10, updated_at=NOW()
WHERE id=$1
RETURNING `+orgColumns,
		org.ID, org.Name, org.TaxID, org.VATID, org.Address, org.Email, org.Phone,
		org.HourlyRateCents, org.KilometerRateCents, org.VATRate)
	return scanOrganization(row)
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM organizations WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("organizations: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
