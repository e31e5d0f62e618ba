package worklog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fakturio/fakturio/internal/shared"
)

// RepositoryPort abstracts work record persistence for the service.
type RepositoryPort interface {
	Create(ctx context.Context, rec Record) (Record, error)
	Find(ctx context.Context, id int64) (Record, error)
	Update(ctx context.Context, rec Record) (Record, error)
	Delete(ctx context.Context, id int64) error
	ListForBilling(ctx context.Context, organizationID int64, month, year int) ([]Record, error)
	UpdateStatus(ctx context.Context, id int64, status string) (Record, error)
	MarkBilled(ctx context.Context, organizationID int64, month, year int) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the Postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) RepositoryPort {
	return &repository{pool: pool}
}

const recordColumns = `id, organization_id, billing_org_id, date, minutes, kilometers,
description, project_code, status, created_by, created_at, updated_at`

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.OrganizationID, &rec.BillingOrgID, &rec.Date, &rec.Minutes,
		&rec.Kilometers, &rec.Description, &rec.ProjectCode, &rec.Status, &rec.CreatedBy,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, shared.ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

func (r *repository) Create(ctx context.Context, rec Record) (Record, error) {
	row := r.pool.QueryRow(ctx, `
INSERT INTO work_records (organization_id, billing_org_id, date, minutes, kilometers,
  description, project_code, status, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW())
RETURNING `+recordColumns,
		rec.OrganizationID, rec.BillingOrgID, rec.Date, rec.Minutes, rec.Kilometers,
		rec.Description, rec.ProjectCode, rec.Status, rec.CreatedBy)
	return scanRecord(row)
}

func (r *repository) Find(ctx context.Context, id int64) (Record, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM work_records WHERE id=$1`, id)
	return scanRecord(row)
}

func (r *repository) Update(ctx context.Context, rec Record) (Record, error) {
	row := r.pool.QueryRow(ctx, `
UPDATE work_records
SET billing_org_id=$2, date=$3, minutes=$4, kilometers=$5, description=$6,
    project_code=$7, updated_at=NOW()
WHERE id=$1
RETURNING `+recordColumns,
		rec.ID, rec.BillingOrgID, rec.Date, rec.Minutes, rec.Kilometers,
		rec.Description, rec.ProjectCode)
	return scanRecord(row)
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM work_records WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListForBilling applies the billing-org remap: a record bills to its
// billing organization when set, otherwise to the workplace.
func (r *repository) ListForBilling(ctx context.Context, organizationID int64, month, year int) ([]Record, error) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	rows, err := r.pool.Query(ctx, `
SELECT `+recordColumns+` FROM work_records
WHERE COALESCE(billing_org_id, organization_id)=$1 AND date >= $2 AND date < $3
ORDER BY date, id`, organizationID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status string) (Record, error) {
	row := r.pool.QueryRow(ctx, `UPDATE work_records SET status=$2, updated_at=NOW() WHERE id=$1 RETURNING `+recordColumns, id, status)
	return scanRecord(row)
}

func (r *repository) MarkBilled(ctx context.Context, organizationID int64, month, year int) error {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	_, err := r.pool.Exec(ctx, `
UPDATE work_records SET status=$4, updated_at=NOW()
WHERE COALESCE(billing_org_id, organization_id)=$1 AND date >= $2 AND date < $3 AND status <> $4`,
		organizationID, from, to, StatusBilled)
	return err
}
