package invoices

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fakturio/fakturio/internal/platform/db"
	"github.com/fakturio/fakturio/internal/shared"
)

// RepositoryPort abstracts issued-invoice persistence for the service.
type RepositoryPort interface {
	Create(ctx context.Context, inv Invoice) (Invoice, error)
	Find(ctx context.Context, id int64) (Invoice, error)
	FindForPeriod(ctx context.Context, organizationID int64, month, year int) (Invoice, error)
	List(ctx context.Context, organizationID int64) ([]Invoice, error)
	LastSequence(ctx context.Context, year int) (int, error)
	UpdateStatus(ctx context.Context, id int64, status string) (Invoice, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the Postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) RepositoryPort {
	return &repository{pool: pool}
}

const invoiceColumns = `id, organization_id, month, year, number, sequence, subtotal_cents,
vat_cents, total_cents, status, created_by, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.OrganizationID, &inv.Month, &inv.Year, &inv.Number,
		&inv.Sequence, &inv.SubtotalCents, &inv.VATCents, &inv.TotalCents, &inv.Status,
		&inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, shared.ErrNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}

func (r *repository) Create(ctx context.Context, inv Invoice) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `
INSERT INTO issued_invoices (organization_id, month, year, number, sequence, subtotal_cents,
  vat_cents, total_cents, status, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW(),NOW())
RETURNING `+invoiceColumns,
		inv.OrganizationID, inv.Month, inv.Year, inv.Number, inv.Sequence, inv.SubtotalCents,
		inv.VATCents, inv.TotalCents, inv.Status, inv.CreatedBy)
	created, err := scanInvoice(row)
	if err != nil {
		if db.IsUniqueViolation(err, "issued_invoices_org_period_key") || db.IsUniqueViolation(err, "issued_invoices_number_key") {
			return Invoice{}, ErrInvoiceExists
		}
		return Invoice{}, err
	}
	return created, nil
}

func (r *repository) Find(ctx context.Context, id int64) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM issued_invoices WHERE id=$1`, id)
	return scanInvoice(row)
}

func (r *repository) FindForPeriod(ctx context.Context, organizationID int64, month, year int) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `
SELECT `+invoiceColumns+` FROM issued_invoices
WHERE organization_id=$1 AND month=$2 AND year=$3`, organizationID, month, year)
	return scanInvoice(row)
}

func (r *repository) List(ctx context.Context, organizationID int64) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+invoiceColumns+` FROM issued_invoices
WHERE organization_id=$1 ORDER BY year DESC, month DESC`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// LastSequence returns the highest sequence issued in the year, zero
// when none. Cancelled invoices keep their sequence, so gaps appear.
func (r *repository) LastSequence(ctx context.Context, year int) (int, error) {
	var last int
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(sequence), 0) FROM issued_invoices WHERE year=$1`, year).Scan(&last)
	return last, err
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status string) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `UPDATE issued_invoices SET status=$2, updated_at=NOW() WHERE id=$1 RETURNING `+invoiceColumns, id, status)
	return scanInvoice(row)
}
