package received

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fakturio/fakturio/internal/platform/db"
	"github.com/fakturio/fakturio/internal/shared"
)

// RepositoryPort abstracts received-invoice persistence for the service.
type RepositoryPort interface {
	Create(ctx context.Context, inv Invoice) (Invoice, error)
	Find(ctx context.Context, id int64) (Invoice, error)
	FindByDigest(ctx context.Context, digest string) (Invoice, error)
	List(ctx context.Context) ([]Invoice, error)
	ListFailed(ctx context.Context) ([]Invoice, error)
	UpdateStatus(ctx context.Context, id int64, status string) (Invoice, error)
	UpdateItemStatus(ctx context.Context, itemID int64, status string) (Item, error)
	HasAssignedItems(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the Postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) RepositoryPort {
	return &repository{pool: pool}
}

const invoiceColumns = `id, supplier_name, supplier_tax_id, invoice_number, issue_date, currency,
total_ex_vat_cents, total_inc_vat_cents, digest, source, status, ocr_status, ocr_error, mock,
file_location, filename, mime_type, created_by, created_at, updated_at`

const itemColumns = `id, invoice_id, name, description, quantity, unit_price_cents,
total_price_cents, vat_rate, product_code, linked_product_code, status,
assigned_organization_id, assigned_month, assigned_year, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.SupplierName, &inv.SupplierTaxID, &inv.InvoiceNumber,
		&inv.IssueDate, &inv.Currency, &inv.TotalExVATCents, &inv.TotalIncVATCents,
		&inv.Digest, &inv.Source, &inv.Status, &inv.OCRStatus, &inv.OCRError, &inv.Mock,
		&inv.FileLocation, &inv.Filename, &inv.MIMEType, &inv.CreatedBy,
		&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, shared.ErrNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.InvoiceID, &it.Name, &it.Description, &it.Quantity,
		&it.UnitPriceCents, &it.TotalPriceCents, &it.VATRate, &it.ProductCode,
		&it.LinkedProductCode, &it.Status, &it.AssignedOrganizationID,
		&it.AssignedMonth, &it.AssignedYear, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, shared.ErrNotFound
		}
		return Item{}, err
	}
	return it, nil
}

// Create inserts the invoice and its items in one transaction. The
// digest unique constraint turns a concurrent or repeated ingestion of
// the same document into shared.ErrDuplicateDocument.
func (r *repository) Create(ctx context.Context, inv Invoice) (Invoice, error) {
	now := time.Now()
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
INSERT INTO received_invoices (supplier_name, supplier_tax_id, invoice_number, issue_date, currency,
  total_ex_vat_cents, total_inc_vat_cents, digest, source, status, ocr_status, ocr_error, mock,
  file_location, filename, mime_type, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$18)
RETURNING `+invoiceColumns,
			inv.SupplierName, inv.SupplierTaxID, inv.InvoiceNumber, inv.IssueDate, inv.Currency,
			inv.TotalExVATCents, inv.TotalIncVATCents, inv.Digest, inv.Source, inv.Status,
			inv.OCRStatus, inv.OCRError, inv.Mock, inv.FileLocation, inv.Filename, inv.MIMEType,
			inv.CreatedBy, now)
		created, err := scanInvoice(row)
		if err != nil {
			return err
		}

		items := make([]Item, 0, len(inv.Items))
		for _, it := range inv.Items {
			row := tx.QueryRow(ctx, `
INSERT INTO received_invoice_items (invoice_id, name, description, quantity, unit_price_cents,
  total_price_cents, vat_rate, product_code, linked_product_code, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
RETURNING `+itemColumns,
				created.ID, it.Name, it.Description, it.Quantity, it.UnitPriceCents,
				it.TotalPriceCents, it.VATRate, it.ProductCode, it.LinkedProductCode,
				ItemPending, now)
			saved, err := scanItem(row)
			if err != nil {
				return err
			}
			items = append(items, saved)
		}
		created.Items = items
		inv = created
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, "received_invoices_digest_key") {
			return Invoice{}, shared.ErrDuplicateDocument
		}
		return Invoice{}, fmt.Errorf("received: create: %w", err)
	}
	return inv, nil
}

func (r *repository) Find(ctx context.Context, id int64) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM received_invoices WHERE id=$1`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		return Invoice{}, err
	}
	inv.Items, err = r.listItems(ctx, inv.ID)
	return inv, err
}

func (r *repository) FindByDigest(ctx context.Context, digest string) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM received_invoices WHERE digest=$1`, digest)
	inv, err := scanInvoice(row)
	if err != nil {
		return Invoice{}, err
	}
	inv.Items, err = r.listItems(ctx, inv.ID)
	return inv, err
}

func (r *repository) listItems(ctx context.Context, invoiceID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM received_invoice_items WHERE invoice_id=$1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *repository) List(ctx context.Context) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM received_invoices ORDER BY created_at DESC, id DESC`)
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

// ListFailed returns FAILED extractions that still have the original
// document on disk, so the sweep can retry them.
func (r *repository) ListFailed(ctx context.Context) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM received_invoices WHERE ocr_status=$1 AND file_location <> '' ORDER BY id`, OCRFailed)
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

func (r *repository) UpdateStatus(ctx context.Context, id int64, status string) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `UPDATE received_invoices SET status=$2, updated_at=NOW() WHERE id=$1 RETURNING `+invoiceColumns, id, status)
	return scanInvoice(row)
}

func (r *repository) UpdateItemStatus(ctx context.Context, itemID int64, status string) (Item, error) {
	row := r.pool.QueryRow(ctx, `UPDATE received_invoice_items SET status=$2, updated_at=NOW() WHERE id=$1 RETURNING `+itemColumns, itemID, status)
	return scanItem(row)
}

func (r *repository) HasAssignedItems(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM received_invoice_items WHERE invoice_id=$1 AND status=$2)`, id, ItemAssigned).Scan(&exists)
	return exists, err
}

// Delete removes the invoice and its items. Items with assigned
// inventory block the delete at the service layer.
func (r *repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM received_invoice_items WHERE invoice_id=$1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM received_invoices WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}
