package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fakturio/fakturio/internal/platform/db"
	"github.com/fakturio/fakturio/internal/received"
	"github.com/fakturio/fakturio/internal/shared"
)

// SourceLine is the slice of a received invoice line the assignment
// needs: identity, descriptive fields and whatever prices the source
// document carried.
type SourceLine struct {
	ID              int64
	Name            string
	Description     string
	ProductCode     string
	Quantity        decimal.Decimal
	UnitPriceCents  *int64
	TotalPriceCents *int64
	VATRate         *int
	Status          string
}

// TxRepository exposes the writes that must land atomically: creating
// the item and stamping its source line in one transaction.
type TxRepository interface {
	FindSourceLine(ctx context.Context, lineItemID int64) (SourceLine, error)
	InsertItem(ctx context.Context, item Item) (Item, error)
	MarkSourceAssigned(ctx context.Context, lineItemID, organizationID int64, month, year int) error
}

// RepositoryPort abstracts inventory persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Find(ctx context.Context, id int64) (Item, error)
	ListForPeriod(ctx context.Context, organizationID int64, month, year int) ([]Item, error)
	Update(ctx context.Context, item Item) (Item, error)
	Delete(ctx context.Context, id int64) error
	MarkInvoiced(ctx context.Context, organizationID int64, month, year int) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the Postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) RepositoryPort {
	return &repository{pool: pool}
}

const itemColumns = `id, organization_id, name, description, product_code, quantity,
unit_price_cents, total_price_cents, vat_rate, month, year, status, source_line_item_id,
created_by, created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.OrganizationID, &it.Name, &it.Description, &it.ProductCode,
		&it.Quantity, &it.UnitPriceCents, &it.TotalPriceCents, &it.VATRate, &it.Month,
		&it.Year, &it.Status, &it.SourceLineItemID, &it.CreatedBy, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, shared.ErrNotFound
		}
		return Item{}, err
	}
	return it, nil
}

type txRepository struct {
	tx pgx.Tx
}

func (r txRepository) FindSourceLine(ctx context.Context, lineItemID int64) (SourceLine, error) {
	var line SourceLine
	err := r.tx.QueryRow(ctx, `
SELECT id, name, description, product_code, quantity, unit_price_cents, total_price_cents, vat_rate, status
FROM received_invoice_items WHERE id=$1 FOR UPDATE`, lineItemID).
		Scan(&line.ID, &line.Name, &line.Description, &line.ProductCode, &line.Quantity,
			&line.UnitPriceCents, &line.TotalPriceCents, &line.VATRate, &line.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SourceLine{}, shared.ErrNotFound
		}
		return SourceLine{}, err
	}
	return line, nil
}

func (r txRepository) InsertItem(ctx context.Context, item Item) (Item, error) {
	row := r.tx.QueryRow(ctx, `
INSERT INTO inventory_items (organization_id, name, description, product_code, quantity,
  unit_price_cents, total_price_cents, vat_rate, month, year, status, source_line_item_id,
  created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW(),NOW())
RETURNING `+itemColumns,
		item.OrganizationID, item.Name, item.Description, item.ProductCode, item.Quantity,
		item.UnitPriceCents, item.TotalPriceCents, item.VATRate, item.Month, item.Year,
		item.Status, item.SourceLineItemID, item.CreatedBy)
	return scanItem(row)
}

// MarkSourceAssigned records where the line went: status plus the
// resolved organization and billing period land on the source row.
func (r txRepository) MarkSourceAssigned(ctx context.Context, lineItemID, organizationID int64, month, year int) error {
	tag, err := r.tx.Exec(ctx, `
UPDATE received_invoice_items
SET status=$2, assigned_organization_id=$3, assigned_month=$4, assigned_year=$5, updated_at=NOW()
WHERE id=$1`, lineItemID, received.ItemAssigned, organizationID, month, year)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, txRepository{tx: tx})
	})
	if db.IsUniqueViolation(err, "inventory_items_source_line_item_id_key") {
		return shared.ErrAlreadyAssigned
	}
	return err
}

func (r *repository) Find(ctx context.Context, id int64) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id=$1`, id)
	return scanItem(row)
}

func (r *repository) ListForPeriod(ctx context.Context, organizationID int64, month, year int) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+itemColumns+` FROM inventory_items
WHERE organization_id=$1 AND month=$2 AND year=$3 ORDER BY id`, organizationID, month, year)
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

func (r *repository) Update(ctx context.Context, item Item) (Item, error) {
	row := r.pool.QueryRow(ctx, `
UPDATE inventory_items
SET name=$2, description=$3, product_code=$4, quantity=$5, unit_price_cents=$6,
    total_price_cents=$7, vat_rate=$8, updated_at=NOW()
WHERE id=$1
RETURNING `+itemColumns,
		item.ID, item.Name, item.Description, item.ProductCode, item.Quantity,
		item.UnitPriceCents, item.TotalPriceCents, item.VATRate)
	return scanItem(row)
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM inventory_items WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("inventory: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) MarkInvoiced(ctx context.Context, organizationID int64, month, year int) error {
	_, err := r.pool.Exec(ctx, `
UPDATE inventory_items SET status=$4, updated_at=NOW()
WHERE organization_id=$1 AND month=$2 AND year=$3 AND status <> $4`,
		organizationID, month, year, StatusInvoiced)
	return err
}
