package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fakturio/fakturio/internal/shared"
)

// RepositoryPort abstracts period persistence for the service.
type RepositoryPort interface {
	Find(ctx context.Context, month, year int) (Period, error)
	List(ctx context.Context) ([]Period, error)
	UpsertLock(ctx context.Context, month, year int, actorID int64, at time.Time) (Period, error)
	ClearLock(ctx context.Context, month, year int) (Period, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the Postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) RepositoryPort {
	return &repository{pool: pool}
}

const periodColumns = `id, month, year, locked_at, locked_by, created_at, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.Month, &p.Year, &p.LockedAt, &p.LockedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.ErrNotFound
		}
		return Period{}, err
	}
	return p, nil
}

func (r *repository) Find(ctx context.Context, month, year int) (Period, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE month=$1 AND year=$2`, month, year)
	return scanPeriod(row)
}

func (r *repository) List(ctx context.Context) ([]Period, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+periodColumns+` FROM accounting_periods ORDER BY year DESC, month DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) UpsertLock(ctx context.Context, month, year int, actorID int64, at time.Time) (Period, error) {
	row := r.pool.QueryRow(ctx, `
INSERT INTO accounting_periods (month, year, locked_at, locked_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, NOW(), NOW())
ON CONFLICT (year, month)
DO UPDATE SET locked_at=$3, locked_by=$4, updated_at=NOW()
RETURNING `+periodColumns, month, year, at, actorID)
	return scanPeriod(row)
}

func (r *repository) ClearLock(ctx context.Context, month, year int) (Period, error) {
	row := r.pool.QueryRow(ctx, `
UPDATE accounting_periods SET locked_at=NULL, locked_by=NULL, updated_at=NOW()
WHERE month=$1 AND year=$2
RETURNING `+periodColumns, month, year)
	return scanPeriod(row)
}
