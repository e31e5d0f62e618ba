package billing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fakturio/fakturio/internal/shared"
)

// RateCardSource resolves an organization's price list.
type RateCardSource interface {
	RateCard(ctx context.Context, organizationID int64) (RateCard, error)
}

type rateCardRepository struct {
	pool *pgxpool.Pool
}

// NewRateCardSource reads rate cards from the organizations table.
func NewRateCardSource(pool *pgxpool.Pool) RateCardSource {
	return &rateCardRepository{pool: pool}
}

func (r *rateCardRepository) RateCard(ctx context.Context, organizationID int64) (RateCard, error) {
	var card RateCard
	err := r.pool.QueryRow(ctx, `
SELECT hourly_rate_cents, km_rate_cents, vat_rate
FROM organizations WHERE id=$1`, organizationID).
		Scan(&card.HourlyRateCents, &card.KilometerRateCents, &card.VATRate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RateCard{}, shared.ErrNotFound
		}
		return RateCard{}, err
	}
	return card, nil
}
