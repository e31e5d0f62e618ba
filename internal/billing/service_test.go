package billing

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/fakturio/fakturio/internal/inventory"
	"github.com/fakturio/fakturio/internal/recurring"
	"github.com/fakturio/fakturio/internal/worklog"
)

type stubSources struct {
	rates    RateCard
	records  []worklog.Record
	services []recurring.Service
	items    []inventory.Item
	calls    int
}

func (s *stubSources) RateCard(ctx context.Context, orgID int64) (RateCard, error) {
	s.calls++
	return s.rates, nil
}

func (s *stubSources) ListForBilling(ctx context.Context, orgID int64, month, year int) ([]worklog.Record, error) {
	return s.records, nil
}

func (s *stubSources) ListActive(ctx context.Context, orgID int64) ([]recurring.Service, error) {
	return s.services, nil
}

func (s *stubSources) ListForPeriod(ctx context.Context, orgID int64, month, year int) ([]inventory.Item, error) {
	return s.items, nil
}

func newCachedService(t *testing.T, src *stubSources) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(src, src, src, src, client, nil), mr
}

func TestSummaryComputesAndCaches(t *testing.T) {
	src := &stubSources{
		rates:    RateCard{HourlyRateCents: 60000, KilometerRateCents: 1000},
		records:  []worklog.Record{{Minutes: 120, Kilometers: 5}},
		services: []recurring.Service{{MonthlyFeeCents: 50000, Active: true}},
		items:    []inventory.Item{{Quantity: 1, TotalPriceCents: 12100}},
	}
	svc, _ := newCachedService(t, src)

	totals, err := svc.Summary(context.Background(), 7, 3, 2025)
	require.NoError(t, err)
	require.Equal(t, int64(120000), totals.WorkCents)
	require.Equal(t, int64(5000), totals.TravelCents)
	require.Equal(t, int64(50000), totals.ServicesCents)
	require.Equal(t, int64(12100), totals.InventoryCents)
	require.Equal(t, 1, src.calls)

	// Second call is served from the cache; no source is touched.
	again, err := svc.Summary(context.Background(), 7, 3, 2025)
	require.NoError(t, err)
	require.Equal(t, totals, again)
	require.Equal(t, 1, src.calls)
}

func TestSummaryRecomputesAfterInvalidation(t *testing.T) {
	src := &stubSources{rates: RateCard{HourlyRateCents: 60000}, records: []worklog.Record{{Minutes: 60}}}
	svc, _ := newCachedService(t, src)

	first, err := svc.Summary(context.Background(), 7, 3, 2025)
	require.NoError(t, err)
	require.Equal(t, int64(60000), first.WorkCents)

	src.records = append(src.records, worklog.Record{Minutes: 30})
	svc.InvalidateBillingSummary(context.Background(), 7, 3, 2025)

	second, err := svc.Summary(context.Background(), 7, 3, 2025)
	require.NoError(t, err)
	require.Equal(t, int64(90000), second.WorkCents)
	require.Equal(t, 2, src.calls)
}

func TestSummaryPeriodsCachedIndependently(t *testing.T) {
	src := &stubSources{rates: RateCard{HourlyRateCents: 60000}, records: []worklog.Record{{Minutes: 60}}}
	svc, _ := newCachedService(t, src)

	_, err := svc.Summary(context.Background(), 7, 3, 2025)
	require.NoError(t, err)
	_, err = svc.Summary(context.Background(), 7, 4, 2025)
	require.NoError(t, err)
	require.Equal(t, 2, src.calls, "each period has its own cache entry")
}

func TestSummaryWorksWithoutCache(t *testing.T) {
	src := &stubSources{rates: RateCard{HourlyRateCents: 60000}, records: []worklog.Record{{Minutes: 60}}}
	svc := NewService(src, src, src, src, nil, nil)

	totals, err := svc.Summary(context.Background(), 7, 3, 2025)
	require.NoError(t, err)
	require.Equal(t, int64(60000), totals.WorkCents)

	_, err = svc.Summary(context.Background(), 7, 3, 2025)
	require.NoError(t, err)
	require.Equal(t, 2, src.calls)
	svc.InvalidateBillingSummary(context.Background(), 7, 3, 2025)
}
