package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/fakturio/fakturio/internal/inventory"
	"github.com/fakturio/fakturio/internal/recurring"
	"github.com/fakturio/fakturio/internal/worklog"
)

// WorkSource lists the organization's billable work records.
type WorkSource interface {
	ListForBilling(ctx context.Context, organizationID int64, month, year int) ([]worklog.Record, error)
}

// ServiceSource lists the organization's active recurring services.
type ServiceSource interface {
	ListActive(ctx context.Context, organizationID int64) ([]recurring.Service, error)
}

// InventorySource lists the organization's inventory for a period.
type InventorySource interface {
	ListForPeriod(ctx context.Context, organizationID int64, month, year int) ([]inventory.Item, error)
}

// Service assembles billing summaries. Inputs load in parallel; the
// computed totals are cached in Redis per organization and period.
type Service struct {
	rates     RateCardSource
	work      WorkSource
	services  ServiceSource
	inventory InventorySource
	cache     *redis.Client
	cacheTTL  time.Duration
	logger    *slog.Logger
}

// NewService constructs a Service instance. cache may be nil; summaries
// are then computed on every call.
func NewService(rates RateCardSource, work WorkSource, services ServiceSource, inv InventorySource, cache *redis.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		rates:     rates,
		work:      work,
		services:  services,
		inventory: inv,
		cache:     cache,
		cacheTTL:  10 * time.Minute,
		logger:    logger,
	}
}

func cacheKey(organizationID int64, month, year int) string {
	return fmt.Sprintf("billing:summary:%d:%d-%02d", organizationID, year, month)
}

// Summary computes (or returns the cached) billing totals for one
// organization and period.
func (s *Service) Summary(ctx context.Context, organizationID int64, month, year int) (Totals, error) {
	key := cacheKey(organizationID, month, year)
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, key).Bytes()
		if err == nil {
			var cached Totals
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("billing: cache read failed", slog.Any("error", err))
		}
	}

	totals, err := s.compute(ctx, organizationID, month, year)
	if err != nil {
		return Totals{}, err
	}

	if s.cache != nil {
		raw, err := json.Marshal(totals)
		if err == nil {
			if err := s.cache.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("billing: cache write failed", slog.Any("error", err))
			}
		}
	}
	return totals, nil
}

func (s *Service) compute(ctx context.Context, organizationID int64, month, year int) (Totals, error) {
	var (
		rates    RateCard
		records  []worklog.Record
		services []recurring.Service
		items    []inventory.Item
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rates, err = s.rates.RateCard(gctx, organizationID)
		return err
	})
	g.Go(func() error {
		var err error
		records, err = s.work.ListForBilling(gctx, organizationID, month, year)
		return err
	})
	g.Go(func() error {
		var err error
		services, err = s.services.ListActive(gctx, organizationID)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = s.inventory.ListForPeriod(gctx, organizationID, month, year)
		return err
	})
	if err := g.Wait(); err != nil {
		return Totals{}, err
	}
	return CalculateTotals(rates, records, services, items), nil
}

// InvalidateBillingSummary drops the cached totals after a write into
// the period. Safe to call with no cache configured.
func (s *Service) InvalidateBillingSummary(ctx context.Context, organizationID int64, month, year int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey(organizationID, month, year)).Err(); err != nil {
		s.logger.Warn("billing: cache invalidation failed", slog.Any("error", err))
	}
}
