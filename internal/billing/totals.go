// Package billing computes monthly billing totals for an organization:
// worked time priced per record, travel, recurring service fees and
// billable inventory, with VAT derived once from the subtotal.
package billing

import (
	"github.com/shopspring/decimal"

	"github.com/fakturio/fakturio/internal/inventory"
	"github.com/fakturio/fakturio/internal/money"
	"github.com/fakturio/fakturio/internal/recurring"
	"github.com/fakturio/fakturio/internal/worklog"
)

// RateCard carries the organization's price list. Zero rates simply
// contribute zero; a missing price never fails a billing run.
type RateCard struct {
	HourlyRateCents    int64
	KilometerRateCents int64
	VATRate            *decimal.Decimal
}

// Totals is one organization's billing summary for a period. All
// amounts are cents; display decimals are derived on demand.
type Totals struct {
	WorkRecordCount int   `json:"workRecordCount"`
	WorkMinutes     int   `json:"workMinutes"`
	WorkCents       int64 `json:"workCents"`

	Kilometers  int   `json:"kilometers"`
	TravelCents int64 `json:"travelCents"`

	ServiceCount  int   `json:"serviceCount"`
	ServicesCents int64 `json:"servicesCents"`

	InventoryCount int   `json:"inventoryCount"`
	InventoryCents int64 `json:"inventoryCents"`

	SubtotalCents int64 `json:"subtotalCents"`
	VATCents      int64 `json:"vatCents"`
	TotalCents    int64 `json:"totalCents"`
}

// Subtotal returns the ex-VAT amount in major units.
func (t Totals) Subtotal() decimal.Decimal { return money.FromCents(t.SubtotalCents) }

// Total returns the inclusive amount in major units.
func (t Totals) Total() decimal.Decimal { return money.FromCents(t.TotalCents) }

var minutesPerHour = decimal.NewFromInt(60)

// CalculateTotals prices one period. Work amounts round per record, so
// the sum of rounded records is authoritative even where it differs
// from pricing the aggregate minutes. Travel multiplies exactly. Only
// active service lines count. Inventory uses the stored total when
// present, unit price times quantity otherwise.
func CalculateTotals(rates RateCard, records []worklog.Record, services []recurring.Service, items []inventory.Item) Totals {
	var t Totals

	hourly := decimal.NewFromInt(rates.HourlyRateCents)
	for _, rec := range records {
		t.WorkRecordCount++
		t.WorkMinutes += rec.Minutes
		t.Kilometers += rec.Kilometers

		if rec.Minutes > 0 && rates.HourlyRateCents > 0 {
			amount := decimal.NewFromInt(int64(rec.Minutes)).Div(minutesPerHour).Mul(hourly)
			t.WorkCents += money.RoundCents(amount)
		}
		t.TravelCents += int64(rec.Kilometers) * rates.KilometerRateCents
	}

	for _, svc := range services {
		if !svc.Active {
			continue
		}
		t.ServiceCount++
		t.ServicesCents += svc.MonthlyFeeCents
	}

	for _, item := range items {
		t.InventoryCount++
		switch {
		case item.TotalPriceCents != 0:
			t.InventoryCents += item.TotalPriceCents
		case item.UnitPriceCents != 0:
			t.InventoryCents += item.UnitPriceCents * item.Quantity
		}
	}

	t.SubtotalCents = t.WorkCents + t.TravelCents + t.ServicesCents + t.InventoryCents
	t.VATCents = money.VAT(t.SubtotalCents, rates.VATRate)
	t.TotalCents = t.SubtotalCents + t.VATCents
	return t
}
