// Package organizations manages the billed customers: identity,
// contact data and the per-organization rate card every billing run
// prices against.
package organizations

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidOrganization rejects records missing required fields.
var ErrInvalidOrganization = errors.New("organizations: invalid organization")

// Organization is one billed customer. Rates are cents; a nil VATRate
// means the default rate applies.
type Organization struct {
	ID                 int64
	Name               string
	TaxID              string
	VATID              string
	Address            string
	Email              string
	Phone              string
	HourlyRateCents    int64
	KilometerRateCents int64
	VATRate            *decimal.Decimal
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Validate checks required fields and rate sanity.
func (o Organization) Validate() error {
	if o.Name == "" && o.TaxID == "" {
		return errors.Join(ErrInvalidOrganization, errors.New("name or tax id required"))
	}
	if o.HourlyRateCents < 0 || o.KilometerRateCents < 0 {
		return errors.Join(ErrInvalidOrganization, errors.New("rates must not be negative"))
	}
	return nil
}
