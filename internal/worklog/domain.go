// Package worklog manages work records: time and travel entries that
// feed an organization's monthly billing.
package worklog

import (
	"errors"
	"time"
)

// Record lifecycle. BILLED records appear on an issued invoice.
const (
	StatusDraft     = "DRAFT"
	StatusSubmitted = "SUBMITTED"
	StatusApproved  = "APPROVED"
	StatusBilled    = "BILLED"
)

// Record is one work entry. BillingOrgID redirects billing to another
// organization; when nil the record bills to the workplace organization.
type Record struct {
	ID             int64
	OrganizationID int64
	BillingOrgID   *int64
	Date           time.Time
	Minutes        int
	Kilometers     int
	Description    string
	ProjectCode    string
	Status         string
	CreatedBy      int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BillingOrg resolves which organization the record bills to.
func (r Record) BillingOrg() int64 {
	if r.BillingOrgID != nil {
		return *r.BillingOrgID
	}
	return r.OrganizationID
}

// Period returns the accounting period the record falls into.
func (r Record) Period() (month, year int) {
	return int(r.Date.Month()), r.Date.Year()
}

// ErrInvalidRecord rejects records without a date or with negative
// time or distance.
var ErrInvalidRecord = errors.New("worklog: invalid record")

// ErrBilledImmutable rejects mutating a record that is already billed.
var ErrBilledImmutable = errors.New("worklog: billed record is immutable")

// Validate checks structural validity before persistence.
func (r Record) Validate() error {
	if r.OrganizationID == 0 || r.Date.IsZero() {
		return ErrInvalidRecord
	}
	if r.Minutes < 0 || r.Kilometers < 0 {
		return ErrInvalidRecord
	}
	if r.Minutes == 0 && r.Kilometers == 0 {
		return ErrInvalidRecord
	}
	return nil
}
