// Package invoices manages issued invoices: one per organization and
// billing period, numbered sequentially within the year.
package invoices

import (
	"errors"
	"fmt"
	"time"
)

// Invoice lifecycle.
const (
	StatusDraft     = "DRAFT"
	StatusSent      = "SENT"
	StatusPaid      = "PAID"
	StatusCancelled = "CANCELLED"
)

// Invoice is one issued invoice. Number is YYYYMM followed by the
// four-digit sequence within the year; gaps are tolerated, duplicates
// are not.
type Invoice struct {
	ID             int64
	OrganizationID int64
	Month          int
	Year           int
	Number         string
	Sequence       int
	SubtotalCents  int64
	VATCents       int64
	TotalCents     int64
	Status         string
	CreatedBy      int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FormatNumber renders the invoice number for a period and sequence.
func FormatNumber(month, year, sequence int) string {
	return fmt.Sprintf("%04d%02d%04d", year, month, sequence)
}

// ErrInvoiceExists rejects generating a second invoice for the same
// organization and period.
var ErrInvoiceExists = errors.New("invoices: invoice already exists for period")

// ErrInvalidTransition rejects a state change the lifecycle does not
// allow.
var ErrInvalidTransition = errors.New("invoices: invalid status transition")
