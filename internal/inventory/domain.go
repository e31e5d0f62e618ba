// Package inventory manages billable inventory items: hardware and
// material positions that enter an organization's monthly billing,
// either entered by hand or assigned from a received invoice line.
package inventory

import (
	"errors"
	"time"
)

// Item lifecycle. ASSIGNED items carry the back-reference to the
// received invoice line they came from; INVOICED items already appear
// on an issued invoice and are immutable.
const (
	StatusManual   = "MANUAL"
	StatusAssigned = "ASSIGNED"
	StatusInvoiced = "INVOICED"
)

// Item is one billable inventory position for an organization and
// billing period. Quantity is a whole unit count; prices are cents.
type Item struct {
	ID               int64
	OrganizationID   int64
	Name             string
	Description      string
	ProductCode      string
	Quantity         int64
	UnitPriceCents   int64
	TotalPriceCents  int64
	VATRate          *int
	Month            int
	Year             int
	Status           string
	SourceLineItemID *int64
	CreatedBy        int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CreateInput describes a manually entered item.
type CreateInput struct {
	OrganizationID  int64
	Name            string
	Description     string
	ProductCode     string
	Quantity        int64
	UnitPriceCents  int64
	TotalPriceCents int64
	VATRate         *int
	Month           int
	Year            int
	ActorID         int64
}

// AssignInput describes assigning a received invoice line to an
// organization's billing period.
type AssignInput struct {
	LineItemID     int64
	OrganizationID int64
	Month          int
	Year           int
	ActorID        int64
}

// ErrInvoicedImmutable rejects mutating an item that is already billed.
var ErrInvoicedImmutable = errors.New("inventory: invoiced item is immutable")
