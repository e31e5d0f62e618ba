// Package received manages received (supplier) invoices: the persisted
// outcome of document ingestion, their line items and review lifecycle.
package received

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fakturio/fakturio/internal/ingest"
)

// Invoice review lifecycle.
const (
	StatusPending  = "PENDING"
	StatusReady    = "READY"
	StatusArchived = "ARCHIVED"
)

// Extraction outcome. FAILED invoices keep a sentinel body so the UI
// still has a record to show and correct.
const (
	OCRProcessing = "PROCESSING"
	OCRSuccess    = "SUCCESS"
	OCRFailed     = "FAILED"
)

// Line item review lifecycle. ASSIGNED is set only by the inventory
// assignment write, never by hand.
const (
	ItemPending  = "PENDING"
	ItemApproved = "APPROVED"
	ItemAssigned = "ASSIGNED"
	ItemRejected = "REJECTED"
)

// Invoice is a received supplier invoice in canonical form. Digest is
// the content-derived deduplication key; two rows never share one.
type Invoice struct {
	ID               int64
	SupplierName     string
	SupplierTaxID    string
	InvoiceNumber    string
	IssueDate        *time.Time
	Currency         string
	TotalExVATCents  *int64
	TotalIncVATCents *int64
	Digest           string
	Source           ingest.Source
	Status           string
	OCRStatus        string
	OCRError         string
	Mock             bool
	FileLocation     string
	Filename         string
	MIMEType         string
	CreatedBy        int64
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Items []Item
}

// Item is one reviewable invoice line. The Assigned* fields record
// where an ASSIGNED line went; the inventory assignment stamps them in
// the same transaction that creates the item.
type Item struct {
	ID                int64
	InvoiceID         int64
	Name              string
	Description       string
	Quantity          decimal.Decimal
	UnitPriceCents    *int64
	TotalPriceCents   *int64
	VATRate           *int
	ProductCode       string
	LinkedProductCode string
	Status            string

	AssignedOrganizationID *int64
	AssignedMonth          *int
	AssignedYear           *int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// fromDocument maps a canonical ingestion document onto a persistable
// invoice. Items arrive already expanded and linked.
func fromDocument(doc ingest.Document, actorID int64) Invoice {
	supplier := doc.SupplierName
	if supplier == "" {
		supplier = ingest.DefaultSupplierName
	}
	currency := doc.Currency
	if currency == "" {
		currency = "CZK"
	}
	ocrStatus := OCRSuccess
	if doc.Mock {
		ocrStatus = OCRFailed
	}

	inv := Invoice{
		SupplierName:     supplier,
		SupplierTaxID:    doc.SupplierTaxID,
		InvoiceNumber:    doc.InvoiceNumber,
		IssueDate:        doc.IssueDate,
		Currency:         currency,
		TotalExVATCents:  doc.TotalExVATCents,
		TotalIncVATCents: doc.TotalIncVATCents,
		Source:           doc.Source,
		Status:           StatusPending,
		OCRStatus:        ocrStatus,
		OCRError:         doc.ErrText,
		Mock:             doc.Mock,
		CreatedBy:        actorID,
	}
	inv.Digest = ingest.Digest(doc)

	for _, line := range ingest.ExpandItems(doc.Items) {
		inv.Items = append(inv.Items, Item{
			Name:              line.Name,
			Description:       line.Description,
			Quantity:          line.Quantity,
			UnitPriceCents:    line.UnitPriceCents,
			TotalPriceCents:   line.TotalPriceCents,
			VATRate:           line.VATRate,
			ProductCode:       line.ProductCode,
			LinkedProductCode: line.LinkedProductCode,
			Status:            ItemPending,
		})
	}
	return inv
}
