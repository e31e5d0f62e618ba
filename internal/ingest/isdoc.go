package ingest

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/fakturio/fakturio/internal/money"
)

// ErrNotISDOC indicates the buffer is not a recognizable ISDOC/UBL
// invoice document.
var ErrNotISDOC = errors.New("ingest: not a valid ISDOC invoice")

// IsISDOCFilename reports whether the filename marks a machine-readable
// invoice that bypasses OCR entirely.
func IsISDOCFilename(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".isdoc") || strings.HasSuffix(lower, ".isdocx") ||
		strings.HasSuffix(lower, ".xml")
}

// The XML schemas vary between ISDOC versions and UBL: element names
// are resolved through alternate fields rather than ad hoc lookups.
type isdocXML struct {
	XMLName          xml.Name
	ID               string      `xml:"ID"`
	IssueDate        string      `xml:"IssueDate"`
	DocumentCurrency string      `xml:"DocumentCurrencyCode"`
	LocalCurrency    string      `xml:"LocalCurrencyCode"`
	SupplierName     string      `xml:"AccountingSupplierParty>Party>PartyName>Name"`
	SupplierID       string      `xml:"AccountingSupplierParty>Party>PartyIdentification>ID"`
	TaxExclusive     string      `xml:"LegalMonetaryTotal>TaxExclusiveAmount"`
	TaxInclusive     string      `xml:"LegalMonetaryTotal>TaxInclusiveAmount"`
	NestedLines      []isdocLine `xml:"InvoiceLines>InvoiceLine"`
	FlatLines        []isdocLine `xml:"InvoiceLine"`
}

type isdocLine struct {
	ItemName          string `xml:"Item>Name"`
	ItemDescription   string `xml:"Item>Description"`
	SellersCode       string `xml:"Item>SellersItemIdentification>ID"`
	InvoicedQuantity  string `xml:"InvoicedQuantity"`
	PriceAmount       string `xml:"Price>PriceAmount"`
	UnitPrice         string `xml:"UnitPrice"`
	LineExtension     string `xml:"LineExtensionAmount"`
	TaxPercent        string `xml:"TaxTotal>TaxSubtotal>TaxCategory>Percent"`
	ClassifiedPercent string `xml:"Item>ClassifiedTaxCategory>Percent"`
}

// ParseISDOC maps a machine-readable ISDOC/UBL invoice into the
// canonical shape. It funnels into the same digest and dedup path as
// OCR-extracted documents.
func ParseISDOC(data []byte) (Document, error) {
	if len(data) == 0 {
		return Document{}, ErrNotISDOC
	}
	var parsed isdocXML
	if err := xml.Unmarshal(data, &parsed); err != nil {
		return Document{}, errors.Join(ErrNotISDOC, err)
	}
	if !strings.Contains(parsed.XMLName.Local, "Invoice") {
		return Document{}, ErrNotISDOC
	}

	doc := Document{
		SupplierName:  strings.TrimSpace(parsed.SupplierName),
		SupplierTaxID: strings.TrimSpace(parsed.SupplierID),
		InvoiceNumber: strings.TrimSpace(parsed.ID),
		Currency:      firstNonEmpty(parsed.LocalCurrency, parsed.DocumentCurrency, "CZK"),
		Source:        SourceISDOC,
	}
	if doc.SupplierName == "" {
		doc.SupplierName = DefaultSupplierName
	}
	if raw := strings.TrimSpace(parsed.IssueDate); raw != "" {
		doc.IssueDate = parseDate(raw)
	}
	if cents, ok := money.ToCents(parsed.TaxExclusive); ok {
		doc.TotalExVATCents = &cents
	}
	if cents, ok := money.ToCents(parsed.TaxInclusive); ok {
		doc.TotalIncVATCents = &cents
	}

	lines := parsed.NestedLines
	if len(lines) == 0 {
		lines = parsed.FlatLines
	}
	for i, line := range lines {
		item := LineItem{
			Name:        firstNonEmpty(strings.TrimSpace(line.ItemName), strings.TrimSpace(line.ItemDescription)),
			Description: strings.TrimSpace(line.ItemDescription),
			ProductCode: strings.TrimSpace(line.SellersCode),
		}
		if item.Name == "" {
			item.Name = fmt.Sprintf("Položka %d", i+1)
		}
		item.Quantity = NormalizeQuantity(line.InvoicedQuantity)
		if cents, ok := money.ToCents(firstNonEmpty(line.UnitPrice, line.PriceAmount)); ok {
			item.UnitPriceCents = &cents
		}
		if cents, ok := money.ToCents(line.LineExtension); ok {
			item.TotalPriceCents = &cents
		}
		if rate, ok := money.Normalize(firstNonEmpty(line.TaxPercent, line.ClassifiedPercent)); ok {
			pct := int(rate.IntPart())
			item.VATRate = &pct
		}
		doc.Items = append(doc.Items, item)
	}
	if len(doc.Items) == 0 {
		return Document{}, ErrNotISDOC
	}
	return doc, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
