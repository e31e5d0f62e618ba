// Package ingest converts heterogeneous third-party invoice documents
// (scanned PDFs, machine-readable ISDOC/UBL XML) into one canonical,
// content-addressed shape through an ordered cascade of parsers.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/fakturio/fakturio/internal/money"
)

// Source tags which cascade stage produced a document.
type Source string

const (
	SourceRemoteOCR Source = "OCR_REMOTE"
	SourceTable     Source = "OCR_TABLE"
	SourceLocal     Source = "LOCAL_FALLBACK"
	SourceISDOC     Source = "ISDOC"
	SourceSentinel  Source = "SENTINEL"
)

// Document is the canonical invoice shape every ingestion source maps
// into. Monetary fields are integer cents; nil means the source did not
// carry the figure.
type Document struct {
	SupplierName     string
	SupplierTaxID    string
	InvoiceNumber    string
	IssueDate        *time.Time
	Currency         string
	TotalExVATCents  *int64
	TotalIncVATCents *int64
	Items            []LineItem
	Source           Source

	// Mock marks the sentinel failure record. ErrText carries the last
	// stage's failure for reporting; both are zero on real documents.
	Mock    bool
	ErrText string
}

// LineItem is one canonical invoice line.
type LineItem struct {
	Name              string
	Description       string
	Quantity          decimal.Decimal
	UnitPriceCents    *int64
	TotalPriceCents   *int64
	VATRate           *int
	ProductCode       string
	LinkedProductCode string
}

// DefaultSupplierName labels documents whose supplier could not be read.
const DefaultSupplierName = "Neznámý dodavatel"

// Digest computes the deduplication key: two ingestions with the same
// digest are the same real-world document. It hashes supplier, number,
// issue date and the inclusive total, so item ordering never matters.
// Call it only on a fully canonicalized document.
func Digest(doc Document) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(doc.SupplierName)))
	h.Write([]byte("|"))
	h.Write([]byte(strings.ToLower(doc.InvoiceNumber)))
	h.Write([]byte("|"))
	if doc.IssueDate != nil {
		h.Write([]byte(doc.IssueDate.UTC().Format(time.RFC3339)))
	}
	h.Write([]byte("|"))
	if doc.TotalIncVATCents != nil {
		h.Write([]byte(fmt.Sprintf("%d", *doc.TotalIncVATCents)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeQuantity parses a localized quantity string. Unparseable or
// non-positive values fall back to 1 rather than propagating garbage.
func NormalizeQuantity(raw string) decimal.Decimal {
	d, ok := money.Normalize(raw)
	if !ok || d.Sign() <= 0 {
		return decimal.NewFromInt(1)
	}
	return d
}

var linkedCodePattern = regexp.MustCompile(`k\s+polozce\s+([a-z0-9_\-]+)`)

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldText lowercases and strips diacritics so "k položce" and
// "k polozce" match the same pattern.
func foldText(s string) string {
	folded, _, err := transform.String(foldTransformer, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return folded
}

// ExtractLinkedCode pulls a "for item <code>" reference out of free
// text, letting a warranty or accessory line point at its parent
// product without a schema from the source document.
func ExtractLinkedCode(name, description string) string {
	combined := foldText(name + " " + description)
	if m := linkedCodePattern.FindStringSubmatch(combined); m != nil {
		return m[1]
	}
	return ""
}

var quantityEpsilon = decimal.New(1, -6)

// ExpandItems canonicalizes raw line items: quantities are normalized,
// missing unit/total prices derived from each other, linked product
// codes extracted, and serialized units exploded.
//
// An item with an integer quantity N > 1 and a known total price is
// split into N single-unit items; the indivisible remainder of
// total mod N is distributed one cent each to the first units. Items
// with genuinely fractional quantities are kept whole.
func ExpandItems(items []LineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, item := range items {
		qty := item.Quantity
		if qty.Sign() <= 0 {
			qty = decimal.NewFromInt(1)
		}

		unitPrice := item.UnitPriceCents
		totalPrice := item.TotalPriceCents
		if unitPrice == nil && totalPrice != nil {
			derived := decimal.NewFromInt(*totalPrice).Div(qty).Floor().IntPart()
			unitPrice = &derived
		}
		if totalPrice == nil && unitPrice != nil {
			units := qty.Round(0).IntPart()
			if units < 1 {
				units = 1
			}
			derived := *unitPrice * units
			totalPrice = &derived
		}
		if unitPrice == nil {
			zero := int64(0)
			unitPrice = &zero
		}
		if totalPrice == nil {
			zero := int64(0)
			totalPrice = &zero
		}

		name := item.Name
		if name == "" {
			name = "Neuvedená položka"
		}
		linked := item.LinkedProductCode
		if linked == "" {
			linked = ExtractLinkedCode(item.Name, item.Description)
		}

		base := LineItem{
			Name:              name,
			Description:       item.Description,
			Quantity:          qty,
			UnitPriceCents:    unitPrice,
			TotalPriceCents:   totalPrice,
			VATRate:           item.VATRate,
			ProductCode:       item.ProductCode,
			LinkedProductCode: linked,
		}

		units := qty.Round(0).IntPart()
		integral := qty.Sub(decimal.NewFromInt(units)).Abs().LessThan(quantityEpsilon)
		if units <= 1 || !integral {
			out = append(out, base)
			continue
		}

		perUnit := *totalPrice / units
		remainder := *totalPrice - perUnit*units
		for i := int64(0); i < units; i++ {
			price := perUnit
			if i < remainder {
				price++
			}
			split := base
			split.Name = fmt.Sprintf("%s (%d/%d)", name, i+1, units)
			split.Quantity = decimal.NewFromInt(1)
			p := price
			split.UnitPriceCents = &p
			t := price
			split.TotalPriceCents = &t
			out = append(out, split)
		}
	}
	return out
}
