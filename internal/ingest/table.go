package ingest

import (
	"errors"
	"regexp"
	"strings"

	"github.com/fakturio/fakturio/internal/money"
)

// errNoTableItems signals that the paginated text carried no
// reconstructable line items.
var errNoTableItems = errors.New("ingest: no line items found in extracted text")

// tableColumn identifies a recognized header column.
type tableColumn int

const (
	colUnknown tableColumn = iota
	colCode
	colDescription
	colQuantity
	colUnitPrice
	colExVAT
	colVATAmount
	colVATRate
	colTotal
)

// classifyHeader maps a header cell to a column role by name. Order of
// checks matters: "bez dph" and "dph%" must win before plain "dph",
// and "cena ks" before plain "cena".
func classifyHeader(cell string) tableColumn {
	h := foldText(cell)
	switch {
	case strings.Contains(h, "kod") || strings.Contains(h, "code"):
		return colCode
	case strings.Contains(h, "popis") || strings.Contains(h, "description"):
		return colDescription
	case strings.Contains(h, "bez dph") || strings.Contains(h, "excl"):
		return colExVAT
	case strings.Contains(h, "dph%") || strings.Contains(h, "dph %") || strings.Contains(h, "sazba"):
		return colVATRate
	case strings.Contains(h, "dph") || strings.Contains(h, "vat"):
		return colVATAmount
	case strings.Contains(h, "cena ks") || strings.Contains(h, "cena/ks") || strings.Contains(h, "za kus") || strings.Contains(h, "unit"):
		return colUnitPrice
	case h == "ks" || strings.Contains(h, "mnozstvi") || strings.Contains(h, "qty") || strings.Contains(h, "pocet"):
		return colQuantity
	case strings.Contains(h, "celkem") || strings.Contains(h, "cena") || strings.Contains(h, "total"):
		return colTotal
	default:
		return colUnknown
	}
}

var (
	headingNumberPattern = regexp.MustCompile(`(?m)^#\s+.*?(\d{3,})\s*$`)
	supplierPattern      = regexp.MustCompile(`(?mi)^\*{0,2}(?:prod[aá]vaj[ií]c[ií]|dodavatel)\s*:?\*{0,2}\s*(.+?)\s*$`)
	taxIDPattern         = regexp.MustCompile(`(?mi)\bI[ČC]O?\s*:?\s*(\d{6,10})\b`)
	totalLinePattern     = regexp.MustCompile(`(?mi)^celkem(?:\s+k\s+[uú]hrad[eě])?\s*:?\s*([\d\s\x{00a0}.,]+)`)
	issueDatePattern     = regexp.MustCompile(`(?mi)datum\s+vystaven[ií]\s*:?\s*(\d{2}\.\d{2}\.\d{4}|\d{4}-\d{2}-\d{2})`)
)

// ParseMarkdownPages reconstructs a canonical document from paginated
// semi-structured text with a pipe-delimited item table. Column meaning
// comes from header names, not positions; a data row without a parseable
// quantity continues the previous item's description.
func ParseMarkdownPages(pages []RemotePage) (Document, error) {
	var sb strings.Builder
	for _, page := range pages {
		sb.WriteString(page.Markdown)
		sb.WriteString("\n")
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return Document{}, errNoTableItems
	}

	doc := Document{
		SupplierName: DefaultSupplierName,
		Currency:     detectCurrency(text),
		Source:       SourceTable,
	}
	if m := headingNumberPattern.FindStringSubmatch(text); m != nil {
		doc.InvoiceNumber = m[1]
	}
	if m := supplierPattern.FindStringSubmatch(text); m != nil {
		doc.SupplierName = strings.TrimSpace(strings.Trim(m[1], "* "))
	}
	if m := taxIDPattern.FindStringSubmatch(text); m != nil {
		doc.SupplierTaxID = m[1]
	}
	if m := issueDatePattern.FindStringSubmatch(text); m != nil {
		doc.IssueDate = parseDate(m[1])
	}
	if m := totalLinePattern.FindStringSubmatch(text); m != nil {
		if cents, ok := money.ToCents(m[1]); ok {
			doc.TotalIncVATCents = &cents
		}
	}

	items, exVATSum := parseItemTable(text)
	if len(items) == 0 {
		return Document{}, errNoTableItems
	}
	doc.Items = items
	if exVATSum != nil {
		doc.TotalExVATCents = exVATSum
	}
	return doc, nil
}

func parseItemTable(text string) ([]LineItem, *int64) {
	var (
		columns  map[int]tableColumn
		items    []LineItem
		exVATSum int64
		haveSum  bool
	)

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "|") {
			continue
		}
		cells := splitTableRow(trimmed)
		if len(cells) == 0 {
			continue
		}
		// Markdown separator rows consist of dashes and colons only.
		if isSeparatorRow(cells) {
			continue
		}
		if columns == nil {
			columns = make(map[int]tableColumn, len(cells))
			for i, cell := range cells {
				columns[i] = classifyHeader(cell)
			}
			continue
		}

		item, exVAT, ok := parseItemRow(cells, columns)
		if !ok {
			// Wrapped description row: attach the text to the previous item.
			if len(items) > 0 {
				if extra := strings.TrimSpace(strings.Join(nonEmpty(cells), " ")); extra != "" {
					prev := &items[len(items)-1]
					if prev.Description != "" {
						prev.Description += " "
					}
					prev.Description += extra
				}
			}
			continue
		}
		items = append(items, item)
		if exVAT != nil {
			exVATSum += *exVAT
			haveSum = true
		}
	}

	if !haveSum {
		return items, nil
	}
	return items, &exVATSum
}

func parseItemRow(cells []string, columns map[int]tableColumn) (LineItem, *int64, bool) {
	var (
		item  LineItem
		exVAT *int64
	)
	qtyOK := false
	for i, cell := range cells {
		value := strings.TrimSpace(cell)
		if value == "" {
			continue
		}
		switch columns[i] {
		case colCode:
			item.ProductCode = value
		case colDescription:
			item.Name = value
		case colQuantity:
			if d, ok := money.Normalize(value); ok && d.Sign() > 0 {
				item.Quantity = d
				qtyOK = true
			}
		case colUnitPrice:
			if cents, ok := money.ToCents(value); ok {
				item.UnitPriceCents = &cents
			}
		case colExVAT:
			if cents, ok := money.ToCents(value); ok {
				exVAT = &cents
			}
		case colVATRate:
			if d, ok := money.Normalize(value); ok {
				rate := int(d.IntPart())
				item.VATRate = &rate
			}
		case colTotal:
			if cents, ok := money.ToCents(value); ok {
				item.TotalPriceCents = &cents
			}
		}
	}
	if !qtyOK || item.Name == "" {
		return LineItem{}, nil, false
	}
	return item, exVAT, true
}

func splitTableRow(line string) []string {
	parts := strings.Split(strings.Trim(line, "|"), "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func isSeparatorRow(cells []string) bool {
	seen := false
	for _, cell := range cells {
		if cell == "" {
			continue
		}
		seen = true
		if strings.Trim(cell, "-: ") != "" {
			return false
		}
	}
	return seen
}

func nonEmpty(cells []string) []string {
	out := cells[:0:0]
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			out = append(out, strings.TrimSpace(c))
		}
	}
	return out
}

func detectCurrency(text string) string {
	folded := foldText(text)
	switch {
	case strings.Contains(folded, "eur") || strings.Contains(text, "€"):
		return "EUR"
	case strings.Contains(folded, "usd") || strings.Contains(text, "$"):
		return "USD"
	default:
		return "CZK"
	}
}
