package ingest

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const sampleMarkdown = `
# Faktura - Daňový doklad - 12345

**Prodávající:** Test s.r.o.
IČ: 12345678

|  Kód | Popis | Ks | Cena ks | bez DPH | DPH | DPH% | Cena | Záruka  |
|  AA1 | Testovací položka A | 2 | 1 000,00 | 2 000,00 | 420,00 | 21 | 2 420,00 | 12  |
|  BB2 | Testovací položka B | 1 | 500,00 | 500,00 | 105,00 | 21 | 605,00 | 12  |

Celkem: 3 025,00 Kč

Datum vystavení: 17.09.2025
`

func TestParseMarkdownPages(t *testing.T) {
	doc, err := ParseMarkdownPages([]RemotePage{{Index: 0, Markdown: sampleMarkdown}})
	require.NoError(t, err)

	require.Equal(t, "12345", doc.InvoiceNumber)
	require.Equal(t, "Test s.r.o.", doc.SupplierName)
	require.Equal(t, "12345678", doc.SupplierTaxID)
	require.Equal(t, "CZK", doc.Currency)
	require.Equal(t, SourceTable, doc.Source)

	require.NotNil(t, doc.IssueDate)
	require.Equal(t, "2025-09-17", doc.IssueDate.Format("2006-01-02"))

	require.NotNil(t, doc.TotalIncVATCents)
	require.Equal(t, int64(302500), *doc.TotalIncVATCents)
	require.NotNil(t, doc.TotalExVATCents)
	require.Equal(t, int64(250000), *doc.TotalExVATCents)

	require.Len(t, doc.Items, 2)
	first := doc.Items[0]
	require.Equal(t, "Testovací položka A", first.Name)
	require.Equal(t, "AA1", first.ProductCode)
	require.True(t, first.Quantity.Equal(decimal.NewFromInt(2)))
	require.Equal(t, int64(100000), *first.UnitPriceCents)
	require.Equal(t, int64(242000), *first.TotalPriceCents)
	require.Equal(t, 21, *first.VATRate)
}

func TestParseMarkdownWrappedDescriptionRow(t *testing.T) {
	markdown := `
| Popis | Ks | Cena |
| Notebook Dell | 1 | 25 000,00 |
| včetně dokovací stanice | | |
| Monitor | 2 | 8 000,00 |
`
	doc, err := ParseMarkdownPages([]RemotePage{{Markdown: markdown}})
	require.NoError(t, err)
	require.Len(t, doc.Items, 2)
	require.Equal(t, "Notebook Dell", doc.Items[0].Name)
	require.Contains(t, doc.Items[0].Description, "včetně dokovací stanice")
	require.Equal(t, "Monitor", doc.Items[1].Name)
}

func TestParseMarkdownSeparatorRowIgnored(t *testing.T) {
	markdown := `
| Popis | Ks | Cena |
| --- | ---: | ---: |
| Tiskárna | 1 | 4 500,00 |
`
	doc, err := ParseMarkdownPages([]RemotePage{{Markdown: markdown}})
	require.NoError(t, err)
	require.Len(t, doc.Items, 1)
	require.Equal(t, "Tiskárna", doc.Items[0].Name)
	require.Equal(t, int64(450000), *doc.Items[0].TotalPriceCents)
}

func TestParseMarkdownNoItemsFails(t *testing.T) {
	_, err := ParseMarkdownPages([]RemotePage{{Markdown: "# Faktura 99\nžádná tabulka"}})
	require.ErrorIs(t, err, errNoTableItems)

	_, err = ParseMarkdownPages(nil)
	require.ErrorIs(t, err, errNoTableItems)
}
