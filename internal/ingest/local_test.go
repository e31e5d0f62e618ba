package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLocalText(t *testing.T) {
	text := `Faktura č.: INV-123
Dodavatel: Lokální Dodavatel s.r.o.
Datum vystavení: 17.09.2025
Celkem: 1 210,00 Kč`

	doc, err := parseLocalText(text)
	require.NoError(t, err)
	require.Equal(t, SourceLocal, doc.Source)
	require.Equal(t, "INV-123", doc.InvoiceNumber)
	require.Contains(t, doc.SupplierName, "Lokální Dodavatel")
	require.Equal(t, "CZK", doc.Currency)
	require.Equal(t, "2025-09-17", doc.IssueDate.Format("2006-01-02"))
	require.NotNil(t, doc.TotalIncVATCents)
	require.Equal(t, int64(121000), *doc.TotalIncVATCents)
	require.NotEmpty(t, doc.Items)
	require.Equal(t, int64(121000), *doc.Items[0].TotalPriceCents)
}

func TestParseLocalTextISODate(t *testing.T) {
	doc, err := parseLocalText("Faktura 2024001\nVystaveno 2024-02-29\nCelkem: 500,00")
	require.NoError(t, err)
	require.Equal(t, "2024001", doc.InvoiceNumber)
	require.Equal(t, "2024-02-29", doc.IssueDate.Format("2006-01-02"))
}

func TestParseLocalTextNothingUsable(t *testing.T) {
	_, err := parseLocalText("")
	require.ErrorIs(t, err, errNoLocalText)

	_, err = parseLocalText("úplně nesouvisející text bez čísel")
	require.ErrorIs(t, err, errNoLocalText)
}

func TestParseLocalTextNumberWithoutTotal(t *testing.T) {
	doc, err := parseLocalText("Faktura č. FV-2025-17\nDodavatel: Acme s.r.o.")
	require.NoError(t, err)
	require.Equal(t, "FV-2025-17", doc.InvoiceNumber)
	// A coarse placeholder item keeps downstream code uniform.
	require.Len(t, doc.Items, 1)
	require.Equal(t, int64(0), *doc.Items[0].TotalPriceCents)
}

func TestLazyExtractorCachesBuildFailure(t *testing.T) {
	builds := 0
	lazy := &LazyExtractor{Build: func() (TextExtractor, error) {
		builds++
		return nil, errors.New("mupdf missing")
	}}

	_, err := lazy.Extract(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrExtractorUnavailable)
	_, err = lazy.Extract(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrExtractorUnavailable)
	require.Equal(t, 1, builds, "construction happens once")
}

type staticExtractor struct {
	text string
	err  error
}

func (s staticExtractor) Extract(context.Context, []byte) (string, error) {
	return s.text, s.err
}

func TestLazyExtractorDelegates(t *testing.T) {
	lazy := &LazyExtractor{Build: func() (TextExtractor, error) {
		return staticExtractor{text: "Faktura č. 1"}, nil
	}}
	text, err := lazy.Extract(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "Faktura č. 1", text)
}
