package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newOCRServer(t *testing.T, ocrBody any) (*httptest.Server, *[]string) {
	t.Helper()
	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/v1/files":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "file_123", "object": "file"})
		case r.URL.Path == "/v1/files/file_123/url":
			_ = json.NewEncoder(w).Encode(map[string]any{"url": "https://signed.example/invoice.pdf"})
		case r.URL.Path == "/v1/ocr":
			_ = json.NewEncoder(w).Encode(ocrBody)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestRemoteClientThreeCallFlow(t *testing.T) {
	flat := map[string]any{
		"invoice": map[string]any{
			"invoice_number": "INV-2024-001",
			"issue_date":     "2024-01-10",
		},
		"supplier": map[string]any{
			"name": "Dodavatel s.r.o.",
			"ico":  "12345678",
		},
		"totals": map[string]any{
			"including_vat": 121000,
			"excluding_vat": 100000,
			"currency":      "CZK",
		},
		"items": []any{
			map[string]any{
				"name":        "IT služby",
				"quantity":    2,
				"unit_price":  50000,
				"total_price": 100000,
				"vat_rate":    21,
			},
		},
	}
	server, calls := newOCRServer(t, flat)

	client := NewRemoteClient(RemoteConfig{BaseURL: server.URL, APIKey: "test-key"})
	resp, err := client.Process(context.Background(), []byte("%PDF-1.4 fake"), "invoice.pdf", "application/pdf")
	require.NoError(t, err)
	require.Len(t, *calls, 3, "upload, signed URL, extraction")

	doc, err := mapRemoteFlat(resp.Flat)
	require.NoError(t, err)
	require.Equal(t, "INV-2024-001", doc.InvoiceNumber)
	require.Equal(t, "Dodavatel s.r.o.", doc.SupplierName)
	require.Equal(t, "12345678", doc.SupplierTaxID)
	require.Equal(t, "CZK", doc.Currency)
	require.Equal(t, "2024-01-10", doc.IssueDate.Format("2006-01-02"))
	require.Equal(t, int64(12100000), *doc.TotalIncVATCents)
	require.Len(t, doc.Items, 1)
	require.True(t, doc.Items[0].Quantity.Equal(decimal.NewFromInt(2)))
	require.Equal(t, int64(5000000), *doc.Items[0].UnitPriceCents)
	require.Equal(t, 21, *doc.Items[0].VATRate)
}

func TestRemoteClientSurfacesPages(t *testing.T) {
	pages := map[string]any{
		"pages": []any{
			map[string]any{"index": 0, "markdown": "# Faktura - 12345"},
		},
		"model": "mistral-ocr-latest",
	}
	server, _ := newOCRServer(t, pages)

	client := NewRemoteClient(RemoteConfig{BaseURL: server.URL, APIKey: "test-key"})
	resp, err := client.Process(context.Background(), []byte("%PDF"), "invoice.pdf", "application/pdf")
	require.NoError(t, err)
	require.True(t, resp.HasPages())
	require.Equal(t, "# Faktura - 12345", resp.Pages[0].Markdown)

	// A pages-only response has no structured invoice for stage one.
	_, err = mapRemoteFlat(resp.Flat)
	require.ErrorIs(t, err, errNoStructuredInvoice)
}

func TestRemoteClientUploadFailureStopsFlow(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"object":"error","message":"Service unavailable."}`, http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client := NewRemoteClient(RemoteConfig{BaseURL: server.URL, APIKey: "test-key"})
	_, err := client.Process(context.Background(), []byte("%PDF"), "invoice.pdf", "application/pdf")
	require.Error(t, err)
	require.Contains(t, err.Error(), "files upload")
	require.Equal(t, 1, calls, "failure on upload must not continue the flow")
}

func TestRemoteClientDisabledWithoutKey(t *testing.T) {
	client := NewRemoteClient(RemoteConfig{})
	require.False(t, client.Enabled())
	_, err := client.Process(context.Background(), []byte("x"), "a.pdf", "application/pdf")
	require.Error(t, err)
}

func TestMapRemoteFlatAlternateKeys(t *testing.T) {
	payload := map[string]any{
		"document": map[string]any{
			"number": "ALT-9",
			"date":   "2025-02-01",
		},
		"vendor": map[string]any{
			"name":         "Vendor Inc",
			"registration": "999",
		},
		"line_items": []any{
			map[string]any{"title": "Widget", "qty": 1, "amount": 10.5},
		},
	}
	doc, err := mapRemoteFlat(payload)
	require.NoError(t, err)
	require.Equal(t, "ALT-9", doc.InvoiceNumber)
	require.Equal(t, "Vendor Inc", doc.SupplierName)
	require.Equal(t, "999", doc.SupplierTaxID)
	require.Equal(t, "Widget", doc.Items[0].Name)
	require.Equal(t, int64(1050), *doc.Items[0].TotalPriceCents)
}
