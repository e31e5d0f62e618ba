package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fakturio/fakturio/internal/money"
)

// RemoteConfig configures the remote OCR client.
type RemoteConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// RemoteClient talks to the remote OCR/document service: a file upload
// returns an opaque id, a follow-up call exchanges it for a time-limited
// signed URL, and a final call submits the model plus a typed document
// or image reference for extraction.
type RemoteClient struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	logger  *slog.Logger
}

// NewRemoteClient builds a RemoteClient. A client without an API key is
// disabled; the cascade skips it and falls through to local extraction.
func NewRemoteClient(cfg RemoteConfig) *RemoteClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.mistral.ai"
	}
	model := cfg.Model
	if model == "" {
		model = "mistral-ocr-latest"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteClient{baseURL: base, apiKey: cfg.APIKey, model: model, http: httpClient, logger: logger}
}

// Enabled reports whether an API credential is configured.
func (c *RemoteClient) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// RemotePage is one page of extracted semi-structured text.
type RemotePage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// RemoteResponse is the tagged union of known response shapes: either a
// flat invoice-shaped JSON body or a list of per-page text segments.
type RemoteResponse struct {
	Pages []RemotePage
	Flat  map[string]any
}

// HasPages reports whether the response carries paginated text.
func (r *RemoteResponse) HasPages() bool {
	return r != nil && len(r.Pages) > 0
}

// Process runs the three-call extraction flow.
func (c *RemoteClient) Process(ctx context.Context, data []byte, filename, mimetype string) (*RemoteResponse, error) {
	if !c.Enabled() {
		return nil, errors.New("ingest: remote OCR credential not configured")
	}
	if len(data) == 0 {
		return nil, errors.New("ingest: remote OCR requires file content")
	}

	fileID, err := c.uploadFile(ctx, data, filename)
	if err != nil {
		return nil, err
	}
	signedURL, err := c.signedURL(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return c.extract(ctx, signedURL, mimetype)
}

func (c *RemoteClient) uploadFile(ctx context.Context, data []byte, filename string) (string, error) {
	if filename == "" {
		filename = "invoice.pdf"
	}
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("purpose", "ocr"); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/files", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var uploaded struct {
		ID string `json:"id"`
	}
	if err := c.do(req, &uploaded); err != nil {
		return "", fmt.Errorf("ingest: files upload: %w", err)
	}
	if uploaded.ID == "" {
		return "", errors.New("ingest: files upload returned no id")
	}
	return uploaded.ID, nil
}

func (c *RemoteClient) signedURL(ctx context.Context, fileID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/files/"+fileID+"/url?expiry=24", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var signed struct {
		URL string `json:"url"`
	}
	if err := c.do(req, &signed); err != nil {
		return "", fmt.Errorf("ingest: signed url: %w", err)
	}
	if signed.URL == "" {
		return "", errors.New("ingest: signed url missing in response")
	}
	return signed.URL, nil
}

func (c *RemoteClient) extract(ctx context.Context, signedURL, mimetype string) (*RemoteResponse, error) {
	document := map[string]any{}
	if strings.HasPrefix(mimetype, "image/") {
		document["type"] = "image_url"
		document["image_url"] = signedURL
	} else {
		document["type"] = "document_url"
		document["document_url"] = signedURL
	}
	payload := map[string]any{
		"model":                c.model,
		"document":             document,
		"include_image_base64": false,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/ocr", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var decoded map[string]any
	if err := c.do(req, &decoded); err != nil {
		return nil, fmt.Errorf("ingest: ocr request: %w", err)
	}

	resp := &RemoteResponse{Flat: decoded}
	if rawPages, ok := decoded["pages"].([]any); ok {
		for _, p := range rawPages {
			page, ok := p.(map[string]any)
			if !ok {
				continue
			}
			md, _ := page["markdown"].(string)
			idx := 0
			if f, ok := page["index"].(float64); ok {
				idx = int(f)
			}
			resp.Pages = append(resp.Pages, RemotePage{Index: idx, Markdown: md})
		}
	}
	return resp, nil
}

func (c *RemoteClient) do(req *http.Request, target any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, target)
}

// errNoStructuredInvoice signals that the remote response carried no
// flat invoice body; the table stage may still recover the pages.
var errNoStructuredInvoice = errors.New("ingest: remote response has no structured invoice")

// mapRemoteFlat maps a flat invoice-shaped response into the canonical
// document. Field names vary between payload generations, so every
// lookup walks an explicit priority list of alternate keys.
func mapRemoteFlat(payload map[string]any) (Document, error) {
	if payload == nil {
		return Document{}, errNoStructuredInvoice
	}

	invoice := pickChild(payload, "invoice", "document")
	supplier := pickChild(payload, "supplier", "vendor")
	if supplier == nil {
		supplier = pickChild(invoice, "supplier")
	}
	totals := pickChild(payload, "totals")
	if totals == nil {
		totals = pickChild(invoice, "totals")
	}

	items := pickList(payload, "items", "line_items")
	if items == nil {
		items = pickList(invoice, "items")
	}
	if len(items) == 0 {
		return Document{}, errNoStructuredInvoice
	}

	doc := Document{
		SupplierName:  firstString(supplier, "name"),
		SupplierTaxID: firstString(supplier, "ico", "ic", "tax_id", "registration"),
		InvoiceNumber: firstString(invoice, "number", "invoice_number", "id"),
		Currency:      strings.ToUpper(firstString(payload, "currency")),
		Source:        SourceRemoteOCR,
	}
	if doc.SupplierName == "" {
		doc.SupplierName = firstString(invoice, "supplier_name", "supplierName")
	}
	if doc.InvoiceNumber == "" {
		doc.InvoiceNumber = firstString(payload, "invoice_number")
	}
	if doc.Currency == "" {
		doc.Currency = strings.ToUpper(firstString(invoice, "currency"))
	}
	if doc.Currency == "" {
		doc.Currency = strings.ToUpper(firstString(totals, "currency"))
	}

	if raw := firstString(invoice, "date", "issue_date"); raw != "" {
		if ts := parseDate(raw); ts != nil {
			doc.IssueDate = ts
		}
	} else if raw := firstString(payload, "issueDate", "date"); raw != "" {
		doc.IssueDate = parseDate(raw)
	}

	doc.TotalExVATCents = firstCents(totals, "excluding_vat", "net", "total_ex_tax")
	if doc.TotalExVATCents == nil {
		doc.TotalExVATCents = firstCents(invoice, "total_ex_tax")
	}
	doc.TotalIncVATCents = firstCents(totals, "including_vat", "gross", "total_inc_tax")
	if doc.TotalIncVATCents == nil {
		doc.TotalIncVATCents = firstCents(invoice, "total_inc_tax")
	}

	for _, raw := range items {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		item := LineItem{
			Name:        firstString(entry, "name", "title", "description"),
			Description: firstString(entry, "description", "details"),
			ProductCode: firstString(entry, "code", "product_code", "sku"),
		}
		item.Quantity = NormalizeQuantity(firstRaw(entry, "quantity", "qty"))
		item.UnitPriceCents = firstCents(entry, "unit_price", "unitPrice", "price_unit")
		item.TotalPriceCents = firstCents(entry, "total_price", "totalPrice", "amount", "price_total")
		if rate := firstCents(entry, "vat_rate", "vatRate", "tax_rate"); rate != nil {
			pct := int(*rate / 100)
			item.VATRate = &pct
		}
		if item.Name == "" {
			item.Name = "Položka"
		}
		doc.Items = append(doc.Items, item)
	}
	if len(doc.Items) == 0 {
		return Document{}, errNoStructuredInvoice
	}
	return doc, nil
}

func pickChild(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if child, ok := m[k].(map[string]any); ok {
			return child
		}
	}
	return nil
}

func pickList(m map[string]any, keys ...string) []any {
	for _, k := range keys {
		if list, ok := m[k].([]any); ok {
			return list
		}
	}
	return nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstRaw(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return decimal.NewFromFloat(v).String()
		}
	}
	return ""
}

// firstCents resolves the first present numeric value in major units
// and converts it to cents. Unparseable values are skipped, per the
// money kernel's fail-closed contract.
func firstCents(m map[string]any, keys ...string) *int64 {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			cents := money.DecimalToCents(decimal.NewFromFloat(v))
			return &cents
		case string:
			if cents, ok := money.ToCents(v); ok {
				return &cents
			}
		}
	}
	return nil
}

func parseDate(raw string) *time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02", "02.01.2006"} {
		if ts, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
			ts = ts.UTC()
			return &ts
		}
	}
	return nil
}
