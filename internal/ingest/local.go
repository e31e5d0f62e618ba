package ingest

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/shopspring/decimal"

	"github.com/fakturio/fakturio/internal/money"
)

// TextExtractor recovers plain text from a document buffer. It exists as
// an injected dependency so the regex fallback can be exercised without
// a PDF rasterizer, and so the rasterizer is built only when needed.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// ErrExtractorUnavailable is returned when the lazy extractor could not
// be constructed.
var ErrExtractorUnavailable = errors.New("ingest: text extractor unavailable")

// FitzExtractor extracts text from PDF buffers with MuPDF.
type FitzExtractor struct{}

// Extract implements TextExtractor.
func (FitzExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	var sb strings.Builder
	for page := 0; page < doc.NumPage(); page++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := doc.Text(page)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// LazyExtractor defers construction of the underlying extractor until
// first use and caches the outcome, including a construction failure.
type LazyExtractor struct {
	Build func() (TextExtractor, error)

	once  sync.Once
	inner TextExtractor
	err   error
}

// Extract implements TextExtractor.
func (l *LazyExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	l.once.Do(func() {
		if l.Build == nil {
			l.err = ErrExtractorUnavailable
			return
		}
		l.inner, l.err = l.Build()
	})
	if l.err != nil {
		return "", errors.Join(ErrExtractorUnavailable, l.err)
	}
	return l.inner.Extract(ctx, data)
}

var (
	localNumberPattern = regexp.MustCompile(`(?mi)faktura\s*(?:[čc]\.?|[čc][ií]slo)?\s*:?\s*([A-Z0-9][A-Z0-9/_-]+)`)
	localSupplier      = regexp.MustCompile(`(?mi)^(?:dodavatel|prod[aá]vaj[ií]c[ií])\s*:?\s*(.+?)\s*$`)
	localDateDotted    = regexp.MustCompile(`\b(\d{2})\.(\d{2})\.(\d{4})\b`)
	localDateISO       = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	localTotal         = regexp.MustCompile(`(?mi)celkem(?:\s+k\s+[uú]hrad[eě])?\s*:?\s*([\d\s\x{00a0}.,]+)`)
)

// errNoLocalText signals the local heuristics found nothing usable.
var errNoLocalText = errors.New("ingest: local extraction recovered no invoice data")

// parseLocalText applies best-effort heuristics to raw extracted text:
// invoice number, issue date (DD.MM.YYYY and YYYY-MM-DD), currency token
// and a single coarse total line item when structured items cannot be
// recovered.
func parseLocalText(text string) (Document, error) {
	if strings.TrimSpace(text) == "" {
		return Document{}, errNoLocalText
	}

	doc := Document{
		SupplierName: DefaultSupplierName,
		Currency:     detectCurrency(text),
		Source:       SourceLocal,
	}
	if m := localNumberPattern.FindStringSubmatch(text); m != nil {
		doc.InvoiceNumber = strings.TrimRight(m[1], ".,:")
	}
	if m := localSupplier.FindStringSubmatch(text); m != nil {
		doc.SupplierName = strings.TrimSpace(m[1])
	}
	if m := localDateDotted.FindStringSubmatch(text); m != nil {
		doc.IssueDate = parseDate(m[0])
	} else if m := localDateISO.FindStringSubmatch(text); m != nil {
		doc.IssueDate = parseDate(m[0])
	}

	if m := localTotal.FindStringSubmatch(text); m != nil {
		if cents, ok := money.ToCents(m[1]); ok {
			doc.TotalIncVATCents = &cents
			item := LineItem{
				Name:            "Fakturovaná částka",
				Description:     "Souhrnná položka z lokální extrakce",
				Quantity:        decimal.NewFromInt(1),
				TotalPriceCents: &cents,
			}
			doc.Items = append(doc.Items, item)
		}
	}

	if doc.InvoiceNumber == "" && len(doc.Items) == 0 {
		return Document{}, errNoLocalText
	}
	if len(doc.Items) == 0 {
		zero := int64(0)
		doc.Items = append(doc.Items, LineItem{
			Name:            "Položka z OCR",
			Description:     "Strukturované položky se nepodařilo vytěžit",
			Quantity:        decimal.NewFromInt(1),
			TotalPriceCents: &zero,
		})
	}
	return doc, nil
}
