package ingest

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const sampleISDOC = `<?xml version="1.0" encoding="utf-8"?>
<Invoice xmlns="http://isdoc.cz/namespace/2013" version="6.0.1">
  <ID>FV-2025-0042</ID>
  <IssueDate>2025-03-10</IssueDate>
  <LocalCurrencyCode>CZK</LocalCurrencyCode>
  <AccountingSupplierParty>
    <Party>
      <PartyIdentification>
        <ID>12345678</ID>
      </PartyIdentification>
      <PartyName>
        <Name>Acme s.r.o.</Name>
      </PartyName>
    </Party>
  </AccountingSupplierParty>
  <InvoiceLines>
    <InvoiceLine>
      <InvoicedQuantity>2</InvoicedQuantity>
      <LineExtensionAmount>10000</LineExtensionAmount>
      <UnitPrice>5000</UnitPrice>
      <Item>
        <Description>IT služby</Description>
      </Item>
      <TaxTotal>
        <TaxSubtotal>
          <TaxCategory>
            <Percent>21</Percent>
          </TaxCategory>
        </TaxSubtotal>
      </TaxTotal>
    </InvoiceLine>
  </InvoiceLines>
  <LegalMonetaryTotal>
    <TaxExclusiveAmount>10000</TaxExclusiveAmount>
    <TaxInclusiveAmount>12100</TaxInclusiveAmount>
  </LegalMonetaryTotal>
</Invoice>`

func TestParseISDOC(t *testing.T) {
	doc, err := ParseISDOC([]byte(sampleISDOC))
	require.NoError(t, err)

	require.Equal(t, SourceISDOC, doc.Source)
	require.Equal(t, "FV-2025-0042", doc.InvoiceNumber)
	require.Equal(t, "Acme s.r.o.", doc.SupplierName)
	require.Equal(t, "12345678", doc.SupplierTaxID)
	require.Equal(t, "CZK", doc.Currency)
	require.Equal(t, "2025-03-10", doc.IssueDate.Format("2006-01-02"))
	require.Equal(t, int64(1000000), *doc.TotalExVATCents)
	require.Equal(t, int64(1210000), *doc.TotalIncVATCents)

	require.Len(t, doc.Items, 1)
	item := doc.Items[0]
	require.Equal(t, "IT služby", item.Name)
	require.True(t, item.Quantity.Equal(decimal.NewFromInt(2)))
	require.Equal(t, int64(500000), *item.UnitPriceCents)
	require.Equal(t, int64(1000000), *item.TotalPriceCents)
	require.Equal(t, 21, *item.VATRate)
}

const sampleUBL = `<?xml version="1.0"?>
<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2">
  <ID>UBL-7</ID>
  <IssueDate>2025-01-05</IssueDate>
  <DocumentCurrencyCode>EUR</DocumentCurrencyCode>
  <AccountingSupplierParty>
    <Party>
      <PartyName><Name>Euro Supplies GmbH</Name></PartyName>
    </Party>
  </AccountingSupplierParty>
  <LegalMonetaryTotal>
    <TaxExclusiveAmount>100</TaxExclusiveAmount>
    <TaxInclusiveAmount>121</TaxInclusiveAmount>
  </LegalMonetaryTotal>
  <InvoiceLine>
    <InvoicedQuantity>1</InvoicedQuantity>
    <LineExtensionAmount>100</LineExtensionAmount>
    <Item>
      <Name>Subscription</Name>
      <ClassifiedTaxCategory><Percent>21</Percent></ClassifiedTaxCategory>
    </Item>
    <Price><PriceAmount>100</PriceAmount></Price>
  </InvoiceLine>
</Invoice>`

func TestParseUBLVariant(t *testing.T) {
	doc, err := ParseISDOC([]byte(sampleUBL))
	require.NoError(t, err)
	require.Equal(t, "UBL-7", doc.InvoiceNumber)
	require.Equal(t, "Euro Supplies GmbH", doc.SupplierName)
	require.Equal(t, "EUR", doc.Currency)
	require.Len(t, doc.Items, 1)
	require.Equal(t, "Subscription", doc.Items[0].Name)
	require.Equal(t, int64(10000), *doc.Items[0].UnitPriceCents)
	require.Equal(t, 21, *doc.Items[0].VATRate)
}

func TestParseISDOCRejectsGarbage(t *testing.T) {
	_, err := ParseISDOC(nil)
	require.ErrorIs(t, err, ErrNotISDOC)

	_, err = ParseISDOC([]byte("not xml at all"))
	require.ErrorIs(t, err, ErrNotISDOC)

	_, err = ParseISDOC([]byte(`<Other><ID>1</ID></Other>`))
	require.ErrorIs(t, err, ErrNotISDOC)
}

func TestIsISDOCFilename(t *testing.T) {
	require.True(t, IsISDOCFilename("invoice.isdoc"))
	require.True(t, IsISDOCFilename("INVOICE.ISDOCX"))
	require.True(t, IsISDOCFilename("invoice.xml"))
	require.False(t, IsISDOCFilename("invoice.pdf"))
}
