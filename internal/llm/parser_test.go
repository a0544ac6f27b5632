package llm

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/sift/internal/common"
	"github.com/Veraticus/sift/internal/model"
)

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantType      model.InvoiceType
		wantOperation model.OperationType
		wantConf      float64
		wantErr       bool
	}{
		{
			name:          "plain json",
			input:         `{"invoice_type":"received","operation_type":"interiores_iva_deducible","confidence":0.92}`,
			wantType:      model.InvoiceTypeReceived,
			wantOperation: model.OperationDomesticDeductibleVAT,
			wantConf:      0.92,
		},
		{
			name: "fenced json with language tag",
			input: "```json\n" +
				`{"invoice_type":"emitted","operation_type":"kit_digital","confidence":0.8}` +
				"\n```",
			wantType:      model.InvoiceTypeEmitted,
			wantOperation: model.OperationKitDigital,
			wantConf:      0.8,
		},
		{
			name:          "chatter around the object",
			input:         "Here is the result:\n{\"invoice_type\":\"ticket\",\"operation_type\":\"ticket\",\"confidence\":1}\nThanks",
			wantType:      model.InvoiceTypeTicket,
			wantOperation: model.OperationTicket,
			wantConf:      1,
		},
		{
			name:          "operation is case and space insensitive",
			input:         `{"invoice_type":"Received","operation_type":"  Inversion Sujeto Pasivo ","confidence":0.5}`,
			wantType:      model.InvoiceTypeReceived,
			wantOperation: model.OperationReverseCharge,
			wantConf:      0.5,
		},
		{
			name:          "unknown operation becomes other",
			input:         `{"invoice_type":"received","operation_type":"leasing","confidence":0.7}`,
			wantType:      model.InvoiceTypeReceived,
			wantOperation: model.OperationOther,
			wantConf:      0.7,
		},
		{
			name:          "percentage confidence",
			input:         `{"invoice_type":"received","operation_type":"suplidos","confidence":85}`,
			wantType:      model.InvoiceTypeReceived,
			wantOperation: model.OperationDisbursements,
			wantConf:      0.85,
		},
		{
			name:          "percentage string confidence",
			input:         `{"invoice_type":"proforma","operation_type":"","confidence":"40%"}`,
			wantType:      model.InvoiceTypeProforma,
			wantOperation: model.OperationOther,
			wantConf:      0.4,
		},
		{
			name:          "delivery note with hyphen",
			input:         `{"invoice_type":"delivery-note","confidence":-3}`,
			wantType:      model.InvoiceTypeDeliveryNote,
			wantOperation: model.OperationOther,
			wantConf:      0,
		},
		{
			name:    "not json",
			input:   "I cannot read this document.",
			wantErr: true,
		},
		{
			name:    "truncated json",
			input:   `{"invoice_type":"received", "confidence": }`,
			wantErr: true,
		},
		{
			name:    "missing invoice type",
			input:   `{"operation_type":"importaciones","confidence":0.9}`,
			wantErr: true,
		},
		{
			name:    "unknown invoice type",
			input:   `{"invoice_type":"receipt","confidence":0.9}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseClassification(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, common.ErrMalformedModelOutput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, got.InvoiceType)
			assert.Equal(t, tt.wantOperation, got.OperationType)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
			assert.Equal(t, tt.input, got.RawResponse)
			assert.NotEmpty(t, got.ExtractedData)
		})
	}
}

func TestParseClassification_ExtractedFields(t *testing.T) {
	input := `{
		"invoice_type": "received",
		"operation_type": "interiores_iva_deducible",
		"confidence": 0.9,
		"issuer_name": " Papelería Sol S.L. ",
		"issuer_tax_id": "B12345678",
		"recipient_name": "Acme S.L.",
		"invoice_number": "F-2024/001",
		"invoice_date": "2024-03-01",
		"currency": "EUR",
		"tax_base": 100.50,
		"vat_amount": "21,11",
		"total_amount": "1.121,61 €",
		"description": "material de oficina",
		"reasoning": "Acme is the buyer",
		"line_items": [{"qty": 2}]
	}`

	got, err := parseClassification(input)
	require.NoError(t, err)

	assert.Equal(t, "Papelería Sol S.L.", got.IssuerName)
	assert.Equal(t, "B12345678", got.IssuerTaxID)
	assert.Equal(t, "Acme S.L.", got.RecipientName)
	assert.Empty(t, got.RecipientTaxID)
	assert.Equal(t, "F-2024/001", got.InvoiceNumber)
	assert.Equal(t, "2024-03-01", got.InvoiceDate)
	assert.Equal(t, "EUR", got.Currency)
	assert.Equal(t, "material de oficina", got.Description)
	assert.Equal(t, "Acme is the buyer", got.Reasoning)

	require.True(t, got.TaxBase.Valid)
	assert.True(t, got.TaxBase.Decimal.Equal(decimal.RequireFromString("100.50")))
	require.True(t, got.VATAmount.Valid)
	assert.True(t, got.VATAmount.Decimal.Equal(decimal.RequireFromString("21.11")))
	require.True(t, got.TotalAmount.Valid)
	assert.True(t, got.TotalAmount.Decimal.Equal(decimal.RequireFromString("1121.61")))

	assert.Contains(t, got.ExtractedData, "line_items")
}

func TestParseClassification_AmountFormats(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "1,234.56", want: "1234.56"},
		{input: "1.234,56", want: "1234.56"},
		{input: "€ 1.234,56", want: "1234.56"},
		{input: "1,234,567.89 EUR", want: "1234567.89"},
		{input: "1.234.567", want: "1234567"},
		{input: "1,234,567", want: "1234567"},
		{input: "12,5", want: "12.5"},
		{input: "12.5", want: "12.5"},
		{input: "-7,30", want: "-7.3"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseClassification(`{"invoice_type": "received", "total_amount": "` + tt.input + `"}`)
			require.NoError(t, err)
			require.True(t, got.TotalAmount.Valid)
			assert.True(t, got.TotalAmount.Decimal.Equal(decimal.RequireFromString(tt.want)),
				"got %s", got.TotalAmount.Decimal)
		})
	}

	got, err := parseClassification(`{"invoice_type": "received", "total_amount": "n/a"}`)
	require.NoError(t, err)
	assert.False(t, got.TotalAmount.Valid)
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "no fence", input: `  {"a":1} `, want: `{"a":1}`},
		{name: "bare fence", input: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "json fence", input: "```json\n{\"a\":1}\n```\n", want: `{"a":1}`},
		{name: "unterminated fence", input: "```json\n{\"a\":1}", want: `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripCodeFences(tt.input))
		})
	}
}
