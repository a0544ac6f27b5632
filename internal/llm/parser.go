package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/sift/internal/common"
	"github.com/Veraticus/sift/internal/model"
)

// ErrUnsupportedMIMEType is returned for attachments the providers cannot read.
var ErrUnsupportedMIMEType = fmt.Errorf("%w: unsupported MIME type", common.ErrUnreadableDocument)

// parseClassification decodes the model's answer. The text may be wrapped in
// a Markdown code fence. invoice_type is mandatory; every other field is
// best-effort.
func parseClassification(text string) (*model.ClassificationResult, error) {
	body := extractJSONObject(stripCodeFences(text))
	if body == "" {
		return nil, fmt.Errorf("%w: no JSON object in response", common.ErrMalformedModelOutput)
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrMalformedModelOutput, err)
	}

	typeText := stringField(raw, "invoice_type")
	if typeText == "" {
		return nil, fmt.Errorf("%w: missing invoice_type", common.ErrMalformedModelOutput)
	}
	invoiceType, ok := model.ParseInvoiceType(typeText)
	if !ok {
		return nil, fmt.Errorf("%w: unknown invoice_type %q", common.ErrMalformedModelOutput, typeText)
	}

	return &model.ClassificationResult{
		ExtractedData:  raw,
		InvoiceType:    invoiceType,
		OperationType:  model.NormalizeOperationType(stringField(raw, "operation_type")),
		Confidence:     parseConfidence(raw["confidence"]),
		Description:    stringField(raw, "description"),
		IssuerName:     stringField(raw, "issuer_name"),
		IssuerTaxID:    stringField(raw, "issuer_tax_id"),
		RecipientName:  stringField(raw, "recipient_name"),
		RecipientTaxID: stringField(raw, "recipient_tax_id"),
		InvoiceNumber:  stringField(raw, "invoice_number"),
		InvoiceDate:    stringField(raw, "invoice_date"),
		Currency:       stringField(raw, "currency"),
		TaxBase:        decimalField(raw, "tax_base"),
		VATAmount:      decimalField(raw, "vat_amount"),
		TotalAmount:    decimalField(raw, "total_amount"),
		Reasoning:      stringField(raw, "reasoning"),
		RawResponse:    text,
	}, nil
}

// stripCodeFences removes a surrounding ``` or ```json fence.
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		// drop the language tag
		text = text[nl+1:]
	}
	if end := strings.LastIndex(text, "```"); end >= 0 {
		text = text[:end]
	}
	return strings.TrimSpace(text)
}

// extractJSONObject returns the outermost {...} span, tolerating chatter
// around it.
func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return ""
	}
	return text[start : end+1]
}

func stringField(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// parseConfidence accepts a fraction, a percentage number or a "85%" string
// and clamps the result to [0, 1].
func parseConfidence(v any) float64 {
	var f float64
	switch c := v.(type) {
	case json.Number:
		parsed, err := c.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		s := strings.TrimSpace(c)
		percent := strings.HasSuffix(s, "%")
		parsed, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
		if err != nil {
			return 0
		}
		f = parsed
		if percent {
			f /= 100
		}
	default:
		return 0
	}

	if f > 1 {
		f /= 100
	}
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

// decimalField reads an amount written either as a JSON number or as text in
// Spanish ("1.234,56") or plain ("1234.56") notation. Unparseable values are
// reported as absent.
func decimalField(raw map[string]any, key string) decimal.NullDecimal {
	switch v := raw[key].(type) {
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(d)
	case string:
		d, err := decimal.NewFromString(normalizeAmount(v))
		if err != nil {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(d)
	default:
		return decimal.NullDecimal{}
	}
}

// normalizeAmount turns "1.234,56", "1,234.56" or "€ 12,50" into a string
// decimal can parse. With both separators present the last one is the
// decimal point. A lone separator repeated more than once groups thousands.
func normalizeAmount(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	out := b.String()

	dot, comma := strings.LastIndex(out, "."), strings.LastIndex(out, ",")
	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			out = strings.ReplaceAll(out, ".", "")
			out = strings.Replace(out, ",", ".", 1)
		} else {
			out = strings.ReplaceAll(out, ",", "")
		}
	case comma >= 0:
		if strings.Count(out, ",") > 1 {
			out = strings.ReplaceAll(out, ",", "")
		} else {
			out = strings.Replace(out, ",", ".", 1)
		}
	case dot >= 0:
		if strings.Count(out, ".") > 1 {
			out = strings.ReplaceAll(out, ".", "")
		}
	}
	return out
}
