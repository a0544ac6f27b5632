package llm

import (
	"fmt"
	"strings"

	"github.com/Veraticus/sift/internal/model"
)

const classificationSystemPrompt = "You are a meticulous Spanish bookkeeping assistant. You MUST respond with ONLY a valid JSON object. Do not include any explanatory text, markdown formatting, or commentary before or after the JSON."

// buildClassificationPrompt renders the instruction text for one document.
func buildClassificationPrompt(owner, history string, hasAccountBook bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "The attached document belongs to the business %q. Decide what kind of document it is from that business's point of view.\n\n", owner)

	b.WriteString("invoice_type must be one of:\n")
	b.WriteString("- emitted: an invoice issued BY the business (the business is the seller)\n")
	b.WriteString("- received: an invoice issued TO the business (the business is the buyer)\n")
	b.WriteString("- proforma: a proforma invoice or quote\n")
	b.WriteString("- delivery_note: a delivery note (albarán)\n")
	b.WriteString("- ticket: a simplified invoice or till receipt\n")
	b.WriteString("- not_invoice: anything else\n\n")

	b.WriteString("operation_type must be one of:\n")
	for _, op := range model.OperationTypes {
		fmt.Fprintf(&b, "- %s\n", op)
	}
	b.WriteString("\nUse not_applicable for proforma, delivery_note and not_invoice documents and ticket for tickets.\n\n")

	b.WriteString("Respond with a JSON object containing:\n")
	b.WriteString(`{
  "invoice_type": "...",
  "operation_type": "...",
  "confidence": 0.0,
  "issuer_name": "...",
  "issuer_tax_id": "...",
  "recipient_name": "...",
  "recipient_tax_id": "...",
  "invoice_number": "...",
  "invoice_date": "YYYY-MM-DD",
  "currency": "EUR",
  "tax_base": 0.00,
  "vat_amount": 0.00,
  "total_amount": 0.00,`)
	if hasAccountBook {
		b.WriteString(`
  "description": "...",`)
	}
	b.WriteString(`
  "reasoning": "..."
}
`)
	b.WriteString("\nconfidence is a number between 0 and 1.")
	if hasAccountBook {
		b.WriteString(" description is a concise summary of the goods or services invoiced, in a few words, used to pick a ledger account.")
	}
	b.WriteString("\n")

	if history != "" {
		b.WriteString("\n")
		b.WriteString(history)
		if !strings.HasSuffix(history, "\n") {
			b.WriteString("\n")
		}
	}

	return b.String()
}
