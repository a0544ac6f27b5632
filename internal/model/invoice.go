package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceType is the document category decided by the classifier.
type InvoiceType string

// Invoice type constants. The zero value means the document has not been typed yet.
const (
	InvoiceTypeNone         InvoiceType = ""
	InvoiceTypeEmitted      InvoiceType = "emitted"
	InvoiceTypeReceived     InvoiceType = "received"
	InvoiceTypeProforma     InvoiceType = "proforma"
	InvoiceTypeDeliveryNote InvoiceType = "delivery_note"
	InvoiceTypeTicket       InvoiceType = "ticket"
	InvoiceTypeNotInvoice   InvoiceType = "not_invoice"
)

var invoiceTypes = []InvoiceType{
	InvoiceTypeEmitted,
	InvoiceTypeReceived,
	InvoiceTypeProforma,
	InvoiceTypeDeliveryNote,
	InvoiceTypeTicket,
	InvoiceTypeNotInvoice,
}

// ParseInvoiceType maps free text to a known invoice type.
// It reports false when the value is not part of the closed set.
func ParseInvoiceType(s string) (InvoiceType, bool) {
	key := normalizeEnumKey(s)
	for _, t := range invoiceTypes {
		if string(t) == key {
			return t, true
		}
	}
	return InvoiceTypeNone, false
}

// IsAccountable reports whether the type is a real invoice that takes part in
// owner validation and ledger matching.
func (t InvoiceType) IsAccountable() bool {
	return t == InvoiceTypeEmitted || t == InvoiceTypeReceived
}

// ClassificationStatus tracks where an invoice is in the pipeline.
type ClassificationStatus string

// Classification status constants.
const (
	StatusPending    ClassificationStatus = "pending"
	StatusClassified ClassificationStatus = "classified"
	StatusError      ClassificationStatus = "error"
)

// FeedbackStatus records the user's verdict on a classification.
type FeedbackStatus string

// Feedback status constants. The zero value means no verdict was given.
const (
	FeedbackNone      FeedbackStatus = ""
	FeedbackCorrect   FeedbackStatus = "correct"
	FeedbackCorrected FeedbackStatus = "corrected"
)

// AccountNotFound marks an invoice whose owner has an account book but no
// account matched. A nil AssignedAccount means there is no book at all.
const AccountNotFound = "NOT_FOUND"

// Invoice is an uploaded business document and its classification state.
type Invoice struct {
	CreatedAt             time.Time
	UpdatedAt             time.Time
	AssignedAccount       *string
	ID                    string
	UserID                string
	FilePath              string
	FileName              string
	MIMEType              string
	ClientName            string
	InvoiceType           InvoiceType
	OperationType         OperationType
	ClassificationStatus  ClassificationStatus
	FeedbackStatus        FeedbackStatus
	ClassificationDetails ClassificationDetails
}

// ClassificationDetails is the structured result stored alongside an invoice.
// Amounts are encoded as JSON strings to keep their exact decimal value.
type ClassificationDetails struct {
	ClassifiedAt   *time.Time       `json:"classified_at,omitempty"`
	ExtractedData  map[string]any   `json:"extracted_data,omitempty"`
	TaxBase        *decimal.Decimal `json:"tax_base,omitempty"`
	VATAmount      *decimal.Decimal `json:"vat_amount,omitempty"`
	TotalAmount    *decimal.Decimal `json:"total_amount,omitempty"`
	InvoiceNumber  string           `json:"invoice_number,omitempty"`
	InvoiceDate    string           `json:"invoice_date,omitempty"`
	Currency       string           `json:"currency,omitempty"`
	RawResponse    string           `json:"raw_response,omitempty"`
	Reasoning      string           `json:"reasoning,omitempty"`
	Description    string           `json:"description,omitempty"`
	CorrectionNote string           `json:"correction_note,omitempty"`
	Error          string           `json:"error,omitempty"`
	Confidence     float64          `json:"confidence"`
}

func normalizeEnumKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.Join(strings.Fields(s), "_")
}
