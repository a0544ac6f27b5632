// Package model defines the core domain models used throughout the application.
package model

import "github.com/shopspring/decimal"

// ClassificationResult is the parsed output of one model call. It is never
// persisted as its own entity; the orchestrator folds it into the invoice.
type ClassificationResult struct {
	ExtractedData  map[string]any
	TaxBase        decimal.NullDecimal
	VATAmount      decimal.NullDecimal
	TotalAmount    decimal.NullDecimal
	InvoiceType    InvoiceType
	OperationType  OperationType
	Description    string
	IssuerName     string
	IssuerTaxID    string
	RecipientName  string
	RecipientTaxID string
	InvoiceNumber  string
	InvoiceDate    string
	Currency       string
	Reasoning      string
	RawResponse    string
	CorrectionNote string
	Confidence     float64
}
