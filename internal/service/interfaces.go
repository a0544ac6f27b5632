// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/sift/internal/model"
)

// InvoiceFilter defines filtering options for invoice queries.
type InvoiceFilter struct {
	UserID string
	Status model.ClassificationStatus
	Limit  int
}

// ClassificationUpdate is the single write the orchestrator performs after a
// successful classification.
type ClassificationUpdate struct {
	AssignedAccount *string
	InvoiceType     model.InvoiceType
	OperationType   model.OperationType
	Details         model.ClassificationDetails
}

// FeedbackUpdate describes a verdict to apply to an invoice together with the
// feedback row that records it.
type FeedbackUpdate struct {
	Feedback model.ClassificationFeedback
	Status   model.FeedbackStatus

	// Rewrite is true when the invoice type and operation must be replaced by
	// the corrected values of Feedback.
	Rewrite bool
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Invoice operations
	CreateInvoice(ctx context.Context, invoice *model.Invoice) error
	GetInvoice(ctx context.Context, id string) (*model.Invoice, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, error)
	SaveClassification(ctx context.Context, invoiceID string, update ClassificationUpdate) error
	MarkClassificationFailed(ctx context.Context, invoiceID string, message string) error
	ResetClassification(ctx context.Context, invoiceID string) error

	// Account operations
	GetAccounts(ctx context.Context, userID string) ([]model.Account, error)
	ReplaceAccountBook(ctx context.Context, book *model.AccountBook, accounts []model.Account) error
	GetAccountBook(ctx context.Context, userID string) (*model.AccountBook, error)

	// Feedback operations
	ApplyFeedback(ctx context.Context, invoiceID string, update FeedbackUpdate) error
	GetRecentCorrections(ctx context.Context, userID string, limit int) ([]model.ClassificationFeedback, error)
	GetFeedback(ctx context.Context, userID string) ([]model.ClassificationFeedback, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// DocumentStore holds the binary files behind invoices, addressed by logical path.
type DocumentStore interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
	Put(ctx context.Context, path string, data []byte, contentType string) error
	AccessURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	// MaxRetries counts retries after the first attempt. Zero selects the
	// default; a negative value disables retrying.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxJitter  time.Duration
}

// BatchSummary shows the results of a classification run.
type BatchSummary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Duration  time.Duration
}
