// Package storage provides the SQLite persistence layer for invoices,
// accounts and classification feedback.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/sift/internal/model"
	"github.com/Veraticus/sift/internal/service"
)

// Validation errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrNilParameter    = errors.New("parameter cannot be nil")
	ErrInvalidInvoice  = errors.New("invalid invoice")
	ErrInvalidAccount  = errors.New("invalid account")
	ErrInvalidUpdate   = errors.New("invalid classification update")
	ErrInvalidFeedback = errors.New("invalid feedback record")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateInvoice checks the fields an upload must carry.
func validateInvoice(invoice *model.Invoice) error {
	if invoice == nil {
		return fmt.Errorf("%w: invoice", ErrNilParameter)
	}
	if invoice.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidInvoice)
	}
	if invoice.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidInvoice)
	}
	if invoice.FilePath == "" {
		return fmt.Errorf("%w: missing file path", ErrInvalidInvoice)
	}
	if invoice.FileName == "" {
		return fmt.Errorf("%w: missing file name", ErrInvalidInvoice)
	}
	return nil
}

// validateUpdate enforces that a classified invoice always has a type.
func validateUpdate(update service.ClassificationUpdate) error {
	if update.InvoiceType == model.InvoiceTypeNone {
		return fmt.Errorf("%w: missing invoice type", ErrInvalidUpdate)
	}
	if update.OperationType == model.OperationNone {
		return fmt.Errorf("%w: missing operation type", ErrInvalidUpdate)
	}
	return nil
}

// validateAccounts checks an imported account book.
func validateAccounts(book *model.AccountBook, accounts []model.Account) error {
	if book == nil {
		return fmt.Errorf("%w: account book", ErrNilParameter)
	}
	if book.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidAccount)
	}
	for i, account := range accounts {
		if strings.TrimSpace(account.Code) == "" {
			return fmt.Errorf("%w: account at index %d has no code", ErrInvalidAccount, i)
		}
	}
	return nil
}

// validateFeedback checks a verdict before it is applied.
func validateFeedback(update service.FeedbackUpdate) error {
	fb := update.Feedback
	if fb.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidFeedback)
	}
	switch update.Status {
	case model.FeedbackCorrect, model.FeedbackCorrected:
	default:
		return fmt.Errorf("%w: status %q", ErrInvalidFeedback, update.Status)
	}
	if update.Rewrite && fb.CorrectedType == model.InvoiceTypeNone {
		return fmt.Errorf("%w: rewrite without corrected type", ErrInvalidFeedback)
	}
	return nil
}
