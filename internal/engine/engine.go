// Package engine runs the invoice classification pipeline: the per-document
// orchestrator, the batch scheduler and the feedback loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/sift/internal/classification"
	"github.com/Veraticus/sift/internal/common"
	"github.com/Veraticus/sift/internal/ledger"
	"github.com/Veraticus/sift/internal/llm"
	"github.com/Veraticus/sift/internal/model"
	"github.com/Veraticus/sift/internal/service"
)

// DefaultHistoryLimit is how many recent corrections go into a prompt.
const DefaultHistoryLimit = 10

// ClassificationEngine is the single entry point that classifies one invoice
// and persists the outcome.
type ClassificationEngine struct {
	storage    service.Storage
	documents  service.DocumentStore
	classifier Classifier
	matcher    ledger.Matcher
	history    HistoryProvider
	logger     *slog.Logger
	now        func() time.Time
}

// Option customizes a ClassificationEngine.
type Option func(*ClassificationEngine)

// WithMatcher replaces the default token-containment ledger matcher.
func WithMatcher(m ledger.Matcher) Option {
	return func(e *ClassificationEngine) {
		e.matcher = m
	}
}

// WithHistory replaces the default correction-history provider.
func WithHistory(h HistoryProvider) Option {
	return func(e *ClassificationEngine) {
		e.history = h
	}
}

// WithEngineLogger sets the engine's logger.
func WithEngineLogger(logger *slog.Logger) Option {
	return func(e *ClassificationEngine) {
		e.logger = logger
	}
}

// WithClock overrides the time source used for classified_at.
func WithClock(now func() time.Time) Option {
	return func(e *ClassificationEngine) {
		e.now = now
	}
}

// New creates a new classification engine with the given dependencies.
func New(storage service.Storage, documents service.DocumentStore, classifier Classifier, opts ...Option) *ClassificationEngine {
	e := &ClassificationEngine{
		storage:    storage,
		documents:  documents,
		classifier: classifier,
		matcher:    ledger.TokenContainment{},
		history:    NewCorrectionHistory(storage, DefaultHistoryLimit),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ClassifyInvoice runs classify, self-correct and ledger matching for one
// invoice and writes the result in a single update. Terminal failures are
// recorded on the invoice as classification_status=error before the error is
// returned. Cancellation leaves the invoice pending.
func (e *ClassificationEngine) ClassifyInvoice(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	invoice, err := e.storage.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice %s: %w", invoiceID, err)
	}

	update, err := e.classify(ctx, invoice)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return invoice, err
		}

		e.logger.Warn("Invoice classification failed",
			"invoice_id", invoice.ID,
			"file", invoice.FileName,
			"error", err)

		if markErr := e.storage.MarkClassificationFailed(ctx, invoice.ID, err.Error()); markErr != nil {
			e.logger.Error("Failed to record classification error",
				"invoice_id", invoice.ID,
				"error", markErr)
		} else {
			invoice.ClassificationStatus = model.StatusError
			invoice.ClassificationDetails = model.ClassificationDetails{Error: err.Error()}
		}
		return invoice, err
	}

	if err := e.storage.SaveClassification(ctx, invoice.ID, *update); err != nil {
		return invoice, fmt.Errorf("failed to save classification for %s: %w", invoice.ID, err)
	}

	invoice.InvoiceType = update.InvoiceType
	invoice.OperationType = update.OperationType
	invoice.AssignedAccount = update.AssignedAccount
	invoice.ClassificationDetails = update.Details
	invoice.ClassificationStatus = model.StatusClassified

	e.logger.Info("Invoice classified",
		"invoice_id", invoice.ID,
		"invoice_type", invoice.InvoiceType,
		"operation_type", invoice.OperationType,
		"confidence", update.Details.Confidence)

	return invoice, nil
}

func (e *ClassificationEngine) classify(ctx context.Context, invoice *model.Invoice) (*service.ClassificationUpdate, error) {
	if strings.TrimSpace(invoice.ClientName) == "" {
		return nil, fmt.Errorf("%w: invoice %s", common.ErrMissingContext, invoice.ID)
	}

	history, err := e.history.History(ctx, invoice.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load correction history: %w", err)
	}

	accounts, err := e.storage.GetAccounts(ctx, invoice.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	content, err := e.documents.Fetch(ctx, invoice.FilePath)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %w", common.ErrUnreadableDocument, invoice.FilePath, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := e.classifier.Classify(ctx, llm.ClassifyInput{
		Invoice:        invoice,
		Content:        content,
		MIMEType:       DetectMIMEType(invoice.MIMEType, content),
		History:        history,
		HasAccountBook: len(accounts) > 0,
	})
	if err != nil {
		return nil, err
	}

	if correction := classification.SelfCorrect(invoice.ClientName, result); correction.Applied {
		e.logger.Info("Self-correction applied",
			"invoice_id", invoice.ID,
			"from", correction.From,
			"to", correction.To)
	}

	var assigned *string
	if len(accounts) > 0 && result.InvoiceType.IsAccountable() {
		match := e.matcher.Match(result.Description, accounts)
		code := match.Code
		assigned = &code
	}

	classifiedAt := e.now().UTC()
	return &service.ClassificationUpdate{
		InvoiceType:     result.InvoiceType,
		OperationType:   result.OperationType,
		AssignedAccount: assigned,
		Details: model.ClassificationDetails{
			ClassifiedAt:   &classifiedAt,
			ExtractedData:  result.ExtractedData,
			TaxBase:        amount(result.TaxBase),
			VATAmount:      amount(result.VATAmount),
			TotalAmount:    amount(result.TotalAmount),
			InvoiceNumber:  result.InvoiceNumber,
			InvoiceDate:    result.InvoiceDate,
			Currency:       result.Currency,
			RawResponse:    result.RawResponse,
			Reasoning:      result.Reasoning,
			Description:    result.Description,
			CorrectionNote: result.CorrectionNote,
			Confidence:     result.Confidence,
		},
	}, nil
}

func amount(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

// DetectMIMEType trusts a specific declared type and sniffs the content
// otherwise.
func DetectMIMEType(declared string, content []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	detected := mimetype.Detect(content).String()
	if i := strings.IndexByte(detected, ';'); i >= 0 {
		detected = detected[:i]
	}
	return detected
}
