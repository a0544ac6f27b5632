package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/sift/internal/common"
	"github.com/Veraticus/sift/internal/model"
	"github.com/Veraticus/sift/internal/service"
)

// Submission is a user's verdict on one classified invoice.
type Submission struct {
	UserID             string
	InvoiceID          string
	CorrectedType      string
	CorrectedOperation string
	IsCorrect          bool
}

// FeedbackService records verdicts. A correction rewrites the invoice and
// only influences future prompts; nothing is reclassified.
type FeedbackService struct {
	storage service.Storage
	logger  *slog.Logger
}

// NewFeedbackService creates a feedback service.
func NewFeedbackService(storage service.Storage, logger *slog.Logger) *FeedbackService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedbackService{storage: storage, logger: logger}
}

// Submit validates s and applies it in one transaction. An empty corrected
// operation keeps the invoice's current one; non-invoice types get their
// operation forced the same way the classifier does. Correcting to an invoice
// type needs a real VAT operation, so it must be given explicitly when the
// current one is not_applicable or ticket.
func (f *FeedbackService) Submit(ctx context.Context, s Submission) (*model.ClassificationFeedback, error) {
	invoice, err := f.storage.GetInvoice(ctx, s.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice %s: %w", s.InvoiceID, err)
	}
	if invoice.UserID != s.UserID {
		return nil, fmt.Errorf("invoice %s: %w", s.InvoiceID, common.ErrNotFound)
	}
	if invoice.ClassificationStatus != model.StatusClassified {
		return nil, fmt.Errorf("%w: invoice %s is %s, not classified", common.ErrInvalidFeedback, invoice.ID, invoice.ClassificationStatus)
	}

	fb := model.ClassificationFeedback{
		UserID:             s.UserID,
		InvoiceID:          invoice.ID,
		OriginalType:       invoice.InvoiceType,
		OriginalOperation:  invoice.OperationType,
		CorrectedType:      invoice.InvoiceType,
		CorrectedOperation: invoice.OperationType,
		IsCorrect:          s.IsCorrect,
	}
	update := service.FeedbackUpdate{Status: model.FeedbackCorrect}

	if !s.IsCorrect {
		correctedType, ok := model.ParseInvoiceType(s.CorrectedType)
		if !ok {
			return nil, fmt.Errorf("%w: unknown invoice type %q", common.ErrInvalidFeedback, s.CorrectedType)
		}

		operation := invoice.OperationType
		if strings.TrimSpace(s.CorrectedOperation) != "" {
			operation = model.NormalizeOperationType(s.CorrectedOperation)
		}

		operation = model.GateOperation(correctedType, operation)
		if correctedType.IsAccountable() &&
			(operation == model.OperationNotApplicable || operation == model.OperationTicket) {
			return nil, fmt.Errorf("%w: an operation is required when correcting to %s", common.ErrInvalidFeedback, correctedType)
		}

		fb.CorrectedType = correctedType
		fb.CorrectedOperation = operation
		update.Status = model.FeedbackCorrected
		update.Rewrite = true
	}
	update.Feedback = fb

	if err := f.storage.ApplyFeedback(ctx, invoice.ID, update); err != nil {
		return nil, fmt.Errorf("failed to apply feedback: %w", err)
	}

	f.logger.Info("Feedback recorded",
		"invoice_id", invoice.ID,
		"status", update.Status,
		"corrected_type", fb.CorrectedType,
		"corrected_operation", fb.CorrectedOperation)

	return &fb, nil
}

// CorrectionHistory formats a user's most recent corrections into the block
// appended to classification prompts.
type CorrectionHistory struct {
	storage service.Storage
	limit   int
}

var _ HistoryProvider = (*CorrectionHistory)(nil)

// NewCorrectionHistory reads up to limit corrections per prompt.
func NewCorrectionHistory(storage service.Storage, limit int) *CorrectionHistory {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &CorrectionHistory{storage: storage, limit: limit}
}

// History returns an empty string when the user has no corrections.
func (h *CorrectionHistory) History(ctx context.Context, userID string) (string, error) {
	rows, err := h.storage.GetRecentCorrections(ctx, userID, h.limit)
	if err != nil {
		return "", err
	}
	return FormatCorrections(rows), nil
}

// FormatCorrections renders correction rows, most recent first.
func FormatCorrections(rows []model.ClassificationFeedback) string {
	if len(rows) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("The user corrected these earlier classifications. Learn from them:\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "- classified as %s / %s, corrected to %s / %s\n",
			orNone(string(r.OriginalType)),
			orNone(string(r.OriginalOperation)),
			orNone(string(r.CorrectedType)),
			orNone(string(r.CorrectedOperation)))
	}
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
