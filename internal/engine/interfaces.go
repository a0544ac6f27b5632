package engine

import (
	"context"

	"github.com/Veraticus/sift/internal/llm"
	"github.com/Veraticus/sift/internal/model"
)

// Classifier defines the contract for document classification.
type Classifier interface {
	Classify(ctx context.Context, in llm.ClassifyInput) (*model.ClassificationResult, error)
}

// HistoryProvider supplies the correction-history block for a user's prompts.
type HistoryProvider interface {
	History(ctx context.Context, userID string) (string, error)
}

// InvoiceProcessor classifies one invoice end to end.
type InvoiceProcessor interface {
	ClassifyInvoice(ctx context.Context, invoiceID string) (*model.Invoice, error)
}

// ProgressObserver is notified with every progress change.
type ProgressObserver interface {
	OnProgress(p model.Progress)
}

// ProgressObserverFunc adapts a function to ProgressObserver.
type ProgressObserverFunc func(p model.Progress)

// OnProgress calls f(p).
func (f ProgressObserverFunc) OnProgress(p model.Progress) {
	f(p)
}
