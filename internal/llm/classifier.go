package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/sift/internal/common"
	"github.com/Veraticus/sift/internal/model"
)

// Completer sends one request to the model and returns its raw text.
// *Caller is the production implementation.
type Completer interface {
	Call(ctx context.Context, req Request) (string, error)
}

// ClassifyInput is everything the classifier needs for one document.
type ClassifyInput struct {
	Invoice        *model.Invoice
	MIMEType       string
	History        string
	Content        []byte
	HasAccountBook bool
}

// Classifier turns a document into a normalized ClassificationResult.
type Classifier struct {
	caller Completer
	logger *slog.Logger
}

// NewClassifier creates a classifier that talks to the model through caller.
func NewClassifier(caller Completer, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		caller: caller,
		logger: logger,
	}
}

// Classify asks the model about one document, then normalizes the answer.
// Non-invoice documents get their operation forced; see model.GateOperation.
func (c *Classifier) Classify(ctx context.Context, in ClassifyInput) (*model.ClassificationResult, error) {
	if in.Invoice == nil {
		return nil, errors.New("classify: nil invoice")
	}

	owner := strings.TrimSpace(in.Invoice.ClientName)
	if owner == "" {
		return nil, fmt.Errorf("%w: invoice %s", common.ErrMissingContext, in.Invoice.ID)
	}

	if len(in.Content) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", common.ErrUnreadableDocument, in.Invoice.FileName)
	}
	if !SupportedMIMEType(in.MIMEType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMIMEType, in.MIMEType)
	}

	req := Request{
		System: classificationSystemPrompt,
		Prompt: buildClassificationPrompt(owner, in.History, in.HasAccountBook),
		Document: &Document{
			Name:     in.Invoice.FileName,
			MIMEType: in.MIMEType,
			Data:     in.Content,
		},
	}

	text, err := c.caller.Call(ctx, req)
	if err != nil {
		return nil, err
	}

	result, err := parseClassification(text)
	if err != nil {
		c.logger.Warn("model returned unusable output",
			"invoice_id", in.Invoice.ID,
			"error", err)
		return nil, err
	}

	result.OperationType = model.GateOperation(result.InvoiceType, result.OperationType)

	c.logger.Debug("document classified",
		"invoice_id", in.Invoice.ID,
		"invoice_type", result.InvoiceType,
		"operation_type", result.OperationType,
		"confidence", result.Confidence)

	return result, nil
}

// SupportedMIMEType reports whether a document of this type can be sent to
// the model.
func SupportedMIMEType(mimeType string) bool {
	switch mimeType {
	case "application/pdf", "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}
