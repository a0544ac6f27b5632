package model

import "time"

// ClassificationFeedback is an append-only record of a user's verdict on a
// classification. Negative rows feed the correction history of later prompts.
type ClassificationFeedback struct {
	CreatedAt          time.Time
	UserID             string
	InvoiceID          string
	OriginalType       InvoiceType
	OriginalOperation  OperationType
	CorrectedType      InvoiceType
	CorrectedOperation OperationType
	ID                 int64
	IsCorrect          bool
}
