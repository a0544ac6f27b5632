package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/sift/internal/common"
	"github.com/Veraticus/sift/internal/model"
	"github.com/Veraticus/sift/internal/service"
)

func TestApplyFeedback(t *testing.T) {
	ctx := context.Background()

	t.Run("correct leaves classification untouched", func(t *testing.T) {
		s := newTestStorage(t)
		createInvoice(t, s, "inv-1", time.Now())
		require.NoError(t, s.SaveClassification(ctx, "inv-1", classifiedUpdate(nil)))

		err := s.ApplyFeedback(ctx, "inv-1", service.FeedbackUpdate{
			Status: model.FeedbackCorrect,
			Feedback: model.ClassificationFeedback{
				UserID:             "user-1",
				OriginalType:       model.InvoiceTypeReceived,
				OriginalOperation:  model.OperationDomesticDeductibleVAT,
				CorrectedType:      model.InvoiceTypeReceived,
				CorrectedOperation: model.OperationDomesticDeductibleVAT,
				IsCorrect:          true,
			},
		})
		require.NoError(t, err)

		got, err := s.GetInvoice(ctx, "inv-1")
		require.NoError(t, err)
		assert.Equal(t, model.FeedbackCorrect, got.FeedbackStatus)
		assert.Equal(t, model.InvoiceTypeReceived, got.InvoiceType)
		assert.Equal(t, model.OperationDomesticDeductibleVAT, got.OperationType)

		rows, err := s.GetFeedback(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.True(t, rows[0].IsCorrect)
		assert.Equal(t, "inv-1", rows[0].InvoiceID)
	})

	t.Run("corrected rewrites type and operation", func(t *testing.T) {
		s := newTestStorage(t)
		createInvoice(t, s, "inv-1", time.Now())
		account := "600"
		require.NoError(t, s.SaveClassification(ctx, "inv-1", classifiedUpdate(&account)))

		err := s.ApplyFeedback(ctx, "inv-1", service.FeedbackUpdate{
			Status:  model.FeedbackCorrected,
			Rewrite: true,
			Feedback: model.ClassificationFeedback{
				UserID:             "user-1",
				OriginalType:       model.InvoiceTypeReceived,
				OriginalOperation:  model.OperationDomesticDeductibleVAT,
				CorrectedType:      model.InvoiceTypeEmitted,
				CorrectedOperation: model.OperationKitDigital,
			},
		})
		require.NoError(t, err)

		got, err := s.GetInvoice(ctx, "inv-1")
		require.NoError(t, err)
		assert.Equal(t, model.FeedbackCorrected, got.FeedbackStatus)
		assert.Equal(t, model.InvoiceTypeEmitted, got.InvoiceType)
		assert.Equal(t, model.OperationKitDigital, got.OperationType)
		assert.Equal(t, model.StatusClassified, got.ClassificationStatus)
		require.NotNil(t, got.AssignedAccount, "an invoice type keeps its account")
		assert.Equal(t, "600", *got.AssignedAccount)

		rows, err := s.GetFeedback(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.False(t, rows[0].IsCorrect)
		assert.Equal(t, model.InvoiceTypeReceived, rows[0].OriginalType)
		assert.Equal(t, model.InvoiceTypeEmitted, rows[0].CorrectedType)
	})

	t.Run("non-invoice correction clears the account", func(t *testing.T) {
		s := newTestStorage(t)
		createInvoice(t, s, "inv-1", time.Now())
		account := "600"
		require.NoError(t, s.SaveClassification(ctx, "inv-1", classifiedUpdate(&account)))

		err := s.ApplyFeedback(ctx, "inv-1", service.FeedbackUpdate{
			Status:  model.FeedbackCorrected,
			Rewrite: true,
			Feedback: model.ClassificationFeedback{
				UserID:             "user-1",
				OriginalType:       model.InvoiceTypeReceived,
				OriginalOperation:  model.OperationDomesticDeductibleVAT,
				CorrectedType:      model.InvoiceTypeProforma,
				CorrectedOperation: model.OperationNotApplicable,
			},
		})
		require.NoError(t, err)

		got, err := s.GetInvoice(ctx, "inv-1")
		require.NoError(t, err)
		assert.Equal(t, model.InvoiceTypeProforma, got.InvoiceType)
		assert.Equal(t, model.OperationNotApplicable, got.OperationType)
		assert.Nil(t, got.AssignedAccount)
	})

	t.Run("pending invoice rejects feedback and writes nothing", func(t *testing.T) {
		s := newTestStorage(t)
		createInvoice(t, s, "inv-1", time.Now())

		err := s.ApplyFeedback(ctx, "inv-1", service.FeedbackUpdate{
			Status:   model.FeedbackCorrect,
			Feedback: model.ClassificationFeedback{UserID: "user-1", IsCorrect: true},
		})
		assert.ErrorIs(t, err, common.ErrNotFound)

		rows, err := s.GetFeedback(ctx, "user-1")
		require.NoError(t, err)
		assert.Empty(t, rows, "the transaction rolled back")
	})

	t.Run("another user's invoice", func(t *testing.T) {
		s := newTestStorage(t)
		createInvoice(t, s, "inv-1", time.Now())
		require.NoError(t, s.SaveClassification(ctx, "inv-1", classifiedUpdate(nil)))

		err := s.ApplyFeedback(ctx, "inv-1", service.FeedbackUpdate{
			Status:   model.FeedbackCorrect,
			Feedback: model.ClassificationFeedback{UserID: "intruder", IsCorrect: true},
		})
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("invalid status", func(t *testing.T) {
		s := newTestStorage(t)
		err := s.ApplyFeedback(ctx, "inv-1", service.FeedbackUpdate{
			Feedback: model.ClassificationFeedback{UserID: "user-1"},
		})
		assert.ErrorIs(t, err, ErrInvalidFeedback)
	})
}

func TestGetRecentCorrections(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 14; i++ {
		id := fmt.Sprintf("inv-%02d", i)
		createInvoice(t, s, id, base)
		require.NoError(t, s.SaveClassification(ctx, id, classifiedUpdate(nil)))

		update := service.FeedbackUpdate{
			Status: model.FeedbackCorrect,
			Feedback: model.ClassificationFeedback{
				UserID:             "user-1",
				OriginalType:       model.InvoiceTypeReceived,
				CorrectedType:      model.InvoiceTypeReceived,
				IsCorrect:          true,
				CreatedAt:          base.Add(time.Duration(i) * time.Minute),
				OriginalOperation:  model.OperationOther,
				CorrectedOperation: model.OperationOther,
			},
		}
		if i%4 != 0 {
			update.Status = model.FeedbackCorrected
			update.Rewrite = true
			update.Feedback.IsCorrect = false
			update.Feedback.CorrectedType = model.InvoiceTypeEmitted
		}
		require.NoError(t, s.ApplyFeedback(ctx, id, update))
	}

	rows, err := s.GetRecentCorrections(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, rows, 10)

	for i, row := range rows {
		assert.False(t, row.IsCorrect)
		if i > 0 {
			assert.True(t, !row.CreatedAt.After(rows[i-1].CreatedAt), "newest first")
		}
	}
	assert.Equal(t, "inv-13", rows[0].InvoiceID)

	none, err := s.GetRecentCorrections(ctx, "user-2", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
