package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/sift/internal/common"
	"github.com/Veraticus/sift/internal/model"
	"github.com/Veraticus/sift/internal/service"
	"github.com/Veraticus/sift/internal/testutil"
)

func classifiedInvoice(t *testing.T, db *testutil.TestDB, id string, typ model.InvoiceType, op model.OperationType) {
	t.Helper()
	db.MustCreateInvoice(id)
	require.NoError(t, db.Storage.SaveClassification(context.Background(), id, service.ClassificationUpdate{
		InvoiceType:   typ,
		OperationType: op,
	}))
}

func TestFeedbackService_Submit(t *testing.T) {
	tests := []struct {
		name        string
		submission  Submission
		wantType    model.InvoiceType
		wantOp      model.OperationType
		wantStatus  model.FeedbackStatus
		wantCorrect bool
	}{
		{
			name:        "confirmed",
			submission:  Submission{IsCorrect: true, CorrectedType: "emitted"},
			wantType:    model.InvoiceTypeReceived,
			wantOp:      model.OperationDomesticDeductibleVAT,
			wantStatus:  model.FeedbackCorrect,
			wantCorrect: true,
		},
		{
			name:       "type corrected keeps operation",
			submission: Submission{CorrectedType: "emitted"},
			wantType:   model.InvoiceTypeEmitted,
			wantOp:     model.OperationDomesticDeductibleVAT,
			wantStatus: model.FeedbackCorrected,
		},
		{
			name:       "type and operation corrected",
			submission: Submission{CorrectedType: "Received", CorrectedOperation: "Kit-Digital"},
			wantType:   model.InvoiceTypeReceived,
			wantOp:     model.OperationKitDigital,
			wantStatus: model.FeedbackCorrected,
		},
		{
			name:       "non-invoice correction forces operation",
			submission: Submission{CorrectedType: "proforma", CorrectedOperation: "importaciones"},
			wantType:   model.InvoiceTypeProforma,
			wantOp:     model.OperationNotApplicable,
			wantStatus: model.FeedbackCorrected,
		},
		{
			name:       "unknown operation becomes other",
			submission: Submission{CorrectedType: "received", CorrectedOperation: "something new"},
			wantType:   model.InvoiceTypeReceived,
			wantOp:     model.OperationOther,
			wantStatus: model.FeedbackCorrected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			ctx := context.Background()
			classifiedInvoice(t, db, "inv-1", model.InvoiceTypeReceived, model.OperationDomesticDeductibleVAT)

			s := tt.submission
			s.UserID = testutil.TestUserID
			s.InvoiceID = "inv-1"

			fb, err := NewFeedbackService(db.Storage, nil).Submit(ctx, s)
			require.NoError(t, err)
			assert.Equal(t, model.InvoiceTypeReceived, fb.OriginalType)
			assert.Equal(t, model.OperationDomesticDeductibleVAT, fb.OriginalOperation)
			assert.Equal(t, tt.wantType, fb.CorrectedType)
			assert.Equal(t, tt.wantOp, fb.CorrectedOperation)

			inv, err := db.Storage.GetInvoice(ctx, "inv-1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, inv.InvoiceType)
			assert.Equal(t, tt.wantOp, inv.OperationType)
			assert.Equal(t, tt.wantStatus, inv.FeedbackStatus)
			assert.Equal(t, model.StatusClassified, inv.ClassificationStatus, "feedback never reclassifies")

			rows, err := db.Storage.GetFeedback(ctx, testutil.TestUserID)
			require.NoError(t, err)
			require.Len(t, rows, 1, "exactly one feedback row per submission")
			assert.Equal(t, tt.wantCorrect, rows[0].IsCorrect)
		})
	}
}

func TestFeedbackService_Rejections(t *testing.T) {
	tests := []struct {
		setup   func(db *testutil.TestDB)
		wantErr error
		name    string
		s       Submission
	}{
		{
			name:    "unknown invoice",
			setup:   func(*testutil.TestDB) {},
			s:       Submission{UserID: testutil.TestUserID, InvoiceID: "nope", IsCorrect: true},
			wantErr: common.ErrNotFound,
		},
		{
			name: "another user's invoice",
			setup: func(db *testutil.TestDB) {
				db.MustCreateInvoice("inv-1", testutil.WithUser("user-2"))
			},
			s:       Submission{UserID: testutil.TestUserID, InvoiceID: "inv-1", IsCorrect: true},
			wantErr: common.ErrNotFound,
		},
		{
			name: "pending invoice",
			setup: func(db *testutil.TestDB) {
				db.MustCreateInvoice("inv-1")
			},
			s:       Submission{UserID: testutil.TestUserID, InvoiceID: "inv-1", IsCorrect: true},
			wantErr: common.ErrInvalidFeedback,
		},
		{
			name: "unknown corrected type",
			setup: func(db *testutil.TestDB) {
				db.MustCreateInvoice("inv-1")
				_ = db.Storage.SaveClassification(context.Background(), "inv-1", service.ClassificationUpdate{
					InvoiceType:   model.InvoiceTypeReceived,
					OperationType: model.OperationOther,
				})
			},
			s:       Submission{UserID: testutil.TestUserID, InvoiceID: "inv-1", CorrectedType: "bill"},
			wantErr: common.ErrInvalidFeedback,
		},
		{
			name: "proforma corrected to received without an operation",
			setup: func(db *testutil.TestDB) {
				db.MustCreateInvoice("inv-1")
				_ = db.Storage.SaveClassification(context.Background(), "inv-1", service.ClassificationUpdate{
					InvoiceType:   model.InvoiceTypeProforma,
					OperationType: model.OperationNotApplicable,
				})
			},
			s:       Submission{UserID: testutil.TestUserID, InvoiceID: "inv-1", CorrectedType: "received"},
			wantErr: common.ErrInvalidFeedback,
		},
		{
			name: "ticket corrected to emitted with ticket operation",
			setup: func(db *testutil.TestDB) {
				db.MustCreateInvoice("inv-1")
				_ = db.Storage.SaveClassification(context.Background(), "inv-1", service.ClassificationUpdate{
					InvoiceType:   model.InvoiceTypeTicket,
					OperationType: model.OperationTicket,
				})
			},
			s:       Submission{UserID: testutil.TestUserID, InvoiceID: "inv-1", CorrectedType: "emitted", CorrectedOperation: "ticket"},
			wantErr: common.ErrInvalidFeedback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			tt.setup(db)

			_, err := NewFeedbackService(db.Storage, nil).Submit(context.Background(), tt.s)
			assert.ErrorIs(t, err, tt.wantErr)

			rows, err := db.Storage.GetFeedback(context.Background(), testutil.TestUserID)
			require.NoError(t, err)
			assert.Empty(t, rows)
		})
	}
}

func TestFeedbackService_AccountFollowsType(t *testing.T) {
	tests := []struct {
		name        string
		submission  Submission
		wantAccount bool
	}{
		{name: "invoice type keeps account", submission: Submission{CorrectedType: "emitted"}, wantAccount: true},
		{name: "proforma clears account", submission: Submission{CorrectedType: "proforma"}},
		{name: "ticket clears account", submission: Submission{CorrectedType: "ticket"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			ctx := context.Background()
			account := "600"
			db.MustCreateInvoice("inv-1")
			require.NoError(t, db.Storage.SaveClassification(ctx, "inv-1", service.ClassificationUpdate{
				InvoiceType:     model.InvoiceTypeReceived,
				OperationType:   model.OperationDomesticDeductibleVAT,
				AssignedAccount: &account,
			}))

			s := tt.submission
			s.UserID = testutil.TestUserID
			s.InvoiceID = "inv-1"
			_, err := NewFeedbackService(db.Storage, nil).Submit(ctx, s)
			require.NoError(t, err)

			inv, err := db.Storage.GetInvoice(ctx, "inv-1")
			require.NoError(t, err)
			if tt.wantAccount {
				require.NotNil(t, inv.AssignedAccount)
				assert.Equal(t, "600", *inv.AssignedAccount)
			} else {
				assert.Nil(t, inv.AssignedAccount)
			}
		})
	}
}

func TestCorrectionHistory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	feedback := NewFeedbackService(db.Storage, nil)

	history := NewCorrectionHistory(db.Storage, 2)
	block, err := history.History(ctx, testutil.TestUserID)
	require.NoError(t, err)
	assert.Empty(t, block, "no corrections means no history block")

	classifiedInvoice(t, db, "inv-1", model.InvoiceTypeReceived, model.OperationOther)
	classifiedInvoice(t, db, "inv-2", model.InvoiceTypeEmitted, model.OperationOther)
	classifiedInvoice(t, db, "inv-3", model.InvoiceTypeTicket, model.OperationTicket)
	classifiedInvoice(t, db, "inv-4", model.InvoiceTypeReceived, model.OperationOther)

	submissions := []Submission{
		{InvoiceID: "inv-1", CorrectedType: "emitted"},
		{InvoiceID: "inv-2", IsCorrect: true},
		{InvoiceID: "inv-3", CorrectedType: "received", CorrectedOperation: "suplidos"},
		{InvoiceID: "inv-4", CorrectedType: "not_invoice"},
	}
	for _, s := range submissions {
		s.UserID = testutil.TestUserID
		_, err := feedback.Submit(ctx, s)
		require.NoError(t, err)
	}

	block, err = history.History(ctx, testutil.TestUserID)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(block), "\n")
	require.Len(t, lines, 3, "header plus the two most recent corrections")
	assert.Equal(t, "- classified as received / other, corrected to not_invoice / not_applicable", lines[1])
	assert.Equal(t, "- classified as ticket / ticket, corrected to received / suplidos", lines[2])
}

func TestFormatCorrections(t *testing.T) {
	assert.Empty(t, FormatCorrections(nil))

	got := FormatCorrections([]model.ClassificationFeedback{
		{OriginalType: model.InvoiceTypeEmitted, CorrectedType: model.InvoiceTypeReceived},
	})
	assert.Equal(t,
		"The user corrected these earlier classifications. Learn from them:\n"+
			"- classified as emitted / none, corrected to received / none\n",
		got)
}
