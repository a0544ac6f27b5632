package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Veraticus/sift/internal/model"
	"github.com/Veraticus/sift/internal/service"
)

const feedbackColumns = `id, user_id, invoice_id, original_type, original_operation,
	corrected_type, corrected_operation, is_correct, created_at`

// ApplyFeedback sets the invoice's feedback status, rewrites its type and
// operation when asked, and appends the feedback row in one transaction.
// A rewrite to a type that takes no ledger account clears the assigned one.
// Only classified invoices accept feedback.
func (s *SQLiteStorage) ApplyFeedback(ctx context.Context, invoiceID string, update service.FeedbackUpdate) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(invoiceID, "invoiceID"); err != nil {
		return err
	}
	if err := validateFeedback(update); err != nil {
		return err
	}

	fb := update.Feedback
	now := time.Now().UTC()
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = now
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			result sql.Result
			err    error
		)
		if update.Rewrite {
			result, err = tx.ExecContext(ctx, `
				UPDATE invoices
				SET invoice_type = ?, operation_type = ?,
					assigned_account = CASE WHEN ? THEN assigned_account ELSE NULL END,
					feedback_status = ?, updated_at = ?
				WHERE id = ? AND user_id = ? AND classification_status = ?`,
				fb.CorrectedType, fb.CorrectedOperation, fb.CorrectedType.IsAccountable(),
				update.Status, now,
				invoiceID, fb.UserID, model.StatusClassified)
		} else {
			result, err = tx.ExecContext(ctx, `
				UPDATE invoices
				SET feedback_status = ?, updated_at = ?
				WHERE id = ? AND user_id = ? AND classification_status = ?`,
				update.Status, now,
				invoiceID, fb.UserID, model.StatusClassified)
		}
		if err != nil {
			return fmt.Errorf("failed to update invoice feedback: %w", err)
		}
		if err := checkAffected(result, "classified invoice "+invoiceID); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO classification_feedback (user_id, invoice_id, original_type, original_operation,
				corrected_type, corrected_operation, is_correct, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			fb.UserID, invoiceID,
			nullString(string(fb.OriginalType)), nullString(string(fb.OriginalOperation)),
			nullString(string(fb.CorrectedType)), nullString(string(fb.CorrectedOperation)),
			fb.IsCorrect, fb.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert feedback: %w", err)
		}
		return nil
	})
}

// GetRecentCorrections returns up to limit negative feedback rows, newest first.
func (s *SQLiteStorage) GetRecentCorrections(ctx context.Context, userID string, limit int) ([]model.ClassificationFeedback, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	return s.queryFeedback(ctx, `
		SELECT `+feedbackColumns+`
		FROM classification_feedback
		WHERE user_id = ? AND is_correct = 0
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, userID, limit)
}

// GetFeedback returns every feedback row of a user in submission order.
func (s *SQLiteStorage) GetFeedback(ctx context.Context, userID string) ([]model.ClassificationFeedback, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	return s.queryFeedback(ctx, `
		SELECT `+feedbackColumns+`
		FROM classification_feedback
		WHERE user_id = ?
		ORDER BY created_at, id`, userID)
}

func (s *SQLiteStorage) queryFeedback(ctx context.Context, query string, args ...any) ([]model.ClassificationFeedback, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.ClassificationFeedback
	for rows.Next() {
		var fb model.ClassificationFeedback
		var origType, origOp, corrType, corrOp sql.NullString
		if err := rows.Scan(&fb.ID, &fb.UserID, &fb.InvoiceID, &origType, &origOp,
			&corrType, &corrOp, &fb.IsCorrect, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		fb.OriginalType = model.InvoiceType(origType.String)
		fb.OriginalOperation = model.OperationType(origOp.String)
		fb.CorrectedType = model.InvoiceType(corrType.String)
		fb.CorrectedOperation = model.OperationType(corrOp.String)
		out = append(out, fb)
	}
	return out, rows.Err()
}
