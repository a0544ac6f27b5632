package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/sift/internal/common"
	"github.com/Veraticus/sift/internal/model"
	"github.com/Veraticus/sift/internal/service"
)

const invoiceColumns = `id, user_id, file_path, file_name, mime_type, client_name,
	invoice_type, operation_type, classification_status, assigned_account,
	classification_details, feedback_status, created_at, updated_at`

// CreateInvoice stores a newly uploaded invoice as pending.
func (s *SQLiteStorage) CreateInvoice(ctx context.Context, invoice *model.Invoice) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateInvoice(invoice); err != nil {
		return err
	}

	now := time.Now().UTC()
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = now
	}
	invoice.UpdatedAt = invoice.CreatedAt
	invoice.ClassificationStatus = model.StatusPending

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invoices (id, user_id, file_path, file_name, mime_type, client_name,
			classification_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID, invoice.UserID, invoice.FilePath, invoice.FileName, invoice.MIMEType,
		strings.TrimSpace(invoice.ClientName), invoice.ClassificationStatus,
		invoice.CreatedAt, invoice.UpdatedAt)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("invoice %s: %w", invoice.ID, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

// GetInvoice retrieves an invoice by ID.
func (s *SQLiteStorage) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)
	invoice, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoice, nil
}

// ListInvoices returns invoices in upload order.
func (s *SQLiteStorage) ListInvoices(ctx context.Context, filter service.InvoiceFilter) ([]model.Invoice, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE 1 = 1`
	var args []any
	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		query += ` AND classification_status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var invoices []model.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *invoice)
	}
	return invoices, rows.Err()
}

// SaveClassification writes a successful classification in one statement.
func (s *SQLiteStorage) SaveClassification(ctx context.Context, invoiceID string, update service.ClassificationUpdate) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(invoiceID, "invoiceID"); err != nil {
		return err
	}
	if err := validateUpdate(update); err != nil {
		return err
	}

	details, err := json.Marshal(update.Details)
	if err != nil {
		return fmt.Errorf("failed to encode classification details: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE invoices
		SET invoice_type = ?, operation_type = ?, classification_status = ?,
			assigned_account = ?, classification_details = ?, updated_at = ?
		WHERE id = ?`,
		update.InvoiceType, update.OperationType, model.StatusClassified,
		nullStringPtr(update.AssignedAccount), string(details), time.Now().UTC(),
		invoiceID)
	if err != nil {
		return fmt.Errorf("failed to save classification: %w", err)
	}
	return checkAffected(result, "invoice "+invoiceID)
}

// MarkClassificationFailed moves an invoice to the error state with message
// stored in its details. Any earlier result is cleared so an errored invoice
// never carries a type.
func (s *SQLiteStorage) MarkClassificationFailed(ctx context.Context, invoiceID string, message string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(invoiceID, "invoiceID"); err != nil {
		return err
	}

	details, err := json.Marshal(model.ClassificationDetails{Error: message})
	if err != nil {
		return fmt.Errorf("failed to encode classification details: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE invoices
		SET invoice_type = NULL, operation_type = NULL, assigned_account = NULL,
			classification_status = ?, classification_details = ?, updated_at = ?
		WHERE id = ?`,
		model.StatusError, string(details), time.Now().UTC(), invoiceID)
	if err != nil {
		return fmt.Errorf("failed to mark classification failed: %w", err)
	}
	return checkAffected(result, "invoice "+invoiceID)
}

// ResetClassification returns an invoice to pending so it can be classified again.
func (s *SQLiteStorage) ResetClassification(ctx context.Context, invoiceID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(invoiceID, "invoiceID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE invoices
		SET invoice_type = NULL, operation_type = NULL, assigned_account = NULL,
			classification_details = NULL, feedback_status = NULL,
			classification_status = ?, updated_at = ?
		WHERE id = ?`,
		model.StatusPending, time.Now().UTC(), invoiceID)
	if err != nil {
		return fmt.Errorf("failed to reset classification: %w", err)
	}
	return checkAffected(result, "invoice "+invoiceID)
}

func scanInvoice(row rowScanner) (*model.Invoice, error) {
	var (
		invoice        model.Invoice
		invoiceType    sql.NullString
		operationType  sql.NullString
		status         string
		assigned       sql.NullString
		details        sql.NullString
		feedbackStatus sql.NullString
	)

	err := row.Scan(
		&invoice.ID,
		&invoice.UserID,
		&invoice.FilePath,
		&invoice.FileName,
		&invoice.MIMEType,
		&invoice.ClientName,
		&invoiceType,
		&operationType,
		&status,
		&assigned,
		&details,
		&feedbackStatus,
		&invoice.CreatedAt,
		&invoice.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	invoice.InvoiceType = model.InvoiceType(invoiceType.String)
	invoice.OperationType = model.OperationType(operationType.String)
	invoice.ClassificationStatus = model.ClassificationStatus(status)
	invoice.FeedbackStatus = model.FeedbackStatus(feedbackStatus.String)
	if assigned.Valid {
		code := assigned.String
		invoice.AssignedAccount = &code
	}
	if details.Valid && details.String != "" {
		if err := json.Unmarshal([]byte(details.String), &invoice.ClassificationDetails); err != nil {
			return nil, fmt.Errorf("failed to decode classification details: %w", err)
		}
	}

	return &invoice, nil
}
