package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/sift/internal/common"
	"github.com/Veraticus/sift/internal/model"
)

// GetAccounts returns the user's accounts in import order.
func (s *SQLiteStorage) GetAccounts(ctx context.Context, userID string) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, book_id, code, description, position
		FROM accounts
		WHERE user_id = ?
		ORDER BY position, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.BookID, &a.Code, &a.Description, &a.Position); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// ReplaceAccountBook swaps the user's chart of accounts for a new one in a
// single transaction. book.ID, book.AccountCount and the account IDs are
// filled in.
func (s *SQLiteStorage) ReplaceAccountBook(ctx context.Context, book *model.AccountBook, accounts []model.Account) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAccounts(book, accounts); err != nil {
		return err
	}

	if book.ImportedAt.IsZero() {
		book.ImportedAt = time.Now().UTC()
	}
	book.AccountCount = len(accounts)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE user_id = ?`, book.UserID); err != nil {
			return fmt.Errorf("failed to delete accounts: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM account_books WHERE user_id = ?`, book.UserID); err != nil {
			return fmt.Errorf("failed to delete account book: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO account_books (user_id, file_name, account_count, imported_at)
			VALUES (?, ?, ?, ?)`,
			book.UserID, book.FileName, book.AccountCount, book.ImportedAt)
		if err != nil {
			return fmt.Errorf("failed to insert account book: %w", err)
		}
		bookID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get account book id: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO accounts (user_id, book_id, code, description, position)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare account insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for i := range accounts {
			a := &accounts[i]
			a.UserID = book.UserID
			a.BookID = bookID
			a.Position = i
			a.Code = strings.TrimSpace(a.Code)
			a.Description = strings.TrimSpace(a.Description)

			res, err := stmt.ExecContext(ctx, a.UserID, a.BookID, a.Code, a.Description, a.Position)
			if err != nil {
				return fmt.Errorf("failed to insert account %s: %w", a.Code, err)
			}
			if a.ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("failed to get account id: %w", err)
			}
		}

		book.ID = bookID
		return nil
	})
}

// GetAccountBook returns the user's current account book.
func (s *SQLiteStorage) GetAccountBook(ctx context.Context, userID string) (*model.AccountBook, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	var book model.AccountBook
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, file_name, account_count, imported_at
		FROM account_books
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT 1`, userID).Scan(&book.ID, &book.UserID, &book.FileName, &book.AccountCount, &book.ImportedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account book for %s: %w", userID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account book: %w", err)
	}
	return &book, nil
}
