package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial invoice schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS invoices (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					file_path TEXT NOT NULL,
					file_name TEXT NOT NULL,
					mime_type TEXT NOT NULL DEFAULT '',
					client_name TEXT NOT NULL DEFAULT '',
					invoice_type TEXT,
					operation_type TEXT,
					classification_status TEXT NOT NULL DEFAULT 'pending'
						CHECK (classification_status IN ('pending', 'classified', 'error')),
					assigned_account TEXT,
					classification_details TEXT,
					feedback_status TEXT
						CHECK (feedback_status IS NULL OR feedback_status IN ('correct', 'corrected')),
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL,
					CHECK ((classification_status = 'classified') = (invoice_type IS NOT NULL))
				)`,
				`CREATE INDEX IF NOT EXISTS idx_invoices_user_status ON invoices(user_id, classification_status)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Add account books and accounts",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS account_books (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					file_name TEXT NOT NULL,
					account_count INTEGER NOT NULL DEFAULT 0,
					imported_at DATETIME NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_account_books_user ON account_books(user_id)`,
				`CREATE TABLE IF NOT EXISTS accounts (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					book_id INTEGER NOT NULL REFERENCES account_books(id) ON DELETE CASCADE,
					code TEXT NOT NULL,
					description TEXT NOT NULL,
					position INTEGER NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_accounts_user ON accounts(user_id, position)`,
			)
		},
	},
	{
		Version:     3,
		Description: "Add classification feedback",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS classification_feedback (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					invoice_id TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
					original_type TEXT,
					original_operation TEXT,
					corrected_type TEXT,
					corrected_operation TEXT,
					is_correct INTEGER NOT NULL,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_feedback_user_recent ON classification_feedback(user_id, is_correct, created_at DESC)`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Migrate brings the schema up to ExpectedSchemaVersion. The applied version
// is tracked in PRAGMA user_version.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Debug("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the applied schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
