// Package testutil provides shared helpers for tests that need a real
// database or canned fixtures.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Veraticus/sift/internal/model"
	"github.com/Veraticus/sift/internal/storage"
)

// TestUserID owns every fixture unless a test says otherwise.
const TestUserID = "user-1"

// TestDB wraps a migrated in-memory database.
type TestDB struct {
	clock   time.Time
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database.
// It automatically handles migrations and cleanup.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		clock:   time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		Storage: store,
		t:       t,
	}
}

// InvoiceOption adjusts a fixture invoice before it is stored.
type InvoiceOption func(*model.Invoice)

// WithClientName sets the declared owner.
func WithClientName(name string) InvoiceOption {
	return func(inv *model.Invoice) {
		inv.ClientName = name
	}
}

// WithUser sets the owning user.
func WithUser(userID string) InvoiceOption {
	return func(inv *model.Invoice) {
		inv.UserID = userID
	}
}

// WithMIMEType sets the declared MIME type.
func WithMIMEType(mimeType string) InvoiceOption {
	return func(inv *model.Invoice) {
		inv.MIMEType = mimeType
	}
}

// MustCreateInvoice stores a pending invoice with the given id. Creation
// times are spaced so list order follows call order.
func (db *TestDB) MustCreateInvoice(id string, opts ...InvoiceOption) *model.Invoice {
	db.t.Helper()

	inv := &model.Invoice{
		ID:         id,
		UserID:     TestUserID,
		FilePath:   fmt.Sprintf("%s/%s.pdf", TestUserID, id),
		FileName:   id + ".pdf",
		MIMEType:   "application/pdf",
		ClientName: "Acme S.L.",
		CreatedAt:  db.tick(),
	}
	for _, opt := range opts {
		opt(inv)
	}

	if err := db.Storage.CreateInvoice(context.Background(), inv); err != nil {
		db.t.Fatalf("failed to create invoice %s: %v", id, err)
	}
	return inv
}

// MustImportAccounts replaces the user's account book with code/description pairs.
func (db *TestDB) MustImportAccounts(userID string, pairs ...string) []model.Account {
	db.t.Helper()

	accounts := make([]model.Account, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		accounts = append(accounts, model.Account{Code: pairs[i], Description: pairs[i+1]})
	}

	book := &model.AccountBook{UserID: userID, FileName: "plan.xlsx"}
	if err := db.Storage.ReplaceAccountBook(context.Background(), book, accounts); err != nil {
		db.t.Fatalf("failed to import accounts: %v", err)
	}
	return accounts
}

func (db *TestDB) tick() time.Time {
	db.clock = db.clock.Add(time.Second)
	return db.clock
}
