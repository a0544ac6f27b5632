package model

import "time"

// Account is one entry of a user's chart of accounts.
type Account struct {
	Code        string
	Description string
	UserID      string
	ID          int64
	BookID      int64
	Position    int
}

// AccountBook is an imported chart of accounts. Importing a new book replaces
// every account of the previous one.
type AccountBook struct {
	ImportedAt   time.Time
	UserID       string
	FileName     string
	ID           int64
	AccountCount int
}
