package domain

import (
	"time"
)

// Identity is the caller on whose behalf rows are written. It is supplied by
// the auth layer in front of the service and is never validated here.
type Identity struct {
	UserID      string
	HouseholdID string
}

// Transaction is a persisted ledger row.
type Transaction struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	HouseholdID string    `json:"household_id"`
	ExternalID  string    `json:"txn_id"`      // bank/UPI reference, may be empty
	Fingerprint string    `json:"fingerprint"` // uniqueness key
	Date        time.Time `json:"date"`
	Amount      float64   `json:"amount"`
	Merchant    string    `json:"merchant"`
	Category    string    `json:"category"`
	Paid        bool      `json:"paid"`
	CreatedAt   time.Time `json:"created_at"`
}

// ImportResult summarises one upload.
type ImportResult struct {
	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`

	// IDs of the rows created by this import, in source order.
	NewIDs   []int64 `json:"-"`
	Format   string  `json:"-"`
	UploadID string  `json:"-"`
}

// TransactionFilter narrows a transaction listing. Start and End compare
// calendar days and are inclusive; zero values are open bounds.
type TransactionFilter struct {
	UserID      string
	HouseholdID string
	Start       time.Time
	End         time.Time
	UnpaidOnly  bool
}
