package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/family-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// numericScale is the fractional precision of BigQuery NUMERIC.
const numericScale = 9

// TransactionRow is one ledger row in the warehouse table.
type TransactionRow struct {
	Fingerprint string             `bigquery:"fingerprint"` // REQUIRED, unique by convention
	LedgerID    bigquery.NullInt64 `bigquery:"ledger_id"`   // id in the primary store

	UserID      string `bigquery:"user_id"`      // REQUIRED
	HouseholdID string `bigquery:"household_id"` // REQUIRED

	ExternalReference bigquery.NullString `bigquery:"external_reference"` // NULLABLE, bank/UPI id

	TransactionDate civil.Date     `bigquery:"transaction_date"` // REQUIRED, partition column
	BookingDatetime civil.DateTime `bigquery:"booking_datetime"` // REQUIRED

	Amount *big.Rat `bigquery:"amount"` // REQUIRED NUMERIC

	Merchant     bigquery.NullString `bigquery:"merchant"`
	CategoryName bigquery.NullString `bigquery:"category_name"`

	IsPaid    bool      `bigquery:"is_paid"`
	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// NewTransactionRow converts a ledger transaction. The booking time keeps the
// wall clock of the source date.
func NewTransactionRow(tx *domain.Transaction) *TransactionRow {
	created := tx.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	row := &TransactionRow{
		Fingerprint:       tx.Fingerprint,
		UserID:            tx.UserID,
		HouseholdID:       tx.HouseholdID,
		ExternalReference: nullString(tx.ExternalID),
		TransactionDate:   civil.DateOf(tx.Date),
		BookingDatetime:   civil.DateTimeOf(tx.Date),
		Amount:            decimal.NewFromFloat(tx.Amount).Rat(),
		Merchant:          nullString(tx.Merchant),
		CategoryName:      nullString(tx.Category),
		IsPaid:            tx.Paid,
		CreatedTS:         created,
	}
	if tx.ID != 0 {
		row.LedgerID = bigquery.NullInt64{Int64: tx.ID, Valid: true}
	}
	return row
}

// Transaction converts the row back to the ledger shape. Dates come back in UTC.
func (r *TransactionRow) Transaction() domain.Transaction {
	tx := domain.Transaction{
		UserID:      r.UserID,
		HouseholdID: r.HouseholdID,
		ExternalID:  r.ExternalReference.StringVal,
		Fingerprint: r.Fingerprint,
		Date:        r.BookingDatetime.In(time.UTC),
		Merchant:    r.Merchant.StringVal,
		Category:    r.CategoryName.StringVal,
		Paid:        r.IsPaid,
		CreatedAt:   r.CreatedTS,
	}
	if r.LedgerID.Valid {
		tx.ID = r.LedgerID.Int64
	}
	if r.Amount != nil {
		tx.Amount = decimal.NewFromBigRat(r.Amount, numericScale).InexactFloat64()
	}
	return tx
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
