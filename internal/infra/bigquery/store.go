// Package bigquery mirrors ledger transactions into a BigQuery warehouse
// table and manages that table's schema migrations.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/family-ledger/internal/domain"
	"google.golang.org/api/iterator"
)

// Store writes and reads warehouse rows with a shared BigQuery client.
type Store struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	tableID   string
}

// NewStore creates a Store with its own client for projectID.
func NewStore(ctx context.Context, projectID, datasetID, tableID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewStore: project id required: %w", domain.ErrInvalidInput)
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating client: %w", err)
	}
	return NewStoreWithClient(client, projectID, datasetID, tableID), nil
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(client *bigquery.Client, projectID, datasetID, tableID string) *Store {
	return &Store{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
		tableID:   tableID,
	}
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Name identifies the sink in logs and metrics.
func (s *Store) Name() string { return "bigquery" }

func (s *Store) tableRef() string {
	return fmt.Sprintf("`%s.%s.%s`", s.projectID, s.datasetID, s.tableID)
}

// insertQuery inserts the parameter row unless its fingerprint is present.
func (s *Store) insertQuery() string {
	return fmt.Sprintf(`
		INSERT INTO %[1]s (
			fingerprint,
			ledger_id,
			user_id,
			household_id,
			external_reference,
			transaction_date,
			booking_datetime,
			amount,
			merchant,
			category_name,
			is_paid,
			created_ts
		)
		SELECT
			@fingerprint,
			@ledger_id,
			@user_id,
			@household_id,
			@external_reference,
			@transaction_date,
			@booking_datetime,
			@amount,
			@merchant,
			@category_name,
			@is_paid,
			@created_ts
		FROM UNNEST([1])
		WHERE NOT EXISTS (
			SELECT 1 FROM %[1]s WHERE fingerprint = @fingerprint
		)
	`, s.tableRef())
}

// InsertTransaction appends tx to the warehouse table. A row with the same
// fingerprint yields domain.ErrDuplicate.
func (s *Store) InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	row := NewTransactionRow(tx)

	q := s.client.Query(s.insertQuery())
	q.Parameters = []bigquery.QueryParameter{
		{Name: "fingerprint", Value: row.Fingerprint},
		{Name: "ledger_id", Value: row.LedgerID},
		{Name: "user_id", Value: row.UserID},
		{Name: "household_id", Value: row.HouseholdID},
		{Name: "external_reference", Value: row.ExternalReference},
		{Name: "transaction_date", Value: row.TransactionDate},
		{Name: "booking_datetime", Value: row.BookingDatetime},
		{Name: "amount", Value: row.Amount},
		{Name: "merchant", Value: row.Merchant},
		{Name: "category_name", Value: row.CategoryName},
		{Name: "is_paid", Value: row.IsPaid},
		{Name: "created_ts", Value: row.CreatedTS},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("InsertTransaction: running insert query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("InsertTransaction: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("InsertTransaction: job error: %w", err)
	}

	if affectedRows(status) == 0 {
		return fmt.Errorf("InsertTransaction: %s: %w", tx.Fingerprint, domain.ErrDuplicate)
	}
	return nil
}

// affectedRows returns the DML row count, or -1 when the job reports none.
func affectedRows(status *bigquery.JobStatus) int64 {
	if status == nil || status.Statistics == nil {
		return -1
	}
	qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics)
	if !ok {
		return -1
	}
	return qs.NumDMLAffectedRows
}

// ListTransactions returns the household's rows with transaction_date in
// [start, end], newest first.
func (s *Store) ListTransactions(ctx context.Context, householdID string, start, end time.Time) ([]*TransactionRow, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			fingerprint,
			ledger_id,
			user_id,
			household_id,
			external_reference,
			transaction_date,
			booking_datetime,
			amount,
			merchant,
			category_name,
			is_paid,
			created_ts
		FROM %s
		WHERE household_id = @household_id
		  AND transaction_date >= @start_date
		  AND transaction_date <= @end_date
		ORDER BY booking_datetime DESC
	`, s.tableRef()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "household_id", Value: householdID},
		{Name: "start_date", Value: civil.DateOf(start)},
		{Name: "end_date", Value: civil.DateOf(end)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}
