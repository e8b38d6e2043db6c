package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dvloznov/family-ledger/internal/domain"
)

const transactionColumns = `id, user_id, household_id, txn_id, txn_hash, date, amount, merchant, category, paid, created_at`

// InsertTransaction stores tx in its own transaction and sets tx.ID. A
// fingerprint that already exists yields domain.ErrDuplicate and leaves
// earlier rows untouched.
func (db *DB) InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	sqlTx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("InsertTransaction: begin: %w", err)
	}
	defer sqlTx.Rollback()

	res, err := sqlTx.ExecContext(ctx, `
		INSERT INTO transactions (user_id, household_id, txn_id, txn_hash, date, amount, merchant, category, paid, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tx.UserID, tx.HouseholdID, tx.ExternalID, tx.Fingerprint, formatDate(tx.Date), tx.Amount,
		tx.Merchant, tx.Category, boolToInt(tx.Paid), formatDate(tx.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("InsertTransaction: %s: %w", tx.Fingerprint, domain.ErrDuplicate)
		}
		return fmt.Errorf("InsertTransaction: insert: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("InsertTransaction: last insert id: %w", err)
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("InsertTransaction: commit: %w", err)
	}
	tx.ID = id
	return nil
}

// ListTransactions returns the rows matching f, newest first. An empty
// UserID or HouseholdID does not filter on that column.
func (db *DB) ListTransactions(ctx context.Context, f domain.TransactionFilter) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1 = 1`
	var args []interface{}

	if f.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, f.UserID)
	}
	if f.HouseholdID != "" {
		query += ` AND household_id = ?`
		args = append(args, f.HouseholdID)
	}

	if !f.Start.IsZero() {
		query += ` AND substr(date, 1, 10) >= ?`
		args = append(args, f.Start.Format("2006-01-02"))
	}
	if !f.End.IsZero() {
		query += ` AND substr(date, 1, 10) <= ?`
		args = append(args, f.End.Format("2006-01-02"))
	}
	if f.UnpaidOnly {
		query += ` AND paid = 0`
	}
	query += ` ORDER BY date DESC, id DESC`

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query: %w", err)
	}
	defer rows.Close()

	out, err := scanTransactions(rows)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	return out, nil
}

// ListUnpaid returns the user's unpaid transactions dated within [start, end].
func (db *DB) ListUnpaid(ctx context.Context, userID string, start, end time.Time) ([]domain.Transaction, error) {
	return db.ListTransactions(ctx, domain.TransactionFilter{
		UserID:     userID,
		Start:      start,
		End:        end,
		UnpaidOnly: true,
	})
}

// GetTransactions loads rows by id in ascending id order. Unknown ids are
// skipped.
func (db *DB) GetTransactions(ctx context.Context, ids []int64) ([]domain.Transaction, error) {
	if len(ids) == 0 {
		return []domain.Transaction{}, nil
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := db.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id IN (`+placeholders(len(ids))+`) ORDER BY id`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("GetTransactions: query: %w", err)
	}
	defer rows.Close()

	out, err := scanTransactions(rows)
	if err != nil {
		return nil, fmt.Errorf("GetTransactions: %w", err)
	}
	return out, nil
}

// ArchiveTransactions marks the user's own rows among ids as paid and returns
// how many ids matched. Rows owned by other users are ignored.
func (db *DB) ArchiveTransactions(ctx context.Context, userID string, ids []int64) (int, error) {
	return db.setPaid(ctx, "ArchiveTransactions", `user_id = ?`, userID, ids)
}

// MarkPaid marks unpaid rows of the household among ids as paid. Rows that
// are already paid are not counted.
func (db *DB) MarkPaid(ctx context.Context, householdID string, ids []int64) (int, error) {
	return db.setPaid(ctx, "MarkPaid", `household_id = ? AND paid = 0`, householdID, ids)
}

func (db *DB) setPaid(ctx context.Context, op, scope, owner string, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := []interface{}{owner}
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := db.db.ExecContext(ctx,
		`UPDATE transactions SET paid = 1 WHERE `+scope+` AND id IN (`+placeholders(len(ids))+`)`,
		args...)
	if err != nil {
		return 0, fmt.Errorf("%s: update: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: rows affected: %w", op, err)
	}
	return int(n), nil
}

func scanTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	out := []domain.Transaction{}
	for rows.Next() {
		var (
			t               domain.Transaction
			date, createdAt string
			paid            int
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.HouseholdID, &t.ExternalID, &t.Fingerprint,
			&date, &t.Amount, &t.Merchant, &t.Category, &paid, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}

		var err error
		if t.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		if t.CreatedAt, err = parseDate(createdAt); err != nil {
			return nil, err
		}
		t.Paid = paid == 1
		out = append(out, t)
	}
	return out, rows.Err()
}
