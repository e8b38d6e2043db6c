// Package sqlite is the primary ledger store: transactions, categories and
// merchant rules per household, backed by modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// dateLayout stores the source wall clock first, so day filters and lexical
// order follow it, then the UTC offset.
const dateLayout = "2006-01-02T15:04:05.000000-07:00"

// naiveDateLayout is the offset-less form of older rows, read as UTC.
const naiveDateLayout = "2006-01-02T15:04:05.000000"

// DB wraps the SQLite handle shared by all ledger operations.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies migrations.
// ":memory:" is accepted for throwaway databases.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("Open: create dir: %w", err)
			}
		}
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}
	// One writer at a time keeps per-record transactions from failing with SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{db: sqlDB}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Close releases the database handle.
func (db *DB) Close() error {
	return db.db.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

func (db *DB) migrate() error {
	for i, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: statement %d: %w", i+1, err)
		}
	}
	return nil
}

// Migrations returns the schema statements, one statement per string.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS categories (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			household_id TEXT NOT NULL,
			name         TEXT NOT NULL,
			UNIQUE(household_id, name)
		)`,

		// Rules match in id order.
		`CREATE TABLE IF NOT EXISTS merchant_rules (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			household_id TEXT NOT NULL,
			pattern      TEXT NOT NULL,
			category_id  INTEGER NOT NULL REFERENCES categories(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rules_household ON merchant_rules(household_id, id)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id      TEXT NOT NULL,
			household_id TEXT NOT NULL,
			txn_id       TEXT NOT NULL DEFAULT '',
			txn_hash     TEXT NOT NULL UNIQUE,
			date         TEXT NOT NULL,
			amount       REAL NOT NULL,
			merchant     TEXT NOT NULL DEFAULT '',
			category     TEXT NOT NULL DEFAULT 'Other',
			paid         INTEGER NOT NULL DEFAULT 0,
			created_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions(user_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_household ON transactions(household_id)`,
	}
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlitedrv.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		return false
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(naiveDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parseDate %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
