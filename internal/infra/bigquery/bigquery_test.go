package bigquery

import (
	"math/big"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/family-ledger/internal/domain"
)

func TestNewTransactionRow(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+30*60)
	tx := &domain.Transaction{
		ID:          7,
		UserID:      "u1",
		HouseholdID: "h1",
		Fingerprint: "abc",
		Date:        time.Date(2024, 1, 5, 23, 45, 0, 0, ist),
		Amount:      1250.5,
		Merchant:    "Big Bazaar",
		Category:    "Groceries",
		CreatedAt:   time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC),
	}

	row := NewTransactionRow(tx)

	if row.TransactionDate != (civil.Date{Year: 2024, Month: time.January, Day: 5}) {
		t.Errorf("TransactionDate = %v, want the source wall-clock day", row.TransactionDate)
	}
	if row.BookingDatetime.Time.Hour != 23 {
		t.Errorf("BookingDatetime = %v", row.BookingDatetime)
	}
	if row.Amount.Cmp(big.NewRat(2501, 2)) != 0 {
		t.Errorf("Amount = %v, want 2501/2", row.Amount)
	}
	if !row.LedgerID.Valid || row.LedgerID.Int64 != 7 {
		t.Errorf("LedgerID = %+v", row.LedgerID)
	}
	if row.ExternalReference.Valid {
		t.Errorf("ExternalReference = %+v, want NULL for empty id", row.ExternalReference)
	}
	if !row.Merchant.Valid || row.Merchant.StringVal != "Big Bazaar" {
		t.Errorf("Merchant = %+v", row.Merchant)
	}

	back := row.Transaction()
	if back.Amount != 1250.5 || back.ID != 7 || back.Fingerprint != "abc" || back.Category != "Groceries" {
		t.Errorf("Transaction() = %+v", back)
	}
	if want := time.Date(2024, 1, 5, 23, 45, 0, 0, time.UTC); !back.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", back.Date, want)
	}
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_transactions.sql": {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.{{TABLE_ID}}` (x INT64)")},
		"0001_schema.sql":       {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.schema_migrations` (v INT64)")},
		"001_invalid.sql":       {Data: []byte("x")},
		"0003_missing_ext":      {Data: []byte("x")},
		"invalid_0004_test.sql": {Data: []byte("x")},
		"README.md":             {Data: []byte("docs")},
	}

	migrations, err := LoadMigrations(fsys, "proj", "ledger", "transactions")
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("got %d migrations, want 2", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("versions = %d, %d; want 1, 2", migrations[0].Version, migrations[1].Version)
	}
	if migrations[1].Name != "transactions" {
		t.Errorf("Name = %q", migrations[1].Name)
	}
	if want := "CREATE TABLE `proj.ledger.transactions` (x INT64)"; migrations[1].SQL != want {
		t.Errorf("SQL = %q, want %q", migrations[1].SQL, want)
	}

	// Checksums ignore placeholder values.
	other, err := LoadMigrations(fsys, "another", "dataset", "table")
	if err != nil {
		t.Fatal(err)
	}
	if other[1].Checksum != migrations[1].Checksum {
		t.Error("checksum changed with placeholder values")
	}
	if migrations[0].Checksum == migrations[1].Checksum {
		t.Error("different files share a checksum")
	}
}

func TestBundledMigrations(t *testing.T) {
	migrations, err := BundledMigrations("proj", "ledger", "transactions")
	if err != nil {
		t.Fatalf("BundledMigrations() error: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("no bundled migrations")
	}
	for i, m := range migrations {
		if m.Version != i+1 {
			t.Errorf("migration %s has version %d, want %d", m.Filename, m.Version, i+1)
		}
		if strings.Contains(m.SQL, "{{") {
			t.Errorf("migration %s has unreplaced placeholders", m.Filename)
		}
	}
	if !strings.Contains(migrations[len(migrations)-1].SQL, "`proj.ledger.transactions`") {
		t.Error("transactions migration does not target the configured table")
	}
}

func TestInsertQuery(t *testing.T) {
	s := NewStoreWithClient(nil, "proj", "ledger", "transactions")

	q := s.insertQuery()
	for _, want := range []string{
		"INSERT INTO `proj.ledger.transactions`",
		"WHERE NOT EXISTS",
		"WHERE fingerprint = @fingerprint",
	} {
		if !strings.Contains(q, want) {
			t.Errorf("insertQuery() missing %q", want)
		}
	}
	if s.Name() != "bigquery" {
		t.Errorf("Name() = %q", s.Name())
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() with nil client error: %v", err)
	}
}

func TestAffectedRows(t *testing.T) {
	tests := []struct {
		name   string
		status *bigquery.JobStatus
		want   int64
	}{
		{"nil status", nil, -1},
		{"no statistics", &bigquery.JobStatus{}, -1},
		{"load job", &bigquery.JobStatus{Statistics: &bigquery.JobStatistics{Details: &bigquery.LoadStatistics{}}}, -1},
		{"inserted", &bigquery.JobStatus{Statistics: &bigquery.JobStatistics{Details: &bigquery.QueryStatistics{NumDMLAffectedRows: 1}}}, 1},
		{"skipped", &bigquery.JobStatus{Statistics: &bigquery.JobStatistics{Details: &bigquery.QueryStatistics{}}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := affectedRows(tt.status); got != tt.want {
				t.Errorf("affectedRows() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMigrationFilenamePattern(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  string
		name     string
	}{
		{"0001_schema_migrations.sql", true, "0001", "schema_migrations"},
		{"0002_transactions.sql", true, "0002", "transactions"},
		{"001_invalid.sql", false, "", ""},
		{"0001_test", false, "", ""},
		{"0001.sql", false, "", ""},
		{"invalid_0001_test.sql", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			m := migrationPattern.FindStringSubmatch(tt.filename)
			if (m != nil) != tt.valid {
				t.Fatalf("match = %v, want %v", m != nil, tt.valid)
			}
			if tt.valid && (m[1] != tt.version || m[2] != tt.name) {
				t.Errorf("got version %q name %q, want %q %q", m[1], m[2], tt.version, tt.name)
			}
		})
	}
}
