package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dvloznov/family-ledger/internal/categorize"
	"github.com/dvloznov/family-ledger/internal/domain"
	"github.com/dvloznov/family-ledger/internal/jobs"
	"github.com/rs/zerolog"
)

// memStore is an in-memory Store keyed by fingerprint.
type memStore struct {
	rows     []*domain.Transaction
	seen     map[string]bool
	failWhen func(tx *domain.Transaction) error
}

func newMemStore() *memStore {
	return &memStore{seen: make(map[string]bool)}
}

func (s *memStore) InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	if s.failWhen != nil {
		if err := s.failWhen(tx); err != nil {
			return err
		}
	}
	if s.seen[tx.Fingerprint] {
		return fmt.Errorf("memStore: %w", domain.ErrDuplicate)
	}
	s.seen[tx.Fingerprint] = true
	tx.ID = int64(len(s.rows) + 1)
	s.rows = append(s.rows, tx)
	return nil
}

// mockRules is a test double for RuleSource.
type mockRules struct {
	ListRulesFunc func(ctx context.Context, householdID string) ([]domain.Rule, error)
}

func (m *mockRules) ListRules(ctx context.Context, householdID string) ([]domain.Rule, error) {
	if m.ListRulesFunc != nil {
		return m.ListRulesFunc(ctx, householdID)
	}
	return nil, nil
}

// mockArchiver is a test double for Archiver.
type mockArchiver struct {
	ArchiveFunc func(ctx context.Context, householdID, uploadID, filename string, content []byte) (string, error)
}

func (m *mockArchiver) Archive(ctx context.Context, householdID, uploadID, filename string, content []byte) (string, error) {
	return m.ArchiveFunc(ctx, householdID, uploadID, filename, content)
}

// mockPublisher is a test double for jobs.Publisher.
type mockPublisher struct {
	published []*jobs.SyncJob
	err       error
}

func (m *mockPublisher) PublishSync(ctx context.Context, job *jobs.SyncJob) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, job)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

var household = domain.Identity{UserID: "u1", HouseholdID: "h1"}

func newTestService(store Store) *Service {
	svc := NewService(store, nil, zerolog.Nop())
	svc.SetExtractor(&mockExtractor{})
	svc.SetClock(fixedClock)
	return svc
}

func TestService_Import_CSVDuplicateMerchantSpelling(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	csv := "id,date,amount,merchant\nT1,2024-01-05,450,Starbucks\nT1,2024-01-05,450,STARBUCKS COFFEE\n"
	got, err := svc.Import(context.Background(), Upload{Identity: household, Filename: "a.csv", Content: []byte(csv)})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if got.Imported != 1 || got.Duplicates != 1 {
		t.Errorf("Import() = {%d, %d}, want {1, 1}", got.Imported, got.Duplicates)
	}
	if got.Format != string(FormatCSV) {
		t.Errorf("Format = %q, want csv", got.Format)
	}
	if got.UploadID == "" {
		t.Error("UploadID is empty")
	}
	if len(store.rows) != 1 || store.rows[0].Merchant != "Starbucks" {
		t.Errorf("stored rows = %+v, want the first spelling only", store.rows)
	}
}

func TestService_Import_Idempotent(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	body := []byte(`{"transactions":[
		{"id":1,"date":"2024-01-05","amount":450,"merchant":"Apollo Pharmacy"},
		{"id":2,"date":"2024-01-06","amount":"99.5","merchant":"Fresh Mart"},
		{"id":3,"date":"2024-01-07","amount":2000,"merchant":"Indian Oil"}
	]}`)
	upload := Upload{Identity: household, Content: body}

	first, err := svc.Import(context.Background(), upload)
	if err != nil {
		t.Fatalf("first Import() error = %v", err)
	}
	if first.Imported != 3 || first.Duplicates != 0 {
		t.Errorf("first Import() = %+v, want 3 imported", first)
	}

	second, err := svc.Import(context.Background(), upload)
	if err != nil {
		t.Fatalf("second Import() error = %v", err)
	}
	if second.Imported != 0 || second.Duplicates != 3 {
		t.Errorf("second Import() = %+v, want 3 duplicates", second)
	}

	wantCategories := []string{"Medical", "Groceries", "Fuel"}
	for i, row := range store.rows {
		if row.Category != wantCategories[i] {
			t.Errorf("row %d category = %q, want %q", i, row.Category, wantCategories[i])
		}
		if row.UserID != "u1" || row.HouseholdID != "h1" {
			t.Errorf("row %d identity = %s/%s", i, row.UserID, row.HouseholdID)
		}
	}
}

func TestService_Import_Unparsable(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	publisher := &mockPublisher{}
	svc.SetPublisher(publisher)

	for _, content := range [][]byte{nil, []byte("\x00\xff\xfe\x01"), []byte("[]")} {
		_, err := svc.Import(context.Background(), Upload{Identity: household, Content: content})
		if !errors.Is(err, domain.ErrUnparsableFile) {
			t.Errorf("Import(%q) error = %v, want ErrUnparsableFile", content, err)
		}
	}
	if len(store.rows) != 0 || len(publisher.published) != 0 {
		t.Errorf("unparsable upload wrote %d rows and %d jobs", len(store.rows), len(publisher.published))
	}
}

func TestService_Import_StoreFailureCountsAsDuplicate(t *testing.T) {
	store := newMemStore()
	store.failWhen = func(tx *domain.Transaction) error {
		if tx.ExternalID == "bad" {
			return errors.New("disk I/O error")
		}
		return nil
	}
	svc := newTestService(store)

	body := []byte(`[{"id":"ok1","amount":1},{"id":"bad","amount":2},{"id":"ok2","amount":3}]`)
	got, err := svc.Import(context.Background(), Upload{Identity: household, Content: body})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if got.Imported != 2 || got.Duplicates != 1 {
		t.Errorf("Import() = %+v, want {2, 1}", got)
	}
	if len(got.NewIDs) != 2 || got.NewIDs[0] != 1 || got.NewIDs[1] != 2 {
		t.Errorf("NewIDs = %v, want [1 2]", got.NewIDs)
	}
}

func TestService_Import_RuleStrategy(t *testing.T) {
	store := newMemStore()
	var askedFor string
	rules := &mockRules{
		ListRulesFunc: func(ctx context.Context, householdID string) ([]domain.Rule, error) {
			askedFor = householdID
			return []domain.Rule{
				{Pattern: "AMAZON", Category: "Shopping"},
				{Pattern: "ZON", Category: "Finance"},
			}, nil
		},
	}
	svc := NewService(store, rules, zerolog.Nop())
	svc.SetExtractor(&mockExtractor{})
	if err := svc.SetStrategy(categorize.StrategyRules); err != nil {
		t.Fatalf("SetStrategy() error = %v", err)
	}

	body := []byte(`[{"id":"1","merchant":"amazon pay"},{"id":"2","merchant":"corner shop"}]`)
	if _, err := svc.Import(context.Background(), Upload{Identity: household, Content: body}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if askedFor != "h1" {
		t.Errorf("rules loaded for %q, want h1", askedFor)
	}
	if store.rows[0].Category != "Shopping" || store.rows[1].Category != "Others" {
		t.Errorf("categories = %q, %q; want Shopping, Others", store.rows[0].Category, store.rows[1].Category)
	}
}

func TestService_Import_RuleLoadFailure(t *testing.T) {
	rules := &mockRules{
		ListRulesFunc: func(ctx context.Context, householdID string) ([]domain.Rule, error) {
			return nil, errors.New("database is locked")
		},
	}
	svc := NewService(newMemStore(), rules, zerolog.Nop())
	svc.SetExtractor(&mockExtractor{})
	if err := svc.SetStrategy(categorize.StrategyChain); err != nil {
		t.Fatalf("SetStrategy() error = %v", err)
	}

	_, err := svc.Import(context.Background(), Upload{Identity: household, Content: []byte(`[{"id":"1"}]`)})
	if err == nil || errors.Is(err, domain.ErrUnparsableFile) {
		t.Errorf("Import() error = %v, want a rule loading error", err)
	}
}

func TestService_SetStrategy_Unknown(t *testing.T) {
	svc := newTestService(newMemStore())
	if err := svc.SetStrategy("llm"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("SetStrategy() error = %v, want ErrInvalidInput", err)
	}
	if svc.Strategy() != categorize.StrategyKeywords {
		t.Errorf("Strategy() = %q, want keywords", svc.Strategy())
	}
}

func TestService_Import_ArchiveAndPublish(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	var archived string
	svc.SetArchiver(&mockArchiver{
		ArchiveFunc: func(ctx context.Context, householdID, uploadID, filename string, content []byte) (string, error) {
			archived = householdID + "/" + filename
			return "gs://bucket/" + archived, nil
		},
	})
	publisher := &mockPublisher{}
	svc.SetPublisher(publisher)

	body := []byte(`[{"id":"1","amount":5},{"id":"1","amount":5}]`)
	got, err := svc.Import(context.Background(), Upload{Identity: household, Content: body})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if archived != "h1/"+DefaultFilename {
		t.Errorf("archived = %q", archived)
	}
	if len(publisher.published) != 1 {
		t.Fatalf("published %d jobs, want 1", len(publisher.published))
	}
	job := publisher.published[0]
	if job.HouseholdID != "h1" || job.UploadID != got.UploadID || len(job.TransactionIDs) != 1 {
		t.Errorf("job = %+v", job)
	}

	// Nothing new, nothing published.
	if _, err := svc.Import(context.Background(), Upload{Identity: household, Content: body}); err != nil {
		t.Fatalf("second Import() error = %v", err)
	}
	if len(publisher.published) != 1 {
		t.Errorf("published %d jobs after duplicate upload, want 1", len(publisher.published))
	}
}

func TestService_Import_SideEffectFailuresAreIgnored(t *testing.T) {
	svc := newTestService(newMemStore())
	svc.SetArchiver(&mockArchiver{
		ArchiveFunc: func(ctx context.Context, householdID, uploadID, filename string, content []byte) (string, error) {
			return "", errors.New("bucket not found")
		},
	})
	svc.SetPublisher(&mockPublisher{err: errors.New("queue is closed")})

	got, err := svc.Import(context.Background(), Upload{Identity: household, Content: []byte(`[{"id":"1"}]`)})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if got.Imported != 1 {
		t.Errorf("Imported = %d, want 1", got.Imported)
	}
}

func TestService_Import_MissingDateUsesClock(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	svc.SetClock(func() time.Time { return time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC) })

	if _, err := svc.Import(context.Background(), Upload{Identity: household, Content: []byte(`[{"id":"x","amount":1}]`)}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	want := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	if !store.rows[0].Date.Equal(want) {
		t.Errorf("Date = %v, want %v", store.rows[0].Date, want)
	}
}

func TestService_Import_NonFiniteAmountStoredAsZero(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	csv := "id,date,amount,merchant\nX1,2024-06-01T10:00:00,inf,SHOP\nX2,2024-06-01T11:00:00,NaN,SHOP\n"
	got, err := svc.Import(context.Background(), Upload{Identity: household, Content: []byte(csv)})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if got.Imported != 2 {
		t.Fatalf("Imported = %d, want 2", got.Imported)
	}
	for _, row := range store.rows {
		if row.Amount != 0 {
			t.Errorf("row %s amount = %v, want 0", row.ExternalID, row.Amount)
		}
	}

	summary := domain.NewSummary([]domain.Transaction{*store.rows[0], *store.rows[1]}, "", "")
	if summary.Total != 0 {
		t.Errorf("summary total = %v, want 0", summary.Total)
	}
}
