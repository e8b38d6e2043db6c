package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/family-ledger/internal/api/middleware"
	"github.com/dvloznov/family-ledger/internal/domain"
	"github.com/dvloznov/family-ledger/internal/infra/sqlite"
	"github.com/dvloznov/family-ledger/internal/jobs"
	"github.com/dvloznov/family-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/family-ledger/internal/pipeline"
	"github.com/rs/zerolog"
)

const statementCSV = "id,date,amount,merchant\n" +
	"9001,2024-06-01T09:15:00,450,Apollo Pharmacy\n" +
	"9002,2024-05-30T19:00:00,1200.5,Indian Oil\n" +
	"9003,2024-04-01T10:00:00,80,Fresh Mart\n"

type testEnv struct {
	db      *sqlite.DB
	jobs    *inmemory.Store
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("sqlite.Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := func() time.Time { return time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC) }

	importer := pipeline.NewService(db, db, zerolog.Nop())
	importer.SetClock(clock)

	jobStore := inmemory.NewStore()
	srv := NewServer(db, importer, jobStore, Options{
		MaxUploadBytes: 1 << 20,
		SummaryDays:    7,
		PayeeUPI:       "friend@upi",
		PayeeName:      "Friend",
		Metrics:        true,
	}, zerolog.Nop())
	srv.SetClock(clock)

	return &testEnv{db: db, jobs: jobStore, handler: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(middleware.HeaderUserID, "u1")
	req.Header.Set(middleware.HeaderHouseholdID, "h1")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(t *testing.T, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(b)
	}
	return e.do(t, method, path, body, "application/json")
}

func multipartBody(t *testing.T, filename, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("/health = %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ledger_http_requests_total") {
		t.Errorf("/metrics = %d, missing request counter", rec.Code)
	}
}

func TestAPIRequiresIdentity(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t)

	body, ct := multipartBody(t, "statement.csv", statementCSV)
	rec := env.do(t, http.MethodPost, "/api/upload", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("first upload = %d %s", rec.Code, rec.Body.String())
	}
	got := decode[map[string]int](t, rec)
	if got["imported"] != 3 || got["duplicates"] != 0 || len(got) != 2 {
		t.Errorf("first upload = %v, want imported 3 duplicates 0", got)
	}

	// The same rows as a raw body are all duplicates.
	rec = env.do(t, http.MethodPost, "/api/upload?filename=again.csv", strings.NewReader(statementCSV), "text/csv")
	got = decode[map[string]int](t, rec)
	if got["imported"] != 0 || got["duplicates"] != 3 {
		t.Errorf("second upload = %v, want imported 0 duplicates 3", got)
	}

	rec = env.do(t, http.MethodPost, "/api/upload", strings.NewReader("nothing to see here"), "text/plain")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unparsable upload = %d, want 400", rec.Code)
	}
	if e := decode[map[string]string](t, rec); e["error"] != "Could not parse file" {
		t.Errorf("error = %q", e["error"])
	}
}

func TestUploadTooLarge(t *testing.T) {
	env := newTestEnv(t)
	big := strings.Repeat("x", 2<<20)

	rec := env.do(t, http.MethodPost, "/api/upload", strings.NewReader(big), "application/octet-stream")
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestTransactionsAndSummary(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/upload", strings.NewReader(statementCSV), "text/csv")

	rec := env.do(t, http.MethodGet, "/api/transactions", nil, "")
	all := decode[[]domain.Transaction](t, rec)
	if len(all) != 3 || all[0].Merchant != "Apollo Pharmacy" || all[0].Category != "Medical" {
		t.Fatalf("transactions = %+v", all)
	}

	rec = env.do(t, http.MethodGet, "/api/transactions?start=2024-05-01&end=2024-05-31", nil, "")
	if may := decode[[]domain.Transaction](t, rec); len(may) != 1 || may[0].Merchant != "Indian Oil" {
		t.Errorf("May transactions = %+v", may)
	}

	rec = env.do(t, http.MethodGet, "/api/transactions?start=yesterday", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad start = %d, want 400", rec.Code)
	}

	// The clock is 2024-06-02, so the 7-day window excludes April.
	rec = env.do(t, http.MethodGet, "/api/summary", nil, "")
	summary := decode[domain.Summary](t, rec)
	if len(summary.Unpaid) != 2 || summary.Total != 1650.5 || summary.UPI != "friend@upi" || summary.Name != "Friend" {
		t.Fatalf("summary = %+v", summary)
	}

	ids := []int64{summary.Unpaid[0].ID, summary.Unpaid[1].ID}
	rec = env.doJSON(t, http.MethodPost, "/api/summary/mark-paid", map[string]interface{}{"txnIds": ids})
	if got := decode[map[string]int](t, rec); got["marked"] != 2 {
		t.Errorf("marked = %v, want 2", got)
	}
	rec = env.doJSON(t, http.MethodPost, "/api/summary/mark-paid", map[string]interface{}{"txnIds": ids})
	if got := decode[map[string]int](t, rec); got["marked"] != 0 {
		t.Errorf("second mark = %v, want 0", got)
	}

	rec = env.do(t, http.MethodGet, "/api/summary?days=90", nil, "")
	if s := decode[domain.Summary](t, rec); len(s.Unpaid) != 1 || s.Total != 80 {
		t.Errorf("90-day summary = %+v", s)
	}

	rec = env.doJSON(t, http.MethodPost, "/api/transactions/archive", map[string]interface{}{"ids": []int64{all[2].ID, 999}})
	if got := decode[map[string]int](t, rec); got["archived"] != 1 {
		t.Errorf("archived = %v, want 1", got)
	}
}

func TestCategoriesAndRules(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/api/categories", map[string]string{"name": "Electronics"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category = %d %s", rec.Code, rec.Body.String())
	}
	category := decode[domain.Category](t, rec)

	rec = env.doJSON(t, http.MethodPost, "/api/categories", map[string]string{"name": "Electronics"})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate category = %d, want 409", rec.Code)
	}

	rec = env.doJSON(t, http.MethodPost, "/api/rules", map[string]interface{}{"pattern": "sathya", "category_id": category.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create rule = %d %s", rec.Code, rec.Body.String())
	}
	rule := decode[domain.Rule](t, rec)
	if rule.Pattern != "SATHYA" || rule.Category != "Electronics" {
		t.Errorf("rule = %+v", rule)
	}

	rec = env.doJSON(t, http.MethodPost, "/api/rules", map[string]interface{}{"pattern": "X", "category_id": 999})
	if rec.Code != http.StatusNotFound {
		t.Errorf("rule with unknown category = %d, want 404", rec.Code)
	}

	rec = env.doJSON(t, http.MethodPost, "/api/rules/test", map[string]string{"merchant": "Sathya Mobiles"})
	result := decode[struct {
		Categories map[string]string `json:"categories"`
	}](t, rec)
	want := map[string]string{"rules": "Electronics", "keywords": "Shopping", "chain": "Electronics"}
	for k, v := range want {
		if result.Categories[k] != v {
			t.Errorf("rules/test %s = %q, want %q", k, result.Categories[k], v)
		}
	}

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/categories/%d", category.ID), nil, "")
	if rec.Code != http.StatusConflict {
		t.Errorf("delete category in use = %d, want 409", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/rules/%d", rule.ID), nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("delete rule = %d", rec.Code)
	}
	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/categories/%d", category.ID), nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("delete category = %d", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/api/rules/abc", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("delete rule with bad id = %d, want 400", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/categories", nil, "")
	if list := decode[map[string]interface{}](t, rec); list["count"] != float64(0) {
		t.Errorf("categories = %v, want empty", list)
	}
}

func TestJobs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	own := &jobs.SyncJob{JobID: "j1", HouseholdID: "h1", Status: jobs.JobStatusCompleted, CreatedAt: time.Now()}
	other := &jobs.SyncJob{JobID: "j2", HouseholdID: "h2", Status: jobs.JobStatusPending, CreatedAt: time.Now()}
	for _, j := range []*jobs.SyncJob{own, other} {
		if err := env.jobs.SaveJob(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	rec := env.do(t, http.MethodGet, "/api/jobs", nil, "")
	if list := decode[map[string]interface{}](t, rec); list["count"] != float64(1) {
		t.Errorf("jobs = %v, want only the household's job", list)
	}

	tests := []struct {
		id   string
		want int
	}{
		{"j1", http.StatusOK},
		{"j2", http.StatusNotFound},
		{"missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/jobs/"+tt.id, nil, "")
			if rec.Code != tt.want {
				t.Errorf("GET /api/jobs/%s = %d, want %d", tt.id, rec.Code, tt.want)
			}
		})
	}
}
