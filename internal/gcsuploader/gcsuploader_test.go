package gcsuploader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/family-ledger/internal/domain"
)

// mockStorage is an in-memory StorageService.
type mockStorage struct {
	objects map[string][]byte
	putErr  error
}

func newMockStorage() *mockStorage {
	return &mockStorage{objects: make(map[string][]byte)}
}

func (m *mockStorage) Put(ctx context.Context, bucketName, objectName string, content []byte) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[bucketName+"/"+objectName] = append([]byte(nil), content...)
	return nil
}

func (m *mockStorage) Get(ctx context.Context, bucketName, objectName string) ([]byte, error) {
	data, ok := m.objects[bucketName+"/"+objectName]
	if !ok {
		return nil, errors.New("storage: object doesn't exist")
	}
	return data, nil
}

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://bucket/path/to/file.pdf", "bucket", "path/to/file.pdf", false},
		{"gs://bucket/file.csv", "bucket", "file.csv", false},
		{"gs://bucket", "", "", true},
		{"gs://bucket/", "", "", true},
		{"gs:///object", "", "", true},
		{"s3://bucket/file", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGCSURI() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidInput) {
					t.Errorf("error %v does not wrap ErrInvalidInput", err)
				}
				return
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseGCSURI() = %q, %q; want %q, %q", bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"gs://bucket/folder/file.pdf", "file.pdf"},
		{"gs://bucket/file.csv", "file.csv"},
		{"gs://bucket", "bucket"},
	}
	for _, tt := range tests {
		if got := ExtractFilenameFromGCSURI(tt.uri); got != tt.want {
			t.Errorf("ExtractFilenameFromGCSURI(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestArchiver_Archive(t *testing.T) {
	store := newMockStorage()
	a := NewArchiver(store, "ledger-uploads", "/uploads/")
	a.now = func() time.Time { return time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC) }

	uri, err := a.Archive(context.Background(), "h1", "up-1", "../../statement jan.pdf", []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	want := "gs://ledger-uploads/uploads/h1/2024/01/05/up-1-statement jan.pdf"
	if uri != want {
		t.Errorf("Archive() = %q, want %q", uri, want)
	}

	data, err := FetchFromGCS(context.Background(), store, uri)
	if err != nil {
		t.Fatalf("FetchFromGCS() error = %v", err)
	}
	if string(data) != "%PDF-1.4" {
		t.Errorf("FetchFromGCS() = %q", data)
	}
}

func TestArchiver_ObjectNameFallbacks(t *testing.T) {
	a := NewArchiver(newMockStorage(), "b", "")
	a.now = func() time.Time { return time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		household string
		filename  string
		want      string
	}{
		{"h1", "", "h1/2024/12/31/u-upload"},
		{"", "a.csv", "unknown/2024/12/31/u-a.csv"},
		{"h/2", "a.csv", "h_2/2024/12/31/u-a.csv"},
	}
	for _, tt := range tests {
		if got := a.objectName(tt.household, "u", tt.filename); got != tt.want {
			t.Errorf("objectName(%q, %q) = %q, want %q", tt.household, tt.filename, got, tt.want)
		}
	}
}

func TestArchiver_PutError(t *testing.T) {
	store := newMockStorage()
	store.putErr = errors.New("permission denied")
	a := NewArchiver(store, "b", "p")

	if _, err := a.Archive(context.Background(), "h1", "u", "f.csv", nil); err == nil {
		t.Error("Archive() error = nil, want storage error")
	}
}
