package ingestworker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/patrickmvla/rift-copilot/internal/ingest"
	"github.com/patrickmvla/rift-copilot/internal/reader"
	"github.com/patrickmvla/rift-copilot/internal/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func longBody() string {
	return strings.Repeat("Sentences here exist to satisfy readability extraction thresholds in tests. ", 20)
}

func TestRunOnceProcessesQueuedJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><article><h1>T</h1><p>` + longBody() + `</p></article></body></html>`))
	}))
	defer srv.Close()

	db := openTestDB(t)
	in := ingest.New(db, reader.New())
	w := New(in, Options{})

	if _, err := db.EnqueueURL(srv.URL, 0); err != nil {
		t.Fatalf("EnqueueURL: %v", err)
	}

	counts, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if counts.Processed != 1 || counts.OK != 1 {
		t.Fatalf("expected 1 processed/ok, got %+v", counts)
	}

	source, err := db.GetSourceByURL(srv.URL)
	if err != nil {
		t.Fatalf("GetSourceByURL: %v", err)
	}
	if source == nil {
		t.Fatal("expected source to be created")
	}
}

func TestRunOnceReturnsZeroWhenQueueEmpty(t *testing.T) {
	db := openTestDB(t)
	in := ingest.New(db, reader.New())
	w := New(in, Options{})

	counts, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if counts.Processed != 0 {
		t.Errorf("expected 0 processed on empty queue, got %d", counts.Processed)
	}
}
