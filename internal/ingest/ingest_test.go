package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

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
	return strings.Repeat("This sentence exists to give the reader enough text to extract meaningfully. ", 20)
}

func TestIngestImmediateStoresSourceAndChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html lang="en"><head><title>T</title></head><body><article><h1>T</h1><p>` + longBody() + `</p></article></body></html>`))
	}))
	defer srv.Close()

	db := openTestDB(t)
	in := New(db, reader.New())

	outcome, err := in.Ingest(context.Background(), srv.URL, Options{Immediate: true})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if outcome.Status != StatusOK {
		t.Fatalf("expected StatusOK, got %v", outcome.Status)
	}
	if outcome.SourceID == "" {
		t.Fatal("expected non-empty source id")
	}

	content, err := db.GetSourceContent(outcome.SourceID)
	if err != nil {
		t.Fatalf("GetSourceContent: %v", err)
	}
	if content == nil || content.Text == "" {
		t.Fatal("expected stored content")
	}

	chunks, err := db.GetChunksForSource(outcome.SourceID)
	if err != nil {
		t.Fatalf("GetChunksForSource: %v", err)
	}
	if len(chunks) == 0 {
		t.Error("expected at least one chunk")
	}
}

func TestIngestReturnsExistsForKnownURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><p>` + longBody() + `</p></body></html>`))
	}))
	defer srv.Close()

	db := openTestDB(t)
	in := New(db, reader.New())

	first, err := in.Ingest(context.Background(), srv.URL, Options{Immediate: true})
	if err != nil {
		t.Fatalf("first Ingest: %v", err)
	}

	second, err := in.Ingest(context.Background(), srv.URL, Options{Immediate: true})
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if second.Status != StatusExists {
		t.Fatalf("expected StatusExists, got %v", second.Status)
	}
	if second.SourceID != first.SourceID {
		t.Errorf("expected same source id, got %q and %q", first.SourceID, second.SourceID)
	}
}

func TestIngestDeferredQueues(t *testing.T) {
	db := openTestDB(t)
	in := New(db, reader.New())

	outcome, err := in.Ingest(context.Background(), "https://example.com/deferred", Options{Immediate: false, Priority: 3})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if outcome.Status != StatusQueued {
		t.Fatalf("expected StatusQueued, got %v", outcome.Status)
	}

	job, err := db.ClaimNextIngestJob()
	if err != nil {
		t.Fatalf("ClaimNextIngestJob: %v", err)
	}
	if job == nil || job.URL != "https://example.com/deferred" {
		t.Fatalf("got %+v", job)
	}
	if job.Priority != 3 {
		t.Errorf("expected priority 3, got %d", job.Priority)
	}
}
