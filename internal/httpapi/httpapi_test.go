package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/patrickmvla/rift-copilot/internal/config"
	"github.com/patrickmvla/rift-copilot/internal/ingest"
	"github.com/patrickmvla/rift-copilot/internal/llmgateway"
	"github.com/patrickmvla/rift-copilot/internal/orchestrator"
	"github.com/patrickmvla/rift-copilot/internal/ranker"
	"github.com/patrickmvla/rift-copilot/internal/reader"
	"github.com/patrickmvla/rift-copilot/internal/search"
	"github.com/patrickmvla/rift-copilot/internal/sse/client"
	"github.com/patrickmvla/rift-copilot/internal/storage"
	"github.com/patrickmvla/rift-copilot/internal/verify"
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

type stubProvider struct{}

func (stubProvider) Search(_ context.Context, _ string, _ search.Options) ([]search.Result, error) {
	return nil, nil
}

type stubBackend struct{}

func (stubBackend) Generate(_ context.Context, _ string, _ llmgateway.Request) (string, error) {
	return `{"claims":[]}`, nil
}

func (stubBackend) Stream(_ context.Context, _ string, _ llmgateway.Request) (<-chan llmgateway.Delta, error) {
	ch := make(chan llmgateway.Delta)
	close(ch)
	return ch, nil
}

func (stubBackend) IsConfigured() bool { return true }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db := openTestDB(t)
	gw := llmgateway.New(stubBackend{}, llmgateway.ModelSet{Plan: "p", Answer: "a", Verify: "v"}, 0)
	sch := search.New(stubProvider{}, nil)
	ing := ingest.New(db, reader.New())
	rk := ranker.New(db, nil)
	vf := verify.New(gw)
	orch := orchestrator.New(db, sch, ing, rk, gw, vf, config.Budgets{}, config.Reader{Concurrency: 2})

	srv, err := New(db, orch, sch, ing, rk, vf, config.Budgets{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func TestResearchRejectsShortQuestion(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/research", bytes.NewBufferString(`{"question":"hi"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

// TestResearchEmptySearchStreamsCannedAnswer exercises the empty-search
// path (no configured search provider returns any result) end to end,
// asserting the SSE event sequence matches the "no unique URLs" scenario.
func TestResearchEmptySearchStreamsCannedAnswer(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/research", bytes.NewBufferString(`{"question":"what happened with the widget recall","depth":"quick"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	dec := client.NewDecoder()
	events, _ := dec.Feed(rec.Body.Bytes())

	var names []string
	sawSourcesBeforeToken := false
	sawToken := false
	for _, e := range events {
		names = append(names, e.Event)
		if e.Event == "sources" && !sawToken {
			sawSourcesBeforeToken = true
		}
		if e.Event == "token" {
			sawToken = true
		}
	}

	if !contains(names, "sources") || !contains(names, "claims") || !contains(names, "done") {
		t.Fatalf("expected sources/claims/done events, got %v", names)
	}
	if !sawSourcesBeforeToken && sawToken {
		t.Errorf("sources must precede any token event, got %v", names)
	}
	if strings.Count(strings.Join(names, ","), "done")+strings.Count(strings.Join(names, ","), "error") != 1 {
		t.Errorf("expected exactly one done or error event, got %v", names)
	}
}

func contains(items []string, target string) bool {
	for _, it := range items {
		if it == target {
			return true
		}
	}
	return false
}
