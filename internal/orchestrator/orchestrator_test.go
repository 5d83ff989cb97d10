package orchestrator

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/patrickmvla/rift-copilot/internal/apierr"
	"github.com/patrickmvla/rift-copilot/internal/config"
	"github.com/patrickmvla/rift-copilot/internal/ingest"
	"github.com/patrickmvla/rift-copilot/internal/llmgateway"
	"github.com/patrickmvla/rift-copilot/internal/ranker"
	"github.com/patrickmvla/rift-copilot/internal/reader"
	"github.com/patrickmvla/rift-copilot/internal/search"
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

func newOrchestrator(t *testing.T, db *storage.DB, backend llmgateway.Backend) *Orchestrator {
	t.Helper()
	gw := llmgateway.New(backend, llmgateway.ModelSet{Plan: "p", Answer: "a", Verify: "v"}, 0)
	sch := search.New(&stubProvider{}, nil)
	ing := ingest.New(db, reader.New())
	rk := ranker.New(db, nil)
	vf := verify.New(gw)
	return New(db, sch, ing, rk, gw, vf, config.Budgets{}, config.Reader{Concurrency: 2})
}

type stubProvider struct {
	results []search.Result
	err     error
}

func (s *stubProvider) Search(_ context.Context, _ string, _ search.Options) ([]search.Result, error) {
	return s.results, s.err
}

type stubBackend struct {
	response string
	err      error
}

func (b *stubBackend) Generate(_ context.Context, _ string, _ llmgateway.Request) (string, error) {
	return b.response, b.err
}

func (b *stubBackend) Stream(_ context.Context, _ string, _ llmgateway.Request) (<-chan llmgateway.Delta, error) {
	ch := make(chan llmgateway.Delta, 1)
	ch <- llmgateway.Delta{Text: b.response}
	close(ch)
	return ch, b.err
}

func (b *stubBackend) IsConfigured() bool { return true }

func TestDepthSubqueryCap(t *testing.T) {
	cases := map[Depth]int{DepthQuick: 3, DepthNormal: 4, DepthDeep: 6, Depth("bogus"): 4}
	for d, want := range cases {
		if got := d.subqueryCap(); got != want {
			t.Errorf("%s: got %d, want %d", d, got, want)
		}
	}
}

func TestRequestDepthDefaultsToNormal(t *testing.T) {
	r := Request{}
	if got := r.depth(); got != DepthNormal {
		t.Errorf("expected normal default, got %s", got)
	}
	r2 := Request{Depth: DepthDeep}
	if got := r2.depth(); got != DepthDeep {
		t.Errorf("expected deep preserved, got %s", got)
	}
}

func TestPlanStageFallsBackOnUnparsableResponse(t *testing.T) {
	db := openTestDB(t)
	o := newOrchestrator(t, db, &stubBackend{response: "not json"})

	st := &runState{depth: DepthNormal}
	req := Request{Question: "what is curie temperature"}
	if err := o.planStage(context.Background(), req, st); err != nil {
		t.Fatalf("planStage: %v", err)
	}
	if len(st.subqueries) != 1 || st.subqueries[0] != req.Question {
		t.Errorf("expected naive fallback plan, got %+v", st.subqueries)
	}
}

func TestPlanStageParsesAndCapsSubqueries(t *testing.T) {
	db := openTestDB(t)
	resp := `{"intent":"x","subqueries":["a","b","c","d","e","f","g"],"focus":[],"constraints":{}}`
	o := newOrchestrator(t, db, &stubBackend{response: resp})

	st := &runState{depth: DepthQuick}
	if err := o.planStage(context.Background(), Request{Question: "q"}, st); err != nil {
		t.Fatalf("planStage: %v", err)
	}
	if len(st.subqueries) != 3 {
		t.Fatalf("expected cap of 3 for quick depth, got %d: %+v", len(st.subqueries), st.subqueries)
	}
}

func TestSearchStageDedupesPreservingFirstSeenTitle(t *testing.T) {
	db := openTestDB(t)
	titleA := "First Title"
	titleB := "Second Title"
	provider := &stubProvider{results: []search.Result{
		{URL: "https://example.com/a", Title: &titleA},
		{URL: "https://example.com/a", Title: &titleB},
		{URL: "https://example.com/b", Title: &titleB},
	}}
	gw := llmgateway.New(&stubBackend{}, llmgateway.ModelSet{}, 0)
	o := New(db, search.New(provider, nil), ingest.New(db, reader.New()), ranker.New(db, nil), gw, verify.New(gw), config.Budgets{}, config.Reader{})

	st := &runState{subqueries: []string{"q1", "q2"}}
	if err := o.searchStage(context.Background(), st); err != nil {
		t.Fatalf("searchStage: %v", err)
	}
	if len(st.sources) != 2 {
		t.Fatalf("expected 2 deduped sources, got %d: %+v", len(st.sources), st.sources)
	}
	for _, s := range st.sources {
		if s.URL == "https://example.com/a" && s.Title != titleA {
			t.Errorf("expected first-seen title %q preserved, got %q", titleA, s.Title)
		}
	}
}

func TestSearchStageFailsWhenAllSubqueriesError(t *testing.T) {
	db := openTestDB(t)
	provider := &stubProvider{err: apierrLikeError()}
	gw := llmgateway.New(&stubBackend{}, llmgateway.ModelSet{}, 0)
	o := New(db, search.New(provider, nil), ingest.New(db, reader.New()), ranker.New(db, nil), gw, verify.New(gw), config.Budgets{}, config.Reader{})

	st := &runState{subqueries: []string{"q1"}}
	if err := o.searchStage(context.Background(), st); err == nil {
		t.Fatal("expected error when every subquery search fails")
	}
}

func TestFailIsSilentOnCancelledContext(t *testing.T) {
	db := openTestDB(t)
	o := newOrchestrator(t, db, &stubBackend{})

	var events []string
	emit := func(event string, _ any) { events = append(events, event) }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := o.fail(ctx, emit, "read", context.Canceled)
	if err != context.Canceled {
		t.Fatalf("expected the underlying error returned unchanged, got %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events emitted on a cancelled run, got %v", events)
	}
}

func TestFailIsSilentOnBareCancelledError(t *testing.T) {
	db := openTestDB(t)
	o := newOrchestrator(t, db, &stubBackend{})

	var events []string
	emit := func(event string, _ any) { events = append(events, event) }

	err := o.fail(context.Background(), emit, "answer", context.Canceled)
	if err != context.Canceled {
		t.Fatalf("expected the underlying error returned unchanged, got %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no error event for a cancellation error even with a live context, got %v", events)
	}
}

func TestFailEmitsErrorForNonCancelledFailure(t *testing.T) {
	db := openTestDB(t)
	o := newOrchestrator(t, db, &stubBackend{})

	var events []string
	emit := func(event string, _ any) { events = append(events, event) }

	err := o.fail(context.Background(), emit, "verify", apierr.New(apierr.StorageError, "boom"))
	if err == nil {
		t.Fatal("expected the underlying error returned")
	}
	if len(events) != 1 || events[0] != "error" {
		t.Fatalf("expected exactly one error event, got %v", events)
	}
}

func TestVerifyStageSkipsWhenNoRankHits(t *testing.T) {
	db := openTestDB(t)
	o := newOrchestrator(t, db, &stubBackend{response: `{"claims":[]}`})

	var events []string
	emit := func(event string, _ any) { events = append(events, event) }

	st := &runState{answerText: "hello"}
	if err := o.verifyStage(context.Background(), st, emit); err != nil {
		t.Fatalf("verifyStage: %v", err)
	}
	if len(events) != 1 || events[0] != "claims" {
		t.Errorf("expected exactly one claims event, got %+v", events)
	}
}

func apierrLikeError() error {
	return apierr.New(apierr.UpstreamNonRetryable, "boom")
}
