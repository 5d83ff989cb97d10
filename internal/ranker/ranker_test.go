package ranker

import (
	"context"
	"path/filepath"
	"testing"

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

func TestBuildFTSQueryQuotesTokensAndCapsAtTwelve(t *testing.T) {
	got := buildFTSQuery("Curie temperature! of iron-oxide")
	want := `"curie" AND "temperature" AND "of" AND "iron" AND "oxide"`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	capped := buildFTSQuery("t1 t2 t3 t4 t5 t6 t7 t8 t9 t10 t11 t12 t13 t14")
	wantCapped := `"t1" AND "t2" AND "t3" AND "t4" AND "t5" AND "t6" AND "t7" AND "t8" AND "t9" AND "t10" AND "t11" AND "t12"`
	if capped != wantCapped {
		t.Errorf("got %q, want %q", capped, wantCapped)
	}
}

func TestBuildFTSQueryFallsBackToQuotedInput(t *testing.T) {
	got := buildFTSQuery("!!!")
	if got != `"!!!"` {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeBM25(t *testing.T) {
	if got := normalizeBM25(1); got != 0.5 {
		t.Errorf("got %v", got)
	}
	if got := normalizeBM25(0); got != 0.5 {
		t.Errorf("got %v", got)
	}
	if got := normalizeBM25(-1); got != 0.5 {
		t.Errorf("expected non-positive bm25 to map to 0.5, got %v", got)
	}
}

func seedSource(t *testing.T, db *storage.DB, url string, chunks []storage.NewChunk) string {
	t.Helper()
	id, err := db.UpsertSource(url, "example.com", nil, nil)
	if err != nil {
		t.Fatalf("UpsertSource: %v", err)
	}
	if _, err := db.InsertChunks(id, chunks); err != nil {
		t.Fatalf("InsertChunks: %v", err)
	}
	return id
}

func TestRankForQueriesReturnsFTSHits(t *testing.T) {
	db := openTestDB(t)
	seedSource(t, db, "https://a.example.com/1", []storage.NewChunk{
		{CharStart: 0, CharEnd: 30, Text: "the curie temperature of iron", Tokens: 6},
	})
	seedSource(t, db, "https://b.example.com/2", []storage.NewChunk{
		{CharStart: 0, CharEnd: 30, Text: "paris is the capital of france", Tokens: 6},
	})

	r := New(db, nil)
	hits, err := r.RankForQueries(context.Background(), []string{"curie temperature"}, Options{})
	if err != nil {
		t.Fatalf("RankForQueries: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d: %+v", len(hits), hits)
	}
}

func TestRankForQueriesDiversifiesBySource(t *testing.T) {
	db := openTestDB(t)
	sourceID := seedSource(t, db, "https://a.example.com/1", []storage.NewChunk{
		{CharStart: 0, CharEnd: 20, Text: "quantum entanglement basics one", Tokens: 4},
		{CharStart: 20, CharEnd: 40, Text: "quantum entanglement basics two", Tokens: 4},
		{CharStart: 40, CharEnd: 60, Text: "quantum entanglement basics three", Tokens: 4},
		{CharStart: 60, CharEnd: 80, Text: "quantum entanglement basics four", Tokens: 4},
	})
	_ = sourceID

	r := New(db, nil)
	hits, err := r.RankForQueries(context.Background(), []string{"quantum entanglement"}, Options{PerSourceLimit: 2, Cap: 10})
	if err != nil {
		t.Fatalf("RankForQueries: %v", err)
	}
	// All 4 chunks share one source; diversification caps at
	// PerSourceLimit within the first pass, then backfills from the
	// remainder up to Cap, so all 4 should still appear.
	if len(hits) != 4 {
		t.Fatalf("expected 4 hits after backfill, got %d", len(hits))
	}
}

func TestRankForQueriesFallsBackToLikeWhenFTSEmpty(t *testing.T) {
	db := openTestDB(t)
	seedSource(t, db, "https://a.example.com/1", []storage.NewChunk{
		{CharStart: 0, CharEnd: 20, Text: "zzzznomatch keyword text", Tokens: 4},
	})

	r := New(db, nil)
	// "keywo" is only a prefix of the indexed token "keyword", so both
	// FTS attempts return zero hits and the LIKE substring fallback
	// finds the chunk.
	hits, err := r.RankForQueries(context.Background(), []string{"keywo"}, Options{})
	if err != nil {
		t.Fatalf("RankForQueries: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit from the LIKE fallback, got %d: %+v", len(hits), hits)
	}
}
