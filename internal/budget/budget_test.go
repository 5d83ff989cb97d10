package budget

import (
	"strings"
	"testing"
)

func TestTrimChunksToBudgetEmptyInput(t *testing.T) {
	if got := TrimChunksToBudget(nil, 3200, 800, nil); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestTrimChunksToBudgetKeepsAtLeastOneChunk(t *testing.T) {
	huge := Chunk{ID: "1", Text: string(make([]byte, 20000))}
	got := TrimChunksToBudget([]Chunk{huge}, 3200, 800, nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk kept even though it exceeds the cap, got %d", len(got))
	}
}

func TestTrimChunksToBudgetStopsBeforeExceedingCap(t *testing.T) {
	chunks := []Chunk{
		{ID: "1", Text: mkText(400)},
		{ID: "2", Text: mkText(400)},
		{ID: "3", Text: mkText(400)},
		{ID: "4", Text: mkText(400)},
		{ID: "5", Text: mkText(400)},
	}
	// Each chunk is ~100 tokens (400 chars / 4). Budget-reserve=300 cap
	// should admit roughly 3 chunks before the running total would tip
	// over, not all 5.
	got := TrimChunksToBudget(chunks, 600, 300, nil)
	if len(got) == 0 || len(got) >= len(chunks) {
		t.Fatalf("expected a proper subset, got %d of %d", len(got), len(chunks))
	}
}

func TestTrimChunksToBudgetEffectiveCapFloor(t *testing.T) {
	chunks := []Chunk{{ID: "1", Text: mkText(40)}, {ID: "2", Text: mkText(40)}}
	// budget-reserve goes negative; effective cap floors at 300.
	got := TrimChunksToBudget(chunks, 100, 5000, nil)
	if len(got) != 2 {
		t.Fatalf("expected both small chunks admitted under the 300 floor, got %d", len(got))
	}
}

func TestShrinkChunkTextNoOpUnderLimit(t *testing.T) {
	text := "short text"
	if got := ShrinkChunkText(text, 900); got != text {
		t.Errorf("expected unchanged text, got %q", got)
	}
}

func TestShrinkChunkTextPreservesHeadAndTail(t *testing.T) {
	head := repeatByte('h', 800)
	middle := repeatByte('m', 8400)
	tail := repeatByte('t', 800)
	text := head + middle + tail

	got := ShrinkChunkText(text, 1000)

	if got[:10] != head[:10] {
		t.Errorf("expected head preserved, got prefix %q", got[:10])
	}
	if got[len(got)-10:] != tail[len(tail)-10:] {
		t.Errorf("expected tail preserved, got suffix %q", got[len(got)-10:])
	}
	if strings.Contains(got, "mmmm") {
		t.Errorf("expected middle to be dropped")
	}
}

func TestEstimatorMemoizes(t *testing.T) {
	est := NewEstimator()
	text := mkText(400)
	first := est.Estimate("chunk-1", text)
	second := est.Estimate("chunk-1", "different text entirely, should be ignored by cache")
	if first != second {
		t.Errorf("expected memoized estimate to be reused for the same id, got %d vs %d", first, second)
	}
}

func TestMinimalSourceRefsDedupesPreservingOrder(t *testing.T) {
	got := MinimalSourceRefs([]string{"a", "b", "a", "", "c", "b"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestEstimatePromptTokensSumsWithOverhead(t *testing.T) {
	total := EstimatePromptTokens([]string{mkText(400), mkText(400)}, 800)
	if total <= 800 {
		t.Errorf("expected overhead plus text estimate, got %d", total)
	}
}

func mkText(n int) string {
	return repeatByte('a', n)
}

func repeatByte(c byte, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = c
	}
	return string(b)
}
