package verify

import (
	"context"
	"testing"

	"github.com/patrickmvla/rift-copilot/internal/llmgateway"
)

type mockBackend struct {
	responses []string
	call      int
}

func (m *mockBackend) Generate(_ context.Context, _ string, _ llmgateway.Request) (string, error) {
	if m.call >= len(m.responses) {
		return "{}", nil
	}
	r := m.responses[m.call]
	m.call++
	return r, nil
}

func (m *mockBackend) Stream(_ context.Context, _ string, _ llmgateway.Request) (<-chan llmgateway.Delta, error) {
	ch := make(chan llmgateway.Delta)
	close(ch)
	return ch, nil
}

func (m *mockBackend) IsConfigured() bool { return true }

func newGateway(responses ...string) *llmgateway.Gateway {
	return llmgateway.New(&mockBackend{responses: responses}, llmgateway.ModelSet{Verify: "verify-model"}, 0)
}

func TestVerifyExtractsClaimsWithEvidence(t *testing.T) {
	resp := `{"claims":[{"text":"Paris is the capital of France","claimType":"fact","supportScore":0.9,"contradicted":false,"evidence":[{"sourceId":"s1","chunkId":"c1","quote":"Paris is the capital of France"}]}]}`
	v := New(newGateway(resp))

	claims, err := v.Verify(context.Background(), Input{AnswerMarkdown: "Paris is the capital of France [1]."}, Options{})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(claims) != 1 {
		t.Fatalf("expected 1 claim, got %d", len(claims))
	}
	if claims[0].SupportScore != 0.9 {
		t.Errorf("expected supportScore 0.9, got %v", claims[0].SupportScore)
	}
}

func TestVerifyDropsClaimsWithNoEvidence(t *testing.T) {
	resp := `{"claims":[{"text":"unsupported claim","claimType":"fact","supportScore":0.5,"evidence":[]}]}`
	v := New(newGateway(resp))

	claims, err := v.Verify(context.Background(), Input{AnswerMarkdown: "x"}, Options{})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(claims) != 0 {
		t.Fatalf("expected 0 claims, got %d", len(claims))
	}
}

func TestVerifyReturnsEmptyOnUnparsableResponse(t *testing.T) {
	v := New(newGateway("not json at all"))

	claims, err := v.Verify(context.Background(), Input{AnswerMarkdown: "x"}, Options{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if claims != nil {
		t.Fatalf("expected nil claims, got %v", claims)
	}
}

func TestVerifyFiltersEvidenceOutsideActiveContext(t *testing.T) {
	resp := `{"claims":[{"text":"claim","claimType":"fact","supportScore":0.7,"evidence":[
		{"sourceId":"s1","chunkId":"c1","quote":"q1"},
		{"sourceId":"s-unknown","chunkId":"c2","quote":"q2"}
	]}]}`
	v := New(newGateway(resp))

	claims, err := v.Verify(context.Background(), Input{AnswerMarkdown: "x"}, Options{
		ActiveSourceIDs: map[string]bool{"s1": true},
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(claims) != 1 || len(claims[0].Evidence) != 1 {
		t.Fatalf("expected 1 claim with 1 filtered evidence, got %+v", claims)
	}
	if claims[0].Evidence[0].SourceID != "s1" {
		t.Errorf("expected s1 kept, got %+v", claims[0].Evidence)
	}
}

func TestVerifyBindsOffsetsWhenChunkTextAvailable(t *testing.T) {
	resp := `{"claims":[{"text":"claim","claimType":"fact","supportScore":0.6,"evidence":[{"sourceId":"s1","chunkId":"c1","quote":"brown fox"}]}]}`
	v := New(newGateway(resp))

	claims, err := v.Verify(context.Background(), Input{AnswerMarkdown: "x"}, Options{
		BindOffsets:   true,
		ChunkTextByID: map[string]string{"c1": "the quick brown fox jumps"},
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	ev := claims[0].Evidence[0]
	if ev.CharStart == nil || ev.CharEnd == nil {
		t.Fatal("expected offsets to be bound")
	}
	if *ev.CharStart != 10 || *ev.CharEnd != 19 {
		t.Errorf("got start=%d end=%d", *ev.CharStart, *ev.CharEnd)
	}
}

func TestVerifyContradictionCheckReducesScore(t *testing.T) {
	verifyResp := `{"claims":[{"text":"claim","claimType":"fact","supportScore":0.8,"evidence":[
		{"sourceId":"s1","chunkId":"c1","quote":"the sky is blue"},
		{"sourceId":"s2","chunkId":"c2","quote":"the sky is not blue"}
	]}]}`
	nliResp := `{"label":"contradict","rationale":"sources disagree"}`
	v := New(newGateway(verifyResp, nliResp))

	claims, err := v.Verify(context.Background(), Input{AnswerMarkdown: "x"}, Options{
		NLIContradictionCheck: true,
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !claims[0].Contradicted {
		t.Fatal("expected claim marked contradicted")
	}
	if claims[0].SupportScore >= 0.8 {
		t.Errorf("expected reduced supportScore, got %v", claims[0].SupportScore)
	}
	if claims[0].UncertaintyReason == nil || *claims[0].UncertaintyReason != "sources disagree" {
		t.Errorf("expected rationale backfilled, got %v", claims[0].UncertaintyReason)
	}
}
