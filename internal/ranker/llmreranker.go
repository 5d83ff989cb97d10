package ranker

import (
	"context"

	"github.com/patrickmvla/rift-copilot/internal/llmgateway"
	"github.com/patrickmvla/rift-copilot/internal/prompts"
)

// LLMReranker implements Reranker over the LLM gateway's reasoning
// alias, prompting for a relevance score per candidate rather than
// running a dedicated cross-encoder model. It is used when
// budgets.enable_rerank is set and providers.rerank.provider is not
// "none".
type LLMReranker struct {
	gateway *llmgateway.Gateway
}

// NewLLMReranker builds a reranker over an already-configured gateway.
func NewLLMReranker(gateway *llmgateway.Gateway) *LLMReranker {
	return &LLMReranker{gateway: gateway}
}

func (r *LLMReranker) Rerank(ctx context.Context, query string, candidates []string) ([]float64, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	prompt := prompts.BuildRerankPrompt(query, candidates)
	raw, err := r.gateway.Generate(ctx, llmgateway.Request{
		ModelAlias: llmgateway.AliasReasoning,
		System:     prompt.System,
		Prompt:     prompt.User,
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Scores []float64 `json:"scores"`
	}
	if !llmgateway.ExtractJSONInto(raw, &parsed) || len(parsed.Scores) != len(candidates) {
		// Malformed rerank output degrades to a neutral score per
		// candidate rather than failing the whole ranking stage.
		out := make([]float64, len(candidates))
		for i := range out {
			out[i] = 0.5
		}
		return out, nil
	}

	for i, s := range parsed.Scores {
		if s < 0 {
			parsed.Scores[i] = 0
		} else if s > 1 {
			parsed.Scores[i] = 1
		}
	}
	return parsed.Scores, nil
}
