package verify

import (
	"context"

	"github.com/patrickmvla/rift-copilot/internal/llmgateway"
	"github.com/patrickmvla/rift-copilot/internal/prompts"
)

const contradictionPenalty = 0.15

// runContradictionChecks implements §4.9 step 7: for each claim with
// at least two evidence items from different sources, form up to
// NLIMaxPairsPerClaim pairs and call the NLI prompt. Any "contradict"
// verdict marks the claim contradicted, backfills an uncertainty
// rationale if empty, and reduces supportScore by 0.15 (clamped).
func (v *Verifier) runContradictionChecks(ctx context.Context, claims []Claim, opts Options) {
	for i := range claims {
		pairs := crossSourcePairs(claims[i].Evidence, opts.NLIMaxPairsPerClaim)
		for _, pair := range pairs {
			if ctx.Err() != nil {
				return
			}
			label, rationale, err := v.checkPair(ctx, claims[i].Text, pair[0].Quote, pair[1].Quote)
			if err != nil {
				continue
			}
			if label != "contradict" {
				continue
			}
			claims[i].Contradicted = true
			if claims[i].UncertaintyReason == nil || *claims[i].UncertaintyReason == "" {
				claims[i].UncertaintyReason = &rationale
			}
			claims[i].SupportScore = clamp01(claims[i].SupportScore - contradictionPenalty)
		}
	}
}

func (v *Verifier) checkPair(ctx context.Context, claimText, evidenceA, evidenceB string) (label, rationale string, err error) {
	pair := prompts.BuildNLIPrompt(claimText, evidenceA, evidenceB)
	temp := 0.0
	respText, err := v.gateway.Generate(ctx, llmgateway.Request{
		ModelAlias:      llmgateway.AliasVerify,
		System:          pair.System,
		Prompt:          pair.User,
		Temperature:     &temp,
		MaxOutputTokens: 256,
	})
	if err != nil {
		return "", "", err
	}

	parsed := llmgateway.ExtractJSON(respText)
	if parsed == nil {
		return "neutral", "", nil
	}
	l, _ := parsed["label"].(string)
	r, _ := parsed["rationale"].(string)
	return l, r, nil
}

// crossSourcePairs forms up to maxPairs pairs of evidence drawn from
// distinct sources.
func crossSourcePairs(evidence []Evidence, maxPairs int) [][2]Evidence {
	var pairs [][2]Evidence
	for i := 0; i < len(evidence) && len(pairs) < maxPairs; i++ {
		for j := i + 1; j < len(evidence) && len(pairs) < maxPairs; j++ {
			if evidence[i].SourceID == evidence[j].SourceID {
				continue
			}
			pairs = append(pairs, [2]Evidence{evidence[i], evidence[j]})
		}
	}
	return pairs
}
