// Package verify extracts atomic, quote-backed claims from a
// streamed answer and binds each supporting quote to a character
// offset within its source chunk, per spec §4.9. It generalizes
// internal/triage/triage.go's generate→parse→validate→clamp pipeline
// (single LLM call, tolerant JSON parse, field clamping with
// fallbacks) from a per-article relevance verdict into a multi-claim,
// multi-evidence extraction with an optional NLI contradiction pass.
package verify

import (
	"context"

	"github.com/patrickmvla/rift-copilot/internal/llmgateway"
	"github.com/patrickmvla/rift-copilot/internal/prompts"
	"github.com/patrickmvla/rift-copilot/internal/textkit"
)

// ClaimType classifies an extracted claim.
type ClaimType string

const (
	ClaimFact      ClaimType = "fact"
	ClaimInference ClaimType = "inference"
	ClaimOpinion   ClaimType = "opinion"
)

// Evidence is one quote supporting a Claim, optionally bound to an
// offset within its chunk's text.
type Evidence struct {
	SourceID  string
	ChunkID   string
	Quote     string
	CharStart *int
	CharEnd   *int
}

// Claim is one atomic, quote-backed assertion extracted from an
// answer.
type Claim struct {
	Text              string
	ClaimType         ClaimType
	SupportScore      float64
	Contradicted      bool
	UncertaintyReason *string
	Evidence          []Evidence
}

// Input is what gets verified.
type Input struct {
	AnswerMarkdown string
	Snippets       []prompts.SnippetRef
}

// Options configures a single Verify call.
type Options struct {
	MaxClaims             int
	BindOffsets           bool
	ChunkTextByID         map[string]string
	ActiveSourceIDs       map[string]bool
	ActiveChunkIDs        map[string]bool
	NLIContradictionCheck bool
	NLIMaxPairsPerClaim   int
}

func (o Options) withDefaults() Options {
	if o.MaxClaims <= 0 {
		o.MaxClaims = 8
	}
	if o.NLIMaxPairsPerClaim <= 0 {
		o.NLIMaxPairsPerClaim = 2
	}
	return o
}

// Verifier calls the LLM gateway's verify alias to extract claims.
type Verifier struct {
	gateway *llmgateway.Gateway
}

// New constructs a Verifier.
func New(gateway *llmgateway.Gateway) *Verifier {
	return &Verifier{gateway: gateway}
}

// Verify implements the §4.9 pipeline. It never returns an error for
// a malformed or empty LLM response; per step 3 that degrades to an
// empty claims list. It returns an error only for context
// cancellation or a gateway call failure the caller should propagate.
func (v *Verifier) Verify(ctx context.Context, in Input, opts Options) ([]Claim, error) {
	opts = opts.withDefaults()

	pair := prompts.BuildVerifyPrompt(in.AnswerMarkdown, in.Snippets, opts.MaxClaims)
	temp := 0.0
	respText, err := v.gateway.Generate(ctx, llmgateway.Request{
		ModelAlias:      llmgateway.AliasVerify,
		System:          pair.System,
		Prompt:          pair.User,
		Temperature:     &temp,
		MaxOutputTokens: 1024,
	})
	if err != nil {
		return nil, err
	}

	parsed := llmgateway.ExtractJSON(respText)
	if parsed == nil {
		return nil, nil
	}

	claims := parseClaims(parsed, opts)
	claims = filterClaimsToActiveContext(claims, opts)

	if opts.BindOffsets {
		bindOffsets(claims, opts.ChunkTextByID)
	}

	if opts.NLIContradictionCheck {
		v.runContradictionChecks(ctx, claims, opts)
	}

	return claims, nil
}

func parseClaims(parsed map[string]any, opts Options) []Claim {
	rawClaims, _ := parsed["claims"].([]any)
	claims := make([]Claim, 0, len(rawClaims))

	for _, rc := range rawClaims {
		obj, ok := rc.(map[string]any)
		if !ok {
			continue
		}
		text, _ := obj["text"].(string)
		if text == "" {
			continue
		}

		claim := Claim{
			Text:         text,
			ClaimType:    parseClaimType(obj["claimType"]),
			SupportScore: clamp01(toFloat(obj["supportScore"])),
			Contradicted: toBool(obj["contradicted"]),
		}
		if reason, ok := obj["uncertaintyReason"].(string); ok && reason != "" {
			claim.UncertaintyReason = &reason
		}

		if rawEvidence, ok := obj["evidence"].([]any); ok {
			for _, re := range rawEvidence {
				eobj, ok := re.(map[string]any)
				if !ok {
					continue
				}
				sourceID, _ := eobj["sourceId"].(string)
				quote, _ := eobj["quote"].(string)
				if sourceID == "" || quote == "" {
					continue
				}
				chunkID, _ := eobj["chunkId"].(string)
				claim.Evidence = append(claim.Evidence, Evidence{
					SourceID: sourceID,
					ChunkID:  chunkID,
					Quote:    quote,
				})
			}
		}

		if len(claim.Evidence) == 0 {
			continue
		}
		claims = append(claims, claim)
		if len(claims) >= opts.MaxClaims {
			break
		}
	}

	return claims
}

func parseClaimType(v any) ClaimType {
	s, _ := v.(string)
	switch ClaimType(s) {
	case ClaimFact, ClaimInference, ClaimOpinion:
		return ClaimType(s)
	default:
		return ClaimFact
	}
}

// filterClaimsToActiveContext drops evidence with no chunkId (it can
// never be persisted as ClaimEvidence, which requires one), and
// evidence whose sourceId/chunkId weren't part of the active ranking
// context, per step 5, then drops any claim left with no evidence.
func filterClaimsToActiveContext(claims []Claim, opts Options) []Claim {
	out := make([]Claim, 0, len(claims))
	for _, c := range claims {
		var kept []Evidence
		for _, e := range c.Evidence {
			// TODO: dropped instead of persisted with a synthesized
			// chunkId; the model rarely omits it and there is no
			// reliable way to infer which chunk a quote came from
			// after the fact.
			if e.ChunkID == "" {
				continue
			}
			if opts.ActiveSourceIDs != nil && !opts.ActiveSourceIDs[e.SourceID] {
				continue
			}
			if opts.ActiveChunkIDs != nil && !opts.ActiveChunkIDs[e.ChunkID] {
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			continue
		}
		c.Evidence = kept
		out = append(out, c)
	}
	return out
}

// bindOffsets resolves each evidence quote's {charStart,charEnd}
// within its chunk's text using tolerant matching, per step 6. A
// quote that can't be located is left with nil offsets rather than
// dropped.
func bindOffsets(claims []Claim, chunkTextByID map[string]string) {
	for i := range claims {
		for j := range claims[i].Evidence {
			ev := &claims[i].Evidence[j]
			if ev.ChunkID == "" {
				continue
			}
			text, ok := chunkTextByID[ev.ChunkID]
			if !ok {
				continue
			}
			if off := textkit.FindQuoteOffsets(text, ev.Quote, textkit.QuoteMatchOptions{}); off != nil {
				start, end := off.Start, off.End
				ev.CharStart = &start
				ev.CharEnd = &end
			}
		}
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func toBool(v any) bool {
	b, _ := v.(bool)
	return b
}
