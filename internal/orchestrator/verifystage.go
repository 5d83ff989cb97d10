package orchestrator

import (
	"context"

	"github.com/patrickmvla/rift-copilot/internal/apierr"
	"github.com/patrickmvla/rift-copilot/internal/budget"
	"github.com/patrickmvla/rift-copilot/internal/prompts"
	"github.com/patrickmvla/rift-copilot/internal/storage"
	"github.com/patrickmvla/rift-copilot/internal/verify"
)

const (
	defaultVerifyInputTokens    = 1500
	defaultVerifyPromptOverhead = 500
	verifyMaxCharsPerChunk      = 350
	verifyHardCeilingTokens     = 5000
)

// verifyStage implements §4.10 step 6. It re-budgets the same ranked
// chunks more aggressively than the answer stage, skips verify
// entirely when the resulting prompt would still be too large, and
// otherwise extracts and persists quote-bound claims.
func (o *Orchestrator) verifyStage(ctx context.Context, st *runState, emit Emit) error {
	if len(st.rankHits) == 0 || st.answerText == "" {
		emit("claims", ClaimsPayload{Claims: []ClaimInfo{}})
		return nil
	}

	inputTokens := o.budgets.VerifyInputTokens
	if inputTokens <= 0 {
		inputTokens = defaultVerifyInputTokens
	}
	overhead := o.budgets.VerifyPromptOverhead
	if overhead <= 0 {
		overhead = defaultVerifyPromptOverhead
	}

	numberBySource := make(map[string]int)
	activeSourceIDs := make(map[string]bool)
	activeChunkIDs := make(map[string]bool)
	chunkTextByID := make(map[string]string, len(st.rankHits))
	next := 1

	shrunk := make([]budget.Chunk, len(st.rankHits))
	for i, h := range st.rankHits {
		text := budget.ShrinkChunkText(h.Text, verifyMaxCharsPerChunk)
		shrunk[i] = budget.Chunk{ID: h.ID, Text: text}
		chunkTextByID[h.ID] = text
		activeSourceIDs[h.SourceID] = true
		activeChunkIDs[h.ID] = true
		if _, ok := numberBySource[h.SourceID]; !ok {
			numberBySource[h.SourceID] = next
			next++
		}
	}

	est := budget.NewEstimator()
	trimmed := budget.TrimChunksToBudget(shrunk, inputTokens, overhead, est)

	texts := make([]string, 0, len(trimmed)+1)
	texts = append(texts, st.answerText)
	snippets := make([]prompts.SnippetRef, 0, len(trimmed))
	sourceByChunk := make(map[string]string, len(st.rankHits))
	for _, h := range st.rankHits {
		sourceByChunk[h.ID] = h.SourceID
	}
	for _, c := range trimmed {
		sourceID := sourceByChunk[c.ID]
		snippets = append(snippets, prompts.SnippetRef{
			SourceNumber: numberBySource[sourceID],
			ChunkID:      c.ID,
			SourceID:     sourceID,
			Text:         c.Text,
		})
		texts = append(texts, c.Text)
	}

	if budget.EstimatePromptTokens(texts, overhead) > verifyHardCeilingTokens {
		emit("claims", ClaimsPayload{Claims: []ClaimInfo{}})
		return nil
	}

	claims, err := o.verifier.Verify(ctx, verify.Input{AnswerMarkdown: st.answerText, Snippets: snippets}, verify.Options{
		BindOffsets:           true,
		ChunkTextByID:         chunkTextByID,
		ActiveSourceIDs:       activeSourceIDs,
		ActiveChunkIDs:        activeChunkIDs,
		NLIContradictionCheck: true,
	})
	if err != nil {
		return err
	}

	infos := make([]ClaimInfo, 0, len(claims))
	for _, c := range claims {
		claimID, err := o.db.InsertClaim(storage.Claim{
			MessageID:         st.messageID,
			Text:              c.Text,
			ClaimType:         claimTypePtr(c.ClaimType),
			SupportScore:      c.SupportScore,
			Contradicted:      c.Contradicted,
			UncertaintyReason: c.UncertaintyReason,
		})
		if err != nil {
			return apierr.Wrap(apierr.StorageError, "persisting claim", err)
		}

		// filterClaimsToActiveContext already dropped any evidence with
		// no chunkId, so every item here is persisted and reflected in
		// the claims payload identically.
		evidenceInfos := make([]EvidenceInfo, 0, len(c.Evidence))
		for _, e := range c.Evidence {
			if _, err := o.db.InsertClaimEvidence(storage.ClaimEvidence{
				ClaimID:   claimID,
				SourceID:  e.SourceID,
				ChunkID:   e.ChunkID,
				Quote:     e.Quote,
				CharStart: derefInt(e.CharStart),
				CharEnd:   derefInt(e.CharEnd),
			}); err != nil {
				return apierr.Wrap(apierr.StorageError, "persisting claim evidence", err)
			}
			evidenceInfos = append(evidenceInfos, EvidenceInfo{
				SourceID:  e.SourceID,
				ChunkID:   e.ChunkID,
				Quote:     e.Quote,
				CharStart: e.CharStart,
				CharEnd:   e.CharEnd,
			})
		}

		reason := ""
		if c.UncertaintyReason != nil {
			reason = *c.UncertaintyReason
		}
		infos = append(infos, ClaimInfo{
			Text:              c.Text,
			ClaimType:         string(c.ClaimType),
			SupportScore:      c.SupportScore,
			Contradicted:      c.Contradicted,
			UncertaintyReason: reason,
			Evidence:          evidenceInfos,
		})
	}

	emit("claims", ClaimsPayload{Claims: infos})
	return nil
}

func claimTypePtr(t verify.ClaimType) *string {
	s := string(t)
	return &s
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
