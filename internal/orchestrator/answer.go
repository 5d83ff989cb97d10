package orchestrator

import (
	"context"

	"github.com/patrickmvla/rift-copilot/internal/apierr"
	"github.com/patrickmvla/rift-copilot/internal/budget"
	"github.com/patrickmvla/rift-copilot/internal/llmgateway"
	"github.com/patrickmvla/rift-copilot/internal/prompts"
	"github.com/patrickmvla/rift-copilot/internal/storage"
)

const (
	defaultAnswerInputTokens    = 3200
	defaultAnswerPromptOverhead = 800
	defaultAnswerMaxChars       = 900
)

// noSourcesAnswer is the canned reply for an empty-search run
// (scenario 2): no LLM call is made, so there is nothing to stream.
const noSourcesAnswer = "I could not find suitable sources to answer this question."

// answeredContext is what budgetForAnswer computes: the numbered
// source list and the trimmed, shrunk snippets built from it, ready
// to hand to prompts.BuildAnswerPrompt.
type answeredContext struct {
	sources     []prompts.SourceRef
	snippets    []prompts.SnippetRef
	sourceInfos []SourceInfo
}

// answerStage implements §4.10 step 5: budget the ranked chunks,
// stream the answer, persist it, and emit sources/token/answer.
func (o *Orchestrator) answerStage(ctx context.Context, st *runState, emit Emit) error {
	if len(st.rankHits) == 0 {
		emit("sources", SourcesPayload{Sources: []SourceInfo{}})
		st.answerText = noSourcesAnswer
		emit("answer", AnswerPayload{Text: noSourcesAnswer})
		messageID, err := o.db.AppendMessage(st.threadID, storage.RoleAssistant, noSourcesAnswer)
		if err != nil {
			return apierr.Wrap(apierr.StorageError, "persisting answer", err)
		}
		st.messageID = messageID
		return nil
	}

	maxChars := o.budgets.AnswerMaxCharsPerChunk
	if maxChars <= 0 {
		maxChars = defaultAnswerMaxChars
	}
	inputTokens := o.budgets.AnswerInputTokens
	if inputTokens <= 0 {
		inputTokens = defaultAnswerInputTokens
	}
	overhead := o.budgets.AnswerPromptOverhead
	if overhead <= 0 {
		overhead = defaultAnswerPromptOverhead
	}

	actx, err := o.buildAnswerContext(st, maxChars, inputTokens, overhead)
	if err != nil {
		return err
	}

	emit("sources", SourcesPayload{Sources: actx.sourceInfos})

	pair := prompts.BuildAnswerPrompt(st.question, actx.sources, actx.snippets)
	text, err := o.streamAnswer(ctx, pair, emit)
	if err != nil && apierr.KindOf(err) == apierr.BudgetExceeded {
		// Retry once with a halved budget per §4.10 step 5.
		emit("progress", ProgressPayload{Stage: "answer", Message: "Context too large; retrying with smaller context"})
		actx, rebuildErr := o.buildAnswerContext(st, maxChars/2, inputTokens/2, overhead)
		if rebuildErr != nil {
			return err
		}
		pair = prompts.BuildAnswerPrompt(st.question, actx.sources, actx.snippets)
		text, err = o.streamAnswer(ctx, pair, emit)
	}
	if err != nil {
		return err
	}

	st.answerText = text
	emit("answer", AnswerPayload{Text: text})

	messageID, err := o.db.AppendMessage(st.threadID, storage.RoleAssistant, text)
	if err != nil {
		return apierr.Wrap(apierr.StorageError, "persisting answer", err)
	}
	st.messageID = messageID
	return nil
}

// buildAnswerContext computes the minimal source list and
// budget-trimmed snippets for one answer attempt.
func (o *Orchestrator) buildAnswerContext(st *runState, maxChars, inputTokens, overhead int) (*answeredContext, error) {
	chunkSourceIDs := make([]string, len(st.rankHits))
	for i, h := range st.rankHits {
		chunkSourceIDs[i] = h.SourceID
	}
	minimalIDs := budget.MinimalSourceRefs(chunkSourceIDs)

	numberBySource := make(map[string]int, len(minimalIDs))
	sources := make([]prompts.SourceRef, 0, len(minimalIDs))
	sourceInfos := make([]SourceInfo, 0, len(minimalIDs))
	for i, id := range minimalIDs {
		number := i + 1
		numberBySource[id] = number
		src, err := o.db.GetSource(id)
		if err != nil {
			return nil, apierr.Wrap(apierr.StorageError, "loading source metadata", err)
		}
		title, url, domain := id, id, ""
		if src != nil {
			url = src.URL
			domain = src.Domain
			if src.Title != nil {
				title = *src.Title
			} else {
				title = src.URL
			}
		}
		sources = append(sources, prompts.SourceRef{Number: number, Title: title, URL: url, Domain: domain})
		sourceInfos = append(sourceInfos, SourceInfo{Number: number, Title: title, URL: url, Domain: domain})
	}

	shrunk := make([]budget.Chunk, len(st.rankHits))
	for i, h := range st.rankHits {
		shrunk[i] = budget.Chunk{ID: h.ID, Text: budget.ShrinkChunkText(h.Text, maxChars)}
	}

	est := budget.NewEstimator()
	trimmed := budget.TrimChunksToBudget(shrunk, inputTokens, overhead, est)

	sourceByChunk := make(map[string]string, len(st.rankHits))
	for _, h := range st.rankHits {
		sourceByChunk[h.ID] = h.SourceID
	}

	snippets := make([]prompts.SnippetRef, 0, len(trimmed))
	for _, c := range trimmed {
		sourceID := sourceByChunk[c.ID]
		snippets = append(snippets, prompts.SnippetRef{
			SourceNumber: numberBySource[sourceID],
			ChunkID:      c.ID,
			SourceID:     sourceID,
			Text:         c.Text,
		})
	}

	return &answeredContext{sources: sources, snippets: snippets, sourceInfos: sourceInfos}, nil
}

// streamAnswer forwards every non-empty delta as a "token" event and
// returns the accumulated text, upholding the invariant that the
// persisted assistant message equals the concatenation of streamed
// deltas.
func (o *Orchestrator) streamAnswer(ctx context.Context, pair prompts.Pair, emit Emit) (string, error) {
	deltas, err := o.gateway.Stream(ctx, llmgateway.Request{
		ModelAlias: llmgateway.AliasAnswer,
		System:     pair.System,
		Prompt:     pair.User,
	})
	if err != nil {
		return "", err
	}

	var text string
	for d := range deltas {
		if d.Err != nil {
			return "", d.Err
		}
		if d.Text == "" {
			continue
		}
		text += d.Text
		emit("token", d.Text)
	}
	return text, nil
}
